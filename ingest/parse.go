// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"net/url"
	"strings"
)

// MaxRows caps a single upload
const MaxRows = 5000

// Row is one candidate parsed from a spreadsheet
type Row struct {
	Line     int
	Name     string
	Office   string
	District string
	Party    string
	Website  string
	Email    string
	Bio      string
}

// RowError reports a rejected line. Line is 1-based and counts the header.
type RowError struct {
	Line    int
	Message string
}

func (e RowError) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Message) }

// Result is everything ParseCandidates found
type Result struct {
	Rows   []Row
	Errors []RowError
	// Total counts non-blank data lines, accepted or not
	Total int
}

var (
	ErrInvalidFile   = errors.New("invalid candidate file")
	ErrEmptyFile     = errors.New("file has no header row")
	ErrMissingColumn = errors.New("missing required column")
	ErrTooManyRows   = fmt.Errorf("file has more than %d rows", MaxRows)
)

// headerAliases maps accepted column titles to fields, compared lowercase
var headerAliases = map[string]string{
	"name":      "name",
	"candidate": "name",
	"office":    "office",
	"race":      "office",
	"position":  "office",
	"district":  "district",
	"party":     "party",
	"website":   "website",
	"url":       "website",
	"email":     "email",
	"bio":       "bio",
}

// detectDelimiter picks tab when the header line has more tabs than commas
func detectDelimiter(data []byte) rune {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.Count(line, "\t") > strings.Count(line, ",") {
			return '\t'
		}
		return ','
	}
	return ','
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseCandidates reads a CSV or TSV candidate list. Structural problems
// with the header fail the whole file; bad rows are reported and skipped.
func ParseCandidates(r io.Reader) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read upload: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = detectDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if cr.Comma == '\t' {
		cr.LazyQuotes = true
	}

	header, err := cr.Read()
	if err == io.EOF {
		return Result{}, ErrEmptyFile
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to read header: %w", err)
	}

	cols := map[string]int{}
	for i, h := range header {
		if field, ok := headerAliases[strings.ToLower(collapse(h))]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	for _, required := range []string{"name", "office"} {
		if _, ok := cols[required]; !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	get := func(rec []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var res Result
	seen := map[string]int{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.Total++
				res.Errors = append(res.Errors, RowError{Line: perr.StartLine, Message: perr.Err.Error()})
				continue
			}
			return Result{}, fmt.Errorf("failed to read row: %w", err)
		}
		if blank(rec) {
			continue
		}
		line, _ := cr.FieldPos(0)

		res.Total++
		if res.Total > MaxRows {
			return Result{}, ErrTooManyRows
		}

		row := Row{
			Line:     line,
			Name:     collapse(get(rec, "name")),
			Office:   collapse(get(rec, "office")),
			District: collapse(get(rec, "district")),
			Party:    collapse(get(rec, "party")),
			Website:  strings.TrimSpace(get(rec, "website")),
			Email:    strings.ToLower(strings.TrimSpace(get(rec, "email"))),
			Bio:      strings.TrimSpace(get(rec, "bio")),
		}

		if msg := validate(row); msg != "" {
			res.Errors = append(res.Errors, RowError{Line: line, Message: msg})
			continue
		}

		key := Key(row.Name, row.Office, row.District)
		if first, dup := seen[key]; dup {
			res.Errors = append(res.Errors, RowError{Line: line, Message: fmt.Sprintf("duplicate of line %d", first)})
			continue
		}
		seen[key] = line
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

// Key identifies a candidate within one election
func Key(name, office, district string) string {
	return strings.ToLower(collapse(name) + "|" + collapse(office) + "|" + collapse(district))
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func validate(r Row) string {
	switch {
	case r.Name == "":
		return "name is required"
	case r.Office == "":
		return "office is required"
	case len(r.Name) > 200:
		return "name is too long"
	}
	if r.Website != "" {
		u, err := url.Parse(r.Website)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "website must be an http or https URL"
		}
	}
	if r.Email != "" {
		addr, err := mail.ParseAddress(r.Email)
		if err != nil || addr.Address != r.Email {
			return "invalid email address"
		}
	}
	return ""
}
