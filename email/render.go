// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package email

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/danielhkuo/ballotline/models"
	"github.com/danielhkuo/ballotline/store"
)

// Email kinds, one template each
const (
	KindDonationReceipt   = "donation_receipt"
	KindDonationReceived  = "donation_received"
	KindCandidateUpdate   = "candidate_update"
	KindCandidateVerified = "candidate_verified"
	KindVendorApproved    = "vendor_approved"
	KindVendorInquiry     = "vendor_inquiry"
)

var ErrUnknownKind = errors.New("unknown email kind")

//go:embed templates/*.tmpl
var templateFS embed.FS

type compiled struct {
	subject *texttemplate.Template
	body    *htmltemplate.Template
}

// Renderer turns a queued payload into a subject and HTML body.
type Renderer struct {
	templates map[string]compiled
}

// NewRenderer parses the embedded templates. Each file starts with a
// "Subject: ..." line, a blank line, then the HTML body.
func NewRenderer() (*Renderer, error) {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}

	r := &Renderer{templates: map[string]compiled{}}
	for _, entry := range entries {
		kind := strings.TrimSuffix(entry.Name(), ".tmpl")
		raw, err := templateFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", kind, err)
		}

		head, body, ok := strings.Cut(string(raw), "\n\n")
		if !ok || !strings.HasPrefix(head, "Subject: ") {
			return nil, fmt.Errorf("template %s: missing subject line", kind)
		}

		subject, err := texttemplate.New(kind).Option("missingkey=error").Parse(strings.TrimPrefix(head, "Subject: "))
		if err != nil {
			return nil, fmt.Errorf("template %s subject: %w", kind, err)
		}
		html, err := htmltemplate.New(kind).Option("missingkey=error").Parse(body)
		if err != nil {
			return nil, fmt.Errorf("template %s body: %w", kind, err)
		}
		r.templates[kind] = compiled{subject: subject, body: html}
	}
	return r, nil
}

// Has reports whether kind has a template
func (r *Renderer) Has(kind string) bool {
	_, ok := r.templates[kind]
	return ok
}

// Render executes the template for kind with the JSON payload. A string
// ReplyTo in the payload becomes the message's reply-to address.
func (r *Renderer) Render(kind, payload string) (Message, error) {
	t, ok := r.templates[kind]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return Message{}, fmt.Errorf("invalid payload: %w", err)
	}

	var sb, hb bytes.Buffer
	if err := t.subject.Execute(&sb, data); err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	if err := t.body.Execute(&hb, data); err != nil {
		return Message{}, fmt.Errorf("render body: %w", err)
	}

	msg := Message{Subject: strings.TrimSpace(sb.String()), HTML: hb.String()}
	if replyTo, ok := data["ReplyTo"].(string); ok {
		msg.ReplyTo = replyTo
	}
	return msg, nil
}

var knownKinds = map[string]bool{
	KindDonationReceipt:   true,
	KindDonationReceived:  true,
	KindCandidateUpdate:   true,
	KindCandidateVerified: true,
	KindVendorApproved:    true,
	KindVendorInquiry:     true,
}

// NewMessage builds a queue row for the store to insert
func NewMessage(to, kind string, data map[string]any) (models.Email, error) {
	if !knownKinds[kind] {
		return models.Email{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return models.Email{}, errors.New("recipient is required")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return models.Email{}, fmt.Errorf("failed to encode email payload: %w", err)
	}
	return models.Email{
		ID:      uuid.NewString(),
		ToAddr:  to,
		Kind:    kind,
		Payload: string(payload),
		Status:  models.EmailPending,
	}, nil
}

// Enqueuer is implemented by *store.Store
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, ex store.Execer, e models.Email) error
}

// Enqueue validates and queues one email through ex, which may be a
// transaction
func Enqueue(ctx context.Context, q Enqueuer, ex store.Execer, to, kind string, data map[string]any) error {
	e, err := NewMessage(to, kind, data)
	if err != nil {
		return err
	}
	return q.EnqueueEmail(ctx, ex, e)
}

// FormatCents renders an amount in cents as dollars, e.g. 250050 -> "$2,500.50"
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%s.%02d", sign, humanize.Comma(cents/100), cents%100)
}
