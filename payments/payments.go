// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance bounds how old a signed webhook may be
const DefaultTolerance = 5 * time.Minute

var (
	ErrBadSignature = errors.New("invalid webhook signature")
	ErrStaleEvent   = errors.New("webhook timestamp outside tolerance")
)

// CheckoutRequest describes a donation to collect
type CheckoutRequest struct {
	DonationID    string
	CandidateName string
	AmountCents   int64
	Currency      string
	DonorEmail    string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is where to send the donor
type CheckoutSession struct {
	ID  string
	URL string
}

// Provider opens hosted checkout sessions
type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}

// NewProvider picks a checkout backend by name: "local" or "stripe"
func NewProvider(name, apiKey, baseURL string) (Provider, error) {
	switch name {
	case "", "local":
		return LocalProvider{BaseURL: baseURL}, nil
	case "stripe":
		if apiKey == "" {
			return nil, fmt.Errorf("payments provider %q needs an API key", name)
		}
		return NewStripeProvider(apiKey), nil
	}
	return nil, fmt.Errorf("unknown payments provider %q", name)
}

// LocalProvider completes donations against this server, for development
type LocalProvider struct {
	BaseURL string
}

func (p LocalProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	return CheckoutSession{
		ID:  "local_" + req.DonationID,
		URL: p.BaseURL + "/donations/" + req.DonationID + "/complete",
	}, nil
}

// Sign produces a signature header for body at t
func Sign(body []byte, secret string, t time.Time) string {
	ts := strconv.FormatInt(t.Unix(), 10)
	return "t=" + ts + ",v1=" + computeSignature(ts, body, secret)
}

func computeSignature(ts string, body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a "t=<unix>,v1=<hex>" header. Any one matching v1
// entry is accepted so secrets can be rotated.
func VerifySignature(header string, body []byte, secret string, now time.Time, tolerance time.Duration) error {
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return ErrBadSignature
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(unix, 0))
		if age > tolerance || age < -tolerance {
			return ErrStaleEvent
		}
	}

	expected := []byte(computeSignature(ts, body, secret))
	for _, sig := range sigs {
		if hmac.Equal(expected, []byte(sig)) {
			return nil
		}
	}
	return ErrBadSignature
}

// Outcome is what a webhook means for a donation
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomePaid
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePaid:
		return "paid"
	case OutcomeFailed:
		return "failed"
	default:
		return "ignored"
	}
}

// Event is the part of a provider webhook we act on
type Event struct {
	ID          string
	Type        string
	SessionID   string
	DonationID  string
	AmountTotal int64
	Outcome     Outcome
}

type rawEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string `json:"id"`
			ClientReferenceID string `json:"client_reference_id"`
			AmountTotal       int64  `json:"amount_total"`
		} `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a checkout webhook body
func ParseEvent(body []byte) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return Event{}, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if raw.Type == "" {
		return Event{}, errors.New("webhook payload has no type")
	}

	e := Event{
		ID:          raw.ID,
		Type:        raw.Type,
		SessionID:   raw.Data.Object.ID,
		DonationID:  raw.Data.Object.ClientReferenceID,
		AmountTotal: raw.Data.Object.AmountTotal,
	}
	switch raw.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		e.Outcome = OutcomePaid
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		e.Outcome = OutcomeFailed
	}
	if e.Outcome != OutcomeIgnored && e.SessionID == "" {
		return Event{}, errors.New("webhook payload has no session id")
	}
	return e, nil
}
