// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const stripeAPI = "https://api.stripe.com"

// StripeProvider opens Stripe Checkout sessions over the REST API
type StripeProvider struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewStripeProvider(apiKey string) *StripeProvider {
	return &StripeProvider{
		APIKey:  apiKey,
		BaseURL: stripeAPI,
		Client:  &http.Client{Timeout: 20 * time.Second},
	}
}

type stripeSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripeError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *StripeProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", req.DonationID)
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	if req.DonorEmail != "" {
		form.Set("customer_email", req.DonorEmail)
	}
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", "Donation to "+req.CandidateName)
	form.Set("metadata[donation_id]", req.DonationID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return CheckoutSession{}, err
	}
	httpReq.SetBasicAuth(p.APIKey, "")
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Idempotency-Key", req.DonationID)

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("failed to read stripe response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var se stripeError
		_ = json.Unmarshal(body, &se)
		return CheckoutSession{}, fmt.Errorf("stripe returned %d: %s", resp.StatusCode, se.Error.Message)
	}

	var s stripeSession
	if err := json.Unmarshal(body, &s); err != nil {
		return CheckoutSession{}, fmt.Errorf("invalid stripe response: %w", err)
	}
	if s.ID == "" || s.URL == "" {
		return CheckoutSession{}, fmt.Errorf("stripe response missing session id or url")
	}
	return CheckoutSession{ID: s.ID, URL: s.URL}, nil
}
