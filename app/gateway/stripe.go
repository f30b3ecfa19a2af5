package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com"

type StripeConfig struct {
	SecretKey   string
	APIBaseURL  string
	HTTPTimeout time.Duration
}

type StripeGateway struct {
	cfg    StripeConfig
	client *http.Client
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultStripeAPIBaseURL
	}

	return &StripeGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *StripeGateway) CreateSession(ctx context.Context, input *CreateSessionInput) (*Session, error) {
	if strings.TrimSpace(g.cfg.SecretKey) == "" {
		return nil, ErrNotConfigured
	}
	if input == nil || input.AmountMinor <= 0 {
		return nil, ErrInvalidSessionData
	}

	values := url.Values{}
	values.Set("mode", "payment")
	values.Set("success_url", input.SuccessURL)
	values.Set("cancel_url", input.CancelURL)
	if ref := strings.TrimSpace(input.ClientReference); ref != "" {
		values.Set("client_reference_id", ref)
	}

	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	for i, item := range sessionLineItems(input) {
		prefix := "line_items[" + strconv.Itoa(i) + "]"
		values.Set(prefix+"[quantity]", strconv.FormatInt(int64(item.Quantity), 10))
		values.Set(prefix+"[price_data][currency]", currency)
		values.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmountMinor, 10))
		values.Set(prefix+"[price_data][product_data][name]", item.Name)
	}

	for k, v := range input.Metadata {
		values.Set("metadata["+k+"]", v)
	}

	body, err := g.do(ctx, http.MethodPost, "/v1/checkout/sessions", values)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	result := &Session{
		SessionID:   strings.TrimSpace(payload.ID),
		RedirectURL: strings.TrimSpace(payload.URL),
	}
	if result.SessionID == "" || result.RedirectURL == "" {
		return nil, fmt.Errorf("%w: session id or url missing", ErrMalformedResponse)
	}

	return result, nil
}

func (g *StripeGateway) GetSessionStatus(ctx context.Context, sessionID string) (*SessionStatus, error) {
	if strings.TrimSpace(g.cfg.SecretKey) == "" {
		return nil, ErrNotConfigured
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	body, err := g.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		var apiErr *stripeAPIError
		if errors.As(err, &apiErr) && apiErr.resourceMissing() {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var payload struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		PaymentStatus string `json:"payment_status"`
		AmountTotal   *int64 `json:"amount_total"`
		Currency      string `json:"currency"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload.AmountTotal == nil {
		return nil, fmt.Errorf("%w: amount_total missing", ErrMalformedResponse)
	}

	status, paymentStatus, err := normalizeStripeStatus(payload.Status, payload.PaymentStatus)
	if err != nil {
		return nil, err
	}

	result := &SessionStatus{
		SessionID:     strings.TrimSpace(payload.ID),
		Status:        status,
		PaymentStatus: paymentStatus,
		AmountMinor:   *payload.AmountTotal,
		Currency:      strings.ToLower(strings.TrimSpace(payload.Currency)),
	}
	if result.SessionID == "" {
		result.SessionID = sessionID
	}

	return result, nil
}

func (g *StripeGateway) do(ctx context.Context, method, path string, values url.Values) ([]byte, error) {
	var reqBody io.Reader
	if values != nil {
		reqBody = strings.NewReader(values.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.APIBaseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, newStripeAPIError(path, resp.StatusCode, body)
	}

	return body, nil
}

type stripeAPIError struct {
	Path       string
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func newStripeAPIError(path string, statusCode int, body []byte) *stripeAPIError {
	apiErr := &stripeAPIError{Path: path, StatusCode: statusCode, Body: string(body)}

	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Code = strings.TrimSpace(payload.Error.Code)
		apiErr.Message = payload.Error.Message
	}

	return apiErr
}

func (e *stripeAPIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe request failed: path=%s status=%d code=%s message=%s", e.Path, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("stripe request failed: path=%s status=%d body=%s", e.Path, e.StatusCode, e.Body)
}

// resourceMissing reports whether Stripe said the object does not exist, as
// opposed to a 404 from a proxy or a wrong base URL.
func (e *stripeAPIError) resourceMissing() bool {
	return e.StatusCode == http.StatusNotFound && e.Code == "resource_missing"
}

// sessionLineItems sends one Stripe line per priced item when their sum
// matches the total, and a single aggregated line otherwise.
func sessionLineItems(input *CreateSessionInput) []LineItem {
	var sum int64
	for _, item := range input.LineItems {
		if item.Quantity <= 0 || item.UnitAmountMinor <= 0 {
			sum = -1
			break
		}
		sum += item.UnitAmountMinor * int64(item.Quantity)
	}
	if len(input.LineItems) > 0 && sum == input.AmountMinor {
		return input.LineItems
	}

	return []LineItem{{Name: "Order", UnitAmountMinor: input.AmountMinor, Quantity: 1}}
}

func normalizeStripeStatus(rawStatus, rawPaymentStatus string) (entity.SessionStatus, entity.PaymentStatus, error) {
	status := entity.SessionStatus(strings.ToLower(strings.TrimSpace(rawStatus)))
	switch status {
	case entity.SessionStatusOpen, entity.SessionStatusComplete, entity.SessionStatusExpired:
	default:
		return "", "", fmt.Errorf("%w: unknown session status %q", ErrMalformedResponse, rawStatus)
	}

	switch strings.ToLower(strings.TrimSpace(rawPaymentStatus)) {
	case "paid", "no_payment_required":
		return status, entity.PaymentStatusPaid, nil
	case "unpaid":
		if status == entity.SessionStatusExpired {
			return status, entity.PaymentStatusExpired, nil
		}
		return status, entity.PaymentStatusUnpaid, nil
	default:
		return "", "", fmt.Errorf("%w: unknown payment status %q", ErrMalformedResponse, rawPaymentStatus)
	}
}
