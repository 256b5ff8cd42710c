package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Session is a hosted checkout session handle. The provider redirects the
// customer to URL and later redelivers the session ID through the return
// callback.
type Session struct {
	ID            string          `json:"id"`
	URL           string          `json:"url"`
	OrderID       string          `json:"orderId"`
	CustomerEmail string          `json:"customerEmail"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentStatus string          `json:"paymentStatus"`
	TransactionID string          `json:"transactionId,omitempty"`
}

// CreateSessionRequest carries the fields the provider needs to host a
// checkout page for one order.
type CreateSessionRequest struct {
	OrderID       string          `json:"orderId"`
	CustomerEmail string          `json:"customerEmail"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	SuccessURL    string          `json:"successUrl"`
	CancelURL     string          `json:"cancelUrl"`
}

// Client talks to the external checkout provider over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// APIError represents a checkout provider error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs a checkout provider client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateSession requests a hosted checkout session for an order.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (Session, error) {
	var session Session
	if err := c.doJSON(ctx, http.MethodPost, "/v1/checkout/sessions", req, &session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// GetSession retrieves a session by ID, typically after the provider's
// return callback redelivers it.
func (c *Client) GetSession(ctx context.Context, sessionID string) (Session, error) {
	var session Session
	if err := c.doJSON(ctx, http.MethodGet, "/v1/checkout/sessions/"+sessionID, nil, &session); err != nil {
		return Session{}, err
	}
	return session, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
