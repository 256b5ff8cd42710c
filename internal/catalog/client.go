package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"bookcourier/pkg/domain"
)

// Client reads book data from the catalog service over HTTP. The catalog is
// an external collaborator; this service never mutates it.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError represents a catalog service error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs a catalog client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// GetBook fetches a book by ID.
func (c *Client) GetBook(ctx context.Context, id string) (domain.Book, error) {
	var book domain.Book
	if err := c.doJSON(ctx, http.MethodGet, "/books/"+id, nil, &book); err != nil {
		return domain.Book{}, err
	}
	return book, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
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
