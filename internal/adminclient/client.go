// Package adminclient is a thin Go SDK for the operator CLI
// (cmd/admin) to talk to the running service's HTTP surface, adapted
// from the teacher's internal/client KV SDK: wrap each call in a
// typed Go method instead of hand-rolling http.NewRequest/json.Marshal
// at every call site.
package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to one instance of the service over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Client against baseURL (e.g. "http://localhost:8080"),
// authenticating every call with token.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// RecordBehavior publishes one behavior event via
// /api/v1/recommendation/record-behavior, for operator-driven backfill
// or manual testing.
func (c *Client) RecordBehavior(ctx context.Context, courseID, action string, actionValue *float64) (bool, error) {
	body := map[string]any{"course_id": courseID, "action": action}
	if actionValue != nil {
		body["action_value"] = *actionValue
	}
	var result struct {
		Accepted bool `json:"accepted"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/recommendation/record-behavior", body, &result); err != nil {
		return false, err
	}
	return result.Accepted, nil
}

// Order is the subset of an order record the CLI prints.
type Order struct {
	OrderID       string  `json:"order_id"`
	UserID        string  `json:"user_id"`
	CourseID      string  `json:"course_id"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"payment_method"`
	Status        string  `json:"status"`
	CreatedTime   string  `json:"created_time"`
}

// GetOrder fetches one order by id via /api/v1/order/{order_id}.
func (c *Client) GetOrder(ctx context.Context, orderID string) (Order, error) {
	var order Order
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/order/"+orderID, nil, &order)
	return order, err
}

// ListSessions returns the client ids with a live WebSocket connection.
func (c *Client) ListSessions(ctx context.Context) ([]string, error) {
	var result struct {
		ClientIDs []string `json:"client_ids"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/admin/sessions", nil, &result); err != nil {
		return nil, err
	}
	return result.ClientIDs, nil
}

// ForceExpireIdempotencyKey deletes the idempotency record for key,
// unblocking a caller stuck behind a crashed winner's PROCESSING record.
func (c *Client) ForceExpireIdempotencyKey(ctx context.Context, key string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/admin/idempotency/"+key, nil, nil)
}

// Broadcast sends content to every live WebSocket session via
// /api/v1/ws/broadcast.
func (c *Client) Broadcast(ctx context.Context, content string) (int, error) {
	var result struct {
		Recipients int `json:"recipients"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/ws/broadcast", map[string]string{"content": content}, &result); err != nil {
		return 0, err
	}
	return result.Recipients, nil
}

// SendTo delivers content to one client over its live WebSocket
// connection via /api/v1/ws/send/{client_id}. It reports false rather
// than an error when the client isn't connected (a 404 response).
func (c *Client) SendTo(ctx context.Context, clientID, content string) (bool, error) {
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/ws/send/"+clientID, map[string]string{"message": content}, nil)
	if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, respBody any) error {
	var reader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if respBody == nil {
		return nil
	}

	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, respBody)
}

// APIError carries the HTTP status and message body from a failed call.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var envelope struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &envelope)
	msg := envelope.Message
	if msg == "" {
		msg = string(body)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
