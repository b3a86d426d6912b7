package client

import (
	"bytes"
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

// Client provides typed access to the expense tracker API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:8000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}
	return c.send(ctx, method, path, reader, contentType, token, v)
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg := extractError(resp.Body)
		return APIError{Status: resp.StatusCode, Message: msg}
	}

	if v == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}

// User reflects API user payloads.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Token is the payload returned by a successful login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Expense reflects API expense payloads. Date is formatted YYYY-MM-DD.
type Expense struct {
	ID          int64   `json:"id"`
	Amount      float64 `json:"amount"`
	Description *string `json:"description,omitempty"`
	Date        string  `json:"date"`
	Category    *string `json:"category,omitempty"`
	UserID      int64   `json:"user_id"`
}

// ExpenseInput is the body of create and update requests.
type ExpenseInput struct {
	Amount      float64 `json:"amount"`
	Description *string `json:"description,omitempty"`
	Date        string  `json:"date"`
	Category    *string `json:"category,omitempty"`
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, email, password string) (*User, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	var user User
	if err := c.do(ctx, http.MethodPost, "/users/register", body, "", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges credentials for an access token using the password form flow.
func (c *Client) Login(ctx context.Context, username, password string) (*Token, error) {
	form := url.Values{"username": {username}, "password": {password}}
	var token Token
	if err := c.send(ctx, http.MethodPost, "/users/token", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", "", &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, token, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateEmail changes the authenticated user's email.
func (c *Client) UpdateEmail(ctx context.Context, token, email string) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPut, "/users/me", map[string]string{"email": email}, token, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword replaces the authenticated user's password.
func (c *Client) ChangePassword(ctx context.Context, token, current, next string) error {
	body := map[string]string{"current_password": current, "new_password": next}
	return c.do(ctx, http.MethodPut, "/users/password", body, token, nil)
}

// CreateExpense records an expense for the authenticated user.
func (c *Client) CreateExpense(ctx context.Context, token string, in ExpenseInput) (*Expense, error) {
	var e Expense
	if err := c.do(ctx, http.MethodPost, "/expenses", in, token, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListExpenses returns the authenticated user's expenses.
func (c *Client) ListExpenses(ctx context.Context, token string) ([]Expense, error) {
	var list []Expense
	if err := c.do(ctx, http.MethodGet, "/expenses", nil, token, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetExpense fetches a single expense.
func (c *Client) GetExpense(ctx context.Context, token string, id int64) (*Expense, error) {
	var e Expense
	if err := c.do(ctx, http.MethodGet, expensePath(id), nil, token, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateExpense overwrites an expense.
func (c *Client) UpdateExpense(ctx context.Context, token string, id int64, in ExpenseInput) (*Expense, error) {
	var e Expense
	if err := c.do(ctx, http.MethodPut, expensePath(id), in, token, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// DeleteExpense removes an expense and returns the deleted record.
func (c *Client) DeleteExpense(ctx context.Context, token string, id int64) (*Expense, error) {
	var e Expense
	if err := c.do(ctx, http.MethodDelete, expensePath(id), nil, token, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func expensePath(id int64) string {
	return "/expenses/" + strconv.FormatInt(id, 10)
}
