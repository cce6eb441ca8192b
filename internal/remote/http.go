package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/erazemk/izposoja/internal/errs"
)

// DefaultTimeout bounds a single remote call.
const DefaultTimeout = 15 * time.Second

// HTTPClient implements Client over the service's JSON API.
type HTTPClient struct {
	http   *http.Client
	tokens TokenSource

	mu      sync.RWMutex
	baseURL string
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the service at baseURL. tokens may be nil.
func NewHTTPClient(baseURL string, timeout time.Duration, tokens TokenSource) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the configured endpoint.
func (c *HTTPClient) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL points the client at a new endpoint.
func (c *HTTPClient) SetBaseURL(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimRight(baseURL, "/")
}

func scoped(departmentID string) url.Values {
	if departmentID == "" {
		return nil
	}
	return url.Values{"department_id": {departmentID}}
}

// do performs one request. body and out may be nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	op := method + " " + path

	base := c.BaseURL()
	if base == "" {
		return &errs.Error{Kind: errs.KindConnectivity, Op: op, Msg: "remote endpoint is not configured"}
	}
	target := base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &errs.Error{Kind: errs.KindConnectivity, Op: op, Msg: "invalid remote endpoint", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransport(op, err)
	}

	if resp.StatusCode >= 300 {
		return classifyStatus(op, resp.StatusCode, data)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &errs.Error{Kind: errs.KindServer, Op: op, Msg: "malformed response from server", Err: err}
	}
	return nil
}

// classifyTransport classifies a failure to get a response at all.
// Cancellation is passed through so callers can tell supersession apart
// from an outage.
func classifyTransport(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := "remote service is unreachable"
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.As(err, &dnsErr):
		msg = "remote host could not be resolved"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		msg = "remote service timed out"
	case errors.Is(err, syscall.ECONNREFUSED):
		msg = "remote service refused the connection"
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		msg = "connection to remote service was lost"
	}
	return &errs.Error{Kind: errs.KindConnectivity, Op: op, Msg: msg, Err: err}
}

// classifyStatus maps an HTTP error response to an error kind. The service
// reports failures as {"error": "..."}.
func classifyStatus(op string, status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := http.StatusText(status)
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}

	kind := errs.KindServer
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		kind = errs.KindValidation
	case status == http.StatusNotFound:
		kind = errs.KindNotFound
	case status == http.StatusConflict:
		kind = errs.KindConflict
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		kind = errs.KindUnauthorized
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		kind = errs.KindConnectivity
	case status >= 500:
		kind = errs.KindServer
	case status >= 400:
		kind = errs.KindValidation
	}
	return &errs.Error{Kind: kind, Op: op, Msg: msg, Err: fmt.Errorf("http status %d", status)}
}

func (c *HTTPClient) Login(ctx context.Context, contact, password string) (*LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, LoginRequest{Contact: contact, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListItems(ctx context.Context, departmentID string) ([]Item, error) {
	var out []Item
	if err := c.do(ctx, http.MethodGet, "/api/items", scoped(departmentID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateItem(ctx context.Context, in ItemInput) (*Item, error) {
	var out Item
	if err := c.do(ctx, http.MethodPost, "/api/items", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateItem(ctx context.Context, id string, in ItemInput) (*Item, error) {
	var out Item
	if err := c.do(ctx, http.MethodPut, "/api/items/"+url.PathEscape(id), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteItem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/items/"+url.PathEscape(id), nil, nil, nil)
}

func (c *HTTPClient) ListCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	if err := c.do(ctx, http.MethodGet, "/api/categories", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateCategory(ctx context.Context, in NamedInput) (*Category, error) {
	var out Category
	if err := c.do(ctx, http.MethodPost, "/api/categories", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/categories/"+url.PathEscape(id), nil, nil, nil)
}

func (c *HTTPClient) ListDepartments(ctx context.Context) ([]Department, error) {
	var out []Department
	if err := c.do(ctx, http.MethodGet, "/api/departments", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateDepartment(ctx context.Context, in NamedInput) (*Department, error) {
	var out Department
	if err := c.do(ctx, http.MethodPost, "/api/departments", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateDepartment(ctx context.Context, id string, in NamedInput) (*Department, error) {
	var out Department
	if err := c.do(ctx, http.MethodPut, "/api/departments/"+url.PathEscape(id), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteDepartment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/departments/"+url.PathEscape(id), nil, nil, nil)
}

func (c *HTTPClient) ListUsers(ctx context.Context, departmentID string) ([]User, error) {
	var out []User
	if err := c.do(ctx, http.MethodGet, "/api/users", scoped(departmentID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateUser(ctx context.Context, in UserInput) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodPost, "/api/users", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateUser(ctx context.Context, id string, in UserInput) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodPut, "/api/users/"+url.PathEscape(id), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(id), nil, nil, nil)
}

func (c *HTTPClient) ListHistory(ctx context.Context, departmentID string) ([]HistoryEntry, error) {
	var out []HistoryEntry
	if err := c.do(ctx, http.MethodGet, "/api/borrows", scoped(departmentID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) Borrow(ctx context.Context, in BorrowInput) (*Outcome, error) {
	var out Outcome
	if err := c.do(ctx, http.MethodPost, "/api/borrows", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Return(ctx context.Context, historyID string, in ReturnInput) (*Outcome, error) {
	var out Outcome
	if err := c.do(ctx, http.MethodPost, "/api/borrows/"+url.PathEscape(historyID)+"/return", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListBorrowRequests(ctx context.Context, departmentID string) ([]BorrowRequest, error) {
	var out []BorrowRequest
	if err := c.do(ctx, http.MethodGet, "/api/borrow-requests", scoped(departmentID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ApproveBorrow(ctx context.Context, requestID string) (*Outcome, error) {
	var out Outcome
	if err := c.do(ctx, http.MethodPost, "/api/borrow-requests/"+url.PathEscape(requestID)+"/approve", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) RejectBorrow(ctx context.Context, requestID string) (*Outcome, error) {
	var out Outcome
	if err := c.do(ctx, http.MethodPost, "/api/borrow-requests/"+url.PathEscape(requestID)+"/reject", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListRegistrations(ctx context.Context, departmentID string) ([]Registration, error) {
	var out []Registration
	if err := c.do(ctx, http.MethodGet, "/api/registrations", scoped(departmentID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateRegistration(ctx context.Context, in RegistrationInput) (*Registration, error) {
	var out Registration
	if err := c.do(ctx, http.MethodPost, "/api/registrations", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ApproveRegistration(ctx context.Context, id string) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodPost, "/api/registrations/"+url.PathEscape(id)+"/approve", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) RejectRegistration(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/registrations/"+url.PathEscape(id)+"/reject", nil, nil, nil)
}
