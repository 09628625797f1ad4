package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// maxResponseBytes caps how much of a response body is read. Exports and
// block pages can be large.
const maxResponseBytes = 64 << 20

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized is returned when the server rejects the admin token or
// secret.
var ErrUnauthorized = errors.New("unauthorized")

// ValidationError is returned by Submit when the server rejects the request
// with a list of problems.
type ValidationError struct {
	Message  string
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Problems, "; ")
}

// Client is the PatentChain SDK entry point.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken sets a previously issued admin token.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithTimeout sets the request timeout on the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.httpClient.Timeout = d
		return nil
	}
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error.
func MustNew(baseURL string, opts ...Option) *Client {
	c, err := New(baseURL, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Token returns the admin token currently in use, if any.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bearerToken
}

// Login exchanges the admin secret for a token, stores it on the client and
// returns it.
func (c *Client) Login(ctx context.Context, secret string) (*TokenResult, error) {
	var out TokenResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/token", nil, map[string]string{"secret": secret}, &out); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	c.mu.Lock()
	c.bearerToken = out.Token
	c.mu.Unlock()
	return &out, nil
}

// Submit sends a new patent. On-chain submissions return once the block has
// been mined, which can take a while on high difficulties.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*Patent, error) {
	var out Patent
	if err := c.call(ctx, http.MethodPost, "/api/v1/patents", nil, req, &out); err != nil {
		return nil, fmt.Errorf("submit patent: %w", err)
	}
	return &out, nil
}

// Patent fetches a single record by its patent ID.
func (c *Client) Patent(ctx context.Context, id string) (*Patent, error) {
	var out Patent
	if err := c.call(ctx, http.MethodGet, "/api/v1/patents/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get patent %s: %w", id, err)
	}
	return &out, nil
}

// Search returns the records matching f.
func (c *Client) Search(ctx context.Context, f Filter) ([]Patent, error) {
	var out struct {
		Patents []Patent `json:"patents"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/patents", f.values(), nil, &out); err != nil {
		return nil, fmt.Errorf("search patents: %w", err)
	}
	return out.Patents, nil
}

// Counts returns per-type and per-storage totals.
func (c *Client) Counts(ctx context.Context) (*Counts, error) {
	var out struct {
		Counts   Counts   `json:"counts"`
		TopTypes []string `json:"top_types"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/patents/counts", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("patent counts: %w", err)
	}
	out.Counts.TopTypes = out.TopTypes
	return &out.Counts, nil
}

// Stats returns the explorer summary of the ledger.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	return &out, nil
}

// Verify asks the server to walk the whole chain.
func (c *Client) Verify(ctx context.Context) (*VerifyResult, error) {
	var out VerifyResult
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/verify", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("verify ledger: %w", err)
	}
	return &out, nil
}

// Blocks returns a page of blocks. desc lists the newest first.
func (c *Client) Blocks(ctx context.Context, offset, limit int, desc bool) (*BlockPage, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if desc {
		q.Set("order", "desc")
	}
	var out BlockPage
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/blocks", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return &out, nil
}

// Block fetches the block at idx.
func (c *Client) Block(ctx context.Context, idx int) (*Block, error) {
	var out Block
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/blocks/"+strconv.Itoa(idx), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get block %d: %w", idx, err)
	}
	return &out, nil
}

// Export downloads records as "csv" or "json" and returns the raw file body.
func (c *Client) Export(ctx context.Context, format string, chain, offChain bool) ([]byte, error) {
	q := url.Values{}
	q.Set("format", format)
	q.Set("chain", strconv.FormatBool(chain))
	q.Set("offchain", strconv.FormatBool(offChain))
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/export", q, nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", format, err)
	}
	return body, nil
}

// Notifications returns the most recent notifications and the unread count.
func (c *Client) Notifications(ctx context.Context, limit int) ([]Notification, int, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Notifications []Notification `json:"notifications"`
		Unread        int            `json:"unread"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/notifications", q, nil, &out); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return out.Notifications, out.Unread, nil
}

// MarkRead marks one notification as read.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	if err := c.call(ctx, http.MethodPost, "/api/v1/notifications/"+url.PathEscape(id)+"/read", nil, nil, nil); err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	return nil
}

// ClearNotifications drops every notification.
func (c *Client) ClearNotifications(ctx context.Context) error {
	if err := c.call(ctx, http.MethodDelete, "/api/v1/notifications", nil, nil, nil); err != nil {
		return fmt.Errorf("clear notifications: %w", err)
	}
	return nil
}

// Timeline returns per-day submission counts for the trailing days, oldest
// first.
func (c *Client) Timeline(ctx context.Context, days int) ([]DayCount, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	var out struct {
		Days []DayCount `json:"days"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/patents/timeline", q, nil, &out); err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	return out.Days, nil
}

// Snapshots lists stored snapshots, newest first.
func (c *Client) Snapshots(ctx context.Context, limit int) ([]SnapshotSummary, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Snapshots []SnapshotSummary `json:"snapshots"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/snapshots", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return out.Snapshots, nil
}

// TakeSnapshot saves a snapshot of the live ledger. Requires an admin token.
func (c *Client) TakeSnapshot(ctx context.Context) (*SnapshotSummary, error) {
	var out SnapshotSummary
	if err := c.call(ctx, http.MethodPost, "/api/v1/snapshots", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("take snapshot: %w", err)
	}
	return &out, nil
}

// LatestSnapshot describes the most recent snapshot.
func (c *Client) LatestSnapshot(ctx context.Context) (*SnapshotSummary, error) {
	var out SnapshotSummary
	if err := c.call(ctx, http.MethodGet, "/api/v1/snapshots/latest", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return &out, nil
}

// VerifySnapshot re-checks a stored snapshot and compares it with the live
// ledger. Requires an admin token.
func (c *Client) VerifySnapshot(ctx context.Context, id string) (*SnapshotVerifyResult, error) {
	var out SnapshotVerifyResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/snapshots/"+url.PathEscape(id)+"/verify", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("verify snapshot %s: %w", id, err)
	}
	return &out, nil
}

// CreateWebhook registers target for the given events. Requires an admin
// token. The returned Secret signs every delivery and is not shown again.
func (c *Client) CreateWebhook(ctx context.Context, target string, events []string) (*Webhook, error) {
	var out struct {
		Subscription Webhook `json:"subscription"`
		Secret       string  `json:"secret"`
	}
	in := map[string]any{"url": target, "events": events}
	if err := c.call(ctx, http.MethodPost, "/api/v1/webhooks", nil, in, &out); err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}
	out.Subscription.Secret = out.Secret
	return &out.Subscription, nil
}

// Webhooks lists webhook subscriptions. Requires an admin token.
func (c *Client) Webhooks(ctx context.Context) ([]Webhook, error) {
	var out struct {
		Subscriptions []Webhook `json:"subscriptions"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/webhooks", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	return out.Subscriptions, nil
}

// Webhook fetches one webhook subscription. Requires an admin token.
func (c *Client) Webhook(ctx context.Context, id string) (*Webhook, error) {
	var out Webhook
	if err := c.call(ctx, http.MethodGet, "/api/v1/webhooks/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get webhook %s: %w", id, err)
	}
	return &out, nil
}

// WebhookDeliveries returns the most recent delivery attempts, newest first.
// Requires an admin token.
func (c *Client) WebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Deliveries []WebhookDelivery `json:"deliveries"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/webhooks/deliveries", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list webhook deliveries: %w", err)
	}
	return out.Deliveries, nil
}

// DeleteWebhook removes a webhook subscription. Requires an admin token.
func (c *Client) DeleteWebhook(ctx context.Context, id string) error {
	if err := c.call(ctx, http.MethodDelete, "/api/v1/webhooks/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete webhook %s: %w", id, err)
	}
	return nil
}

// call sends in as JSON (when non-nil) and decodes the response into out
// (when non-nil).
func (c *Client) call(ctx context.Context, method, path string, q url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := c.newRequest(ctx, method, path, q, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil || len(resp) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 300 {
		return body, nil
	}

	var apiErr struct {
		Error    string   `json:"error"`
		Problems []string `json:"problems"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case http.StatusUnprocessableEntity:
		return nil, &ValidationError{Message: msg, Problems: apiErr.Problems}
	}
	return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, msg)
}
