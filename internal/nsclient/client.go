// =============================================================================
// PO Reconcile - Order System Client
// =============================================================================
//
// REST client for the external order-management system. The client exposes
// a typed surface (internal/types) and keeps the wire format private to the
// package (see records.go).
//
// RETRY POLICY:
//   Fetches (GET) retry transient failures -- network errors, timeouts,
//   408/429/5xx responses -- with exponential backoff up to a bounded
//   attempt count. Writes are never retried automatically: the caller owns
//   the decision to re-issue a replace-all update.
//
// AUTHENTICATION:
//   A bearer token header per request. Session/OAuth mechanics live outside
//   this tool; the token is provided via environment (see config.APIConfig).
//
// =============================================================================

package nsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/mkardell/po-reconcile/internal/errs"
	"github.com/mkardell/po-reconcile/internal/types"
)

// Options configures a Client.
type Options struct {
	// BaseURL is the REST endpoint root.
	BaseURL string

	// AccountID is the tenant account identifier, sent on every request.
	AccountID string

	// Token is the API bearer token.
	Token string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// RetryAttempts bounds retries of transient fetch failures.
	RetryAttempts uint

	// RetryInitialInterval is the first backoff delay.
	RetryInitialInterval time.Duration

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client talks to the external order-management system.
type Client struct {
	baseURL       string
	accountID     string
	token         string
	retryAttempts uint
	retryInterval time.Duration
	http          *http.Client
	log           zerolog.Logger
}

// New creates a Client from options.
func New(opts Options, log zerolog.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if opts.RetryInitialInterval == 0 {
		opts.RetryInitialInterval = 500 * time.Millisecond
	}
	return &Client{
		baseURL:       opts.BaseURL,
		accountID:     opts.AccountID,
		token:         opts.Token,
		retryAttempts: opts.RetryAttempts,
		retryInterval: opts.RetryInitialInterval,
		http:          httpClient,
		log:           log.With().Str("component", "nsclient").Logger(),
	}
}

// =============================================================================
// ORDERS
// =============================================================================

// OrderSummary is one row of the order listing endpoint.
type OrderSummary struct {
	ID       string `json:"id"`
	TranID   string `json:"tranId"`
	TranDate string `json:"tranDate"`
	Total    string `json:"total"`
}

// GetOrderByCode fetches the full purchase order identified by its
// transaction code. Returns errs.ErrNotFound when the code does not
// resolve; transient failures are retried with backoff before surfacing.
func (c *Client) GetOrderByCode(ctx context.Context, code string) (*types.Order, error) {
	endpoint := fmt.Sprintf("purchaseOrder/code/%s", url.PathEscape(code))

	var raw rawOrder
	if err := c.getWithRetry(ctx, endpoint, &raw); err != nil {
		return nil, err
	}
	return raw.toOrder()
}

// UpdateOrder writes the order back with explicit replace semantics on both
// line collections: the remote record's expense and item sublists are fully
// replaced by the payload, never merged. Not retried.
func (c *Client) UpdateOrder(ctx context.Context, order *types.Order) error {
	endpoint := fmt.Sprintf("purchaseOrder/%s?replace=expense,item", url.PathEscape(order.ID))

	body, err := json.Marshal(buildUpdatePayload(order))
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", order.TranID, err)
	}

	req, err := c.newRequest(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &errs.TransientError{Operation: "update order " + order.TranID, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := readErrorMessage(resp.Body)
	return &errs.RemoteError{Operation: "update order " + order.TranID, Status: resp.StatusCode, Message: msg}
}

// ListOrders fetches summaries of the most recently modified purchase
// orders, newest first.
func (c *Client) ListOrders(ctx context.Context, limit int) ([]OrderSummary, error) {
	var page struct {
		Items []OrderSummary `json:"items"`
	}
	endpoint := fmt.Sprintf("purchaseOrder?limit=%d&sort=lastModified:desc", limit)
	if err := c.getWithRetry(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// =============================================================================
// REFERENCE TABLES
// =============================================================================

// ListAccounts fetches all general-ledger accounts.
func (c *Client) ListAccounts(ctx context.Context) ([]types.Account, error) {
	var page struct {
		Items []rawAccount `json:"items"`
	}
	if err := c.getWithRetry(ctx, "account", &page); err != nil {
		return nil, err
	}
	accounts := make([]types.Account, 0, len(page.Items))
	for _, raw := range page.Items {
		accounts = append(accounts, raw.toAccount())
	}
	return accounts, nil
}

// ListItems fetches all catalog items.
func (c *Client) ListItems(ctx context.Context) ([]types.Item, error) {
	var page struct {
		Items []rawItem `json:"items"`
	}
	if err := c.getWithRetry(ctx, "item", &page); err != nil {
		return nil, err
	}
	items := make([]types.Item, 0, len(page.Items))
	for _, raw := range page.Items {
		item, err := raw.toItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// ListVendors fetches all vendor records.
func (c *Client) ListVendors(ctx context.Context) ([]types.Vendor, error) {
	var page struct {
		Items []rawName `json:"items"`
	}
	if err := c.getWithRetry(ctx, "vendor", &page); err != nil {
		return nil, err
	}
	vendors := make([]types.Vendor, 0, len(page.Items))
	for _, raw := range page.Items {
		vendors = append(vendors, types.Vendor{ID: raw.ID, Name: raw.Name, Sandbox: raw.IsSandbox})
	}
	return vendors, nil
}

// ListDepartments fetches all department records.
func (c *Client) ListDepartments(ctx context.Context) ([]types.Department, error) {
	var page struct {
		Items []rawName `json:"items"`
	}
	if err := c.getWithRetry(ctx, "department", &page); err != nil {
		return nil, err
	}
	departments := make([]types.Department, 0, len(page.Items))
	for _, raw := range page.Items {
		departments = append(departments, types.Department{ID: raw.ID, Name: raw.Name, Sandbox: raw.IsSandbox})
	}
	return departments, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// getWithRetry issues a GET and decodes the JSON response into out,
// retrying transient failures with exponential backoff. Not-found and
// remote rejections are permanent and surface immediately.
func (c *Client) getWithRetry(ctx context.Context, endpoint string, out any) error {
	operation := func() error {
		err := c.get(ctx, endpoint, out)
		if err == nil {
			return nil
		}
		if errors.Is(err, errs.ErrTransient) {
			c.log.Warn().Err(err).Str("endpoint", endpoint).Msg("transient fetch failure, will retry")
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval

	return backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.retryAttempts)), ctx))
}

// get issues a single GET without retry.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &errs.TransientError{Operation: "GET " + endpoint, Cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("GET %s: %w", endpoint, errs.ErrNotFound)
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return &errs.TransientError{
			Operation: "GET " + endpoint,
			Cause:     fmt.Errorf("status %d", resp.StatusCode),
		}
	case resp.StatusCode >= 400:
		return &errs.RemoteError{
			Operation: "GET " + endpoint,
			Status:    resp.StatusCode,
			Message:   readErrorMessage(resp.Body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode response: %w", endpoint, err)
	}
	return nil
}

// newRequest builds a request with auth and account headers applied.
func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if c.accountID != "" {
		req.Header.Set("X-Account-Id", c.accountID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// readErrorMessage extracts the error detail from a rejection body, falling
// back to the raw text when it is not the usual JSON error envelope.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var envelope struct {
		Message string `json:"message"`
		Detail  string `json:"o:errorDetails.detail"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Message != "" {
		return envelope.Message
	}
	return string(data)
}
