// =============================================================================
// Invoice Pipeline - Remote Bulk-Quantity Client
// =============================================================================
//
// This module queries the external reference service that knows, per invoice
// number, the authoritative bulk quantity (packaging units) and base-unit
// quantity (kilograms) of each item, keyed by reference code.
//
// PROTOCOL:
//   POST {base}/Auth/login            {"username","password"} -> token
//   GET  {base}/FacturasBolsaAgro/{n} Authorization: Bearer <token>
//
// The token is cached and refreshed five minutes before its reported expiry.
// The invoice endpoint returns either a JSON array of items or a single JSON
// object; single objects are wrapped into a one-element list.
//
// FAIL-OPEN CONTRACT:
//   A network or service failure yields an empty result slice together with a
//   LookupError. Callers must treat "empty" and "error" identically: no
//   authoritative data, fall through to the next resolution strategy. Absence
//   of remote data never blocks invoice processing. A 404 means the invoice
//   is simply unknown to the service and is reported as empty with no error.
//
// =============================================================================

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/automatizaco/invoice-pipeline/internal/invoice"
)

// =============================================================================
// ERRORS
// =============================================================================

// LookupError reports a remote service failure: unreachable host, non-2xx
// status or an invalid payload. It always accompanies an empty result slice.
type LookupError struct {
	// InvoiceNumber is the query that failed.
	InvoiceNumber string

	// Reason describes the failure.
	Reason string

	// Err is the underlying cause, when one exists.
	Err error
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote lookup %s: %s: %v", e.InvoiceNumber, e.Reason, e.Err)
	}
	return fmt.Sprintf("remote lookup %s: %s", e.InvoiceNumber, e.Reason)
}

func (e *LookupError) Unwrap() error { return e.Err }

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config carries the connection settings for the remote service.
type Config struct {
	// BaseURL is the service root, e.g.
	// "https://somexapp.com/ApiAutoAccess/SomexAutoAccess".
	BaseURL string

	// Username and Password authenticate against the login endpoint. The
	// password is the API hash, not a user secret.
	Username string
	Password string

	// Timeout bounds each HTTP request. Zero means 30 seconds.
	Timeout time.Duration
}

const (
	authPath    = "/Auth/login"
	invoicePath = "/FacturasBolsaAgro"

	// tokenExpiryMargin renews the token this long before its reported
	// expiry so an in-flight request never races expiration.
	tokenExpiryMargin = 5 * time.Minute

	defaultTokenTTL = time.Hour
	defaultTimeout  = 30 * time.Second
)

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the remote bulk-quantity service. It is safe for concurrent
// use; the cached auth token is guarded internally.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a client for the given configuration.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

// authResponse tolerates the field-name variants the service has been seen
// returning for the token.
type authResponse struct {
	Token        string `json:"token"`
	AccessToken  string `json:"access_token"`
	TokenUpper   string `json:"Token"`
	AccessUpper  string `json:"AccessToken"`
	ExpiresInSec int64  `json:"expires_in"`
}

func (a authResponse) tokenValue() string {
	for _, t := range []string{a.Token, a.AccessToken, a.TokenUpper, a.AccessUpper} {
		if t != "" {
			return t
		}
	}
	return ""
}

// authenticate obtains a bearer token, reusing the cached one while it is
// still comfortably valid. Callers hold no lock; this method locks.
func (c *Client) authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpiryMargin)) {
		return c.token, nil
	}

	payload, err := json.Marshal(map[string]string{
		"username": c.cfg.Username,
		"password": c.cfg.Password,
	})
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+authPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("auth request: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read auth response: %w", err)
	}

	var auth authResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}

	token := auth.tokenValue()
	if token == "" {
		return "", fmt.Errorf("no token in auth response")
	}

	ttl := defaultTokenTTL
	if auth.ExpiresInSec > 0 {
		ttl = time.Duration(auth.ExpiresInSec) * time.Second
	}

	c.token = token
	c.tokenExpiry = time.Now().Add(ttl)

	c.logger.Debug("authenticated with remote service",
		zap.Duration("token_ttl", ttl))

	return token, nil
}

// =============================================================================
// LOOKUP
// =============================================================================

// lookupItem is the wire shape of one invoice item. Quantities arrive as JSON
// numbers; shopspring parses them without float round-trips.
type lookupItem struct {
	ReferenceCode    string          `json:"referencia"`
	BulkQuantity     decimal.Decimal `json:"bolsas"`
	BaseUnitQuantity decimal.Decimal `json:"cantidad"`
}

// Lookup queries the service for all items of one invoice. Each call is one
// outbound query; there is no response caching at this layer; the pipeline
// caches per invoice, and the SQLite ledger above it ensures an invoice is
// processed at most once per run.
//
// RETURNS:
//   - The result slice, possibly empty.
//   - A *LookupError on service failure, always together with an empty
//     slice. A 404 is "invoice unknown": empty slice, nil error.
func (c *Client) Lookup(ctx context.Context, invoiceNumber string) ([]invoice.LookupResult, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, &LookupError{InvoiceNumber: invoiceNumber, Reason: "authentication failed", Err: err}
	}

	url := fmt.Sprintf("%s%s/%s", c.cfg.BaseURL, invoicePath, invoiceNumber)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &LookupError{InvoiceNumber: invoiceNumber, Reason: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &LookupError{InvoiceNumber: invoiceNumber, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Warn("invoice not found in remote service",
			zap.String("invoice", invoiceNumber))
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &LookupError{
			InvoiceNumber: invoiceNumber,
			Reason:        fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &LookupError{InvoiceNumber: invoiceNumber, Reason: "read response", Err: err}
	}

	items, err := decodeItems(body)
	if err != nil {
		return nil, &LookupError{InvoiceNumber: invoiceNumber, Reason: "invalid payload", Err: err}
	}

	results := make([]invoice.LookupResult, 0, len(items))
	for _, it := range items {
		results = append(results, invoice.LookupResult{
			ReferenceCode:    it.ReferenceCode,
			BulkQuantity:     it.BulkQuantity,
			BaseUnitQuantity: it.BaseUnitQuantity,
		})
	}

	c.logger.Info("remote lookup complete",
		zap.String("invoice", invoiceNumber),
		zap.Int("items", len(results)))

	return results, nil
}

// decodeItems accepts both response shapes: a JSON array of items or a single
// item object.
func decodeItems(body []byte) ([]lookupItem, error) {
	trimmed := bytes.TrimSpace(body)

	var items []lookupItem
	if err := json.Unmarshal(trimmed, &items); err == nil {
		return items, nil
	}

	var single lookupItem
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, err
	}
	return []lookupItem{single}, nil
}
