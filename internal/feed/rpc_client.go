// Package feed materializes on-chain accounts for the refresh path: a
// JSON-RPC snapshot fetcher and a websocket subscriber that keeps the
// snapshot fresh. The dispatch core never sees this package; it only reads
// the account handles materialized here.
package feed

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/domain"
	"solana-price-oracle/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// RPCClient fetches account snapshots and the chain clock.
type RPCClient interface {
	// GetMultipleAccounts retrieves account snapshots for the given keys.
	// Keys that do not exist yield nil entries.
	GetMultipleAccounts(ctx context.Context, keys []domain.PubKey) ([]*accounts.Account, error)

	// GetClock retrieves the current slot and unix time.
	GetClock(ctx context.Context) (domain.Clock, error)
}

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new JSON-RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ RPCClient = (*HTTPClient)(nil)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type accountValue struct {
	Owner    string   `json:"owner"`
	Lamports uint64   `json:"lamports"`
	Data     []string `json:"data"` // [payload, encoding]
}

// GetMultipleAccounts retrieves account snapshots for the given keys.
func (c *HTTPClient) GetMultipleAccounts(ctx context.Context, keys []domain.PubKey) ([]*accounts.Account, error) {
	encoded := make([]string, len(keys))
	for i, key := range keys {
		encoded[i] = accounts.KeyString(key)
	}

	var result struct {
		Value []*accountValue `json:"value"`
	}
	params := []any{encoded, map[string]string{"encoding": "base64"}}
	if err := c.call(ctx, "getMultipleAccounts", params, &result); err != nil {
		return nil, err
	}
	if len(result.Value) != len(keys) {
		return nil, fmt.Errorf("getMultipleAccounts: got %d values for %d keys", len(result.Value), len(keys))
	}

	out := make([]*accounts.Account, len(keys))
	for i, v := range result.Value {
		if v == nil {
			continue
		}
		acc, err := decodeAccount(keys[i], v)
		if err != nil {
			return nil, err
		}
		out[i] = acc
	}
	return out, nil
}

// GetClock retrieves the current slot and unix time.
func (c *HTTPClient) GetClock(ctx context.Context) (domain.Clock, error) {
	var slot uint64
	if err := c.call(ctx, "getSlot", nil, &slot); err != nil {
		return domain.Clock{}, err
	}
	var unixTime int64
	if err := c.call(ctx, "getBlockTime", []any{slot}, &unixTime); err != nil {
		return domain.Clock{}, err
	}
	return domain.Clock{Slot: slot, UnixTimestamp: unixTime}, nil
}

func decodeAccount(key domain.PubKey, v *accountValue) (*accounts.Account, error) {
	if len(v.Data) < 1 {
		return nil, fmt.Errorf("account %s: missing data", accounts.KeyString(key))
	}
	data, err := base64.StdEncoding.DecodeString(v.Data[0])
	if err != nil {
		return nil, fmt.Errorf("account %s: decode data: %w", accounts.KeyString(key), err)
	}
	owner, err := accounts.ParseKey(v.Owner)
	if err != nil {
		return nil, fmt.Errorf("account %s: owner: %w", accounts.KeyString(key), err)
	}
	return &accounts.Account{
		Key:      key,
		Owner:    owner,
		Lamports: v.Lamports,
		Data:     data,
	}, nil
}

// call executes one JSON-RPC request with retry and backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []any, result any) error {
	var lastErr error
	delay := c.retryDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		start := time.Now()
		err := c.doCall(ctx, method, params, result)
		observability.RecordRPCLatency(method, time.Since(start).Seconds())
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("%s after %d attempts: %w", method, c.maxRetries+1, lastErr)
}

func (c *HTTPClient) doCall(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %d: %s", resp.StatusCode, raw)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}
