package infra

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/solkite/triarb/internal/apperror"
	"github.com/solkite/triarb/internal/httpclient"
	"github.com/solkite/triarb/internal/logger"
	"github.com/solkite/triarb/internal/ratelimit"
)

// Default configuration values.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 500 * time.Millisecond
	DefaultMaxBackoff   = 5 * time.Second

	// splAmountOffset is the byte offset of the u64 little-endian amount
	// inside an SPL token account: mint (32) + owner (32).
	splAmountOffset = 64

	// splAccountSize is the packed SPL token account size.
	splAccountSize = 165
)

// RPCOracle reads vault balances through Solana JSON-RPC
// getMultipleAccounts. Safe for concurrent use: every piece of shared state
// is behind the rate limiter, the breaker, or an atomic.
type RPCOracle struct {
	endpoint     string
	client       httpclient.Client
	limiter      *ratelimit.Limiter
	breaker      *gobreaker.CircuitBreaker[[]rpcAccount]
	log          *logger.Logger
	maxRetries   int
	retryBackoff time.Duration
	requestID    atomic.Uint64
}

// OracleOption configures RPCOracle.
type OracleOption func(*RPCOracle)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c httpclient.Client) OracleOption {
	return func(o *RPCOracle) {
		o.client = c
	}
}

// WithMaxRetries sets maximum retry attempts per batch.
func WithMaxRetries(n int) OracleOption {
	return func(o *RPCOracle) {
		o.maxRetries = n
	}
}

// WithRetryBackoff sets the initial retry delay.
func WithRetryBackoff(d time.Duration) OracleOption {
	return func(o *RPCOracle) {
		o.retryBackoff = d
	}
}

// WithRateLimit paces outgoing requests.
func WithRateLimit(requestsPerSecond float64, burst int) OracleOption {
	return func(o *RPCOracle) {
		o.limiter = ratelimit.NewWithBurst(requestsPerSecond, burst)
	}
}

// NewRPCOracle creates a Solana JSON-RPC reserve oracle.
func NewRPCOracle(endpoint string, log *logger.Logger, opts ...OracleOption) *RPCOracle {
	o := &RPCOracle{
		endpoint:     endpoint,
		log:          log,
		maxRetries:   DefaultMaxRetries,
		retryBackoff: DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = httpclient.NewInstrumentedClient(
			httpclient.WithBaseURL(endpoint),
			httpclient.WithRequestTimeout(DefaultTimeout),
		)
	}
	if o.limiter == nil {
		o.limiter = ratelimit.NewWithBurst(10, 5)
	}

	o.breaker = gobreaker.NewCircuitBreaker[[]rpcAccount](gobreaker.Settings{
		Name:        "reserve-oracle",
		MaxRequests: 2,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return o
}

// FetchVaultBalances resolves each vault address to its SPL token balance.
// Addresses that do not exist or do not decode are absent from the result.
func (o *RPCOracle) FetchVaultBalances(ctx context.Context, addresses []string) (map[string]*big.Int, error) {
	if len(addresses) == 0 {
		return map[string]*big.Int{}, nil
	}

	accounts, err := o.breaker.Execute(func() ([]rpcAccount, error) {
		return o.getMultipleAccounts(ctx, addresses)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, apperror.Wrap(apperror.CodeCircuitOpen, o.endpoint, err)
		}
		return nil, err
	}

	out := make(map[string]*big.Int, len(accounts))
	for i, acc := range accounts {
		if i >= len(addresses) {
			break
		}
		amount, ok := decodeTokenAmount(acc)
		if !ok {
			continue
		}
		out[addresses[i]] = amount
	}
	return out, nil
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// rpcAccount is one entry of a getMultipleAccounts result. Data is
// [base64Payload, "base64"]; a null account arrives as the zero value.
type rpcAccount struct {
	Data     []string `json:"data"`
	Lamports uint64   `json:"lamports"`
	Owner    string   `json:"owner"`
}

// getMultipleAccounts performs one batched read with retries and
// exponential backoff.
func (o *RPCOracle) getMultipleAccounts(ctx context.Context, addresses []string) ([]rpcAccount, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      o.requestID.Add(1),
		Method:  "getMultipleAccounts",
		Params: []any{
			addresses,
			map[string]string{"encoding": "base64"},
		},
	})
	if err != nil {
		return nil, err
	}

	backoff := o.retryBackoff
	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > DefaultMaxBackoff {
				backoff = DefaultMaxBackoff
			}
		}

		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		accounts, err := o.callOnce(ctx, payload)
		if err == nil {
			return accounts, nil
		}
		lastErr = err
		o.log.Debug(ctx, "oracle batch attempt failed", "attempt", attempt, "error", err)
	}
	return nil, apperror.Wrap(apperror.CodeRPCError, o.endpoint, lastErr)
}

func (o *RPCOracle) callOnce(ctx context.Context, payload []byte) ([]rpcAccount, error) {
	resp, err := o.client.PostJSON(ctx, o.endpoint, payload)
	if err != nil {
		return nil, err
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, err
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	var result struct {
		Value []rpcAccount `json:"value"`
	}
	if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// decodeTokenAmount extracts the u64 little-endian amount at the documented
// offset of an SPL token account.
func decodeTokenAmount(acc rpcAccount) (*big.Int, bool) {
	if len(acc.Data) == 0 {
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(acc.Data[0])
	if err != nil {
		return nil, false
	}
	if len(raw) < splAmountOffset+8 || len(raw) != splAccountSize {
		return nil, false
	}
	amount := binary.LittleEndian.Uint64(raw[splAmountOffset : splAmountOffset+8])
	return new(big.Int).SetUint64(amount), true
}
