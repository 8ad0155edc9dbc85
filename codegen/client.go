/*
Package codegen talks to the code generation service that mints the
redeemable QR code for each purchase, and contains a Go implementation
of that service (server.go).

WIRE FORMAT:
  POST {BaseURL}/generate-qr
    request:  {"user_id": 7, "amount": 40}
    response: {"qr_code_base64": "<png>", "hash": "<uuid>"}

TIMEOUTS:
  ConnectTimeout bounds the TCP dial, ReadTimeout bounds the wait for
  response headers. The whole exchange is capped at their sum.
  One attempt per call; retrying is the caller's decision.

ERRORS:
  *TimeoutError   connect or read deadline hit (errors.Is ErrTimeout)
  *ProtocolError  non-2xx, empty or malformed body, missing fields
  anything else   transport failure (refused, DNS, reset)

SEE ALSO:
  - loyalty/store.go: CodeGenerator interface
  - server.go: The service side of the same wire format
*/
package codegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/warp/loyalty-engine/loyalty"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 10 * time.Second

	// maxResponseBytes caps the body; a 256px PNG is a few KB.
	maxResponseBytes = 1 << 20
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrTimeout  = errors.New("code generation timed out")
	ErrProtocol = errors.New("code generation protocol error")
)

// TimeoutError reports which deadline was hit.
type TimeoutError struct {
	URL string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("code generation timed out calling %s: %v", e.URL, e.Err)
}

func (e *TimeoutError) Unwrap() []error { return []error{ErrTimeout, e.Err} }

// ProtocolError is a response that arrived but can't be used.
type ProtocolError struct {
	StatusCode int
	Reason     string
}

func (e *ProtocolError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("code generation: status %d: %s", e.StatusCode, e.Reason)
	}
	return "code generation: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return ErrProtocol }

// =============================================================================
// CLIENT
// =============================================================================

// Config is passed explicitly; zero timeouts fall back to the defaults.
type Config struct {
	BaseURL        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

type Client struct {
	baseURL string
	http    *http.Client
}

var _ loyalty.CodeGenerator = (*Client)(nil)

func NewClient(cfg Config) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
		},
	}
}

type generateRequest struct {
	UserID int64 `json:"user_id"`
	Amount int64 `json:"amount"`
}

type generateResponse struct {
	Image string `json:"qr_code_base64"`
	Hash  string `json:"hash"`
}

// Generate makes exactly one call to the service.
func (c *Client) Generate(ctx context.Context, accountID loyalty.AccountID, amount int64) (loyalty.Code, error) {
	url := c.baseURL + "/generate-qr"

	body, err := json.Marshal(generateRequest{UserID: int64(accountID), Amount: amount})
	if err != nil {
		return loyalty.Code{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return loyalty.Code{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return loyalty.Code{}, &TimeoutError{URL: url, Err: err}
		}
		return loyalty.Code{}, fmt.Errorf("call %s: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			return loyalty.Code{}, &TimeoutError{URL: url, Err: err}
		}
		return loyalty.Code{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return loyalty.Code{}, &ProtocolError{StatusCode: resp.StatusCode, Reason: snippet(raw)}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return loyalty.Code{}, &ProtocolError{Reason: "empty response body"}
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return loyalty.Code{}, &ProtocolError{Reason: "malformed response: " + err.Error()}
	}
	if out.Hash == "" {
		return loyalty.Code{}, &ProtocolError{Reason: "response has no hash"}
	}
	if out.Image == "" {
		return loyalty.Code{}, &ProtocolError{Reason: "response has no image"}
	}

	return loyalty.Code{Image: out.Image, Hash: out.Hash}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		return "no body"
	}
	return s
}
