package signer

// client.go — bridge to the external wallet signer.
//
// The signer receives a prepared quote and the identity it should sign for,
// builds and submits the transaction, and reports {success, signature,
// error}. Submissions are not idempotent, so there are no retries; the rate
// limiter only protects the bridge.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

const (
	executePath    = "/v1/execute"
	defaultTimeout = 45 * time.Second
	defaultRate    = 1.0
	defaultBurst   = 2
)

type executeRequest struct {
	Identity    string `json:"identity"`
	InputMint   string `json:"inputMint"`
	OutputMint  string `json:"outputMint"`
	InAmount    string `json:"inAmount"`
	OutAmount   string `json:"outAmount"`
	SlippageBps int    `json:"slippageBps"`
}

type executeResponse struct {
	Success   bool   `json:"success"`
	Signature string `json:"signature"`
	Error     string `json:"error"`
}

// Client implements ports.TxExecutor over HTTP.
type Client struct {
	http    *http.Client
	base    string
	token   string
	limiter *rate.Limiter
}

// NewClient creates a signer client. token, if set, is sent as a bearer
// token.
func NewClient(base, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		base:    base,
		token:   token,
		limiter: rate.NewLimiter(defaultRate, defaultBurst),
	}
}

// Execute submits the quote for signing. A non-2xx answer or a transport
// failure is an error; a signer that answers success=false is not.
func (c *Client) Execute(ctx context.Context, identity string, quote domain.Quote) (domain.ExecutionResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("signer.Execute: rate limiter: %w", err)
	}

	body, err := json.Marshal(executeRequest{
		Identity:    identity,
		InputMint:   quote.InputMint,
		OutputMint:  quote.OutputMint,
		InAmount:    strconv.FormatUint(quote.InAmount, 10),
		OutAmount:   strconv.FormatUint(quote.OutAmount, 10),
		SlippageBps: quote.SlippageBps,
	})
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("signer.Execute: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+executePath, bytes.NewReader(body))
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("signer.Execute: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("signer.Execute: %v: %w", err, domain.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.ExecutionResult{}, fmt.Errorf("signer.Execute: status %d: %s: %w", resp.StatusCode, string(msg), domain.ErrUpstreamUnavailable)
	}

	var out executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("signer.Execute: decode: %v: %w", err, domain.ErrUpstreamUnavailable)
	}

	slog.Info("signer: executed",
		"success", out.Success,
		"signature", out.Signature,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return domain.ExecutionResult{Success: out.Success, Signature: out.Signature, Error: out.Error}, nil
}
