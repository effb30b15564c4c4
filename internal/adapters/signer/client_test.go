package signer_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/dexpilot/internal/adapters/signer"
	"github.com/alejandrodnm/dexpilot/internal/domain"
	"github.com/alejandrodnm/dexpilot/internal/ports"
)

var _ ports.TxExecutor = (*signer.Client)(nil)

var testQuote = domain.Quote{
	InputMint:   domain.MintSOL,
	OutputMint:  domain.MintUSDC,
	InAmount:    100_000_000,
	OutAmount:   15_020_000,
	SlippageBps: 50,
}

func TestExecute_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/execute", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "wallet-1", body["identity"])
		assert.Equal(t, "100000000", body["inAmount"])
		assert.Equal(t, domain.MintUSDC, body["outputMint"])

		w.Write([]byte(`{"success":true,"signature":"5sig"}`))
	}))
	defer srv.Close()

	res, err := signer.NewClient(srv.URL, "tok", 0).Execute(context.Background(), "wallet-1", testQuote)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "5sig", res.Signature)
}

func TestExecute_SignerRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"user rejected"}`))
	}))
	defer srv.Close()

	res, err := signer.NewClient(srv.URL, "", 0).Execute(context.Background(), "wallet-1", testQuote)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "user rejected", res.Error)
}

func TestExecute_ServerErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := signer.NewClient(srv.URL, "", 0).Execute(context.Background(), "wallet-1", testQuote)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Equal(t, 1, calls)
}

func TestExecute_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := signer.NewClient(url, "", 0).Execute(context.Background(), "wallet-1", testQuote)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}
