/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Purchase submission, success and each saga failure mapping
- Account balance and history lookups
- Path parameter validation
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loyalty-engine/loyalty"
	"github.com/warp/loyalty-engine/loyalty/store"
)

type stubCodes struct {
	code loyalty.Code
	err  error
}

func (s stubCodes) Generate(context.Context, loyalty.AccountID, int64) (loyalty.Code, error) {
	return s.code, s.err
}

// creditFailingStore completes transactions but refuses to credit.
type creditFailingStore struct {
	*store.Memory
}

func (creditFailingStore) CreditBalance(context.Context, loyalty.AccountID, int64) (loyalty.Account, error) {
	return loyalty.Account{}, errors.New("disk full")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, st loyalty.Store, codes loyalty.CodeGenerator) (*httptest.Server, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	if st == nil {
		st = mem
	} else if cf, ok := st.(creditFailingStore); ok {
		mem = cf.Memory
	}

	ctx := context.Background()
	require.NoError(t, mem.SaveAccount(ctx, loyalty.Account{ID: 1, Balance: 50}))
	require.NoError(t, mem.SaveVenue(ctx, loyalty.Venue{ID: 2, Name: "Harbour Bar"}))

	saga := loyalty.NewSaga(st, st, codes, nil, loyalty.WithLogger(quietLogger()))
	srv := httptest.NewServer(NewRouter(NewHandler(st, saga, quietLogger()), nil))
	t.Cleanup(srv.Close)
	return srv, mem
}

func okCodes() stubCodes {
	return stubCodes{code: loyalty.Code{Image: "iVBORw0KGgo=", Hash: "9b1c"}}
}

func post(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/transactions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestCreateTransaction_Success(t *testing.T) {
	// GIVEN: account 1 with 50 points and venue 2
	srv, mem := newTestServer(t, nil, okCodes())

	// WHEN: a purchase of 40 is submitted
	resp, out := post(t, srv, `{"userId":1,"barId":2,"amount":40}`)

	// THEN: 201 with the completed record and image
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "COMPLETED", out["status"])
	assert.Equal(t, float64(40), out["pointsEarned"])
	assert.Equal(t, "9b1c", out["qrCodeHash"])
	assert.Equal(t, "iVBORw0KGgo=", out["qrCodeImage"])
	assert.Equal(t, float64(90), out["pointsBalance"])

	acct, err := mem.GetAccount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(90), acct.Balance)
}

func TestCreateTransaction_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		store  func() loyalty.Store
		codes  stubCodes
		body   string
		status int
		code   string
	}{
		{"malformed body", nil, okCodes(), `{"userId":`, http.StatusBadRequest, "invalid_request"},
		{"unknown field", nil, okCodes(), `{"userId":1,"barId":2,"amount":5,"extra":1}`, http.StatusBadRequest, "invalid_request"},
		{"zero amount", nil, okCodes(), `{"userId":1,"barId":2,"amount":0}`, http.StatusBadRequest, "invalid_request"},
		{"unknown bar", nil, okCodes(), `{"userId":1,"barId":99,"amount":5}`, http.StatusBadRequest, "reference_not_found"},
		{"unknown user", nil, okCodes(), `{"userId":99,"barId":2,"amount":5}`, http.StatusBadRequest, "reference_not_found"},
		{"codegen down", nil, stubCodes{err: errors.New("connection refused")}, `{"userId":1,"barId":2,"amount":5}`, http.StatusBadGateway, "external_service_error"},
		{
			"credit fails",
			func() loyalty.Store { return creditFailingStore{store.NewMemory()} },
			okCodes(), `{"userId":1,"barId":2,"amount":5}`, http.StatusInternalServerError, "balance_credit_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var st loyalty.Store
			if tt.store != nil {
				st = tt.store()
			}
			srv, _ := newTestServer(t, st, tt.codes)

			resp, out := post(t, srv, tt.body)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, out["code"])
		})
	}
}

func TestCreateTransaction_ExternalFailureIsRecorded(t *testing.T) {
	srv, mem := newTestServer(t, nil, stubCodes{err: errors.New("timeout")})

	resp, out := post(t, srv, `{"userId":1,"barId":2,"amount":5}`)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	details, ok := out["details"].(map[string]any)
	require.True(t, ok)
	id := loyalty.TransactionID(details["transactionId"].(float64))

	rec, err := mem.GetTransaction(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, loyalty.StatusFailed, rec.Status)
}

func TestGetAccount(t *testing.T) {
	srv, _ := newTestServer(t, nil, okCodes())

	resp, err := http.Get(srv.URL + "/api/accounts/1")
	require.NoError(t, err)
	defer resp.Body.Close()
	var acct AccountDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&acct))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, AccountDTO{ID: 1, PointsBalance: 50}, acct)

	for path, want := range map[string]int{
		"/api/accounts/77":  http.StatusNotFound,
		"/api/accounts/abc": http.StatusBadRequest,
		"/api/accounts/0":   http.StatusBadRequest,
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, path)
	}
}

func TestAccountTransactions_NewestFirst(t *testing.T) {
	srv, mem := newTestServer(t, nil, okCodes())
	post(t, srv, `{"userId":1,"barId":2,"amount":10}`)
	post(t, srv, `{"userId":1,"barId":2,"amount":20}`)

	resp, err := http.Get(srv.URL + "/api/accounts/1/transactions")
	require.NoError(t, err)
	defer resp.Body.Close()

	var txs []TransactionDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&txs))
	require.Len(t, txs, 2)
	assert.Equal(t, int64(20), txs[0].Amount)
	assert.Equal(t, int64(10), txs[1].Amount)
	assert.Empty(t, txs[0].QRCodeImage, "images are never stored")

	all := mem.Transactions()
	require.Len(t, all, 2)
	_, err = time.Parse(time.RFC3339, txs[0].CreatedAt)
	assert.NoError(t, err)
}

func TestGetTransaction(t *testing.T) {
	srv, _ := newTestServer(t, nil, okCodes())
	_, created := post(t, srv, `{"userId":1,"barId":2,"amount":10}`)

	resp, err := http.Get(srv.URL + "/api/transactions/" + jsonNumber(created["id"]))
	require.NoError(t, err)
	defer resp.Body.Close()
	var dto TransactionDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dto))
	assert.Equal(t, "COMPLETED", dto.Status)

	resp, err = http.Get(srv.URL + "/api/transactions/4040")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil, okCodes())
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func jsonNumber(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
