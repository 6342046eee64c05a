package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"soliver/bridge"
	"soliver/core/state"
	"soliver/crypto"
	"soliver/native/vault"
	"soliver/rpc/modules"
	"soliver/storage"
)

const (
	testOpsToken  = "ops-secret"
	testJWTSecret = "jwt-secret"
)

func testAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.SLVPrefix, raw)
}

type testEnv struct {
	server     *httptest.Server
	recorder   *bridge.Recorder
	liquidator crypto.Address
}

func newTestEnv(t *testing.T, opts ...ServerOption) *testEnv {
	t.Helper()
	recorder := bridge.NewRecorder()
	liquidator := testAddress(0xF0)

	engine := vault.NewEngine()
	engine.SetState(state.NewManager(storage.NewMemDB()))
	engine.SetNotifier(recorder)
	engine.SetLiquidator(liquidator)

	options := append([]ServerOption{
		WithAuthToken(testOpsToken),
		WithJWTSecret([]byte(testJWTSecret)),
		WithRateLimit(rate.Limit(1000), 1000),
	}, opts...)
	server := NewServer(modules.NewVaultModule(engine), options...)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, recorder: recorder, liquidator: liquidator}
}

func signToken(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	claims := authClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

type testResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func call(t *testing.T, env *testEnv, token, method string, params ...interface{}) (int, testResponse) {
	t.Helper()
	rawParams := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		encoded, err := json.Marshal(p)
		require.NoError(t, err)
		rawParams = append(rawParams, encoded)
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
		"params":  rawParams,
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded testResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func TestVaultBorrowAndGet(t *testing.T) {
	env := newTestEnv(t)
	alice := testAddress(0x01).String()

	status, resp := call(t, env, testOpsToken, "vault_borrow", vaultBorrowParams{Borrower: alice, Amount: "100"})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	var notice vaultNoticeResult
	require.NoError(t, json.Unmarshal(resp.Result, &notice))
	require.Equal(t, uint64(0), notice.Sequence)
	require.Len(t, env.recorder.Messages(), 1)

	status, resp = call(t, env, "", "vault_get", alice)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	var record modules.VaultResult
	require.NoError(t, json.Unmarshal(resp.Result, &record))
	require.Equal(t, alice, record.Owner)
	require.Equal(t, "100", record.LoanAmount)
	require.True(t, record.Active)
}

func TestVaultRepaySettlement(t *testing.T) {
	env := newTestEnv(t)
	alice := testAddress(0x02).String()

	status, resp := call(t, env, testOpsToken, "vault_borrow", vaultBorrowParams{Borrower: alice, Amount: "60"})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	status, resp = call(t, env, testOpsToken, "vault_repay", vaultRepayParams{From: alice, Amount: "25"})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	var partial vaultRepayResult
	require.NoError(t, json.Unmarshal(resp.Result, &partial))
	require.Equal(t, "35", partial.Remaining)
	require.False(t, partial.Settled)

	status, resp = call(t, env, testOpsToken, "vault_repay", vaultRepayParams{From: alice, Amount: "1000"})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	var settled vaultRepayResult
	require.NoError(t, json.Unmarshal(resp.Result, &settled))
	require.Equal(t, "0", settled.Remaining)
	require.True(t, settled.Settled)
}

func TestMutationRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	alice := testAddress(0x03).String()

	status, resp := call(t, env, "", "vault_borrow", vaultBorrowParams{Borrower: alice, Amount: "10"})
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	status, resp = call(t, env, "wrong-token", "vault_borrow", vaultBorrowParams{Borrower: alice, Amount: "10"})
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, resp.Error)
}

func TestJWTSubjectMustMatchActor(t *testing.T) {
	env := newTestEnv(t)
	alice := testAddress(0x04).String()
	bob := testAddress(0x05).String()

	token := signToken(t, alice)
	status, resp := call(t, env, token, "vault_borrow", vaultBorrowParams{Borrower: bob, Amount: "10"})
	require.Equal(t, http.StatusForbidden, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	status, resp = call(t, env, token, "vault_borrow", vaultBorrowParams{Borrower: alice, Amount: "10"})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)
}

func TestLiquidateRequiresRoleClaim(t *testing.T) {
	env := newTestEnv(t)
	bob := testAddress(0x06).String()
	liquidator := env.liquidator.String()

	_, resp := call(t, env, testOpsToken, "vault_borrow", vaultBorrowParams{Borrower: bob, Amount: "50"})
	require.Nil(t, resp.Error)

	plain := signToken(t, liquidator)
	status, resp := call(t, env, plain, "vault_liquidate", vaultLiquidateParams{Liquidator: liquidator, Borrower: bob})
	require.Equal(t, http.StatusForbidden, status)
	require.NotNil(t, resp.Error)

	granted := signToken(t, liquidator, RoleLiquidator)
	status, resp = call(t, env, granted, "vault_liquidate", vaultLiquidateParams{Liquidator: liquidator, Borrower: bob})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	var notice vaultNoticeResult
	require.NoError(t, json.Unmarshal(resp.Result, &notice))
	require.Len(t, env.recorder.Messages(), 2)
}

func TestVaultGetUnknownOwner(t *testing.T) {
	env := newTestEnv(t)

	status, resp := call(t, env, "", "vault_get", testAddress(0x07).String())
	require.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, "vault not found", resp.Error.Message)
}

func TestRepayWithoutLoanMapsToConflict(t *testing.T) {
	env := newTestEnv(t)
	carol := testAddress(0x08).String()

	status, resp := call(t, env, testOpsToken, "vault_repay", vaultRepayParams{From: carol, Amount: "10"})
	require.Equal(t, http.StatusConflict, status)
	require.NotNil(t, resp.Error)
}

func TestUnknownMethod(t *testing.T) {
	env := newTestEnv(t)

	status, resp := call(t, env, "", "vault_burn")
	require.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestMalformedAmountRejected(t *testing.T) {
	env := newTestEnv(t)
	alice := testAddress(0x09).String()

	status, resp := call(t, env, testOpsToken, "vault_borrow", vaultBorrowParams{Borrower: alice, Amount: "ten"})
	require.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestMutationRateLimit(t *testing.T) {
	env := newTestEnv(t, WithRateLimit(rate.Limit(1), 1))
	alice := testAddress(0x0A).String()

	status, resp := call(t, env, testOpsToken, "vault_borrow", vaultBorrowParams{Borrower: alice, Amount: "10"})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	status, resp = call(t, env, testOpsToken, "vault_borrow", vaultBorrowParams{Borrower: alice, Amount: "10"})
	require.Equal(t, http.StatusTooManyRequests, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeRateLimited, resp.Error.Code)
}
