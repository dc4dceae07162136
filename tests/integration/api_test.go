package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpHandler "github.com/joaojf/banking-system/internal/adapter/http/handler"
	"github.com/joaojf/banking-system/internal/service"
	"github.com/joaojf/banking-system/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp wires the real HTTP layer, services and engine over in-memory
// storage, so requests exercise the full stack end to end.
type testApp struct {
	server        *httptest.Server
	accountRepo   *inMemoryAccountRepo
	operationRepo *faultyOperationRepo
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	accountRepo := newInMemoryAccountRepo()
	operationRepo := newFaultyOperationRepo()

	log := logger.NewWithWriter("error", io.Discard)
	idGen := service.NewRandomIdentifierGenerator(time.Now().UnixNano())
	locks := service.NewLockManager()
	accountSvc := service.NewAccountService(accountRepo, idGen, locks, 10, 3*time.Second, log)
	ledgerSvc := service.NewLedgerService(
		accountRepo, operationRepo, locks,
		5, 3*time.Second, log,
	)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AccountSvc: accountSvc,
		LedgerSvc:  ledgerSvc,
		Logger:     log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testApp{
		server:        server,
		accountRepo:   accountRepo,
		operationRepo: operationRepo,
	}
}

func (a *testApp) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(a.server.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (a *testApp) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(a.server.URL + path)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) == 0 {
		return nil
	}
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

// createAccount creates an account through the API and returns its identifier.
func (a *testApp) createAccount(t *testing.T) string {
	t.Helper()
	resp, body := a.post(t, "/api/v1/accounts", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]any)
	return data["identifier"].(string)
}

func (a *testApp) deposit(t *testing.T, identifier, amount string) *http.Response {
	t.Helper()
	resp, _ := a.post(t, "/api/v1/operations/deposit",
		fmt.Sprintf(`{"identifier":%q,"amount":%q}`, identifier, amount))
	return resp
}

func (a *testApp) balanceOf(t *testing.T, identifier string) string {
	t.Helper()
	resp, body := a.get(t, "/api/v1/accounts/"+identifier+"/balance")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body["data"].(map[string]any)["balance"].(string)
}

func TestIntegration_AccountLifecycle(t *testing.T) {
	app := newTestApp(t)

	identifier := app.createAccount(t)
	assert.Regexp(t, `^\d{5}-\d$`, identifier)
	assert.Equal(t, "0.00", app.balanceOf(t, identifier))

	// Listed
	resp, body := app.get(t, "/api/v1/accounts")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"].([]any), 1)

	// Deletable while empty
	req, _ := http.NewRequest(http.MethodDelete, app.server.URL+"/api/v1/accounts/"+identifier, nil)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	resp, _ = app.get(t, "/api/v1/accounts/" + identifier)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIntegration_DeleteFundedAccountRejected(t *testing.T) {
	app := newTestApp(t)
	identifier := app.createAccount(t)

	resp := app.deposit(t, identifier, "10.00")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodDelete, app.server.URL+"/api/v1/accounts/"+identifier, nil)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body := decodeBody(t, delResp)
	assert.Equal(t, http.StatusConflict, delResp.StatusCode)
	assert.Equal(t, "ACC_003", body["error_code"])
}

func TestIntegration_DepositWithdrawStatement(t *testing.T) {
	app := newTestApp(t)
	identifier := app.createAccount(t)

	resp := app.deposit(t, identifier, "100.00")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = app.post(t, "/api/v1/operations/withdraw",
		fmt.Sprintf(`{"identifier":%q,"amount":"40.00"}`, identifier))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "60.00", app.balanceOf(t, identifier))

	resp, body := app.get(t, "/api/v1/accounts/"+identifier+"/statement")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ops := body["data"].(map[string]any)["operations"].([]any)
	require.Len(t, ops, 2)
	first := ops[0].(map[string]any)
	second := ops[1].(map[string]any)
	assert.Equal(t, "DEPOSIT", first["kind"])
	assert.Equal(t, "100.00", first["amount"])
	assert.Equal(t, "WITHDRAWAL", second["kind"])
	assert.Equal(t, "40.00", second["amount"])
}

func TestIntegration_OverdraftRejected(t *testing.T) {
	app := newTestApp(t)
	identifier := app.createAccount(t)
	app.deposit(t, identifier, "100.00")

	resp, body := app.post(t, "/api/v1/operations/withdraw",
		fmt.Sprintf(`{"identifier":%q,"amount":"150.00"}`, identifier))
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, "LED_002", body["error_code"])

	// Balance and log untouched.
	assert.Equal(t, "100.00", app.balanceOf(t, identifier))
	_, stmt := app.get(t, "/api/v1/accounts/"+identifier+"/statement")
	assert.Len(t, stmt["data"].(map[string]any)["operations"].([]any), 1)
}

func TestIntegration_NonPositiveAmountsRejected(t *testing.T) {
	app := newTestApp(t)
	identifier := app.createAccount(t)

	for _, amount := range []string{"0", "-5.00"} {
		resp, body := app.post(t, "/api/v1/operations/deposit",
			fmt.Sprintf(`{"identifier":%q,"amount":%q}`, identifier, amount))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "LED_001", body["error_code"])
	}
}

func TestIntegration_Transfer(t *testing.T) {
	app := newTestApp(t)
	origin := app.createAccount(t)
	destination := app.createAccount(t)
	app.deposit(t, origin, "100.00")

	resp, _ := app.post(t, "/api/v1/operations/transfer",
		fmt.Sprintf(`{"origin":%q,"destination":%q,"amount":"40.00"}`, origin, destination))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, "60.00", app.balanceOf(t, origin))
	assert.Equal(t, "40.00", app.balanceOf(t, destination))

	// Both legs recorded.
	_, originStmt := app.get(t, "/api/v1/accounts/"+origin+"/statement")
	originOps := originStmt["data"].(map[string]any)["operations"].([]any)
	require.Len(t, originOps, 2)
	assert.Equal(t, "TRANSFER_OUT", originOps[1].(map[string]any)["kind"])

	_, destStmt := app.get(t, "/api/v1/accounts/"+destination+"/statement")
	destOps := destStmt["data"].(map[string]any)["operations"].([]any)
	require.Len(t, destOps, 1)
	assert.Equal(t, "TRANSFER_IN", destOps[0].(map[string]any)["kind"])
}

func TestIntegration_TransferInsufficientFunds(t *testing.T) {
	app := newTestApp(t)
	origin := app.createAccount(t)
	destination := app.createAccount(t)
	app.deposit(t, origin, "10.00")

	resp, body := app.post(t, "/api/v1/operations/transfer",
		fmt.Sprintf(`{"origin":%q,"destination":%q,"amount":"40.00"}`, origin, destination))
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, "LED_002", body["error_code"])

	assert.Equal(t, "10.00", app.balanceOf(t, origin))
	assert.Equal(t, "0.00", app.balanceOf(t, destination))
}

func TestIntegration_TransferToSelfRejected(t *testing.T) {
	app := newTestApp(t)
	identifier := app.createAccount(t)
	app.deposit(t, identifier, "100.00")

	resp, body := app.post(t, "/api/v1/operations/transfer",
		fmt.Sprintf(`{"origin":%q,"destination":%q,"amount":"40.00"}`, identifier, identifier))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "LED_003", body["error_code"])
	assert.Equal(t, "100.00", app.balanceOf(t, identifier))
}

func TestIntegration_UnknownAccount(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.get(t, "/api/v1/accounts/99999-9/balance")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "ACC_001", body["error_code"])

	resp, body = app.post(t, "/api/v1/operations/deposit",
		`{"identifier":"99999-9","amount":"10.00"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "ACC_001", body["error_code"])
}

func TestIntegration_AuditAfterMixedHistory(t *testing.T) {
	app := newTestApp(t)
	origin := app.createAccount(t)
	destination := app.createAccount(t)

	app.deposit(t, origin, "100.00")
	app.post(t, "/api/v1/operations/withdraw",
		fmt.Sprintf(`{"identifier":%q,"amount":"25.50"}`, origin))
	app.post(t, "/api/v1/operations/transfer",
		fmt.Sprintf(`{"origin":%q,"destination":%q,"amount":"30.00"}`, origin, destination))

	for _, identifier := range []string{origin, destination} {
		resp, body := app.get(t, "/api/v1/accounts/"+identifier+"/audit")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		data := body["data"].(map[string]any)
		assert.Equal(t, true, data["consistent"], identifier)
		assert.Equal(t, data["stored"], data["replayed"], identifier)
	}
	assert.Equal(t, "44.50", app.balanceOf(t, origin))
	assert.Equal(t, "30.00", app.balanceOf(t, destination))
}

func TestIntegration_FailedTransferLogAppendIsRolledBack(t *testing.T) {
	app := newTestApp(t)
	origin := app.createAccount(t)
	destination := app.createAccount(t)
	app.deposit(t, origin, "100.00")

	app.operationRepo.setFailures(false, true)
	resp, body := app.post(t, "/api/v1/operations/transfer",
		fmt.Sprintf(`{"origin":%q,"destination":%q,"amount":"40.00"}`, origin, destination))
	app.operationRepo.setFailures(false, false)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "SYS_001", body["error_code"])

	// Both balances restored, no partial log entries.
	assert.Equal(t, "100.00", app.balanceOf(t, origin))
	assert.Equal(t, "0.00", app.balanceOf(t, destination))

	for _, identifier := range []string{origin, destination} {
		_, audit := app.get(t, "/api/v1/accounts/"+identifier+"/audit")
		assert.Equal(t, true, audit["data"].(map[string]any)["consistent"], identifier)
	}
}

func TestIntegration_FailedDepositAppendIsRolledBack(t *testing.T) {
	app := newTestApp(t)
	identifier := app.createAccount(t)
	app.deposit(t, identifier, "50.00")

	app.operationRepo.setFailures(true, false)
	resp := app.deposit(t, identifier, "25.00")
	app.operationRepo.setFailures(false, false)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "50.00", app.balanceOf(t, identifier))

	_, audit := app.get(t, "/api/v1/accounts/"+identifier+"/audit")
	assert.Equal(t, true, audit["data"].(map[string]any)["consistent"])
}

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}
