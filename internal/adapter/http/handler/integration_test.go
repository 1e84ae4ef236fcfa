package handler_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"merchant-wallet/config"
	"merchant-wallet/internal/adapter/gateway/phonepe"
	httpHandler "merchant-wallet/internal/adapter/http/handler"
	redisStorage "merchant-wallet/internal/adapter/storage/redis"
	"merchant-wallet/internal/core/domain"
	"merchant-wallet/internal/core/ports"
	"merchant-wallet/internal/service"
	"merchant-wallet/pkg/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	agentEmail       = "agent@example.com"
	agentPassword    = "agent-pass-123"
	adminEmail       = "admin@example.com"
	adminPassword    = "admin-pass-123"
	callbackUser     = "cb-user"
	callbackPassword = "cb-pass"
)

// fakePhonePe serves the token, pay and order status endpoints.
type fakePhonePe struct {
	mu     sync.Mutex
	orders map[string]int64
	state  string
}

func (f *fakePhonePe) setState(s string) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *fakePhonePe) orderAmount(id string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id]
}

func (f *fakePhonePe) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "sandbox-token",
			"token_type":   "O-Bearer",
			"expires_at":   time.Now().Add(time.Hour).Unix(),
		})
	})
	mux.HandleFunc("/checkout/v2/pay", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			MerchantOrderID string `json:"merchantOrderId"`
			Amount          int64  `json:"amount"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.orders[req.MerchantOrderID] = req.Amount
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{
			"orderId":     "OMO" + req.MerchantOrderID[:8],
			"state":       "PENDING",
			"redirectUrl": "https://mercury-uat.phonepe.com/transact/" + req.MerchantOrderID,
		})
	})
	mux.HandleFunc("/checkout/v2/order/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/checkout/v2/order/"), "/status")
		f.mu.Lock()
		amount, ok := f.orders[id]
		state := f.state
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"ORDER_NOT_FOUND","message":"order not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"orderId": "OMO" + id[:8],
			"state":   state,
			"amount":  amount,
			"paymentDetails": []map[string]interface{}{
				{"transactionId": "OM" + id[:8], "paymentMode": "UPI_QR", "state": state, "amount": amount},
			},
		})
	})
	return mux
}

type testApp struct {
	server  *httptest.Server
	store   *store
	gateway *fakePhonePe
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	log := zerolog.Nop()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	gw := &fakePhonePe{orders: make(map[string]int64), state: "PENDING"}
	gwServer := httptest.NewServer(gw.handler())
	t.Cleanup(gwServer.Close)

	registry := prometheus.NewRegistry()
	walletMetrics := metrics.NewWalletMetrics(registry)

	client, err := phonepe.NewClient(config.GatewayConfig{
		Env:          "sandbox",
		ClientID:     "TEST-CLIENT",
		ClientSecret: "test-secret",
		Timeout:      5 * time.Second,
	}, log, phonepe.WithBaseURLs(gwServer.URL, gwServer.URL), phonepe.WithMetrics(walletMetrics))
	require.NoError(t, err)

	s := newStore()
	userRepo := inMemoryUserRepo{s}
	merchantRepo := inMemoryMerchantRepo{s}
	walletTxRepo := inMemoryWalletTxRepo{s}
	ledgerRepo := inMemoryLedgerRepo{s}
	transactor := inMemoryTransactor{s}

	encSvc, err := service.NewAESEncryptionService("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	hashSvc := service.NewArgon2HashServiceWithParams(service.Argon2Params{MemoryKiB: 4096, Iterations: 1, Parallelism: 1})
	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", time.Hour, "merchant-wallet-test")

	seedUser(t, s, hashSvc, agentEmail, agentPassword, domain.RoleAgent)
	seedUser(t, s, hashSvc, adminEmail, adminPassword, domain.RoleAdmin)

	maturitySvc := service.NewMaturityService(merchantRepo, walletMetrics, log)
	topUpSvc := service.NewTopUpService(walletTxRepo, merchantRepo, client, redisStorage.NewReconcileCache(rdb), transactor,
		service.TopUpConfig{
			RedirectBaseURL: "https://shop.example.com",
			InitTimeout:     5 * time.Second,
			StatusTimeout:   5 * time.Second,
			CacheTTL:        time.Hour,
		}, walletMetrics, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:          service.NewAuthService(userRepo, merchantRepo, hashSvc, tokenSvc),
		MerchantSvc:      service.NewMerchantService(userRepo, merchantRepo, ledgerRepo, transactor, hashSvc, encSvc, maturitySvc, 3, log),
		TopUpSvc:         topUpSvc,
		FeedSvc:          service.NewFeedService(ledgerRepo, walletTxRepo),
		CallbackVerifier: phonepe.NewCallbackVerifier(callbackUser, callbackPassword),
		TokenSvc:         tokenSvc,
		RateLimiter:      redisStorage.NewRateLimitStore(rdb),
		HealthCheckers:   []ports.HealthChecker{redisStorage.NewHealthCheck(rdb), phonepe.NewHealthCheck(client)},
		AuditSvc:         service.NewAuditService(inMemoryAuditRepo{s}, log),
		MetricsGatherer:  registry,
		Logger:           log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testApp{server: server, store: s, gateway: gw}
}

func seedUser(t *testing.T, s *store, hashSvc ports.HashService, email, password string, role domain.Role) {
	t.Helper()
	hash, err := hashSvc.Hash(password)
	require.NoError(t, err)
	now := time.Now().UTC()
	id := uuid.New()
	s.users[id] = &domain.User{
		ID:           id,
		Name:         string(role),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (a *testApp) call(t *testing.T, method, path, token string, body interface{}, headers ...string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (a *testApp) login(t *testing.T, email, password string) string {
	t.Helper()
	status, resp := a.call(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, status, "login %s: %v", email, resp)
	return resp["data"].(map[string]interface{})["token"].(string)
}

func data(resp map[string]interface{}) map[string]interface{} {
	return resp["data"].(map[string]interface{})
}

func callbackAuth() string {
	sum := sha256.Sum256([]byte(callbackUser + ":" + callbackPassword))
	return hex.EncodeToString(sum[:])
}

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)

	status, resp := app.call(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", resp["status"])
	deps, ok := resp["dependencies"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, deps, "redis")
	assert.Contains(t, deps, "phonepe")
}

func TestIntegration_OnboardApproveTopUp(t *testing.T) {
	app := newTestApp(t)

	// Agent onboards an offline merchant with a locked deposit.
	agentToken := app.login(t, agentEmail, agentPassword)
	status, resp := app.call(t, http.MethodPost, "/api/v1/agent/merchants", agentToken, map[string]interface{}{
		"owner_name":          "Ravi Sharma",
		"email":               "Ravi@Example.com",
		"phone":               "+919876543210",
		"business_name":       "Sharma Stores",
		"mode":                "offline",
		"bank_account_name":   "Ravi Sharma",
		"bank_account_number": "123456789012",
		"bank_ifsc":           "hdfc0001234",
		"deposit_amount":      5000,
	})
	require.Equal(t, http.StatusCreated, status, "%v", resp)
	merchant := data(resp)["merchant"].(map[string]interface{})
	creds := data(resp)["credentials"].(map[string]interface{})
	merchantID := merchant["id"].(string)
	assert.Equal(t, "pending", merchant["status"])
	assert.Equal(t, "HDFC0001234", merchant["bank_details"].(map[string]interface{})["ifsc"])
	assert.Equal(t, "ravi@example.com", creds["email"])

	// Admin approves.
	adminToken := app.login(t, adminEmail, adminPassword)
	status, resp = app.call(t, http.MethodPatch, "/api/v1/admin/merchants/"+merchantID+"/status", adminToken,
		map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, status, "%v", resp)
	assert.Equal(t, "approved", data(resp)["status"])

	// Merchant logs in with the generated credentials.
	merchantToken := app.login(t, creds["email"].(string), creds["password"].(string))

	status, resp = app.call(t, http.MethodGet, "/api/v1/merchant/wallet", merchantToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "0.00", data(resp)["balance"])
	assert.Equal(t, "5000.00", data(resp)["locked_amount"])
	assert.NotNil(t, data(resp)["maturity_date"])

	// Initiate a top-up.
	status, resp = app.call(t, http.MethodPost, "/api/v1/merchant/wallet/topup/initiate", merchantToken, `{"amount": 500.50}`)
	require.Equal(t, http.StatusOK, status, "%v", resp)
	txID := data(resp)["transaction_id"].(string)
	assert.Equal(t, "https://mercury-uat.phonepe.com/transact/"+txID, data(resp)["redirect_url"])
	assert.Equal(t, int64(50050), app.gateway.orderAmount(txID))

	// Payer has not paid yet.
	status, resp = app.call(t, http.MethodGet, "/api/v1/merchant/wallet/topup/verify?transactionId="+txID, merchantToken, nil)
	require.Equal(t, http.StatusOK, status, "%v", resp)
	assert.Equal(t, "pending", data(resp)["status"])

	// Gateway reports completion through the callback.
	app.gateway.setState("COMPLETED")
	callbackBody := fmt.Sprintf(`{"event":"checkout.order.completed","payload":{"merchantOrderId":%q,"state":"COMPLETED"}}`, txID)
	status, resp = app.call(t, http.MethodPost, "/api/v1/payments/phonepe/callback", "", callbackBody,
		"Authorization", callbackAuth())
	require.Equal(t, http.StatusOK, status, "%v", resp)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "completed", resp["status"])

	// The browser poll after the callback sees the finished top-up.
	status, resp = app.call(t, http.MethodGet, "/api/v1/merchant/wallet/topup/verify?transactionId="+txID, merchantToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", data(resp)["status"])
	assert.Equal(t, "Payment already completed", data(resp)["message"])
	assert.Equal(t, "500.50", data(resp)["amount"])

	// Replaying the callback does not credit twice.
	status, _ = app.call(t, http.MethodPost, "/api/v1/payments/phonepe/callback", "", callbackBody,
		"Authorization", callbackAuth())
	require.Equal(t, http.StatusOK, status)

	status, resp = app.call(t, http.MethodGet, "/api/v1/merchant/wallet", merchantToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "500.50", data(resp)["balance"])
	assert.Equal(t, "5000.00", data(resp)["locked_amount"])

	// The feed merges the deposit and the top-up.
	status, resp = app.call(t, http.MethodGet, "/api/v1/merchant/transactions", merchantToken, nil)
	require.Equal(t, http.StatusOK, status)
	items := resp["data"].([]interface{})
	require.Len(t, items, 2)
	types := []string{
		items[0].(map[string]interface{})["type"].(string),
		items[1].(map[string]interface{})["type"].(string),
	}
	assert.ElementsMatch(t, []string{domain.FeedTypeWalletTopup, string(domain.LedgerTypeDeposit)}, types)

	status, resp = app.call(t, http.MethodGet, "/api/v1/merchant/transactions?type=deposit", merchantToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp["data"], 1)

	// Agent dashboard.
	status, resp = app.call(t, http.MethodGet, "/api/v1/agent/dashboard/stats", agentToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), data(resp)["total_merchants"])
	assert.Equal(t, float64(0), data(resp)["pending_merchants"])
	assert.Equal(t, "5000.00", data(resp)["total_deposits"])

	assert.Eventually(t, func() bool {
		return containsAll(app.store.auditActions(),
			domain.AuditActionOnboardMerchant,
			domain.AuditActionUpdateStatus,
			domain.AuditActionTopupInitiate,
			domain.AuditActionTopupVerify,
			domain.AuditActionGatewayCallback,
		)
	}, 2*time.Second, 20*time.Millisecond)

	req, err := http.Get(app.server.URL + "/metrics")
	require.NoError(t, err)
	defer req.Body.Close()
	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "wallet_topup_credits_total 1")
}

func TestIntegration_CallbackRejectsBadAuthorization(t *testing.T) {
	app := newTestApp(t)

	status, resp := app.call(t, http.MethodPost, "/api/v1/payments/phonepe/callback", "",
		`{"payload":{"merchantOrderId":"x"}}`, "Authorization", "deadbeef")

	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "SEC_001", resp["error_code"])
}

func TestIntegration_MerchantCannotVerifyForeignTopUp(t *testing.T) {
	app := newTestApp(t)
	agentToken := app.login(t, agentEmail, agentPassword)

	onboard := func(email string) (string, string) {
		status, resp := app.call(t, http.MethodPost, "/api/v1/agent/merchants", agentToken, map[string]interface{}{
			"owner_name":    "Owner " + email,
			"email":         email,
			"phone":         "9876543210",
			"business_name": "Shop " + email,
			"mode":          "online",
		})
		require.Equal(t, http.StatusCreated, status, "%v", resp)
		creds := data(resp)["credentials"].(map[string]interface{})
		return creds["email"].(string), creds["password"].(string)
	}

	aEmail, aPass := onboard("a@example.com")
	bEmail, bPass := onboard("b@example.com")
	tokenA := app.login(t, aEmail, aPass)
	tokenB := app.login(t, bEmail, bPass)

	status, resp := app.call(t, http.MethodPost, "/api/v1/merchant/wallet/topup/initiate", tokenA, `{"amount": 100}`)
	require.Equal(t, http.StatusOK, status, "%v", resp)
	txID := data(resp)["transaction_id"].(string)

	status, resp = app.call(t, http.MethodGet, "/api/v1/merchant/wallet/topup/verify?transactionId="+txID, tokenB, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "PAY_004", resp["error_code"])
}

func containsAll(have []domain.AuditAction, want ...domain.AuditAction) bool {
	seen := make(map[domain.AuditAction]bool, len(have))
	for _, a := range have {
		seen[a] = true
	}
	for _, w := range want {
		if !seen[w] {
			return false
		}
	}
	return true
}
