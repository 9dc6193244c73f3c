package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"stkpay/config"
	"stkpay/internal/database"
	"stkpay/internal/testutil"
)

type okFetcher struct{}

func (okFetcher) FetchToken(ctx context.Context) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "tok"}, nil
}

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	return newLimitedEngine(t, 1000)
}

func newLimitedEngine(t *testing.T, perMinute int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewTestDB(t)
	cfg := &config.Config{
		JWT:       config.JWTConfig{AccessSecret: "secret", AccessExpiry: time.Hour, Issuer: "stkpay"},
		Admin:     config.AdminConfig{Email: "ops@shop.example", Password: "correct horse"},
		CORS:      config.CORSConfig{AllowOrigins: []string{"https://shop.example"}},
		RateLimit: config.RateLimitConfig{PerMinute: perMinute},
		Mpesa:     config.MpesaConfig{Environment: config.MpesaSandbox},
	}
	_, err := database.SeedAdmin(db, &cfg.Admin)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return Setup(ctx, cfg, db, Deps{Provider: &testutil.MockProvider{}, TokenFetcher: okFetcher{}})
}

func TestHealthz(t *testing.T) {
	r := newEngine(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAdminRoutesRequireToken(t *testing.T) {
	r := newEngine(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/manual-payment", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	body, _ := json.Marshal(map[string]string{"email": "ops@shop.example", "password": "correct horse"})
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.AccessToken)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/diagnostics", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewBufferString(`{"email":"ops@shop.example","password":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newEngine(t)
	req := httptest.NewRequest(http.MethodOptions, "/payment/initiate", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSConfigWildcard(t *testing.T) {
	c := corsConfig(config.CORSConfig{AllowOrigins: []string{"*"}})
	assert.True(t, c.AllowAllOrigins)
	assert.Empty(t, c.AllowOrigins)
	assert.False(t, c.AllowCredentials)

	c = corsConfig(config.CORSConfig{AllowOrigins: []string{"https://a.example"}})
	assert.False(t, c.AllowAllOrigins)
	assert.True(t, c.AllowCredentials)
}

func TestCallbackBypassesRateLimit(t *testing.T) {
	r := newLimitedEngine(t, 5)
	const providerIP = "196.201.214.200:443"

	for i := 0; i < 20; i++ {
		body := fmt.Sprintf(`{"Body":{"stkCallback":{"MerchantRequestID":"m","CheckoutRequestID":"ws_CO_%d","ResultCode":0,"ResultDesc":"ok"}}}`, i)
		req := httptest.NewRequest(http.MethodPost, "/payment/confirm", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = providerIP
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, "callback %d", i)
	}

	codes := map[int]int{}
	for i := 0; i < 8; i++ {
		req := httptest.NewRequest(http.MethodGet, "/payment/status?id=missing", nil)
		req.RemoteAddr = providerIP
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes[w.Code]++
	}
	assert.Equal(t, 5, codes[http.StatusNotFound])
	assert.Equal(t, 3, codes[http.StatusTooManyRequests])
}
