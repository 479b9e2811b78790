package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	paymentapp "volt/internal/application/payment"
	userapp "volt/internal/application/user"
	"volt/internal/domain/catalog"
	"volt/internal/infrastructure/auth"
	"volt/internal/infrastructure/paddle"
	"volt/internal/infrastructure/persistence/models"
	"volt/internal/infrastructure/ratelimit"
	"volt/internal/infrastructure/repository"
	"volt/internal/infrastructure/token"
	"volt/internal/interfaces/http/handlers"
	"volt/internal/interfaces/http/middleware"
	"volt/internal/shared/config"
	"volt/internal/shared/errors"
	"volt/internal/shared/logger"
)

const routerCatalogYAML = `
products:
  - id: gadget
    name: Gadget
    description: A gadget
    price: 1000
    currency: USD
`

// sandboxIP is one of the processor sandbox egress addresses.
const sandboxIP = "34.194.127.46"

type nullMailer struct{}

func (nullMailer) SendTwoFACode(string, string) error { return nil }

type serverFixture struct {
	router   *Router
	db       *gorm.DB
	verifier *paddle.WebhookVerifier
}

func newServerFixture(t *testing.T, groups map[string]config.RateLimitGroup) *serverFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.UserModel{},
		&models.SessionTokenModel{},
		&models.TwoFAChallengeModel{},
		&models.UserDataModel{},
		&models.PaymentModel{},
		&models.SubscriptionModel{},
		&models.ActiveSubscriptionModel{},
		&models.CatalogStateModel{},
	))

	log := logger.NewLogger()
	hasher := auth.NewHasher("test-secret")
	authCfg := config.AuthConfig{
		Secret:          "test-secret",
		TokenExpHours:   720,
		TwoFAExpSeconds: 300,
	}

	userSvc := userapp.NewService(
		repository.NewUserRepository(db),
		repository.NewSessionTokenRepository(db),
		repository.NewTwoFAChallengeRepository(db),
		repository.NewUserDataRepository(db),
		hasher,
		token.NewGenerator(hasher),
		nullMailer{},
		authCfg,
		log,
	)

	cat, err := catalog.Parse([]byte(routerCatalogYAML))
	require.NoError(t, err)

	paySvc := paymentapp.NewService(
		repository.NewPaymentRepository(db),
		repository.NewSubscriptionRepository(db),
		repository.NewActiveIndexRepository(db),
		repository.NewCatalogStateRepository(db),
		cat,
		nil,
		nil,
		log,
	)

	// Rate limiting is release-only, so fixtures that exercise it run
	// in release mode.
	mode := "test"
	if groups != nil {
		mode = "release"
	}
	serverCfg := config.ServerConfig{
		Mode:           mode,
		BaseURL:        "https://volt.example",
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   1 << 20,
	}
	rlCfg := config.RateLimitConfig{Enabled: groups != nil, Groups: groups}

	var limiter ratelimit.Limiter
	if groups != nil {
		limiter = ratelimit.NewMemoryLimiter(groups)
	}

	r := NewRouter(serverCfg, rlCfg, middleware.NewAuthGate(userSvc, "/signin", log), limiter, log)

	verifier := paddle.NewWebhookVerifier("wh-secret", true)
	require.NoError(t, RegisterRoutes(r, "test",
		handlers.NewAuthHandler(userSvc, authCfg, log),
		handlers.NewUserHandler(userSvc, paySvc, authCfg, log),
		handlers.NewPaymentHandler(paySvc, log),
		handlers.NewWebhookHandler(paySvc, verifier, log),
	))

	return &serverFixture{router: r, db: db, verifier: verifier}
}

type requestOption func(*http.Request)

func withBearer(token string) requestOption {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func withRemoteAddr(ip string) requestOption {
	return func(req *http.Request) {
		req.RemoteAddr = ip + ":34567"
	}
}

func withHeader(key, value string) requestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

func (f *serverFixture) do(t *testing.T, method, path string, payload any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.1:34567"
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	f.router.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func (f *serverFixture) signUpAndIn(t *testing.T, username, email, password string) (uid, sessionToken string) {
	t.Helper()

	rec := f.do(t, "POST", "/auth/signup", gin.H{
		"username": username,
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	uid = decodeData(t, rec)["uid"].(string)

	rec = f.do(t, "POST", "/auth/signin", gin.H{
		"identifier": username,
		"password":   password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sessionToken = decodeData(t, rec)["token"].(string)
	return uid, sessionToken
}

func TestPreflightDispatch(t *testing.T) {
	f := newServerFixture(t, nil)

	// Without an announced method any registration for the path is
	// enough.
	rec := f.do(t, "OPTIONS", "/user", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))

	rec = f.do(t, "OPTIONS", "/no/such/path", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// With Access-Control-Request-Method the announced method itself
	// must be registered for the path.
	rec = f.do(t, "OPTIONS", "/user", nil,
		withHeader("Access-Control-Request-Method", "DELETE"))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, "OPTIONS", "/health", nil,
		withHeader("Access-Control-Request-Method", "POST"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRouteErrorBodies(t *testing.T) {
	f := newServerFixture(t, nil)

	rec := f.do(t, "GET", "/missing", nil, withHeader("Accept", "application/json"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)

	rec = f.do(t, "GET", "/missing", nil, withHeader("Accept", "text/html"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "404")
	assert.NotContains(t, rec.Body.String(), `"error"`)
}

func TestCustomErrorPage(t *testing.T) {
	f := newServerFixture(t, nil)

	require.NoError(t, f.router.ErrorPages().Set(http.StatusNotFound, func(c *gin.Context) {
		c.String(http.StatusNotFound, "custom not found page")
	}))

	rec := f.do(t, "GET", "/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "custom not found page", rec.Body.String())

	// Only the four terminal statuses may be overridden.
	err := f.router.ErrorPages().Set(http.StatusTeapot, func(c *gin.Context) {})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestCustomErrorPagePanicDegrades(t *testing.T) {
	f := newServerFixture(t, nil)

	require.NoError(t, f.router.ErrorPages().Set(http.StatusNotFound, func(c *gin.Context) {
		panic("broken template")
	}))

	rec := f.do(t, "GET", "/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`, "built-in body after the custom page fails")
}

func TestDuplicateRouteRegistration(t *testing.T) {
	f := newServerFixture(t, nil)

	err := f.router.Handle("GET", "/health", RouteMeta{}, func(c *gin.Context) {})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestPanicRecoveryRenders500(t *testing.T) {
	f := newServerFixture(t, nil)

	require.NoError(t, f.router.Handle("GET", "/boom", RouteMeta{}, func(c *gin.Context) {
		panic("handler exploded")
	}))

	rec := f.do(t, "GET", "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
	assert.NotContains(t, rec.Body.String(), "handler exploded", "panic values never leak")
}

func TestAuthRoundTrip(t *testing.T) {
	f := newServerFixture(t, nil)

	uid, sessionToken := f.signUpAndIn(t, "alice", "alice@example.com", "password1")

	rec := f.do(t, "GET", "/user", nil, withBearer(sessionToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	assert.Equal(t, uid, data["uid"])
	assert.Equal(t, "alice", data["username"])

	// No credential on a protected route.
	rec = f.do(t, "GET", "/user", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Tampered token fails closed.
	tampered := sessionToken[:len(sessionToken)-1] + flipHex(sessionToken[len(sessionToken)-1])
	rec = f.do(t, "GET", "/user", nil, withBearer(tampered))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Sign-out invalidates the token for later requests.
	rec = f.do(t, "POST", "/auth/signout", nil, withBearer(sessionToken))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, "GET", "/user", nil, withBearer(sessionToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignInSetsSessionCookie(t *testing.T) {
	f := newServerFixture(t, nil)

	rec := f.do(t, "POST", "/auth/signup", gin.H{
		"username": "bob",
		"email":    "bob@example.com",
		"password": "password1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, "POST", "/auth/signin", gin.H{
		"identifier": "bob@example.com",
		"password":   "password1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Header().Values("Set-Cookie")
	joined := strings.Join(cookies, "\n")
	assert.Contains(t, joined, "volt_session=")
	assert.Contains(t, joined, "volt_uid=")
}

func TestProfileMasksPasswordDigest(t *testing.T) {
	f := newServerFixture(t, nil)

	_, sessionToken := f.signUpAndIn(t, "carol", "carol@example.com", "password1")

	rec := f.do(t, "GET", "/user", nil, withBearer(sessionToken))
	require.Equal(t, http.StatusOK, rec.Code)

	masked, ok := decodeData(t, rec)["password"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, masked)
	assert.Equal(t, strings.Repeat("*", len(masked)), masked)
	assert.NotContains(t, rec.Body.String(), "password1")
}

func TestListPaymentsRejectsMalformedQuery(t *testing.T) {
	f := newServerFixture(t, nil)

	_, sessionToken := f.signUpAndIn(t, "dave", "dave@example.com", "password1")

	for _, path := range []string{
		"/payments/payments?days=abc",
		"/payments/payments?limit=-1",
		"/payments/refundable?days=1.5",
	} {
		rec := f.do(t, "GET", path, nil, withBearer(sessionToken))
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}

	rec := f.do(t, "GET", "/payments/payments?days=30&limit=10", nil, withBearer(sessionToken))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitBoundary(t *testing.T) {
	f := newServerFixture(t, map[string]config.RateLimitGroup{
		"global": {Limit: 100, WindowSeconds: 60},
		"auth":   {Limit: 3, WindowSeconds: 60},
	})

	body := gin.H{"identifier": "ghost", "password": "wrong-password1"}

	for i := 0; i < 3; i++ {
		rec := f.do(t, "POST", "/auth/signin", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d is within budget", i+1)
	}

	rec := f.do(t, "POST", "/auth/signin", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Other identities keep their own budget.
	rec = f.do(t, "POST", "/auth/signin", body, withRemoteAddr("198.51.100.7"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookRejectsUnknownSource(t *testing.T) {
	f := newServerFixture(t, nil)

	body := []byte(`{"event_type":"transaction.paid","data":{}}`)
	rec := f.do(t, "POST", "/payments/webhook", nil,
		withRemoteAddr("203.0.113.9"),
		withHeader("X-Signature", f.verifier.Sign("123", body)),
	)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	f.assertNoPayments(t)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newServerFixture(t, nil)

	body := `{"event_type":"transaction.paid","data":{}}`

	// Signature computed over a different timestamp than the header
	// claims.
	header := f.verifier.Sign("111", []byte(body))
	forged := "v1;222;" + strings.SplitN(header, ";", 3)[2]

	req := httptest.NewRequest("POST", "/payments/webhook", strings.NewReader(body))
	req.RemoteAddr = sandboxIP + ":443"
	req.Header.Set("X-Signature", forged)
	rec := httptest.NewRecorder()
	f.router.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	f.assertNoPayments(t)

	// Missing header entirely.
	req = httptest.NewRequest("POST", "/payments/webhook", strings.NewReader(body))
	req.RemoteAddr = sandboxIP + ":443"
	rec = httptest.NewRecorder()
	f.router.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookAcknowledgesAuthenticEvents(t *testing.T) {
	f := newServerFixture(t, nil)

	body := `{"event_type":"mystery.event","data":{}}`

	req := httptest.NewRequest("POST", "/payments/webhook", strings.NewReader(body))
	req.RemoteAddr = sandboxIP + ":443"
	req.Header.Set("X-Signature", f.verifier.Sign("1724800000", []byte(body)))
	rec := httptest.NewRecorder()
	f.router.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"OK"}`, rec.Body.String())
}

func (f *serverFixture) assertNoPayments(t *testing.T) {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.PaymentModel{}).Count(&count).Error)
	assert.Zero(t, count)
}

func flipHex(b byte) string {
	if b == '0' {
		return "1"
	}
	return "0"
}
