package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/wordweave/wordweave/internal/auth"
	"github.com/wordweave/wordweave/internal/database"
	"github.com/wordweave/wordweave/internal/handlers"
	middlewareCustom "github.com/wordweave/wordweave/internal/middleware"
	"github.com/wordweave/wordweave/internal/models"
	"github.com/wordweave/wordweave/internal/routes"
	"github.com/wordweave/wordweave/internal/services"
	pkglogger "github.com/wordweave/wordweave/pkg/logger"
)

// SentEmail represents a captured email message
type SentEmail struct {
	To      string
	Purpose models.TokenPurpose
	Code    string
}

// MockEmailService captures sent verification codes for test assertions
type MockEmailService struct {
	SentEmails []SentEmail
	mu         sync.Mutex
}

func (m *MockEmailService) record(to string, purpose models.TokenPurpose, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentEmails = append(m.SentEmails, SentEmail{To: to, Purpose: purpose, Code: code})
}

func (m *MockEmailService) SendVerificationEmail(ctx context.Context, email, code string, expiresAt time.Time) error {
	m.record(email, models.PurposeEmailVerification, code)
	return nil
}

func (m *MockEmailService) SendEmailChangeEmail(ctx context.Context, email, code string, expiresAt time.Time) error {
	m.record(email, models.PurposeEmailChange, code)
	return nil
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, code string, expiresAt time.Time) error {
	m.record(email, models.PurposePasswordReset, code)
	return nil
}

// LastCode returns the most recent code sent for a purpose, or ""
func (m *MockEmailService) LastCode(purpose models.TokenPurpose) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.SentEmails) - 1; i >= 0; i-- {
		if m.SentEmails[i].Purpose == purpose {
			return m.SentEmails[i].Code
		}
	}
	return ""
}

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server       *httptest.Server
	DB           *database.DB
	EmailService *MockEmailService
}

// NewTestServer initializes a complete HTTP server with a real database and a
// mocked email transport, wired the same way main is.
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	userRepo, principalRepo, verificationTokenRepo, refreshTokenRepo := InitializeRepositories(db)

	mockEmail := &MockEmailService{
		SentEmails: []SentEmail{},
	}

	codec := auth.NewCodec("test-secret-32-characters-long!!", logger)
	guard := auth.NewGuard()
	auditLogger := pkglogger.NewAuditLogger(logger)

	verificationTokenService := services.NewVerificationTokenService(
		verificationTokenRepo,
		principalRepo,
		mockEmail,
		logger,
		24,
		1*time.Hour,
	)
	principalService := services.NewPrincipalService(principalRepo, verificationTokenRepo, logger)
	sessionService := services.NewSessionService(codec, refreshTokenRepo, logger, 15*time.Minute, 7*24*time.Hour)
	userService := services.NewUserService(userRepo, principalRepo, logger)
	accountService := services.NewAccountService(
		userRepo,
		principalRepo,
		verificationTokenRepo,
		principalService,
		verificationTokenService,
		sessionService,
		logger,
		auditLogger,
		true,
	)

	cookieConfig := auth.CookieConfig{
		Secure:      false,
		SameSite:    "lax",
		RefreshPath: "/auth",
	}

	authHandler := handlers.NewAuthHandler(
		accountService,
		sessionService,
		userService,
		nil,
		cookieConfig,
		15*time.Minute,
		7*24*time.Hour,
	)
	accountHandler := handlers.NewAccountHandler(accountService, userService, guard, cookieConfig)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Generous limits so flow tests never trip them
	testLimit := middlewareCustom.RateLimitConfig{RequestsPerMinute: 1000}
	routes.RegisterRoutes(r, authHandler, accountHandler, codec, testLimit, testLimit)

	server := httptest.NewServer(r)

	return &TestServer{
		Server:       server,
		DB:           db,
		EmailService: mockEmail,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Client returns an HTTP client with its own cookie jar. Sessions travel as
// cookies, so each client is an independent browser.
func (ts *TestServer) Client() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Request makes a JSON HTTP request through the given client
func (ts *TestServer) Request(client *http.Client, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return client.Do(req)
}

// SessionCookies returns the client's current session cookies by name
func (ts *TestServer) SessionCookies(client *http.Client) map[string]string {
	serverURL, _ := url.Parse(ts.Server.URL)

	cookies := map[string]string{}
	for _, c := range client.Jar.Cookies(serverURL) {
		cookies[c.Name] = c.Value
	}

	// The refresh cookie is path-scoped and only presented to auth endpoints
	authURL, _ := url.Parse(ts.Server.URL + "/auth/refresh")
	for _, c := range client.Jar.Cookies(authURL) {
		cookies[c.Name] = c.Value
	}

	return cookies
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}
