package integration

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wordweave/wordweave/internal/auth"
	"github.com/wordweave/wordweave/internal/models"
)

var (
	testDB     *TestDB
	testServer *TestServer
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testDB, err = SetupTestDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up test database: %v\n", err)
		os.Exit(1)
	}

	testServer = NewTestServer(testDB.DB)

	code := m.Run()

	testServer.Close()
	testDB.Teardown(ctx)
	os.Exit(code)
}

func resetState(t *testing.T) {
	t.Helper()
	require.NoError(t, testDB.CleanupTables(context.Background()))
	testServer.EmailService.SentEmails = nil
}

func testEmail(suffix string) string {
	return fmt.Sprintf("test-%d-%s@example.com", time.Now().UnixNano(), suffix)
}

const testPassword = "CorrectHorse9!"

// registerAndVerify walks an account through registration and email
// verification, returning the address used.
func registerAndVerify(t *testing.T, client *http.Client, suffix string) string {
	t.Helper()
	email := testEmail(suffix)

	resp, err := testServer.Request(client, http.MethodPost, "/auth/register", map[string]string{
		"email":    email,
		"username": "flow-tester",
		"password": testPassword,
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	code := testServer.EmailService.LastCode(models.PurposeEmailVerification)
	require.NotEmpty(t, code, "registration must send a verification code")

	resp, err = testServer.Request(client, http.MethodPost, "/auth/verify-email", map[string]string{
		"token": code,
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	return email
}

func login(t *testing.T, client *http.Client, email, password string) *http.Response {
	t.Helper()
	resp, err := testServer.Request(client, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestRegistrationAndLoginFlow(t *testing.T) {
	resetState(t)
	client := testServer.Client()

	email := testEmail("register")
	resp, err := testServer.Request(client, http.MethodPost, "/auth/register", map[string]string{
		"email":    email,
		"username": "flow-tester",
		"password": testPassword,
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	// Login is refused until the mailbox is proven
	resp = login(t, client, email, testPassword)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	code := testServer.EmailService.LastCode(models.PurposeEmailVerification)
	require.NotEmpty(t, code)

	resp, err = testServer.Request(client, http.MethodPost, "/auth/verify-email", map[string]string{"token": code})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The code is single-use
	resp, err = testServer.Request(client, http.MethodPost, "/auth/verify-email", map[string]string{"token": code})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = login(t, client, email, testPassword)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cookies := testServer.SessionCookies(client)
	assert.NotEmpty(t, cookies[auth.AccessTokenCookieName])
	assert.NotEmpty(t, cookies[auth.RefreshTokenCookieName])

	// Session gives access to the profile
	resp, err = testServer.Request(client, http.MethodGet, "/account", nil)
	require.NoError(t, err)
	var profile map[string]any
	require.NoError(t, ParseJSONResponse(resp, &profile))
	assert.Equal(t, email, profile["email"])
	assert.Equal(t, true, profile["email_verified"])
}

func TestLogin_SeededVerifiedAccount(t *testing.T) {
	resetState(t)
	client := testServer.Client()

	email := testEmail("seeded")
	_, _, err := SeedAccount(context.Background(), testDB.DB, email, testPassword, true)
	require.NoError(t, err)

	resp := login(t, client, email, testPassword)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRegister_DuplicateEmailIndistinguishable(t *testing.T) {
	resetState(t)
	client := testServer.Client()

	email := registerAndVerify(t, client, "dup")

	resp, err := testServer.Request(client, http.MethodPost, "/auth/register", map[string]string{
		"email":    email,
		"username": "someone-else",
		"password": testPassword,
	})
	require.NoError(t, err)
	resp.Body.Close()

	// Same 202 as a fresh registration: no account enumeration
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestRefreshFlow(t *testing.T) {
	resetState(t)
	client := testServer.Client()

	email := registerAndVerify(t, client, "refresh")
	resp := login(t, client, email, testPassword)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	before := testServer.SessionCookies(client)[auth.AccessTokenCookieName]

	resp, err := testServer.Request(client, http.MethodPost, "/auth/refresh", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	after := testServer.SessionCookies(client)[auth.AccessTokenCookieName]
	assert.NotEmpty(t, after)
	assert.NotEqual(t, before, after, "refresh mints a new access token")

	// A refreshed token does not carry recent-login privilege
	resp, err = testServer.Request(client, http.MethodPut, "/account/password", map[string]string{
		"current_password": testPassword,
		"new_password":     "AnotherHorse8!",
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	resetState(t)
	client := testServer.Client()

	email := registerAndVerify(t, client, "logout")
	resp := login(t, client, email, testPassword)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err := testServer.Request(client, http.MethodPost, "/auth/logout", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Cookies are gone and the refresh token row was deleted
	cookies := testServer.SessionCookies(client)
	assert.Empty(t, cookies[auth.AccessTokenCookieName])
	assert.Empty(t, cookies[auth.RefreshTokenCookieName])
}

func TestPasswordResetFlow(t *testing.T) {
	resetState(t)
	client := testServer.Client()

	email := registerAndVerify(t, client, "reset")

	resp, err := testServer.Request(client, http.MethodPost, "/account/password/reset", map[string]string{
		"email": email,
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	// Unknown addresses get the identical response
	resp, err = testServer.Request(client, http.MethodPost, "/account/password/reset", map[string]string{
		"email": "nobody@example.com",
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	code := testServer.EmailService.LastCode(models.PurposePasswordReset)
	require.NotEmpty(t, code)

	const newPassword = "BrandNewHorse7!"
	resp, err = testServer.Request(client, http.MethodPost, "/account/password/reset/confirm", map[string]string{
		"token":        code,
		"new_password": newPassword,
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = login(t, client, email, testPassword)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "old password no longer works")

	resp = login(t, client, email, newPassword)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestPasswordResetRevokesSessions(t *testing.T) {
	resetState(t)
	deviceA := testServer.Client()
	deviceB := testServer.Client()

	email := registerAndVerify(t, deviceA, "reset-revoke")
	resp := login(t, deviceA, email, testPassword)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = login(t, deviceB, email, testPassword)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err := testServer.Request(deviceA, http.MethodPost, "/account/password/reset", map[string]string{
		"email": email,
	})
	require.NoError(t, err)
	resp.Body.Close()

	code := testServer.EmailService.LastCode(models.PurposePasswordReset)
	require.NotEmpty(t, code)

	resp, err = testServer.Request(deviceA, http.MethodPost, "/account/password/reset/confirm", map[string]string{
		"token":        code,
		"new_password": "BrandNewHorse7!",
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The other device's refresh token was revoked
	resp, err = testServer.Request(deviceB, http.MethodPost, "/auth/refresh", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEmailChangeFlow(t *testing.T) {
	resetState(t)
	client := testServer.Client()

	oldEmail := registerAndVerify(t, client, "change-old")
	resp := login(t, client, oldEmail, testPassword)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	newEmail := testEmail("change-new")
	resp, err := testServer.Request(client, http.MethodPost, "/account/email", map[string]string{
		"new_email": newEmail,
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	// A second request while one is pending is refused
	resp, err = testServer.Request(client, http.MethodPost, "/account/email", map[string]string{
		"new_email": testEmail("change-other"),
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	code := testServer.EmailService.LastCode(models.PurposeEmailChange)
	require.NotEmpty(t, code)

	resp, err = testServer.Request(client, http.MethodPost, "/account/email/confirm", map[string]string{
		"token": code,
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Old credential is gone; the new address signs in
	fresh := testServer.Client()
	resp = login(t, fresh, oldEmail, testPassword)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = login(t, fresh, newEmail, testPassword)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestEmailChangeCancel(t *testing.T) {
	resetState(t)
	client := testServer.Client()

	email := registerAndVerify(t, client, "cancel")
	resp := login(t, client, email, testPassword)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err := testServer.Request(client, http.MethodPost, "/account/email", map[string]string{
		"new_email": testEmail("cancel-new"),
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = testServer.Request(client, http.MethodDelete, "/account/email", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Cancellation voids the emailed code
	code := testServer.EmailService.LastCode(models.PurposeEmailChange)
	resp, err = testServer.Request(client, http.MethodPost, "/account/email/confirm", map[string]string{
		"token": code,
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// And a new change request is accepted again
	resp, err = testServer.Request(client, http.MethodPost, "/account/email", map[string]string{
		"new_email": testEmail("cancel-retry"),
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestUnlinkLastAuthMethodRefused(t *testing.T) {
	resetState(t)
	client := testServer.Client()

	email := registerAndVerify(t, client, "unlink")
	resp := login(t, client, email, testPassword)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err := testServer.Request(client, http.MethodDelete, "/account/auth-methods", map[string]string{
		"provider": "local",
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDeleteAccountFlow(t *testing.T) {
	resetState(t)
	client := testServer.Client()

	email := registerAndVerify(t, client, "delete")
	resp := login(t, client, email, testPassword)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err := testServer.Request(client, http.MethodDelete, "/account", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	fresh := testServer.Client()
	resp = login(t, fresh, email, testPassword)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
