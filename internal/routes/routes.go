package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/wordweave/wordweave/internal/auth"
	"github.com/wordweave/wordweave/internal/handlers"
	"github.com/wordweave/wordweave/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	accountHandler *handlers.AccountHandler,
	codec *auth.Codec,
	authLimit middleware.RateLimitConfig,
	emailLimit middleware.RateLimitConfig,
) {
	authRateLimit := middleware.RateLimitByIP(authLimit)
	emailRateLimit := middleware.RateLimitByIP(emailLimit)

	// Public routes - no authentication required
	router.With(authRateLimit).Post("/auth/register", authHandler.Register)
	router.With(authRateLimit).Post("/auth/login", authHandler.Login)
	router.With(authRateLimit).Post("/auth/refresh", authHandler.Refresh)
	router.Post("/auth/logout", authHandler.Logout)

	router.With(authRateLimit).Post("/auth/verify-email", authHandler.VerifyEmail)
	router.With(emailRateLimit).Post("/auth/resend-verification", authHandler.ResendVerification)

	router.With(authRateLimit).Get("/auth/google", authHandler.GoogleStart)
	router.With(authRateLimit).Get("/auth/google/callback", authHandler.GoogleCallback)

	// Token-bearing flows that work without a session: the emailed code is
	// the proof of identity.
	router.With(emailRateLimit).Post("/account/password/reset", accountHandler.RequestPasswordReset)
	router.With(authRateLimit).Post("/account/password/reset/confirm", accountHandler.ResetPassword)
	router.With(authRateLimit).Post("/account/email/confirm", accountHandler.ConfirmEmailChange)

	router.Get("/account/email-availability", accountHandler.EmailAvailability)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(codec))

		r.Post("/auth/logout-all", authHandler.LogoutAll)

		r.Get("/account", accountHandler.Me)
		r.Put("/account/username", accountHandler.UpdateUsername)
		r.Delete("/account", accountHandler.DeleteAccount)

		r.Put("/account/password", accountHandler.ChangePassword)

		r.With(emailRateLimit).Post("/account/email", accountHandler.RequestEmailChange)
		r.With(emailRateLimit).Post("/account/email/resend", accountHandler.ResendEmailChange)
		r.Delete("/account/email", accountHandler.CancelEmailChange)

		r.Get("/account/auth-methods", accountHandler.ListAuthMethods)
		r.Post("/account/auth-methods/local", accountHandler.LinkLocal)
		r.Delete("/account/auth-methods", accountHandler.Unlink)
	})
}
