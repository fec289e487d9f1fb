package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/wordweave/wordweave/internal/models"
)

// EmailService defines the interface for sending account emails. One method
// per token purpose; templates differ, delivery does not.
type EmailService interface {
	SendVerificationEmail(ctx context.Context, email, code string, expiresAt time.Time) error
	SendEmailChangeEmail(ctx context.Context, email, code string, expiresAt time.Time) error
	SendPasswordResetEmail(ctx context.Context, email, code string, expiresAt time.Time) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress, baseURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

// SendVerificationEmail sends the post-registration verification email.
func (s *AWSSESEmailService) SendVerificationEmail(ctx context.Context, email, code string, expiresAt time.Time) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, code)

	htmlBody := fmt.Sprintf(emailTemplate,
		"Verify Your Email Address",
		"Welcome! To complete your registration, please verify your email address by clicking the link below:",
		link, link,
		expiryNotice(expiresAt),
		"If you didn't sign up for this account, you can ignore this email.")

	textBody := fmt.Sprintf(`Verify Your Email Address

Welcome! To complete your registration, please verify your email address:

%s

%s

If you didn't sign up for this account, you can ignore this email.
`, link, expiryNotice(expiresAt))

	return s.send(ctx, email, "Verify your email address", htmlBody, textBody, models.PurposeEmailVerification)
}

// SendEmailChangeEmail sends the confirmation email to the new address of a
// pending email change.
func (s *AWSSESEmailService) SendEmailChangeEmail(ctx context.Context, email, code string, expiresAt time.Time) error {
	link := fmt.Sprintf("%s/change-email?token=%s", s.baseURL, code)

	htmlBody := fmt.Sprintf(emailTemplate,
		"Confirm Your New Email Address",
		"A request was made to change the email on your account to this address. Confirm the change by clicking the link below:",
		link, link,
		expiryNotice(expiresAt),
		"If you didn't request this change, you can ignore this email. Your account email will not change.")

	textBody := fmt.Sprintf(`Confirm Your New Email Address

A request was made to change the email on your account to this address. Confirm the change:

%s

%s

If you didn't request this change, you can ignore this email. Your account email will not change.
`, link, expiryNotice(expiresAt))

	return s.send(ctx, email, "Confirm your new email address", htmlBody, textBody, models.PurposeEmailChange)
}

// SendPasswordResetEmail sends the password reset email.
func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email, code string, expiresAt time.Time) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, code)

	htmlBody := fmt.Sprintf(emailTemplate,
		"Reset Your Password",
		"A password reset was requested for your account. Set a new password by clicking the link below:",
		link, link,
		expiryNotice(expiresAt),
		"If you didn't request a reset, you can ignore this email. Your password will not change.")

	textBody := fmt.Sprintf(`Reset Your Password

A password reset was requested for your account. Set a new password:

%s

%s

If you didn't request a reset, you can ignore this email. Your password will not change.
`, link, expiryNotice(expiresAt))

	return s.send(ctx, email, "Reset your password", htmlBody, textBody, models.PurposePasswordReset)
}

func (s *AWSSESEmailService) send(ctx context.Context, email, subject, htmlBody, textBody string, purpose models.TokenPurpose) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("purpose", string(purpose)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("purpose", string(purpose)),
		slog.String("message_id", *result.MessageId))

	return nil
}

func expiryNotice(expiresAt time.Time) string {
	minutes := int(time.Until(expiresAt).Round(time.Minute).Minutes())
	return fmt.Sprintf("This link will expire in %d minutes.", minutes)
}

const emailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .content { padding: 20px 0; }
        .button { display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
        .warning { background-color: #fff3cd; padding: 10px; border-left: 4px solid #ffc107; margin: 10px 0; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>%s</h1>
        </div>
        <div class="content">
            <p>%s</p>
            <p><a href="%s" class="button">Continue</a></p>
            <p>Or copy and paste this link in your browser:<br>
            <code>%s</code></p>
            <div class="warning">
                <strong>Security Notice:</strong> %s
            </div>
            <p>%s</p>
        </div>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`
