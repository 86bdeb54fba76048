package services

import (
	"context"
	"fmt"
	"log/slog"

	"merchpos/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	logger   *slog.Logger
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, logger *slog.Logger) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer, logger: logger}
}

func (s *emailService) send(ctx context.Context, template, to string, data any) error {
	subject, htmlBody, textBody, err := s.renderer.Render(template, data)
	if err != nil {
		return fmt.Errorf("failed to render %s template: %w", template, err)
	}
	msg := domain.EmailMessage{To: to, Subject: subject, HTML: htmlBody, Text: textBody, Category: template}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s email: %w", template, err)
	}
	s.logger.InfoContext(ctx, "email sent", "template", template, "to", to)
	return nil
}

// SendRoleRequest notifies the president that a user asked for an elevated role.
func (s *emailService) SendRoleRequest(ctx context.Context, data *domain.RoleRequestEmailData) error {
	if data == nil {
		return fmt.Errorf("role request email data is nil")
	}
	if data.To == "" {
		return fmt.Errorf("role request email has no recipient")
	}
	return s.send(ctx, "role_request", data.To, data)
}

// SendRoleDecision tells the requester whether their role request was approved.
func (s *emailService) SendRoleDecision(ctx context.Context, data *domain.RoleDecisionEmailData) error {
	if data == nil {
		return fmt.Errorf("role decision email data is nil")
	}
	return s.send(ctx, "role_decision", data.Email, data)
}
