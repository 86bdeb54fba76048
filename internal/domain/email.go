package domain

import "context"

// EmailMessage is one rendered outgoing email. Category tags the message for provider-side metrics.
type EmailMessage struct {
	To       string
	Subject  string
	HTML     string
	Text     string
	Category string
}

// Mailer delivers rendered messages.
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailTemplateRenderer renders a named template into subject, HTML and plain-text bodies.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// RoleRequestEmailData is sent to the president when a member asks for an elevated role.
type RoleRequestEmailData struct {
	To             string
	RequesterName  string
	RequesterEmail string
	RequestedRole  string
}

// RoleDecisionEmailData tells a user the outcome of their role request.
type RoleDecisionEmailData struct {
	Email    string
	Name     string
	Approved bool
	Role     string
}

// EmailService sends the role workflow notifications.
type EmailService interface {
	SendRoleRequest(ctx context.Context, data *RoleRequestEmailData) error
	SendRoleDecision(ctx context.Context, data *RoleDecisionEmailData) error
}
