// Package email delivers role workflow notifications through AWS SES and renders their templates.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"merchpos/internal/domain"
)

// Provider names accepted by NewMailer.
const (
	ProviderSES  = "ses"
	ProviderNoop = "noop"
)

const charset = "UTF-8"

// SESConfig carries static AWS credentials. Empty keys fall back to the SDK's anonymous credentials.
type SESConfig struct {
	Region             string
	AccessKeyID        string
	SecretAccessKey    string
	InsecureSkipVerify bool
}

// MailerConfig selects and configures the provider.
type MailerConfig struct {
	Provider    string
	FromAddress string
	FromName    string
	SES         SESConfig
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// NewMailer builds the configured mailer. Unknown providers log a warning and fall back to noop.
func NewMailer(cfg MailerConfig, logger *slog.Logger) (domain.Mailer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderSES:
		source, err := formatSource(cfg.FromName, cfg.FromAddress)
		if err != nil {
			return nil, fmt.Errorf("ses mailer: %w", err)
		}
		if cfg.SES.InsecureSkipVerify {
			logger.Warn("TLS certificate verification is disabled for SES; use only in development")
		}
		return newSESMailer(newSESClient(cfg.SES), source, logger), nil
	case ProviderNoop, "":
		return &noopMailer{logger: logger}, nil
	default:
		logger.Warn("unknown email provider, using noop", "provider", cfg.Provider)
		return &noopMailer{logger: logger}, nil
	}
}

func newSESClient(cfg SESConfig) *ses.Client {
	awsCfg := aws.Config{
		Region: cfg.Region,
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: cfg.InsecureSkipVerify,
					MinVersion:         tls.VersionTLS12,
				},
			},
		},
	}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		)
	}
	return ses.NewFromConfig(awsCfg)
}

// formatSource renders the RFC 5322 From header, quoting display names that need it.
func formatSource(name, address string) (string, error) {
	if address == "" {
		return "", errors.New("from address is required")
	}
	if _, err := mail.ParseAddress(address); err != nil {
		return "", fmt.Errorf("invalid from address %q: %w", address, err)
	}
	return (&mail.Address{Name: name, Address: address}).String(), nil
}

type sesMailer struct {
	client sesAPI
	source string
	logger *slog.Logger
}

func newSESMailer(client sesAPI, source string, logger *slog.Logger) *sesMailer {
	return &sesMailer{client: client, source: source, logger: logger}
}

func content(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String(charset)}
}

func (s *sesMailer) Send(ctx context.Context, msg domain.EmailMessage) error {
	if msg.To == "" {
		return errors.New("email has no recipient")
	}
	body := &types.Body{}
	if msg.HTML != "" {
		body.Html = content(msg.HTML)
	}
	if msg.Text != "" {
		body.Text = content(msg.Text)
	}
	input := &ses.SendEmailInput{
		Source:      aws.String(s.source),
		Destination: &types.Destination{ToAddresses: []string{msg.To}},
		Message:     &types.Message{Subject: content(msg.Subject), Body: body},
	}
	if msg.Category != "" {
		input.Tags = []types.MessageTag{{Name: aws.String("category"), Value: aws.String(msg.Category)}}
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send %s: %w", msg.Category, err)
	}
	s.logger.InfoContext(ctx, "email sent via SES", "category", msg.Category, "message_id", aws.ToString(out.MessageId))
	return nil
}

type noopMailer struct {
	logger *slog.Logger
}

func (n *noopMailer) Send(ctx context.Context, msg domain.EmailMessage) error {
	n.logger.InfoContext(ctx, "email suppressed (noop provider)", "to", msg.To, "subject", msg.Subject, "category", msg.Category)
	return nil
}
