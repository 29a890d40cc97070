package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailConfig holds the configuration for the Gmail API secondary transport.
type GmailConfig struct {
	// CredentialsJSON is a service account JSON with domain-wide delegation.
	CredentialsJSON string
	// ClientID, ClientSecret and RefreshToken authorise a single mailbox
	// when no service account is available.
	ClientID     string
	ClientSecret string
	RefreshToken string
	// SenderAddress is the mailbox emails are sent from.
	SenderAddress string
	SenderName    string
	// Endpoint overrides the API base URL, used by tests.
	Endpoint string
}

// GmailSender implements Sender using the Gmail API.
type GmailSender struct {
	service       *gmail.Service
	senderAddress string
	senderName    string
}

// NewGmailSender creates a GmailSender from either a service account or an
// OAuth2 refresh token.
func NewGmailSender(ctx context.Context, cfg GmailConfig) (*GmailSender, error) {
	if cfg.SenderAddress == "" {
		return nil, fmt.Errorf("gmail: sender address is required")
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		jwtConfig, err := google.JWTConfigFromJSON([]byte(cfg.CredentialsJSON), gmail.GmailSendScope)
		if err != nil {
			return nil, fmt.Errorf("gmail: failed to parse credentials: %w", err)
		}
		// Impersonate the sender mailbox
		jwtConfig.Subject = cfg.SenderAddress
		opts = append(opts, option.WithHTTPClient(jwtConfig.Client(ctx)))
	case cfg.RefreshToken != "":
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmail.GmailSendScope},
		}
		token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
		opts = append(opts, option.WithHTTPClient(oauthCfg.Client(ctx, token)))
	case cfg.Endpoint != "":
		opts = append(opts, option.WithoutAuthentication())
	default:
		return nil, fmt.Errorf("gmail: credentials JSON or refresh token is required")
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to create service: %w", err)
	}

	return &GmailSender{
		service:       svc,
		senderAddress: cfg.SenderAddress,
		senderName:    cfg.SenderName,
	}, nil
}

// Send sends an email via the Gmail API. The configured mailbox is always the
// sender; the message's own from address becomes the Reply-To.
func (g *GmailSender) Send(ctx context.Context, msg Message) (string, error) {
	if msg.ReplyTo == "" && msg.FromAddress != "" && msg.FromAddress != g.senderAddress {
		msg.ReplyTo = msg.FromAddress
	}
	msg.FromAddress = g.senderAddress
	if g.senderName != "" {
		msg.FromName = g.senderName
	}

	m, err := buildMsg(msg)
	if err != nil {
		return "", err
	}

	var raw bytes.Buffer
	if _, err := m.WriteTo(&raw); err != nil {
		return "", fmt.Errorf("gmail: failed to encode message: %w", err)
	}

	sent, err := g.service.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw.Bytes()),
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail: failed to send email: %w", err)
	}

	if id := messageID(m); id != "" {
		return id, nil
	}
	return sent.Id, nil
}
