package email

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fruitai/outreach/internal/logger"
	"github.com/wneessen/go-mail"
)

// SMTPSettings is the per-campaign primary transport configuration
type SMTPSettings struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
	SSL         bool
}

// PoolKey identifies a cached SMTP connection
type PoolKey struct {
	Host     string
	Port     int
	Username string
}

func (s SMTPSettings) key() PoolKey {
	return PoolKey{Host: s.Host, Port: s.Port, Username: s.Username}
}

// Conn is a live SMTP session
type Conn interface {
	Send(ctx context.Context, msg Message) (string, error)
	// Reset checks the session; an error means it can no longer be used
	Reset() error
	Close() error
}

// Dialer opens a new SMTP session
type Dialer func(ctx context.Context, s SMTPSettings) (Conn, error)

// SMTPOptions tunes the default dialer
type SMTPOptions struct {
	DialTimeout time.Duration
	// TLSPolicy is one of "opportunistic", "mandatory", "none"
	TLSPolicy string
}

// Pool caches one SMTP session per (host, port, username). Each entry allows
// a single send at a time; broken sessions are replaced with a fresh dial.
type Pool struct {
	dial Dialer
	log  *logger.Logger

	mu      sync.Mutex
	entries map[PoolKey]*poolEntry
}

type poolEntry struct {
	mu     sync.Mutex
	conn   Conn
	closed bool
}

// NewPool creates a Pool. A nil dialer uses go-mail with opts.
func NewPool(dial Dialer, opts SMTPOptions, log *logger.Logger) *Pool {
	if dial == nil {
		dial = MailDialer(opts)
	}
	return &Pool{
		dial:    dial,
		log:     log.WithComponent("smtp_pool"),
		entries: make(map[PoolKey]*poolEntry),
	}
}

func (p *Pool) entry(key PoolKey) *poolEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[key]
	if !ok {
		e = &poolEntry{}
		p.entries[key] = e
	}
	return e
}

// Send delivers msg over the cached session for s, dialing when needed
func (p *Pool) Send(ctx context.Context, s SMTPSettings, msg Message) (string, error) {
	e := p.entry(s.key())

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn != nil && !e.closed {
		if err := e.conn.Reset(); err != nil {
			p.log.Debug().Err(err).Str("host", s.Host).Msg("cached smtp session is stale, redialing")
			e.discard()
		}
	}

	if e.conn == nil || e.closed {
		conn, err := p.dial(ctx, s)
		if err != nil {
			return "", err
		}
		e.conn = conn
		e.closed = false
	}

	id, err := e.conn.Send(ctx, msg)
	if err != nil {
		e.discard()
		return "", err
	}
	return id, nil
}

func (e *poolEntry) discard() {
	if e.conn != nil {
		_ = e.conn.Close()
	}
	e.conn = nil
	e.closed = true
}

// Size returns the number of cached entries
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Close closes every cached session
func (p *Pool) Close() error {
	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[PoolKey]*poolEntry)
	p.mu.Unlock()

	var errs []error
	for _, e := range entries {
		e.mu.Lock()
		if e.conn != nil {
			if err := e.conn.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		e.conn = nil
		e.closed = true
		e.mu.Unlock()
	}
	return errors.Join(errs...)
}

// MailDialer returns a Dialer backed by github.com/wneessen/go-mail
func MailDialer(opts SMTPOptions) Dialer {
	return func(ctx context.Context, s SMTPSettings) (Conn, error) {
		client, err := mail.NewClient(s.Host, clientOptions(s, opts)...)
		if err != nil {
			return nil, fmt.Errorf("smtp: failed to create client: %w", err)
		}
		if err := client.DialWithContext(ctx); err != nil {
			return nil, fmt.Errorf("smtp: failed to connect to %s: %w", s.Host, err)
		}
		return &mailConn{client: client}, nil
	}
}

func clientOptions(s SMTPSettings, opts SMTPOptions) []mail.Option {
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	options := []mail.Option{mail.WithTimeout(timeout)}
	if s.Port > 0 {
		options = append(options, mail.WithPort(s.Port))
	}
	if s.SSL {
		options = append(options, mail.WithSSL())
	} else {
		options = append(options, mail.WithTLSPolicy(tlsPolicy(opts.TLSPolicy)))
	}
	if s.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.Username),
			mail.WithPassword(s.Password),
		)
	}
	return options
}

func tlsPolicy(name string) mail.TLSPolicy {
	switch name {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}

type mailConn struct {
	client *mail.Client
}

func (c *mailConn) Send(ctx context.Context, msg Message) (string, error) {
	m, err := buildMsg(msg)
	if err != nil {
		return "", err
	}
	if err := c.client.Send(m); err != nil {
		return "", err
	}
	return messageID(m), nil
}

func (c *mailConn) Reset() error { return c.client.Reset() }

func (c *mailConn) Close() error { return c.client.Close() }

// buildMsg renders msg as a go-mail message with a generated Message-ID
func buildMsg(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()

	if msg.FromName != "" {
		if err := m.FromFormat(msg.FromName, msg.FromAddress); err != nil {
			return nil, fmt.Errorf("invalid from address: %w", err)
		}
	} else if err := m.From(msg.FromAddress); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}

	if msg.ToName != "" {
		if err := m.AddToFormat(msg.ToName, msg.To); err != nil {
			return nil, fmt.Errorf("invalid recipient: %w", err)
		}
	} else if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}

	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("invalid reply-to address: %w", err)
		}
	}

	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	}

	return m, nil
}

func messageID(m *mail.Msg) string {
	if ids := m.GetGenHeader(mail.HeaderMessageID); len(ids) > 0 {
		return ids[0]
	}
	return ""
}
