package email

import (
	"context"
	"errors"

	"github.com/fruitai/outreach/internal/apperr"
	"github.com/fruitai/outreach/internal/logger"
)

// Delivery methods and transports reported in a Result
const (
	MethodPrimary   = "primary"
	MethodSecondary = "secondary"

	TransportSMTP  = "smtp"
	TransportGmail = "gmail"
)

// Result describes a successful delivery
type Result struct {
	Method    string `json:"method"`
	Transport string `json:"transport"`
	MessageID string `json:"messageId"`
}

type strategy struct {
	method    string
	transport string
	send      func(ctx context.Context, msg Message) (string, error)
}

// Gateway delivers messages through an ordered list of transports: the
// campaign's own SMTP server first, then the shared secondary sender.
type Gateway struct {
	pool      *Pool
	secondary Sender
	log       *logger.Logger
}

// NewGateway creates a Gateway. secondary may be nil.
func NewGateway(pool *Pool, secondary Sender, log *logger.Logger) *Gateway {
	return &Gateway{
		pool:      pool,
		secondary: secondary,
		log:       log.WithComponent("delivery"),
	}
}

func (g *Gateway) strategies(smtp *SMTPSettings) []strategy {
	var list []strategy
	if smtp != nil && smtp.Host != "" && g.pool != nil {
		settings := *smtp
		list = append(list, strategy{
			method:    MethodPrimary,
			transport: TransportSMTP,
			send: func(ctx context.Context, msg Message) (string, error) {
				return g.pool.Send(ctx, settings, msg)
			},
		})
	}
	if g.secondary != nil {
		list = append(list, strategy{
			method:    MethodSecondary,
			transport: TransportGmail,
			send:      g.secondary.Send,
		})
	}
	return list
}

// Send tries each available transport in order and returns the first success.
// Every failure is reported as a *TransportError inside the returned error.
func (g *Gateway) Send(ctx context.Context, msg Message, smtp *SMTPSettings) (Result, error) {
	if smtp != nil {
		if msg.FromAddress == "" {
			msg.FromAddress = smtp.FromAddress
		}
		if msg.FromName == "" {
			msg.FromName = smtp.FromName
		}
	}

	list := g.strategies(smtp)
	if len(list) == 0 {
		return Result{}, apperr.New(apperr.KindNoTransportAvailable, "no email transport is configured")
	}

	var failures []error
	for _, s := range list {
		id, err := s.send(ctx, msg)
		if err == nil {
			g.log.Debug().
				Str("method", s.method).
				Str("transport", s.transport).
				Str("to", msg.To).
				Msg("email delivered")
			return Result{Method: s.method, Transport: s.transport, MessageID: id}, nil
		}

		te := &TransportError{Method: s.method, Transport: s.transport, Reason: classify(err), Err: err}
		g.log.Warn().
			Err(err).
			Str("method", s.method).
			Str("transport", s.transport).
			Str("reason", string(te.Reason)).
			Msg("email transport failed")
		failures = append(failures, te)

		if ctx.Err() != nil {
			break
		}
	}

	return Result{}, apperr.Wrap(apperr.KindTransport, errors.Join(failures...), "all email transports failed")
}

// Close releases cached SMTP sessions
func (g *Gateway) Close() error {
	if g.pool == nil {
		return nil
	}
	return g.pool.Close()
}
