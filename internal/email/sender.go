package email

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
	"syscall"

	"github.com/wneessen/go-mail"
	"google.golang.org/api/googleapi"
)

// Sender is implemented by every delivery transport.
type Sender interface {
	// Send delivers msg and returns the transport's message identifier.
	Send(ctx context.Context, msg Message) (string, error)
}

// Message represents an email message to be sent.
type Message struct {
	FromAddress string
	FromName    string
	ReplyTo     string
	To          string
	ToName      string
	Subject     string
	HTMLBody    string
	TextBody    string
}

// Reason classifies why a transport failed
type Reason string

const (
	ReasonAuth       Reason = "auth"
	ReasonTimeout    Reason = "timeout"
	ReasonConnection Reason = "connection"
	ReasonRejected   Reason = "rejected"
	ReasonUnknown    Reason = "unknown"
)

// TransportError is the typed failure of one delivery strategy
type TransportError struct {
	Method    string
	Transport string
	Reason    Reason
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport (%s) failed [%s]: %v", e.Method, e.Transport, e.Reason, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// classify maps a transport error onto a Reason
func classify(err error) Reason {
	if err == nil {
		return ReasonUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		if r, ok := reasonForCode(protoErr.Code); ok {
			return r
		}
	}

	// go-mail does not expose the SMTP reply behind a SendError
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) {
		if r, ok := reasonForCode(sendErr.ErrorCode()); ok {
			return r
		}
		switch sendErr.Reason {
		case mail.ErrConnCheck, mail.ErrSMTPReset:
			return ReasonConnection
		case mail.ErrGetSender, mail.ErrGetRcpts, mail.ErrNoUnencoded:
			return ReasonRejected
		}
		if sendErr.IsTemp() {
			return ReasonConnection
		}
		if sendErr.Reason == mail.ErrSMTPMailFrom || sendErr.Reason == mail.ErrSMTPRcptTo {
			return ReasonRejected
		}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			return ReasonAuth
		case apiErr.Code >= 400 && apiErr.Code < 500:
			return ReasonRejected
		default:
			return ReasonConnection
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return ReasonConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ReasonConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ReasonConnection
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "auth") || strings.Contains(msg, "credentials") || strings.Contains(msg, "535"):
		return ReasonAuth
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return ReasonTimeout
	case strings.Contains(msg, "connection") || strings.Contains(msg, "dial"):
		return ReasonConnection
	}
	return ReasonUnknown
}

func reasonForCode(code int) (Reason, bool) {
	switch {
	case code == 530 || code == 534 || code == 535 || code == 454:
		return ReasonAuth, true
	case code == 421:
		return ReasonConnection, true
	case code >= 500:
		return ReasonRejected, true
	}
	return "", false
}
