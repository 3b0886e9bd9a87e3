package notify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"rehabflow/internal/config"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// ErrorKind classifies a failed send for the caller.
type ErrorKind string

const (
	KindAuth             ErrorKind = "AUTH"
	KindTransient        ErrorKind = "TRANSIENT"
	KindInvalidRecipient ErrorKind = "INVALID_RECIPIENT"
	KindUnknown          ErrorKind = "UNKNOWN"
)

// SendError is the only error type Send returns. It never panics the caller
// and never aborts a booking mutation.
type SendError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("mail send failed (%s): %s", e.Kind, e.Detail)
}

func (e *SendError) Unwrap() error { return e.Err }

// RetryPolicy defines exponential backoff parameters for transient failures.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay returns delay for a given attempt (1-based) with clamping.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}

	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1))
	d := time.Duration(delay)
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}

// SMTPMailer sends rendered emails over SMTP. Transient failures are retried
// in-call with backoff; everything else is classified and returned as-is.
type SMTPMailer struct {
	dialer  *gomail.Dialer
	from    string
	timeout time.Duration
	retry   RetryPolicy
	logger  *zerolog.Logger
}

func NewSMTPMailer(cfg config.SMTPConfig, logger *zerolog.Logger) *SMTPMailer {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SMTPMailer{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		timeout: timeout,
		retry: RetryPolicy{
			MaxRetries:    cfg.MaxRetries,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2,
		},
		logger: logger,
	}
}

// Send dispatches one rendered email. The returned error, when non-nil, is
// always a *SendError.
func (m *SMTPMailer) Send(ctx context.Context, to string, rendered Rendered) error {
	if strings.TrimSpace(to) == "" {
		return &SendError{Kind: KindInvalidRecipient, Detail: "empty recipient address"}
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", rendered.Subject)
	msg.SetBody("text/plain", rendered.Text)
	if rendered.HTML != "" {
		msg.AddAlternative("text/html", rendered.HTML)
	}

	var sendErr *SendError
	for attempt := 1; attempt <= m.retry.MaxRetries+1; attempt++ {
		err := m.sendOnce(ctx, msg)
		if err == nil {
			return nil
		}

		sendErr = classify(err)
		if sendErr.Kind != KindTransient {
			return sendErr
		}
		if attempt > m.retry.MaxRetries {
			break
		}

		m.logger.Warn().Err(err).Str("to", to).Int("attempt", attempt).Msg("transient mail failure, retrying")
		select {
		case <-ctx.Done():
			return &SendError{Kind: KindTransient, Detail: "send cancelled during backoff", Err: ctx.Err()}
		case <-time.After(m.retry.NextDelay(attempt)):
		}
	}
	return sendErr
}

func (m *SMTPMailer) sendOnce(ctx context.Context, msg *gomail.Message) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(msg) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

var smtpCodeRe = regexp.MustCompile(`\b([45]\d{2})\b`)

// classify maps transport errors onto the SendError taxonomy.
func classify(err error) *SendError {
	detail := err.Error()

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &SendError{Kind: KindTransient, Detail: "send timed out", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &SendError{Kind: KindTransient, Detail: detail, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &SendError{Kind: KindTransient, Detail: detail, Err: err}
	}

	if match := smtpCodeRe.FindStringSubmatch(detail); match != nil {
		code, _ := strconv.Atoi(match[1])
		switch {
		case code == 530 || code == 534 || code == 535 || code == 538:
			return &SendError{Kind: KindAuth, Detail: detail, Err: err}
		case code == 550 || code == 551 || code == 553 || code == 501 || code == 513:
			return &SendError{Kind: KindInvalidRecipient, Detail: detail, Err: err}
		case code >= 400 && code < 500:
			return &SendError{Kind: KindTransient, Detail: detail, Err: err}
		}
	}

	return &SendError{Kind: KindUnknown, Detail: detail, Err: err}
}
