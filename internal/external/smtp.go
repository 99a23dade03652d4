package external

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"tutorgate/internal/types"
)

// SMTPNotifierConfig holds the configuration for creating an SMTPNotifier.
type SMTPNotifierConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	DialTimeout time.Duration
	Logger      *slog.Logger
}

// SMTPNotifier delivers verification codes over SMTP with PLAIN auth and
// STARTTLS. The one retry/backoff layer of the HTTP clients does not apply
// here; delivery is best-effort and the caller treats failures as
// non-fatal.
type SMTPNotifier struct {
	host        string
	port        int
	username    string
	password    string
	fromAddress string
	dialTimeout time.Duration
	logger      *slog.Logger

	// dialFn is an injection point for tests.
	dialFn func(ctx context.Context, addr string) (net.Conn, error)
}

// NewSMTPNotifier creates a new SMTPNotifier.
func NewSMTPNotifier(cfg SMTPNotifierConfig) *SMTPNotifier {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	n := &SMTPNotifier{
		host:        cfg.Host,
		port:        cfg.Port,
		username:    cfg.Username,
		password:    cfg.Password,
		fromAddress: cfg.FromAddress,
		dialTimeout: timeout,
		logger:      logger,
	}
	n.dialFn = func(ctx context.Context, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: n.dialTimeout}
		return d.DialContext(ctx, "tcp", addr)
	}
	return n
}

// SendCode emails a verification code to the recipient. The message carries
// a unique Message-ID so delivery problems can be chased through provider
// logs.
func (n *SMTPNotifier) SendCode(ctx context.Context, email, code string) error {
	msg := n.buildMessage(email, code)

	if err := n.send(ctx, email, msg); err != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamEmail,
			fmt.Sprintf("failed to send verification email to %s", email),
			err,
		)
	}

	n.logger.InfoContext(ctx, "verification email sent",
		"email", email,
		"smtp_host", n.host,
	)
	return nil
}

// buildMessage assembles the RFC 5322 message bytes.
func (n *SMTPNotifier) buildMessage(email, code string) []byte {
	var b strings.Builder
	b.WriteString("From: " + n.fromAddress + "\r\n")
	b.WriteString("To: " + email + "\r\n")
	b.WriteString("Subject: Verify Your Email\r\n")
	b.WriteString("Message-ID: <" + uuid.NewString() + "@" + n.host + ">\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("Your verification code is: " + code + "\r\n")
	b.WriteString("\r\n")
	b.WriteString("This code expires in 10 minutes.\r\n")
	return []byte(b.String())
}

// send performs the SMTP conversation: dial, STARTTLS when offered,
// authenticate, and transmit.
func (n *SMTPNotifier) send(ctx context.Context, recipient string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	conn, err := n.dialFn(ctx, addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, n.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: n.host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if n.username != "" {
		auth := smtp.PlainAuth("", n.username, n.password, n.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(n.fromAddress); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}

	return client.Quit()
}

// LogNotifier is the notifier used when SMTP is disabled: the code is
// written to the service log instead of being delivered. Useful for local
// development and staging, where operators read codes off the log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendCode records the code in the log and reports success.
func (n *LogNotifier) SendCode(ctx context.Context, email, code string) error {
	n.logger.InfoContext(ctx, "verification code issued (smtp disabled)",
		"email", email,
		"code", code,
	)
	return nil
}
