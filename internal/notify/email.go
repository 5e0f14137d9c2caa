package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/internal/alert"
)

// EmailChannel sends alerts via SMTP.
type EmailChannel struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string
	To           []string
	UseTLS       bool // implicit TLS (smtps); otherwise STARTTLS when offered
}

func NewEmailChannel(smtpHost string, smtpPort int, username, password, from string, to []string, useTLS bool) *EmailChannel {
	return &EmailChannel{
		SMTPHost:     smtpHost,
		SMTPPort:     smtpPort,
		SMTPUsername: username,
		SMTPPassword: password,
		From:         from,
		To:           to,
		UseTLS:       useTLS,
	}
}

func (e *EmailChannel) Name() string { return alert.ChannelEmail }

func (e *EmailChannel) Send(ctx context.Context, a alert.Alert) error {
	if len(e.To) == 0 {
		return errors.New("email channel has no recipients")
	}

	conn, err := e.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to smtp server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, e.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{ServerName: e.SMTPHost, MinVersion: tls.VersionTLS12}
	if !e.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("starttls failed: %w", err)
			}
		}
	}

	if e.SMTPUsername != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", e.SMTPUsername, e.SMTPPassword, e.SMTPHost)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth failed: %w", err)
			}
		}
	}

	if err := client.Mail(e.From); err != nil {
		return err
	}
	for _, recipient := range e.To {
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("recipient %s rejected: %w", recipient, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := writer.Write(e.buildMessage(a)); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (e *EmailChannel) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(e.SMTPHost, fmt.Sprintf("%d", e.SMTPPort))
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	if e.UseTLS {
		td := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: e.SMTPHost, MinVersion: tls.VersionTLS12},
		}
		return td.DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

func (e *EmailChannel) buildMessage(a alert.Alert) []byte {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("From: %s\r\n", e.From))
	sb.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(e.To, ", ")))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", Title(a))))
	sb.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(FormatAlertMessage(a), "\n", "\r\n"))
	sb.WriteString("\r\n")
	return []byte(sb.String())
}
