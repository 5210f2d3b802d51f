// Package smtp sends transactional mail over plain SMTP with AUTH.
package smtp

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/healthquiz/quiz-api/config"
	"github.com/healthquiz/quiz-api/internal/core"
)

// Mailer sends access-code mail via an SMTP relay.
type Mailer struct {
	cfg  config.SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer creates a Mailer from configuration.
func NewMailer(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg, send: smtp.SendMail}
}

// SendAccessCode mails a redeemed-access code to the buyer.
func (m *Mailer) SendAccessCode(ctx context.Context, params core.SendAccessCodeParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	expiry := time.Now().AddDate(0, 0, params.Plan.SubscriptionDays()).Format("January 2, 2006")
	subject := fmt.Sprintf("Welcome %s! Your HealthQuiz Access Code", params.Username)

	var body strings.Builder
	fmt.Fprintf(&body, "From: HealthQuiz Support <%s>\r\n", m.cfg.From)
	fmt.Fprintf(&body, "To: %s\r\n", params.To)
	fmt.Fprintf(&body, "Subject: %s\r\n", subject)
	body.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&body, "Hi %s,\r\n\r\n", params.Username)
	body.WriteString("Your premium access is activated.\r\n\r\n")
	fmt.Fprintf(&body, "Access code: %s\r\n", params.Code)
	fmt.Fprintf(&body, "Plan: %s-month premium access\r\n", string(params.Plan))
	fmt.Fprintf(&body, "Expires: %s\r\n\r\n", expiry)
	body.WriteString("Open the HealthQuiz app, choose \"Enter Access Code\" and enter the code above.\r\n\r\n")
	body.WriteString("If you didn't make this purchase, please contact support immediately.\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := m.send(addr, auth, m.cfg.From, []string{params.To}, []byte(body.String())); err != nil {
		return fmt.Errorf("send access code mail: %w", err)
	}
	return nil
}
