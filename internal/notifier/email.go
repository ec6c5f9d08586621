// Package notifier holds the delivery backends for digests and failure
// notices: email, Slack webhook, and plain structured logging.
package notifier

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/mwarner/jobscout/internal/model"
)

// Ensure EmailNotifier implements model.Notifier.
var _ model.Notifier = (*EmailNotifier)(nil)

//go:embed templates/digest.html.tmpl
var digestTemplateSrc string

var digestTemplate = template.Must(template.New("digest").Parse(digestTemplateSrc))

// sendMailFunc matches smtp.SendMail; swapped for a fake in tests.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailConfig holds SMTP delivery settings.
type EmailConfig struct {
	Host     string
	Port     int
	From     string
	To       string
	Username string
	Password string
}

// EmailNotifier sends digests and failure notices over SMTP.
type EmailNotifier struct {
	cfg      EmailConfig
	sendMail sendMailFunc
	logger   *slog.Logger
}

// NewEmailNotifier returns a notifier that delivers via the configured SMTP
// relay. If Username is empty the connection is unauthenticated.
func NewEmailNotifier(cfg EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, sendMail: smtp.SendMail, logger: logger}
}

type digestData struct {
	Date     string
	Count    int
	Postings []digestRow
}

type digestRow struct {
	Title    string
	Company  string
	Location string
	Score    string
	Reason   string
	Salary   string
	URL      string
}

// SendDigest renders the digest body and sends a single email covering all
// matched postings.
func (e *EmailNotifier) SendDigest(ctx context.Context, postings []model.Posting) error {
	data := digestData{
		Date:  time.Now().Format("Mon, 02 Jan 2006"),
		Count: len(postings),
	}
	for _, p := range postings {
		data.Postings = append(data.Postings, digestRow{
			Title:    p.Title,
			Company:  p.Company,
			Location: p.Location,
			Score:    fmt.Sprintf("%.2f", p.Score()),
			Reason:   p.MatchReason,
			Salary:   p.Salary,
			URL:      p.URL,
		})
	}

	var body bytes.Buffer
	if err := digestTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("render digest: %w", err)
	}

	subject := fmt.Sprintf("Job digest: %d matched posting(s)", len(postings))
	if err := e.send(ctx, subject, "text/html; charset=\"UTF-8\"", body.Bytes()); err != nil {
		return err
	}

	e.logger.Info("digest email sent", "to", e.cfg.To, "postings", len(postings))
	return nil
}

// SendFailure sends a short plain-text notice that a scan session failed.
func (e *EmailNotifier) SendFailure(ctx context.Context, sessionErr error) error {
	body := fmt.Sprintf("A scan session failed at %s.\r\n\r\nReason: %v\r\n",
		time.Now().Format(time.RFC1123), sessionErr)

	if err := e.send(ctx, "Job scan failed", "text/plain; charset=\"UTF-8\"", []byte(body)); err != nil {
		return err
	}

	e.logger.Info("failure email sent", "to", e.cfg.To)
	return nil
}

func (e *EmailNotifier) send(ctx context.Context, subject, contentType string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", e.cfg.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(&msg, "\r\n")
	msg.Write(body)

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)
	if err := e.sendMail(addr, auth, e.cfg.From, []string{e.cfg.To}, msg.Bytes()); err != nil {
		return fmt.Errorf("send email via %s: %w", addr, err)
	}
	return nil
}
