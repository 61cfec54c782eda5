// Package notify mails a summary of a scrape run, so that ranges dropped
// without their data are noticed by someone.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"parcelscraper/internal/rangequeue"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("parcelscraper/internal/notify")

type EmailConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

// Enabled is false when mail has not been configured.
func (c EmailConfig) Enabled() bool {
	return c.Server != "" && c.EmailAddress != "" && len(c.To) > 0
}

type YearReport struct {
	Year   int
	Report rangequeue.Report
}

type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Years    []YearReport
	// Err is the error that ended the run early, if any.
	Err error
}

func (s Summary) Total() rangequeue.Report {
	var total rangequeue.Report
	for _, y := range s.Years {
		total.Add(y.Report)
	}
	return total
}

func (s Summary) Subject() string {
	total := s.Total()
	status := "completed"
	if s.Err != nil {
		status = "aborted"
	}
	dropped := len(total.Failures)
	if dropped > 0 {
		return fmt.Sprintf("Parcel scrape %s %s: %d rows, %d ranges dropped", s.RunID, status, total.RowsWritten, dropped)
	}
	return fmt.Sprintf("Parcel scrape %s %s: %d rows", s.RunID, status, total.RowsWritten)
}

// Text renders the plain text body of the summary mail.
func (s Summary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", s.RunID)
	fmt.Fprintf(&b, "Started:  %s\n", s.Started.Format(time.RFC3339))
	fmt.Fprintf(&b, "Finished: %s (%s)\n", s.Finished.Format(time.RFC3339), s.Finished.Sub(s.Started).Round(time.Second))
	if s.Err != nil {
		fmt.Fprintf(&b, "Aborted:  %v\n", s.Err)
	}

	for _, y := range s.Years {
		r := y.Report
		fmt.Fprintf(&b, "\n%d\n", y.Year)
		fmt.Fprintf(&b, "  accepted %d, empty %d, split %d, rows written %d\n", r.Accepted, r.Empty, r.Split, r.RowsWritten)
		if r.Irreducible+r.Failed+r.Integrity > 0 {
			fmt.Fprintf(&b, "  irreducible %d, failed %d, no rows scraped %d\n", r.Irreducible, r.Failed, r.Integrity)
		}
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "  - %s: %v\n", f.Range, f.Err)
		}
	}

	if len(s.Total().Failures) > 0 {
		b.WriteString("\nThe ranges listed above were not scraped and are missing from the output.\n")
	}
	return b.String()
}

type sendFunc func(mail *email.Email, addr string, auth smtp.Auth) error

func send(mail *email.Email, addr string, auth smtp.Auth) error {
	return mail.Send(addr, auth)
}

type Mailer struct {
	config EmailConfig
	send   sendFunc
}

func NewMailer(config EmailConfig) Mailer {
	return Mailer{config: config, send: send}
}

func (m Mailer) Send(ctx context.Context, summary Summary) error {
	_, span := tracer.Start(ctx, "notify:Send")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Parcel Scraper <%s>", m.config.EmailAddress)
	mail.To = m.config.To
	mail.Subject = summary.Subject()
	mail.Text = []byte(summary.Text())

	addr := fmt.Sprintf("%s:%d", m.config.Server, m.config.Port)
	err := m.send(mail, addr, smtp.PlainAuth("", m.config.EmailAddress, m.config.Password, m.config.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = m.send(mail, addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
