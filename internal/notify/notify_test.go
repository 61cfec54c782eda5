package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"parcelscraper/internal/dates"
	"parcelscraper/internal/rangequeue"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/require"
)

func summary(t *testing.T) Summary {
	t.Helper()
	day, err := dates.ParseRange("03/03/2020", "03/03/2020")
	require.NoError(t, err)

	started := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return Summary{
		RunID:    "abcd1234",
		Started:  started,
		Finished: started.Add(90 * time.Minute),
		Years: []YearReport{
			{Year: 2020, Report: rangequeue.Report{
				Accepted: 12, Split: 5, Irreducible: 1, RowsWritten: 9000,
				Failures: []rangequeue.Failure{{Range: day, Err: errors.New("1200 results on a single day")}},
			}},
			{Year: 2021, Report: rangequeue.Report{Accepted: 10, Empty: 1, RowsWritten: 8000}},
		},
	}
}

func TestSummaryText(t *testing.T) {
	s := summary(t)
	require.Equal(t, "Parcel scrape abcd1234 completed: 17000 rows, 1 ranges dropped", s.Subject())

	text := s.Text()
	require.Contains(t, text, "Finished: 2024-05-01T09:30:00Z (1h30m0s)")
	require.Contains(t, text, "  accepted 12, empty 0, split 5, rows written 9000\n")
	require.Contains(t, text, "  irreducible 1, failed 0, no rows scraped 0\n")
	require.Contains(t, text, "  - "+s.Years[0].Report.Failures[0].Range.String()+": 1200 results on a single day\n")
	require.Contains(t, text, "missing from the output")
	require.Equal(t, 1, strings.Count(text, "irreducible"))

	s.Err = context.Canceled
	require.True(t, strings.HasPrefix(s.Subject(), "Parcel scrape abcd1234 aborted"))
	require.Contains(t, s.Text(), "Aborted:  context canceled")
}

func TestEnabled(t *testing.T) {
	require.False(t, EmailConfig{}.Enabled())
	require.False(t, EmailConfig{Server: "smtp.example.com", EmailAddress: "a@example.com"}.Enabled())
	require.True(t, EmailConfig{Server: "smtp.example.com", EmailAddress: "a@example.com", To: []string{"b@example.com"}}.Enabled())
}

func TestMailerFallsBackWithoutAuth(t *testing.T) {
	var auths []smtp.Auth
	var sent *email.Email
	mailer := NewMailer(EmailConfig{
		Server:       "smtp.example.com",
		Port:         587,
		EmailAddress: "scraper@example.com",
		To:           []string{"ops@example.com"},
	})
	mailer.send = func(mail *email.Email, addr string, auth smtp.Auth) error {
		require.Equal(t, "smtp.example.com:587", addr)
		auths = append(auths, auth)
		if auth != nil {
			return errors.New("smtp: server doesn't support AUTH")
		}
		sent = mail
		return nil
	}

	require.NoError(t, mailer.Send(context.Background(), summary(t)))
	require.Len(t, auths, 2)
	require.NotNil(t, sent)
	require.Equal(t, "Parcel Scraper <scraper@example.com>", sent.From)
	require.Equal(t, []string{"ops@example.com"}, sent.To)
	require.Contains(t, string(sent.Text), "Run abcd1234")
}

func TestMailerReturnsError(t *testing.T) {
	mailer := NewMailer(EmailConfig{Server: "smtp.example.com", Port: 25, EmailAddress: "a@example.com"})
	mailer.send = func(*email.Email, string, smtp.Auth) error {
		return errors.New("connection refused")
	}
	require.ErrorContains(t, mailer.Send(context.Background(), summary(t)), "connection refused")
}
