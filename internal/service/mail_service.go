package service

import (
	"bytes"
	"context"
	"fmt"
	htmltmpl "html/template"
	texttmpl "text/template"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-crm-api/pkg/jobs"
	"github.com/noah-isme/edu-crm-api/pkg/mailer"
)

// JobTypePasswordReset identifies queued password reset mails.
const JobTypePasswordReset = "password_reset"

const passwordResetSubject = "Reset your CRM password"

var (
	passwordResetHTML = htmltmpl.Must(htmltmpl.New("password_reset.html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
<p>Hi {{if .FullName}}{{.FullName}}{{else}}there{{end}},</p>
<p>We received a request to reset the password for your account.</p>
<p><a href="{{.Link}}" style="background:#2563eb;color:#fff;padding:10px 16px;border-radius:4px;text-decoration:none;">Choose a new password</a></p>
<p>This link expires at {{.Expires}}. If you did not ask for a reset you can ignore this email.</p>
</body>
</html>`))
	passwordResetText = texttmpl.Must(texttmpl.New("password_reset.txt").Parse(`Hi {{if .FullName}}{{.FullName}}{{else}}there{{end}},

We received a request to reset the password for your account.
Open the link below to choose a new password:

{{.Link}}

This link expires at {{.Expires}}. If you did not ask for a reset you can ignore this email.
`))
)

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type mailSender interface {
	Send(ctx context.Context, msg mailer.Message) (mailer.SendResult, error)
}

type mailMetrics interface {
	RecordMail(ok bool)
}

// PasswordResetMail is the payload of a password reset job.
type PasswordResetMail struct {
	To        string
	FullName  string
	Link      string
	ExpiresAt time.Time
}

// MailService queues transactional mail and renders it on the worker side.
type MailService struct {
	queue   jobEnqueuer
	sender  mailSender
	metrics mailMetrics
	logger  *zap.Logger
}

// NewMailService constructs a MailService. The queue is attached with
// SetQueue because the queue handler is the service itself.
func NewMailService(sender mailSender, metrics mailMetrics, logger *zap.Logger) *MailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailService{sender: sender, metrics: metrics, logger: logger}
}

// SetQueue attaches the queue used by SendPasswordReset. Without one, mail is sent inline.
func (s *MailService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// SendPasswordReset schedules the reset mail for delivery.
func (s *MailService) SendPasswordReset(ctx context.Context, to, fullName, link string, expiresAt time.Time) error {
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: JobTypePasswordReset,
		Payload: PasswordResetMail{
			To:        to,
			FullName:  fullName,
			Link:      link,
			ExpiresAt: expiresAt,
		},
	}
	if s.queue == nil {
		return s.HandleJob(ctx, job)
	}
	if err := s.queue.Enqueue(job); err != nil {
		return fmt.Errorf("enqueue password reset mail: %w", err)
	}
	return nil
}

// HandleJob renders and sends one queued mail. It satisfies jobs.Handler.
func (s *MailService) HandleJob(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case JobTypePasswordReset:
		payload, ok := job.Payload.(PasswordResetMail)
		if !ok {
			return fmt.Errorf("mail job %s: unexpected payload %T", job.ID, job.Payload)
		}
		msg, err := renderPasswordReset(payload)
		if err != nil {
			return err
		}
		return s.deliver(ctx, job, msg)
	default:
		return fmt.Errorf("mail job %s: unknown type %q", job.ID, job.Type)
	}
}

// GiveUp logs a job that ran out of retries.
func (s *MailService) GiveUp(job jobs.Job, err error) {
	s.logger.Error("mail delivery abandoned",
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.Int("attempt", job.Attempt),
		zap.Error(err),
	)
}

func (s *MailService) deliver(ctx context.Context, job jobs.Job, msg mailer.Message) error {
	res, err := s.sender.Send(ctx, msg)
	if s.metrics != nil {
		s.metrics.RecordMail(err == nil)
	}
	if err != nil {
		s.logger.Warn("mail delivery failed",
			zap.String("job_id", job.ID),
			zap.Int("attempt", job.Attempt),
			zap.Error(err),
		)
		return err
	}
	s.logger.Info("mail delivered",
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.String("message_id", res.ProviderMessageID),
	)
	return nil
}

func renderPasswordReset(p PasswordResetMail) (mailer.Message, error) {
	data := struct {
		FullName string
		Link     string
		Expires  string
	}{
		FullName: p.FullName,
		Link:     p.Link,
		Expires:  p.ExpiresAt.UTC().Format("2 Jan 2006 15:04 MST"),
	}

	var html, text bytes.Buffer
	if err := passwordResetHTML.Execute(&html, data); err != nil {
		return mailer.Message{}, fmt.Errorf("render reset html: %w", err)
	}
	if err := passwordResetText.Execute(&text, data); err != nil {
		return mailer.Message{}, fmt.Errorf("render reset text: %w", err)
	}
	return mailer.Message{
		To:      []string{p.To},
		Subject: passwordResetSubject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
