package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/pkg/jobs"
)

// Mail job types.
const (
	MailJobVerification  = "mail.verification"
	MailJobPasswordReset = "mail.password_reset"
)

// MailMessage is a rendered outbound email.
type MailMessage struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs msg.
func (m *LogMailer) Send(_ context.Context, msg MailMessage) error {
	m.logger.Info("outbound mail",
		zap.String("from", msg.From),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body))
	return nil
}

// MailJobHandler adapts a Mailer to the job queue.
func MailJobHandler(mailer Mailer) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(MailMessage)
		if !ok {
			return fmt.Errorf("mail job %s: unexpected payload %T", job.ID, job.Payload)
		}
		return mailer.Send(ctx, msg)
	}
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// MailService renders account emails and hands them to the outbound queue.
type MailService struct {
	queue   jobEnqueuer
	from    string
	baseURL string
	logger  *zap.Logger
}

// NewMailService constructs the service. baseURL prefixes the links placed in messages.
func NewMailService(queue jobEnqueuer, from, baseURL string, logger *zap.Logger) *MailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailService{queue: queue, from: from, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// SendVerification queues the email verification link for user.
func (s *MailService) SendVerification(_ context.Context, user *models.User, token string, expiresAt time.Time) error {
	link := s.link("/verify-email", token)
	body := fmt.Sprintf("Hello %s,\n\nConfirm your email address by opening the link below:\n\n%s\n\nThe link expires on %s.\n",
		user.FullName, link, expiresAt.Format(time.RFC1123))
	return s.enqueue(MailJobVerification, MailMessage{From: s.from, To: user.Email, Subject: "Confirm your email address", Body: body})
}

// SendPasswordReset queues the password reset link for user.
func (s *MailService) SendPasswordReset(_ context.Context, user *models.User, token string, expiresAt time.Time) error {
	link := s.link("/reset-password", token)
	body := fmt.Sprintf("Hello %s,\n\nA password reset was requested for your account. Choose a new password here:\n\n%s\n\nThe link expires on %s. If you did not ask for this, ignore this message.\n",
		user.FullName, link, expiresAt.Format(time.RFC1123))
	return s.enqueue(MailJobPasswordReset, MailMessage{From: s.from, To: user.Email, Subject: "Reset your password", Body: body})
}

func (s *MailService) link(path, token string) string {
	return s.baseURL + path + "?" + url.Values{"token": {token}}.Encode()
}

func (s *MailService) enqueue(kind string, msg MailMessage) error {
	if s.queue == nil {
		return fmt.Errorf("enqueue %s: %w", kind, jobs.ErrQueueClosed)
	}
	if err := s.queue.Enqueue(jobs.Job{Type: kind, Payload: msg}); err != nil {
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}
	s.logger.Debug("mail queued", zap.String("type", kind), zap.String("to", msg.To))
	return nil
}
