package application

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/breadjournal/server/internal/domain/entity"
	repo "github.com/breadjournal/server/internal/domain/repository"
	"github.com/breadjournal/server/pkg/helpers"
	"github.com/breadjournal/server/pkg/mailer"
	tpl "github.com/breadjournal/server/pkg/mailer/templates"
)

// EmailPublisher is the one-way handoff to the delivery queue.
// *helpers.RabbitPublisher satisfies it.
type EmailPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// CodeManager issues and consumes one-time verification codes and hands
// delivery off to the email queue. Delivery is best-effort: publish errors
// are logged and never change the outcome of the triggering operation.
type CodeManager struct {
	Codes       repo.CodeRepository
	Pub         EmailPublisher
	Logger      *logrus.Logger
	AppName     string
	TTL         time.Duration
	Cooldown    time.Duration
	MailEnabled bool
}

func NewCodeManager(codes repo.CodeRepository, pub EmailPublisher, logger *logrus.Logger, appName string, ttl, cooldown time.Duration, mailEnabled bool) *CodeManager {
	return &CodeManager{
		Codes:       codes,
		Pub:         pub,
		Logger:      logger,
		AppName:     appName,
		TTL:         ttl,
		Cooldown:    cooldown,
		MailEnabled: mailEnabled,
	}
}

// Issue generates a fresh 6-digit code and persists it with the configured
// TTL. Older codes for the same (email, purpose) are left in place; only the
// newest one is ever accepted.
func (m *CodeManager) Issue(email string, purpose entity.Purpose) (*entity.VerificationCode, error) {
	code, err := helpers.GenCode()
	if err != nil {
		return nil, err
	}
	vc := &entity.VerificationCode{
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(m.TTL),
	}
	if err := m.Codes.Create(vc); err != nil {
		return nil, err
	}
	return vc, nil
}

// Throttled reports whether the latest code for (email, purpose) is younger
// than the resend cooldown. The read-then-write window here is a documented
// race; concurrent callers may both pass, which at worst sends an extra email.
func (m *CodeManager) Throttled(email string, purpose entity.Purpose) (bool, error) {
	latest, err := m.Codes.Latest(email, purpose)
	if err != nil {
		return false, err
	}
	if latest == nil {
		return false, nil
	}
	return time.Since(latest.CreatedAt) < m.Cooldown, nil
}

// Verify checks the submitted code against the most recently created
// unexpired code for (email, purpose). Exact string equality, no lockout.
func (m *CodeManager) Verify(email string, purpose entity.Purpose, submitted string) (bool, error) {
	latest, err := m.Codes.LatestUnexpired(email, purpose)
	if err != nil {
		return false, err
	}
	if latest == nil || latest.Code != submitted {
		return false, nil
	}
	return true, nil
}

// Discard deletes every code for (email, purpose). Called after a successful
// verification so no previously issued code in the family can be replayed.
func (m *CodeManager) Discard(email string, purpose entity.Purpose) error {
	return m.Codes.DeleteAll(email, purpose)
}

// Dispatch enqueues the code email matching the purpose. Fire-and-forget:
// the caller's request never waits on the queue and never sees its errors.
func (m *CodeManager) Dispatch(email, code string, purpose entity.Purpose) {
	if m.Pub == nil || !m.MailEnabled {
		if m.Logger != nil {
			m.Logger.WithField("email", email).Debug("mail dispatch skipped")
		}
		return
	}
	template := mailer.TemplateVerification
	if purpose == entity.PurposePasswordReset {
		template = mailer.TemplatePasswordReset
	}
	job := mailer.EmailJob{
		To:       email,
		Template: template,
		Data: tpl.ToMap(tpl.EmailData{
			AppName:   m.AppName,
			Email:     email,
			Code:      code,
			ExpiresIn: formatTTL(m.TTL),
		}),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.Pub.PublishJSON(ctx, job); err != nil && m.Logger != nil {
			m.Logger.WithError(err).WithField("email", email).Warn("failed to enqueue code email")
		}
	}()
}

func formatTTL(d time.Duration) string {
	if d >= time.Hour {
		return fmt.Sprintf("%d hours", int(d.Hours()))
	}
	return fmt.Sprintf("%d minutes", int(d.Minutes()))
}
