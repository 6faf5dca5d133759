package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-admin/internal/models"
	appErrors "github.com/noah-isme/timetable-admin/pkg/errors"
	"github.com/noah-isme/timetable-admin/pkg/middleware/requestid"
)

var timeNow = func() time.Time { return time.Now().UTC() }

type auditRecorder interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

type transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// directTx runs fn without a transaction. Used when no gateway is wired.
type directTx struct{}

func (directTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// auditTrail appends audit entries. Failures are logged and swallowed.
type auditTrail struct {
	repo   auditRecorder
	logger *zap.Logger
}

func (a auditTrail) record(ctx context.Context, actor models.Actor, action, resource, resourceID string, oldValue, newValue interface{}) {
	if a.repo == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     optionalString(actor.UserID),
		Action:     action,
		Resource:   resource,
		ResourceID: optionalString(resourceID),
		OldValues:  auditPayload(oldValue),
		NewValues:  auditPayload(newValue),
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	if err := a.repo.Create(ctx, entry); err != nil {
		a.logger.Warn("failed to record audit log",
			zap.String("action", action),
			zap.String("resource", resource),
			zap.String("resource_id", resourceID),
			zap.String("request_id", requestid.FromContext(ctx)),
			zap.Error(err))
	}
}

func auditPayload(v interface{}) []byte {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// logFailure logs errors that are not the caller's fault. Validation and lookup failures are
// expected outcomes and stay quiet.
func logFailure(logger *zap.Logger, operation string, err error) {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Status < 500 {
		return
	}
	logger.Error(operation+" failed", zap.Error(err))
}
