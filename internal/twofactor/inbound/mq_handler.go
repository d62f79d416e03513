package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/otpguard/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/messaging"
	"github.com/shandysiswandi/otpguard/internal/pkg/uid"
	"github.com/shandysiswandi/otpguard/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   ucConsumer
	once idempotency.Idempotency
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, msg messaging.Message) context.Context {
	if cID := msg.Header(keyOfCorrelationID); cID != "" {
		return instrument.SetCorrelationID(ctx, cID)
	}
	if cID := msg.Header(instrument.CorrelationHeader); cID != "" {
		return instrument.SetCorrelationID(ctx, cID)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

// CredentialChanged forgets every trusted device after a password change.
func (h *MQHandler) CredentialChanged(ctx context.Context, msg messaging.Message) error {
	return h.handle(ctx, msg, "CredentialChanged", h.uc.RotateForCredentialChange)
}

// AccountRemoved clears the second factor of a deleted account.
func (h *MQHandler) AccountRemoved(ctx context.Context, msg messaging.Message) error {
	return h.handle(ctx, msg, "AccountRemoved", h.uc.ResetForRemovedAccount)
}

func (h *MQHandler) handle(ctx context.Context, msg messaging.Message, name string, fn func(context.Context, int64) error) error {
	ctx = h.ensureCorrelationID(ctx, msg)

	ctx, span := h.ins.Tracer("twofactor.inbound.mq").Start(ctx, name)
	defer span.End()

	body := msg.Body()
	slog.InfoContext(ctx, "consume: "+msg.Topic(), "msg_body", string(body), "attempts", msg.Attempts())

	var payload event.AccountMessage
	if err := json.Unmarshal(body, &payload); err != nil || payload.AccountID <= 0 {
		slog.ErrorContext(ctx, "failed to parse message body of "+msg.Topic(), "msg_body", string(body), "error", err)
		return nil
	}

	run := func(ctx context.Context) error { return fn(ctx, payload.AccountID) }
	if msg.ID() == "" {
		return h.run(ctx, payload.AccountID, run)
	}

	err := h.once.Exec(ctx, msg.Topic()+":"+msg.ID(), run)
	if errors.Is(err, idempotency.ErrAlreadyCompleted) {
		slog.InfoContext(ctx, "skip duplicate message", "topic", msg.Topic(), "message_id", msg.ID())
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to consume "+msg.Topic(), "account_id", payload.AccountID, "error", err)
		return err
	}

	return nil
}

func (h *MQHandler) run(ctx context.Context, accountID int64, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to consume identity event", "account_id", accountID, "error", err)
		return err
	}
	return nil
}
