package inbound

import (
	"context"
	"log/slog"
	"slices"

	"github.com/shandysiswandi/otpguard/internal/pkg/config"
	"github.com/shandysiswandi/otpguard/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpguard/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/messaging"
	"github.com/shandysiswandi/otpguard/internal/pkg/uid"
	"github.com/shandysiswandi/otpguard/internal/shared/event"
)

type ucConsumer interface {
	RotateForCredentialChange(ctx context.Context, accountID int64) error
	ResetForRemovedAccount(ctx context.Context, accountID int64) error
}

// RegisterMQConsumer starts the identity-event consumers on routine. They stop
// when ctx is done. A consumer runs when modules.twofactor.consumer_names is
// empty or lists it.
func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Consumer,
	once idempotency.Idempotency,
	uuid uid.StringID,
	uc ucConsumer,
	ins instrument.Instrumentation,
) {
	h := &MQHandler{uc: uc, once: once, uuid: uuid, ins: ins}

	enabled := cfg.GetArray("modules.twofactor.consumer_names")

	consumers := []struct {
		name    string
		topic   string
		group   string
		handler messaging.Handler
	}{
		{
			name:    event.CredentialChangedConsumerTwoFactor,
			topic:   orDefault(cfg.GetString("modules.twofactor.topic.credential_changed"), event.CredentialChangedDestination),
			group:   orDefault(cfg.GetString("modules.twofactor.consumer_group"), event.CredentialChangedConsumerTwoFactor),
			handler: h.CredentialChanged,
		},
		{
			name:    event.AccountRemovedConsumerTwoFactor,
			topic:   orDefault(cfg.GetString("modules.twofactor.topic.account_removed"), event.AccountRemovedDestination),
			group:   orDefault(cfg.GetString("modules.twofactor.consumer_group"), event.AccountRemovedConsumerTwoFactor),
			handler: h.AccountRemoved,
		},
	}

	for _, consumer := range consumers {
		if len(enabled) > 0 && !slices.Contains(enabled, consumer.name) {
			continue
		}

		// tasks on routine are detached from cancellation, so Consume gets ctx
		routine.Go(ctx, func(context.Context) error {
			slog.InfoContext(ctx, "Running job for handling consumer", "consumer", consumer.name, "topic", consumer.topic)
			return messenger.Consume(ctx,
				consumer.topic,
				consumer.handler,
				messaging.WithGroup(consumer.group),
				messaging.WithConcurrency(4),
			)
		})
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
