package mq

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/messaging"
	"github.com/shandysiswandi/otpguard/internal/shared/event"
	"github.com/shandysiswandi/otpguard/internal/twofactor/entity"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

type Messaging struct {
	client messaging.Publisher
	topic  string
	ins    instrument.Instrumentation
}

// NewMessaging publishes to topic, or to event.SecurityEventDestination when
// topic is empty.
func NewMessaging(client messaging.Publisher, topic string, ins instrument.Instrumentation) *Messaging {
	if topic == "" {
		topic = event.SecurityEventDestination
	}
	return &Messaging{client: client, topic: topic, ins: ins}
}

func (m *Messaging) PublishSecurityEvent(ctx context.Context, ev entity.SecurityEvent) error {
	ctx, span := m.ins.Tracer("twofactor.outbound.mq").Start(ctx, "PublishSecurityEvent")
	defer span.End()

	body, err := json.Marshal(event.SecurityEventMessage{
		AccountID:  ev.AccountID,
		Kind:       string(ev.Kind),
		OccurredAt: ev.OccurredAt.UTC(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if err := m.client.Publish(ctx, m.topic, messaging.OutgoingMessage{
		Key:  []byte(strconv.FormatInt(ev.AccountID, 10)),
		Body: body,
		Headers: map[string]string{
			keyOfCorrelationID:           cID,
			instrument.CorrelationHeader: cID,
		},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
