package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"stockwatch/models"
	"stockwatch/router"
)

// LogNotifier is the headless terminal consumer: it writes each routed event
// to the structured log, subject-line first like a notification send.
type LogNotifier struct {
	log *zap.SugaredLogger
}

func NewLogNotifier(log *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, env router.Envelope) error {
	var header models.EventHeader
	if err := json.Unmarshal(env.Event.Detail, &header); err != nil {
		return fmt.Errorf("decode event detail: %w", err)
	}

	subject := env.Event.DetailType
	switch {
	case header.IsPriceDeltaEvent():
		var evt models.PriceDeltaEvent
		if err := evt.UnmarshalJSON(env.Event.Detail); err != nil {
			return fmt.Errorf("decode price delta event: %w", err)
		}
		subject = fmt.Sprintf("PriceDeltaEvent: %s", evt.Symbol)
	case header.IsPriceEvent():
		var evt models.PriceEvent
		if err := evt.UnmarshalJSON(env.Event.Detail); err != nil {
			return fmt.Errorf("decode price event: %w", err)
		}
		subject = fmt.Sprintf("PriceEvent: %s", evt.Symbol)
	}

	n.log.Infow("Notification dispatched",
		"subject", subject,
		"rule", env.Rule,
		"envelope_id", env.ID,
		"detail", string(env.Event.Detail),
	)

	return nil
}

// Multi fans one notification out to several notifiers. The first failure
// wins so the envelope is redelivered as a whole.
type Multi []router.Notifier

func (m Multi) Notify(ctx context.Context, env router.Envelope) error {
	for _, n := range m {
		if err := n.Notify(ctx, env); err != nil {
			return err
		}
	}
	return nil
}
