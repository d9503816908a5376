package notifiers

import (
	"context"
	"fmt"
)

// queueSender abstracts provider-specific queue clients.
type queueSender interface {
	Send(ctx context.Context, evt Event) error
}

// queueNotifier dispatches events to a cloud queue or topic.
type queueNotifier struct {
	id       string
	provider string
	sender   queueSender
}

func newQueueNotifier(ctx context.Context, cfg NotifierConfig, log Logger) (Notifier, error) {
	if cfg.Queue == nil {
		return nil, fmt.Errorf("notifier %q missing queue configuration", cfg.ID)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		sender queueSender
		err    error
	)
	switch cfg.Queue.Provider {
	case QueueProviderAWSSQS:
		sender, err = newAWSSQSSender(ctx, cfg.Queue.SQS, log)
	case QueueProviderAWSSNS:
		sender, err = newAWSSNSSender(ctx, cfg.Queue.SNS, log)
	case QueueProviderGCP:
		sender, err = newGCPPubSubSender(ctx, cfg.Queue.GCP, log)
	default:
		err = fmt.Errorf("queue provider %q is not supported", cfg.Queue.Provider)
	}
	if err != nil {
		return nil, err
	}

	return &queueNotifier{
		id:       cfg.ID,
		provider: cfg.Queue.Provider,
		sender:   sender,
	}, nil
}

func (q *queueNotifier) ID() string   { return q.id }
func (q *queueNotifier) Type() string { return TypeQueue }

func (q *queueNotifier) Notify(ctx context.Context, evt Event) error {
	if err := q.sender.Send(ctx, evt); err != nil {
		return fmt.Errorf("queue provider %s send failed: %w", q.provider, err)
	}
	return nil
}
