package notify

import (
	"context"
	"time"

	"ilpotaxi/internal/modules/support/domain/gateway"
	"ilpotaxi/pkg/metrics"
	"ilpotaxi/pkg/zlog"

	"go.uber.org/zap"
)

// Notifier wraps the operator gateway with fire-and-forget semantics: a
// notification failure never rolls back the state change that produced it.
type Notifier struct {
	gw      gateway.OperatorGateway
	retries int
	metrics *metrics.Metrics
}

func NewNotifier(gw gateway.OperatorGateway, retries int, m *metrics.Metrics) *Notifier {
	if retries <= 0 {
		retries = 3
	}
	return &Notifier{gw: gw, retries: retries, metrics: m}
}

// Fire delivers asynchronously with backoff. Callers do not observe the
// outcome; failures are logged and counted.
func (n *Notifier) Fire(notification gateway.OperatorNotification) {
	if n == nil || n.gw == nil {
		return
	}
	go func() {
		backoff := 500 * time.Millisecond
		for attempt := 0; attempt < n.retries; attempt++ {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := n.gw.Deliver(ctx, notification)
			cancel()
			if err == nil {
				if n.metrics != nil {
					n.metrics.NotifyPublishesTotal.WithLabelValues("ok").Inc()
				}
				return
			}
			zlog.Warn("operator notify failed", zap.String("type", notification.Type), zap.Error(err))
			time.Sleep(backoff)
			backoff *= 2
		}
		if n.metrics != nil {
			n.metrics.NotifyPublishesTotal.WithLabelValues("dropped").Inc()
		}
	}()
}

// Deliver forwards synchronously, bounded by ctx. Used by the relay, which
// needs the delivery outcome.
func (n *Notifier) Deliver(ctx context.Context, notification gateway.OperatorNotification) error {
	if n == nil || n.gw == nil {
		return context.Canceled
	}
	err := n.gw.Deliver(ctx, notification)
	if n.metrics != nil {
		if err == nil {
			n.metrics.NotifyPublishesTotal.WithLabelValues("ok").Inc()
		} else {
			n.metrics.NotifyPublishesTotal.WithLabelValues("failed").Inc()
		}
	}
	return err
}
