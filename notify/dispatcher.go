// Package notify writes lifecycle notifications to the recipients' mailboxes.
// Delivery is best-effort: failures are logged and counted, never returned.
package notify

import (
	"context"
	"time"

	"civicsync/models"
	"civicsync/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var enqueueFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "civicsync",
	Name:      "notification_enqueue_failures_total",
	Help:      "Notifications that could not be written.",
})

type Dispatcher struct {
	store   repository.NotificationStore
	log     *zap.Logger
	timeout time.Duration
}

func NewDispatcher(store repository.NotificationStore, log *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, log: log, timeout: 5 * time.Second}
}

func (d *Dispatcher) Enqueue(ctx context.Context, n *models.Notification) {
	// Detach from the request so a client hang-up does not drop the write.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	n.Read = false
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if err := d.store.Insert(ctx, n); err != nil {
		enqueueFailures.Inc()
		d.log.Error("notification enqueue failed",
			zap.String("user", n.UserID.Hex()),
			zap.String("type", string(n.Type)),
			zap.Error(err))
		return
	}
	d.log.Debug("notification enqueued",
		zap.String("user", n.UserID.Hex()),
		zap.String("type", string(n.Type)))
}
