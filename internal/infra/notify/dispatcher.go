package notify

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/ifta-reports-go/internal/domain"
	"github.com/boddenberg/ifta-reports-go/internal/infra/observability"
	"github.com/boddenberg/ifta-reports-go/internal/infra/resilience"

	"go.uber.org/zap"
)

// Dispatcher implements port.Notifier. Each notification is sent on its own
// goroutine, bounded by a bulkhead; when every slot is busy the
// notification is dropped and counted.
type Dispatcher struct {
	sender   Sender
	bulkhead *resilience.Bulkhead
	timeout  time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher. timeout bounds each delivery,
// independent of the request that triggered it.
func NewDispatcher(sender Sender, maxConcurrency int, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		sender:   sender,
		bulkhead: resilience.NewBulkhead(maxConcurrency),
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger,
	}
}

// Notify schedules n for delivery and returns immediately.
func (d *Dispatcher) Notify(ctx context.Context, n domain.Notification) error {
	if len(n.Recipients) == 0 {
		d.logger.Debug("notify: no recipients, skipped", zap.String("template", n.Template))
		return nil
	}

	if !d.bulkhead.TryAcquire() {
		d.logger.Warn("notify: dispatcher saturated, notification dropped",
			zap.String("template", n.Template),
		)
		d.record(n.Template, "dropped")
		return nil
	}

	// Detached from the request: the response may be written before
	// delivery finishes.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.bulkhead.Release()
		defer cancel()

		if err := d.sender.Send(sendCtx, n); err != nil {
			d.logger.Error("notify: delivery failed",
				zap.String("template", n.Template),
				zap.Int("recipients", len(n.Recipients)),
				zap.Error(err),
			)
			d.record(n.Template, "failed")
			if d.metrics != nil {
				d.metrics.IncrExternalError("email")
			}
			return
		}
		d.record(n.Template, "sent")
	}()
	return nil
}

// Close waits for in-flight deliveries or until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) record(template, result string) {
	if d.metrics != nil {
		d.metrics.IncrNotification(template, result)
	}
}
