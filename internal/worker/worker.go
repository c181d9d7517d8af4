package worker

import (
	"context"
	"log"
	"time"

	"stock-ledger-service/internal/broker"
	"stock-ledger-service/internal/service"
)

// SweepWorker invokes the expiration sweeper on a fixed cadence. The
// interval and lifecycle are injected so instances can be started and
// stopped explicitly instead of living as process-wide singletons.
type SweepWorker struct {
	sweeper  *service.ExpirationSweeper
	interval time.Duration
	stop     chan struct{}
}

// NewSweepWorker creates a new sweep worker
func NewSweepWorker(sweeper *service.ExpirationSweeper, interval time.Duration) *SweepWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SweepWorker{
		sweeper:  sweeper,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled or Stop is
// called.
func (w *SweepWorker) Start(ctx context.Context) error {
	log.Printf("Starting sweep worker: interval=%s", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sweep worker context cancelled, stopping...")
			return ctx.Err()
		case <-w.stop:
			log.Println("Sweep worker stopped")
			return nil
		case <-ticker.C:
			if _, err := w.sweeper.Sweep(ctx); err != nil {
				log.Printf("Sweep run failed: %v", err)
			}
		}
	}
}

// Stop stops the worker
func (w *SweepWorker) Stop() {
	close(w.stop)
}

// StockWatchWorker consumes externally observed stock change
// notifications. Observations are logged and counted only; they never
// mutate reservation state.
type StockWatchWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewStockWatchWorker creates a new stock watch worker
func NewStockWatchWorker(consumer *broker.Consumer, stockService *service.StockService) *StockWatchWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnStockChangeObserved(stockService.HandleStockChangeObserved)

	return &StockWatchWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *StockWatchWorker) Start(ctx context.Context) error {
	log.Println("Starting stock watch worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockWatchWorker) Stop() error {
	log.Println("Stopping stock watch worker...")
	return w.consumer.Close()
}
