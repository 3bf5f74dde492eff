package services

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ReconcileWorker periodically refreshes sent jobs against the relay
type ReconcileWorker struct {
	reconciler *ReconcileService
	storeID    string
	interval   time.Duration
	logger     Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewReconcileWorker creates a worker. An empty storeID covers every store.
func NewReconcileWorker(reconciler *ReconcileService, storeID string, interval time.Duration, logger Logger) *ReconcileWorker {
	if logger == nil {
		logger = nopLogger{}
	}
	return &ReconcileWorker{
		reconciler: reconciler,
		storeID:    storeID,
		interval:   interval,
		logger:     logger,
	}
}

// Start launches the polling loop
func (w *ReconcileWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	go w.run(ctx)
	w.logger.LogInfo("Reconcile worker started", fmt.Sprintf("interval: %v", w.interval))
}

// Stop ends the loop and waits for an in-progress pass to finish
func (w *ReconcileWorker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	w.logger.LogInfo("Reconcile worker stopped")
}

// IsRunning reports whether the loop is active
func (w *ReconcileWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isRunning
}

func (w *ReconcileWorker) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce performs a single reconciliation pass and returns the changed count
func (w *ReconcileWorker) RunOnce(ctx context.Context) (changed int) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.LogError("Reconcile pass panicked", fmt.Errorf("%v", r))
		}
	}()

	changed, err := w.reconciler.CheckAllPending(ctx, w.storeID)
	if err != nil && ctx.Err() == nil {
		w.logger.LogError("Reconcile pass failed", err)
	}
	return changed
}
