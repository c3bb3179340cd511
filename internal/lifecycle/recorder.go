// internal/lifecycle/recorder.go
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/altuslabsxyz/rentflow/internal/history"
	"github.com/altuslabsxyz/rentflow/internal/metrics"
)

// persistTimeout bounds each best-effort history write.
const persistTimeout = 10 * time.Second

// HistoryWriter is the history store API the recorder forwards to.
type HistoryWriter interface {
	Create(ctx context.Context, r *history.Record) (string, error)
	Update(ctx context.Context, id string, p *history.Patch) error
}

// StoreWriter adapts a history.Store into a HistoryWriter, for running without the HTTP API.
type StoreWriter struct {
	Store history.Store
}

// Create implements HistoryWriter.
func (w StoreWriter) Create(ctx context.Context, r *history.Record) (string, error) {
	if err := w.Store.Create(ctx, r); err != nil {
		return "", err
	}
	return r.ID, nil
}

// Update implements HistoryWriter.
func (w StoreWriter) Update(ctx context.Context, id string, p *history.Patch) error {
	_, err := w.Store.Update(ctx, id, p)
	return err
}

// Recorder persists lifecycle transitions.
type Recorder struct {
	writer  HistoryWriter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRecorder creates a recorder. m may be nil.
func NewRecorder(writer HistoryWriter, m *metrics.Metrics) *Recorder {
	return &Recorder{
		writer:  writer,
		metrics: m,
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger.
func (r *Recorder) SetLogger(logger *slog.Logger) {
	r.logger = logger
}

// Create stores a new record and returns its id.
func (r *Recorder) Create(ctx context.Context, rec *history.Record) (string, error) {
	return r.writer.Create(ctx, rec)
}

// Update applies a partial update.
func (r *Recorder) Update(ctx context.Context, id string, p *history.Patch) error {
	return r.writer.Update(ctx, id, p)
}

// TryCreate is Create inside the best-effort boundary. It returns "" on failure.
func (r *Recorder) TryCreate(ctx context.Context, rec *history.Record) string {
	var id string
	r.bestEffort(ctx, "create", "", func(ctx context.Context) error {
		var err error
		id, err = r.writer.Create(ctx, rec)
		return err
	})
	return id
}

// TryUpdate is Update inside the best-effort boundary. An empty id is skipped with a warning.
func (r *Recorder) TryUpdate(ctx context.Context, id string, p *history.Patch) {
	if id == "" {
		r.logger.Warn("skipping history update, record was never created")
		r.metrics.PersistenceFailure("update")
		return
	}
	r.bestEffort(ctx, "update", id, func(ctx context.Context) error {
		return r.writer.Update(ctx, id, p)
	})
}

// bestEffort runs fn detached from the caller's cancellation and always returns.
// Failures and panics become logged PersistenceErrors.
func (r *Recorder) bestEffort(ctx context.Context, op, id string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return fn(ctx)
	}()
	if err == nil {
		return
	}

	perr := &PersistenceError{Operation: op, RecordID: id, Err: err}
	r.logger.Error("history write failed", "operation", op, "id", id, "error", perr)
	r.metrics.PersistenceFailure(op)
}
