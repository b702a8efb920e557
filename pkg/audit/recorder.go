package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/atlas/pkg/registry"
)

// RecorderConfig contains configuration for the audit recorder.
type RecorderConfig struct {
	// Enabled enables audit recording. When false every Record* call is
	// a no-op.
	Enabled bool

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout is the timeout for writing one record to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		Enabled:      true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder writes audit records asynchronously. Reconciliation and
// composition enqueue records through it without blocking on storage; a
// background worker drains the channel. Close drains whatever is still
// buffered before returning.
type Recorder struct {
	storage    Storage
	config     *RecorderConfig
	recordChan chan *Record
	done       chan struct{}
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// NewRecorder creates a recorder over a storage backend and starts its
// background worker.
func NewRecorder(storage Storage, config *RecorderConfig, logger *slog.Logger) *Recorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *Record, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     logger.With("component", "audit.recorder"),
	}
	r.wg.Add(1)
	go r.worker()
	return r
}

// RecordConflict records a field-level disagreement between sources. The
// chosen field is the reconciled winner; competing lists every claim the
// sources made, winner included.
func (r *Recorder) RecordConflict(service, field string, chosen registry.ReconciledField, competing []CompetingValue) {
	if !r.config.Enabled {
		return
	}
	r.enqueue(&Record{
		ID:           uuid.New().String(),
		Kind:         KindConflict,
		RecordedTime: time.Now().UTC(),
		Service:      service,
		Field:        field,
		ChosenValue:  chosen.Value,
		ChosenSource: chosen.Source,
		Competing:    competing,
	})
}

// RecordComposition records the outcome of one composition request.
func (r *Recorder) RecordComposition(service, mode string, outcome Outcome, artifactCount int, violations []ViolationRecord, bindings []BindingRecord, composeErr error) {
	if !r.config.Enabled {
		return
	}
	record := &Record{
		ID:            uuid.New().String(),
		Kind:          KindComposition,
		RecordedTime:  time.Now().UTC(),
		Service:       service,
		Mode:          mode,
		Outcome:       outcome,
		ArtifactCount: artifactCount,
		Violations:    violations,
		Bindings:      bindings,
	}
	if composeErr != nil {
		record.Error = composeErr.Error()
	}
	r.enqueue(record)
}

// enqueue hands a record to the background worker. A full buffer drops
// the record with a log line rather than blocking the caller.
func (r *Recorder) enqueue(record *Record) {
	select {
	case r.recordChan <- record:
	default:
		r.logger.Warn("audit buffer full, dropping record",
			"kind", record.Kind, "service", record.Service)
	}
}

// Close drains the channel and stops the background worker.
func (r *Recorder) Close() error {
	close(r.done)
	r.wg.Wait()
	return nil
}

// worker drains the record channel and writes to storage.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			// Drain remaining records before exit.
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeRecord(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.storage.Store(ctx, record); err != nil {
		r.logger.Error("failed to store audit record",
			"record_id", record.ID,
			"kind", record.Kind,
			"service", record.Service,
			"error", err,
		)
		return
	}
	r.logger.Debug("audit record stored",
		"record_id", record.ID,
		"kind", record.Kind,
		"service", record.Service,
	)
}
