package audit

import "context"

// Logger is the logging interface accepted by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Recorder writes trail entries without ever failing the caller. A
// request that succeeded must not turn into an error because its audit
// write did not; failures are logged and dropped.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a recorder over the given repository.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, logger: noopLogger{}}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Record inserts a trail entry, logging instead of returning on error.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if err := r.repo.Insert(ctx, &entry); err != nil {
		r.logger.Warn("audit entry dropped",
			"action", entry.Action,
			"user_id", entry.UserID,
			"error", err,
		)
	}
}
