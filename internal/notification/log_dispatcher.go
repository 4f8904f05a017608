package notification

import (
	"context"
	"log/slog"
)

// LogDispatcher stands in when no broker is configured.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, n Notification) bool {
	d.logger.InfoContext(ctx, "notification",
		"case_id", n.CaseID,
		"recipient", n.RecipientEmail,
		"counterpart", n.CounterpartName,
		"date", n.Date,
		"time", n.Time,
		"location", n.Location,
	)
	return true
}
