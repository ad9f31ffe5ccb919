package chemgo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with chemgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithDataset adds the dataset directory to the logger.
func (l *Logger) WithDataset(dir string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataset", dir),
	}
}

// WithTask adds a task name to the logger.
func (l *Logger) WithTask(task string) *Logger {
	return &Logger{
		Logger: l.Logger.With("task", task),
	}
}

// WithRows adds a row count to the logger.
func (l *Logger) WithRows(rows int) *Logger {
	return &Logger{
		Logger: l.Logger.With("rows", rows),
	}
}

// LogIngest logs a dataset ingestion.
func (l *Logger) LogIngest(ctx context.Context, dir string, rows, tasks int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ingest failed",
			"dataset", dir,
			"rows", rows,
			"tasks", tasks,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "ingest completed",
			"dataset", dir,
			"rows", rows,
			"tasks", tasks,
		)
	}
}

// LogReshard logs a reshard operation.
func (l *Logger) LogReshard(ctx context.Context, dir string, shardSize, shards int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "reshard failed",
			"dataset", dir,
			"shard_size", shardSize,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "reshard completed",
			"dataset", dir,
			"shard_size", shardSize,
			"shards", shards,
		)
	}
}

// LogSelect logs a row selection.
func (l *Logger) LogSelect(ctx context.Context, src, dst string, rows int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "select failed",
			"dataset", src,
			"target", dst,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "select completed",
			"dataset", src,
			"target", dst,
			"rows", rows,
		)
	}
}

// LogFit logs a per-task model fit.
func (l *Logger) LogFit(ctx context.Context, task string, rows int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fit failed",
			"task", task,
			"rows", rows,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "fit completed",
			"task", task,
			"rows", rows,
		)
	}
}

// LogPredict logs a prediction over a dataset.
func (l *Logger) LogPredict(ctx context.Context, tasks, samples int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "predict failed",
			"tasks", tasks,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "predict completed",
			"tasks", tasks,
			"samples", samples,
		)
	}
}
