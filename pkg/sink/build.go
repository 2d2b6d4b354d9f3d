package sink

import (
	"context"
	"fmt"
	"strings"

	"igleads/pkg/config"
	"igleads/pkg/logger"
	"igleads/pkg/storage"
)

// Stack is the sink tree built from configuration together with handles
// on the parts callers need after the run
type Stack struct {
	Sink   Sink
	Memory *MemorySink
	SQLite *SQLiteSink
	Async  *AsyncSink
	Files  []string
}

// FileName returns the per-run export name for a format
func FileName(runID, ext string) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("leads-%s.%s", short, ext)
}

// Build opens one backend per configured format, wraps each in a bounded
// retry, fans them out and, when a queue size is set, puts an async queue in
// front. A memory sink always collects the run's leads for the end-of-run
// export and report.
func Build(ctx context.Context, cfg config.SinkConfig, runID string, store *storage.Manager, log logger.Logger) (*Stack, error) {
	stack := &Stack{Memory: NewMemorySink()}
	sinks := []Sink{stack.Memory}

	closeAll := func() {
		for _, s := range sinks {
			s.Close()
		}
	}

	for _, format := range cfg.Formats {
		var backend Sink
		switch strings.ToLower(strings.TrimSpace(format)) {
		case config.FormatCSV:
			name := FileName(runID, "csv")
			s, err := NewCSVSink(store, name)
			if err != nil {
				closeAll()
				return nil, err
			}
			backend = s
			stack.Files = append(stack.Files, store.Path(name))
		case config.FormatJSONL:
			name := FileName(runID, "jsonl")
			s, err := NewJSONLSink(store, name)
			if err != nil {
				closeAll()
				return nil, err
			}
			backend = s
			stack.Files = append(stack.Files, store.Path(name))
		case config.FormatSQLite:
			s, err := NewSQLiteSink(ctx, store.Path(cfg.SQLitePath), runID)
			if err != nil {
				closeAll()
				return nil, err
			}
			backend = s
			stack.SQLite = s
			stack.Files = append(stack.Files, s.Path())
		default:
			closeAll()
			return nil, fmt.Errorf("unsupported sink format %q", format)
		}
		sinks = append(sinks, NewRetryingSink(backend, cfg.RetryAttempts, cfg.WriteTimeout, log))
	}

	stack.Sink = NewMultiSink(sinks...)
	if cfg.QueueSize > 0 {
		stack.Async = NewAsyncSink(stack.Sink, cfg.QueueSize, 1, cfg.WriteTimeout, log)
		stack.Sink = stack.Async
	}
	return stack, nil
}
