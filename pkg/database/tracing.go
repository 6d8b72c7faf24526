package database

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/wodnrP/accounts-service/pkg/database"

// slowLog holds the process-wide slow query settings. Guarded by a lock
// because it is written once at startup and read on every query.
type slowLog struct {
	mu        sync.RWMutex
	threshold time.Duration
	logger    *slog.Logger
}

var slowQueries slowLog

func (s *slowLog) get() (time.Duration, *slog.Logger) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold, s.logger
}

// SetSlowQueryLogging turns on slow query warnings for every traced query.
// A query running at or past the threshold logs its operation name, SQL,
// and duration. A zero threshold turns the warnings off.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	slowQueries.mu.Lock()
	defer slowQueries.mu.Unlock()
	slowQueries.threshold = threshold
	slowQueries.logger = logger
}

// TraceQuery opens a client span around one database operation. Repository
// methods name operations after the table and action ("users.get_by_id")
// and call the returned func with the operation's error:
//
//	ctx, done := database.TraceQuery(ctx, "users.get_by_id", query)
//	row := db.QueryRow(ctx, query, id)
//	err := row.Scan(...)
//	done(err)
func TraceQuery(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		noteSlowQuery(ctx, operation, statement, time.Since(start), err)
	}
}

func noteSlowQuery(ctx context.Context, operation, statement string, elapsed time.Duration, err error) {
	threshold, logger := slowQueries.get()
	if threshold <= 0 || logger == nil || elapsed < threshold {
		return
	}

	attrs := []any{
		slog.String("operation", operation),
		slog.String("statement", statement),
		slog.Duration("duration", elapsed),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.WarnContext(ctx, "slow query", attrs...)
}
