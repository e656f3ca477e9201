package obs

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ctxQueryKey struct{}

type queryState struct {
	span  trace.Span
	name  string
	start time.Time
}

// PGXTracer implements pgx.QueryTracer. Statements from internal/db carry a
// "-- name: X :kind" header; X names the span and the latency label.
type PGXTracer struct{}

// TraceQueryStart starts a span for the SQL statement.
func (PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	name, op := describeSQL(data.SQL)
	ctx, span := otel.Tracer("storefront.db").Start(ctx, "db "+name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
		attribute.String("db.query.summary", name),
		attribute.String("db.query.text", truncateSQL(data.SQL)),
	)
	return context.WithValue(ctx, ctxQueryKey{}, queryState{span: span, name: name, start: time.Now()})
}

// TraceQueryEnd ends the span; no rows is not an error.
func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	st, ok := ctx.Value(ctxQueryKey{}).(queryState)
	if !ok {
		return
	}
	if data.Err != nil && !errors.Is(data.Err, pgx.ErrNoRows) {
		st.span.RecordError(data.Err)
		st.span.SetStatus(codes.Error, "query failed")
	}
	st.span.End()
	if DBQueryDuration != nil {
		DBQueryDuration.WithLabelValues(st.name).Observe(millis(time.Since(st.start)))
	}
}

// describeSQL returns the query name from the header, or the leading keyword
// for ad-hoc statements, and the leading keyword.
func describeSQL(sql string) (name, op string) {
	op = "UNKNOWN"
	for _, line := range strings.Split(sql, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "-- name:"); ok {
			if fields := strings.Fields(rest); len(fields) > 0 && name == "" {
				name = fields[0]
			}
			continue
		}
		if strings.HasPrefix(line, "--") {
			continue
		}
		op = strings.ToUpper(strings.Fields(line)[0])
		break
	}
	if name == "" {
		name = op
	}
	return name, op
}

func truncateSQL(sql string) string {
	trimmed := strings.TrimSpace(sql)
	if len(trimmed) > 300 {
		return trimmed[:300] + "..."
	}
	return trimmed
}
