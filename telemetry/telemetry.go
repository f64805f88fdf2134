package telemetry

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies this library in OTEL tracer scopes.
const TracerName = "lib-mongopool"

// MaxMetricLabelLength is the maximum length for metric label values,
// preventing cardinality explosion in OTEL backends.
const MaxMetricLabelLength = 64

// OTEL semantic convention attribute keys and values used by the manager.
const (
	// AttrDBSystem is the semantic convention attribute key for the database system name.
	AttrDBSystem = "db.system"
	// AttrDBName is the semantic convention attribute key for the database name.
	AttrDBName = "db.name"
	// AttrConnectionID carries the pooled-connection identity on spans.
	AttrConnectionID = "db.connection_id"
	// DBSystemMongoDB is the semantic convention value for MongoDB.
	DBSystemMongoDB = "mongodb"
)

// HandleSpanError marks a span as failed and records the error on it.
// Nil spans and nil errors are ignored.
func HandleSpanError(span trace.Span, message string, err error) {
	if span == nil || err == nil {
		return
	}

	span.SetStatus(codes.Error, message+": "+err.Error())
	span.RecordError(err)
}

// SanitizeMetricLabel truncates a label value to MaxMetricLabelLength.
func SanitizeMetricLabel(value string) string {
	if len(value) > MaxMetricLabelLength {
		return value[:MaxMetricLabelLength]
	}

	return value
}
