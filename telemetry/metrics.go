package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var (
	// ErrNilMeter indicates that a nil OTEL meter was provided.
	ErrNilMeter = errors.New("metric meter cannot be nil")
	// ErrNilCounter is returned when a counter builder has no instrument.
	ErrNilCounter = errors.New("counter instrument is nil")
)

// Metric describes an instrument the factory can create.
type Metric struct {
	Name        string
	Description string
	Unit        string
}

// Factory is a thread-safe factory for OpenTelemetry counters with lazy
// initialization. The connector records low-cardinality operational counts
// (connection failures, validation failures) through it.
type Factory struct {
	meter    metric.Meter
	counters sync.Map // string -> metric.Int64Counter
}

// NewFactory creates a metrics factory backed by the given meter.
func NewFactory(meter metric.Meter) (*Factory, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}

	return &Factory{meter: meter}, nil
}

// NewNopFactory returns a Factory backed by OpenTelemetry's no-op meter.
// It is safe for use as a fallback when a real meter is unavailable.
func NewNopFactory() *Factory {
	return &Factory{meter: noop.NewMeterProvider().Meter("nop")}
}

// Counter creates or retrieves a counter and returns a builder for fluent usage.
func (f *Factory) Counter(m Metric) (*CounterBuilder, error) {
	counter, err := f.getOrCreateCounter(m)
	if err != nil {
		return nil, err
	}

	return &CounterBuilder{
		factory: f,
		counter: counter,
		name:    m.Name,
	}, nil
}

// getOrCreateCounter lazily creates or retrieves an existing counter.
func (f *Factory) getOrCreateCounter(m Metric) (metric.Int64Counter, error) {
	if counter, exists := f.counters.Load(m.Name); exists {
		if c, ok := counter.(metric.Int64Counter); ok {
			return c, nil
		}

		return nil, fmt.Errorf("counter cache contains invalid type for %q", m.Name)
	}

	counter, err := f.meter.Int64Counter(
		m.Name,
		metric.WithDescription(m.Description),
		metric.WithUnit(m.Unit),
	)
	if err != nil {
		return nil, fmt.Errorf("creating counter %q: %w", m.Name, err)
	}

	actual, _ := f.counters.LoadOrStore(m.Name, counter)

	if c, ok := actual.(metric.Int64Counter); ok {
		return c, nil
	}

	return nil, fmt.Errorf("counter cache contains invalid type for %q", m.Name)
}

// CounterBuilder provides a fluent API for recording counter increments
// with optional labels.
type CounterBuilder struct {
	factory *Factory
	counter metric.Int64Counter
	name    string
	attrs   []attribute.KeyValue
}

// WithLabels returns a builder with string labels added as attributes.
// Label values are sanitized to MaxMetricLabelLength.
func (c *CounterBuilder) WithLabels(labels map[string]string) *CounterBuilder {
	builder := &CounterBuilder{
		factory: c.factory,
		counter: c.counter,
		name:    c.name,
		attrs:   make([]attribute.KeyValue, 0, len(c.attrs)+len(labels)),
	}

	builder.attrs = append(builder.attrs, c.attrs...)

	for key, value := range labels {
		builder.attrs = append(builder.attrs, attribute.String(key, SanitizeMetricLabel(value)))
	}

	return builder
}

// WithAttributes returns a builder with OpenTelemetry attributes added.
func (c *CounterBuilder) WithAttributes(attrs ...attribute.KeyValue) *CounterBuilder {
	builder := &CounterBuilder{
		factory: c.factory,
		counter: c.counter,
		name:    c.name,
		attrs:   make([]attribute.KeyValue, 0, len(c.attrs)+len(attrs)),
	}

	builder.attrs = append(builder.attrs, c.attrs...)
	builder.attrs = append(builder.attrs, attrs...)

	return builder
}

// Add records a counter increment.
func (c *CounterBuilder) Add(ctx context.Context, value int64) error {
	if c.counter == nil {
		return ErrNilCounter
	}

	c.counter.Add(ctx, value, metric.WithAttributes(c.attrs...))

	return nil
}

// AddOne increments the counter by one.
func (c *CounterBuilder) AddOne(ctx context.Context) error {
	return c.Add(ctx, 1)
}
