package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Metric names recorded by the launcher.
const (
	MetricStages      = "launcher.stages_total"
	MetricStageErrors = "launcher.stage_errors_total"
	MetricStageTime   = "launcher.stage.duration"
	MetricMounts      = "launcher.mounts_total"
)

// Instruments publishes metrics and spans for pipeline stages.
type Instruments struct {
	meterEnabled bool

	counterStages metric.Int64Counter
	counterErrors metric.Int64Counter
	counterMounts metric.Int64Counter
	histDuration  metric.Int64Histogram

	tracer trace.Tracer
}

// StageHandle tracks one running stage.
type StageHandle struct {
	ctx   context.Context
	span  trace.Span
	start time.Time
	attrs []attribute.KeyValue
}

func newInstruments(p *Provider) *Instruments {
	inst := &Instruments{meterEnabled: p.meterProvider != nil}
	if p.meterProvider != nil {
		inst.counterStages, _ = p.meter.Int64Counter(
			MetricStages,
			metric.WithDescription("Number of launcher pipeline stages run"),
		)
		inst.counterErrors, _ = p.meter.Int64Counter(
			MetricStageErrors,
			metric.WithDescription("Number of launcher pipeline stages that failed"),
		)
		inst.counterMounts, _ = p.meter.Int64Counter(
			MetricMounts,
			metric.WithDescription("Number of bind mounts handed to the container"),
		)
		inst.histDuration, _ = p.meter.Int64Histogram(
			MetricStageTime,
			metric.WithDescription("Duration of launcher pipeline stages in milliseconds"),
			metric.WithUnit("ms"),
		)
	}
	if p.tracerProvider != nil {
		inst.tracer = p.tracer
	}
	return inst
}

// Start opens a span named "launcher.<stage>" when tracing is enabled and
// returns the derived context.
func (i *Instruments) Start(parent context.Context, stage string, attrs ...attribute.KeyValue) (*StageHandle, context.Context) {
	if i == nil {
		return nil, parent
	}
	h := &StageHandle{
		ctx:   parent,
		start: time.Now(),
		attrs: append([]attribute.KeyValue{attribute.String("stage", stage)}, attrs...),
	}
	if i.tracer != nil {
		ctx, span := i.tracer.Start(parent, "launcher."+stage, trace.WithAttributes(h.attrs...))
		h.ctx = ctx
		h.span = span
	}
	return h, h.ctx
}

// Finish records the stage outcome and ends its span. A non-nil err marks
// the stage failed.
func (i *Instruments) Finish(h *StageHandle, err error, attrs ...attribute.KeyValue) {
	if i == nil || h == nil {
		return
	}
	all := append(append([]attribute.KeyValue{}, h.attrs...), attrs...)
	if err != nil {
		all = append(all, attribute.String("outcome", "error"))
	} else {
		all = append(all, attribute.String("outcome", "ok"))
	}

	if i.meterEnabled {
		i.counterStages.Add(h.ctx, 1, metric.WithAttributes(all...))
		if err != nil {
			i.counterErrors.Add(h.ctx, 1, metric.WithAttributes(all...))
		}
		i.histDuration.Record(h.ctx, time.Since(h.start).Milliseconds(), metric.WithAttributes(all...))
	}

	if h.span != nil {
		h.span.SetAttributes(all...)
		if err != nil {
			h.span.RecordError(err)
			h.span.SetStatus(codes.Error, err.Error())
		}
		h.span.End()
	}
}

// RecordMounts counts bind mounts, split by access mode.
func (i *Instruments) RecordMounts(ctx context.Context, readOnly, readWrite int) {
	if i == nil || !i.meterEnabled {
		return
	}
	if readOnly > 0 {
		i.counterMounts.Add(ctx, int64(readOnly), metric.WithAttributes(attribute.String("mode", "ro")))
	}
	if readWrite > 0 {
		i.counterMounts.Add(ctx, int64(readWrite), metric.WithAttributes(attribute.String("mode", "rw")))
	}
}
