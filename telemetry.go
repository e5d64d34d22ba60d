/*
Copyright © 2015-2022 Leo Antunes <leo@costela.net>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package lpcore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/costela/lpcore/lp"
)

const instrumentationName = "github.com/costela/lpcore"

// telemetry records a span per run with a child span per phase, plus run,
// phase duration and iteration metrics. Instruments are created on first
// use; failing instruments are logged and skipped.
type telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	logger         *slog.Logger

	once          sync.Once
	tracer        trace.Tracer
	runs          metric.Int64Counter
	phaseDuration metric.Float64Histogram
	iterations    metric.Int64Counter
}

func newTelemetry() *telemetry {
	return &telemetry{}
}

func (t *telemetry) init() {
	t.once.Do(func() {
		if t.tracerProvider == nil {
			t.tracerProvider = otel.GetTracerProvider()
		}
		if t.meterProvider == nil {
			t.meterProvider = otel.GetMeterProvider()
		}
		if t.logger == nil {
			t.logger = discardLogger()
		}
		t.tracer = t.tracerProvider.Tracer(instrumentationName)
		meter := t.meterProvider.Meter(instrumentationName)

		var initErrors []string
		var err error
		t.runs, err = meter.Int64Counter("lpcore_runs_total",
			metric.WithDescription("Number of solver runs by outcome"),
		)
		if err != nil {
			initErrors = append(initErrors, "runs: "+err.Error())
		}
		t.phaseDuration, err = meter.Float64Histogram("lpcore_phase_duration_seconds",
			metric.WithDescription("Time spent in each phase of a run"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "phase_duration: "+err.Error())
		}
		t.iterations, err = meter.Int64Counter("lpcore_iterations_total",
			metric.WithDescription("Iterations spent by each solution method"),
		)
		if err != nil {
			initErrors = append(initErrors, "iterations: "+err.Error())
		}

		if len(initErrors) > 0 {
			t.logger.Error("failed to initialize some metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

func (t *telemetry) startRun(ctx context.Context, runID string, m *lp.Model) (context.Context, trace.Span) {
	t.init()
	attrs := []attribute.KeyValue{attribute.String("lpcore.run_id", runID)}
	if m != nil {
		attrs = append(attrs,
			attribute.String("lpcore.model", m.Name),
			attribute.Int("lpcore.num_col", m.NumCol),
			attribute.Int("lpcore.num_row", m.NumRow),
		)
	}
	return t.tracer.Start(ctx, "lpcore.Run", trace.WithAttributes(attrs...))
}

func (t *telemetry) startPhase(ctx context.Context, phase string, id WorkingCopyID) (context.Context, trace.Span) {
	t.init()
	return t.tracer.Start(ctx, "lpcore."+phase, trace.WithAttributes(
		attribute.String("lpcore.phase", phase),
		attribute.String("lpcore.working_copy", id.String()),
	))
}

// endPhase records the phase duration and closes its span.
func (t *telemetry) endPhase(ctx context.Context, span trace.Span, phase string, d time.Duration, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	if t.phaseDuration != nil {
		t.phaseDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("phase", phase)))
	}
}

func (t *telemetry) endRun(ctx context.Context, span trace.Span, modelStatus lp.ModelStatus, status lp.Status, iterations lp.IterationCounts, err error) {
	span.SetAttributes(
		attribute.String("lpcore.model_status", modelStatus.String()),
		attribute.String("lpcore.call_status", status.String()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if t.runs != nil {
		t.runs.Add(ctx, 1, metric.WithAttributes(
			attribute.String("model_status", modelStatus.String()),
			attribute.String("call_status", status.String()),
		))
	}
	if t.iterations != nil {
		for method, n := range map[string]int{
			"simplex":   iterations.Simplex,
			"ipm":       iterations.IPM,
			"crossover": iterations.Crossover,
		} {
			if n > 0 {
				t.iterations.Add(ctx, int64(n), metric.WithAttributes(attribute.String("method", method)))
			}
		}
	}
}
