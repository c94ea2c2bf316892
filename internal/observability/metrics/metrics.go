// Package metrics exports gate, job and engine counters through OpenTelemetry.
package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"mediafetch/internal/eventbus"
	"mediafetch/internal/task/engine"
	"mediafetch/internal/task/gate"
	"mediafetch/internal/task/runner"
	logx "mediafetch/pkg/logx"
)

const instrumentationName = "mediafetch"

type Options struct {
	// Exporter is "prometheus" (default) or "stdout".
	Exporter string
	// Interval is the stdout export period.
	Interval time.Duration
	// Writer receives stdout exports. Nil uses os.Stdout.
	Writer io.Writer
	// Engine feeds the queue gauges.
	Engine func() engine.Snapshot
}

type Provider struct {
	mp      *sdkmetric.MeterProvider
	handler http.Handler
	log     logx.Logger

	gateDecisions metric.Int64Counter
	jobs          metric.Int64Counter
	jobDuration   metric.Float64Histogram
	jobFiles      metric.Int64Counter
}

// Init builds the meter provider and installs it globally.
func Init(opts Options, log logx.Logger) (*Provider, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	p := &Provider{log: log.With(logx.String("comp", "metrics"))}

	var reader sdkmetric.Reader
	switch strings.ToLower(strings.TrimSpace(opts.Exporter)) {
	case "", "prometheus":
		reg := promclient.NewRegistry()
		exp, err := prometheus.New(prometheus.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		reader = exp
		p.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	case "stdout":
		w := opts.Writer
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		interval := opts.Interval
		if interval <= 0 {
			interval = time.Minute
		}
		reader = sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))
	default:
		return nil, fmt.Errorf("unsupported metrics exporter %q", opts.Exporter)
	}

	p.mp = sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(p.mp)

	if err := p.instruments(p.mp.Meter(instrumentationName), opts.Engine); err != nil {
		_ = p.mp.Shutdown(context.Background())
		return nil, err
	}
	return p, nil
}

func (p *Provider) instruments(m metric.Meter, snap func() engine.Snapshot) error {
	var err error
	if p.gateDecisions, err = m.Int64Counter("mediafetch.gate.decisions",
		metric.WithDescription("Gate ticks by decision")); err != nil {
		return err
	}
	if p.jobs, err = m.Int64Counter("mediafetch.jobs",
		metric.WithDescription("Finished jobs by outcome")); err != nil {
		return err
	}
	if p.jobFiles, err = m.Int64Counter("mediafetch.job.files",
		metric.WithDescription("Files persisted by completed jobs")); err != nil {
		return err
	}
	if p.jobDuration, err = m.Float64Histogram("mediafetch.job.duration",
		metric.WithDescription("Job wall time"), metric.WithUnit("s")); err != nil {
		return err
	}
	if snap == nil {
		return nil
	}

	queued, err := m.Int64ObservableGauge("mediafetch.engine.queue_length",
		metric.WithDescription("Engine queue length"))
	if err != nil {
		return err
	}
	inFlight, err := m.Int64ObservableGauge("mediafetch.engine.in_flight",
		metric.WithDescription("Engine tasks executing"))
	if err != nil {
		return err
	}
	dropped, err := m.Int64ObservableCounter("mediafetch.engine.dropped",
		metric.WithDescription("Engine tasks dropped"))
	if err != nil {
		return err
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := snap()
		o.ObserveInt64(queued, int64(s.QueueLen))
		o.ObserveInt64(inFlight, int64(s.InFlight))
		o.ObserveInt64(dropped, int64(s.Dropped))
		return nil
	}, queued, inFlight, dropped)
	return err
}

// Handler serves the Prometheus scrape endpoint. It is nil for the stdout
// exporter.
func (p *Provider) Handler() http.Handler { return p.handler }

// Record updates instruments from a bus event. Unrelated events are ignored.
func (p *Provider) Record(ctx context.Context, ev eventbus.Event) {
	switch ev.Type {
	case eventbus.GateDecision:
		if o, ok := ev.Data.(gate.Outcome); ok {
			p.gateDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", string(o.Decision))))
		}
	case eventbus.JobCompleted, eventbus.JobFailed:
		j, ok := ev.Data.(runner.JobEvent)
		if !ok {
			return
		}
		outcome := "completed"
		if ev.Type == eventbus.JobFailed {
			outcome = "failed"
		}
		attrs := metric.WithAttributes(attribute.String("outcome", outcome), attribute.String("save_strategy", j.Save))
		p.jobs.Add(ctx, 1, attrs)
		p.jobDuration.Record(ctx, j.Duration.Seconds(), attrs)
		if outcome == "completed" {
			p.jobFiles.Add(ctx, int64(j.Files))
		}
	}
}

// Run records bus events until ctx is done.
func (p *Provider) Run(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			p.Record(ctx, ev)
		}
	}
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.mp == nil {
		return nil
	}
	return p.mp.Shutdown(ctx)
}
