package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/config"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider owns the OpenTelemetry meter and instruments. All Record
// methods are safe on a nil or disabled provider.
type MetricsProvider struct {
	config        config.MetricsConfig
	environment   string
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	enabled       bool
	mu            sync.RWMutex

	eventsDispatched  metric.Int64Counter
	handlerFailures   metric.Int64Counter
	commandsInvoked   metric.Int64Counter
	xpAwarded         metric.Int64Counter
	workerRuns        metric.Int64Counter
	workerRunDuration metric.Float64Histogram
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg config.MetricsConfig, environment string) *MetricsProvider {
	return &MetricsProvider{config: cfg, environment: environment}
}

// Initialize sets up the exporter selected in config
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.enabled {
		return nil
	}

	var (
		exporter sdkmetric.Exporter
		err      error
	)
	switch mp.config.Exporter {
	case "", "none":
		log.Info("Metrics export disabled")
		return nil

	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.Infof("Using OTLP metric exporter: %s", mp.config.OTLPEndpoint)

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.Exporter)
	}

	return mp.install(exporter)
}

// InitializeWithReader is used by tests to collect metrics in memory
func (mp *MetricsProvider) InitializeWithReader(reader sdkmetric.Reader) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	mp.meter = mp.meterProvider.Meter(MetricPrefix)
	if err := mp.createInstruments(); err != nil {
		return err
	}
	mp.enabled = true
	return nil
}

func (mp *MetricsProvider) install(exporter sdkmetric.Exporter) error {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.ServiceName),
			attribute.String("environment", mp.environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(30*time.Second))),
	)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter(MetricPrefix)

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.enabled = true
	log.Info("Metrics provider initialized successfully")
	return nil
}

func (mp *MetricsProvider) createInstruments() error {
	var err error

	if mp.eventsDispatched, err = mp.meter.Int64Counter(EventsDispatchedTotal,
		metric.WithDescription("Gateway events handed to the dispatcher"), metric.WithUnit("1")); err != nil {
		return fmt.Errorf("failed to create events counter: %w", err)
	}
	if mp.handlerFailures, err = mp.meter.Int64Counter(HandlerFailuresTotal,
		metric.WithDescription("Event handlers that returned an error or panicked"), metric.WithUnit("1")); err != nil {
		return fmt.Errorf("failed to create handler failure counter: %w", err)
	}
	if mp.commandsInvoked, err = mp.meter.Int64Counter(CommandsInvokedTotal,
		metric.WithDescription("Commands resolved, by terminal outcome"), metric.WithUnit("1")); err != nil {
		return fmt.Errorf("failed to create commands counter: %w", err)
	}
	if mp.xpAwarded, err = mp.meter.Int64Counter(XPAwardedTotal,
		metric.WithDescription("Experience points awarded"), metric.WithUnit("1")); err != nil {
		return fmt.Errorf("failed to create xp counter: %w", err)
	}
	if mp.workerRuns, err = mp.meter.Int64Counter(WorkerRunsTotal,
		metric.WithDescription("Periodic worker body executions"), metric.WithUnit("1")); err != nil {
		return fmt.Errorf("failed to create worker runs counter: %w", err)
	}
	if mp.workerRunDuration, err = mp.meter.Float64Histogram(WorkerRunDuration,
		metric.WithDescription("Duration of periodic worker bodies in seconds"), metric.WithUnit("s")); err != nil {
		return fmt.Errorf("failed to create worker duration histogram: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the exporter
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	if mp == nil {
		return nil
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.enabled
}

func (mp *MetricsProvider) RecordEventDispatched(kind string) {
	if !mp.isEnabled() {
		return
	}
	mp.eventsDispatched.Add(context.Background(), 1, metric.WithAttributes(attribute.String(LabelKind, kind)))
}

func (mp *MetricsProvider) RecordHandlerFailure(plugin string) {
	if !mp.isEnabled() {
		return
	}
	mp.handlerFailures.Add(context.Background(), 1, metric.WithAttributes(attribute.String(LabelPlugin, plugin)))
}

func (mp *MetricsProvider) RecordCommand(command, outcome string) {
	if !mp.isEnabled() {
		return
	}
	mp.commandsInvoked.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String(LabelCommand, command),
		attribute.String(LabelOutcome, outcome),
	))
}

func (mp *MetricsProvider) RecordXPAwarded(amount int64) {
	if !mp.isEnabled() {
		return
	}
	mp.xpAwarded.Add(context.Background(), amount)
}

// MeasureWorkerRun returns a function that records the run once its result is known.
//
//	done := mp.MeasureWorkerRun("reminders")
//	...
//	done(observability.ResultOK)
func (mp *MetricsProvider) MeasureWorkerRun(name string) func(result string) {
	start := time.Now()
	return func(result string) {
		if !mp.isEnabled() {
			return
		}
		attrs := metric.WithAttributes(
			attribute.String(LabelWorker, name),
			attribute.String(LabelResult, result),
		)
		mp.workerRuns.Add(context.Background(), 1, attrs)
		mp.workerRunDuration.Record(context.Background(), time.Since(start).Seconds(), attrs)
	}
}
