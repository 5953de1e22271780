// Package telemetry exports latency and outcome metrics for the hosted
// model calls through an OpenTelemetry meter scraped by Prometheus.
package telemetry

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

const ServiceName = "interview-practice"

// Setup builds a meter provider backed by the Prometheus exporter. The
// returned handler serves the scrape endpoint and is nil when the exporter
// could not be created.
func Setup(logger *slog.Logger) (*sdkmetric.MeterProvider, http.Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(semconv.ServiceName(ServiceName)))
	if err != nil {
		return nil, nil, err
	}

	exporter, err := prometheus.New()
	if err != nil {
		logger.Warn("failed to initialize prometheus exporter", slog.String("error", err.Error()))
		return sdkmetric.NewMeterProvider(sdkmetric.WithResource(res)), nil, nil
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	logger.Info("telemetry initialized", slog.String("exporter", "prometheus"))
	return provider, promhttp.Handler(), nil
}
