// Package telemetry sets up OpenTelemetry tracing to MLflow, Databricks or
// any OTLP collector.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/dotcommander/courtside/internal/config"
	"github.com/dotcommander/courtside/internal/logging"
)

// Targets.
const (
	TargetLocal      = "local"
	TargetDatabricks = "databricks"
	TargetOTLP       = "otlp"
)

// Protocols.
const (
	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"
)

// DefaultExperiment names the MLflow experiment when none is configured.
const DefaultExperiment = "MCP_Experiments"

const (
	localEndpoint    = "http://localhost:5000/v1/traces"
	databricksPath   = "/api/2.0/otel/v1/traces"
	experimentAttr   = "mlflow.experiment.name"
	experimentHeader = "x-mlflow-experiment-name"
	serviceName      = "courtside"
)

// Endpoint is where spans are sent.
type Endpoint struct {
	URL      string
	Protocol string
	Headers  map[string]string
}

// ResolveEndpoint picks the exporter endpoint for s.
func ResolveEndpoint(s config.TracingSettings) (Endpoint, error) {
	ep := Endpoint{Protocol: strings.ToLower(s.Protocol), Headers: map[string]string{}}
	if ep.Protocol == "" {
		ep.Protocol = ProtocolHTTP
	}
	if ep.Protocol != ProtocolHTTP && ep.Protocol != ProtocolGRPC {
		return ep, fmt.Errorf("unknown tracing protocol %q, want http or grpc", s.Protocol)
	}

	switch strings.ToLower(s.Target) {
	case "", TargetLocal:
		ep.URL = firstNonEmpty(s.Endpoint, localEndpoint)
	case TargetDatabricks:
		if s.DatabricksHost == "" {
			return ep, errors.New("tracing target databricks needs databricks-host")
		}
		host := strings.TrimRight(s.DatabricksHost, "/")
		if !strings.Contains(host, "://") {
			host = "https://" + host
		}
		ep.URL = firstNonEmpty(s.Endpoint, host+databricksPath)
		if s.DatabricksToken != "" {
			ep.Headers["Authorization"] = "Bearer " + s.DatabricksToken
		}
	case TargetOTLP:
		if s.Endpoint == "" {
			return ep, errors.New("tracing target otlp needs an endpoint")
		}
		ep.URL = s.Endpoint
	default:
		return ep, fmt.Errorf("unknown tracing target %q, want local, databricks or otlp", s.Target)
	}

	if _, err := url.Parse(ep.URL); err != nil {
		return ep, fmt.Errorf("invalid tracing endpoint %q: %w", ep.URL, err)
	}
	ep.Headers[experimentHeader] = experiment(s)
	for k, v := range s.Headers {
		ep.Headers[k] = v
	}
	return ep, nil
}

// Provider owns the tracer provider. The zero value is a disabled provider.
type Provider struct {
	tp       *sdktrace.TracerProvider
	endpoint Endpoint
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool { return p != nil && p.tp != nil }

// Endpoint returns the exporter endpoint.
func (p *Provider) Endpoint() Endpoint { return p.endpoint }

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Start installs the global tracer provider. When tracing is disabled the
// global no-op provider stays in place and a disabled Provider is returned.
func Start(ctx context.Context, s config.TracingSettings, version string, log *logging.Logger) (*Provider, error) {
	log = logging.OrNop(log)
	if !s.Enabled {
		return &Provider{}, nil
	}
	ep, err := ResolveEndpoint(s)
	if err != nil {
		return nil, err
	}

	var exporter sdktrace.SpanExporter
	switch ep.Protocol {
	case ProtocolGRPC:
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpointURL(ep.URL),
			otlptracegrpc.WithHeaders(ep.Headers))
	default:
		exporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(ep.URL),
			otlptracehttp.WithHeaders(ep.Headers))
	}
	if err != nil {
		return nil, fmt.Errorf("create %s trace exporter: %w", ep.Protocol, err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
			attribute.String(experimentAttr, experiment(s)),
		),
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	log.Infow("tracing enabled", "target", s.Target, "endpoint", ep.URL, "protocol", ep.Protocol, "experiment", experiment(s))
	return &Provider{tp: tp, endpoint: ep}, nil
}

func experiment(s config.TracingSettings) string {
	name := firstNonEmpty(s.Experiment, DefaultExperiment)
	if strings.EqualFold(s.Target, TargetDatabricks) && !strings.HasPrefix(name, "/") {
		return "/" + name
	}
	return name
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
