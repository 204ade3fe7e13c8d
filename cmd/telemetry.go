//go:build otel

package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/binlogqa/internal/config"
	"github.com/nextlevelbuilder/binlogqa/internal/tracing/otelexport"
)

const telemetryCompiled = true

// initTelemetry installs the OTLP exporter when telemetry is enabled and
// returns a flush function. Only compiled with -tags otel.
func initTelemetry(ctx context.Context, cfg *config.Config) func() {
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint == "" {
		slog.Debug("OTel export available but not enabled (set telemetry.enabled + telemetry.endpoint)")
		return func() {}
	}

	exp, err := otelexport.New(ctx, otelexport.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		Protocol:    cfg.Telemetry.Protocol,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.Telemetry.ServiceName,
		Headers:     cfg.Telemetry.Headers,
		Version:     Version,
	})
	if err != nil {
		slog.Warn("failed to create OTel exporter", "error", err)
		return func() {}
	}

	var done bool
	return func() {
		if done {
			return
		}
		done = true
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := exp.Shutdown(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}
}
