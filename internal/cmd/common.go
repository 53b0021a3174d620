// SPDX-License-Identifier: AGPL-3.0-or-later
// mesytec-mvlc-collator - Parse Mesytec MVLC readout streams into collated events
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/USA-RedDragon/configulator"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/config"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/cratemap"
	"github.com/go-co-op/gocron/v2"
	"github.com/lmittmann/tint"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// loadConfig loads the shared Config via configulator from CLI flags and
// environment variables.
func loadConfig() (*config.Config, error) {
	c := configulator.New[config.Config]()
	cfg, err := c.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupLogger builds the tint-backed slog.Logger for cfg.LogLevel, the
// same handler selection the teacher's root.go uses.
func setupLogger(cfg *config.Config) *slog.Logger {
	var logger *slog.Logger
	switch cfg.LogLevel {
	case config.LogLevelDebug:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug}))
	case config.LogLevelInfo:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	case config.LogLevelWarn:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn}))
	case config.LogLevelError:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelError}))
	default:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	}
	return logger
}

// loadCrateMap reads crate_map.csv and detector_correspondence.csv from
// cfg.CrateMapDir and builds the immutable Map the reader walks buffers
// against.
func loadCrateMap(cfg *config.Config) (*cratemap.Map, error) {
	crateMapPath := cfg.CrateMapDir + "/crate_map.csv"
	f, err := os.Open(crateMapPath) //nolint:gosec // operator-configured path
	if err != nil {
		return nil, fmt.Errorf("failed to open crate map file: %w", err)
	}
	defer f.Close()

	b, err := cratemap.LoadCrateMapFile(f, crateMapPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse crate map file: %w", err)
	}

	correspondencePath := cfg.CrateMapDir + "/detector_correspondence.csv"
	df, err := os.Open(correspondencePath) //nolint:gosec // operator-configured path
	if err != nil {
		return nil, fmt.Errorf("failed to open detector correspondence file: %w", err)
	}
	defer df.Close()

	if err := cratemap.LoadDetectorCorrespondenceFile(b, df, correspondencePath); err != nil {
		return nil, fmt.Errorf("failed to parse detector correspondence file: %w", err)
	}

	crate, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build crate map: %w", err)
	}
	return crate, nil
}

// initTracer configures the global OpenTelemetry tracer provider to export
// to cfg.Metrics.OTLPEndpoint, returning its shutdown func. Only called
// when an endpoint is configured.
func initTracer(cfg *config.Config) func(context.Context) error {
	exporter, err := otlptrace.New(
		context.Background(),
		otlptracegrpc.NewClient(
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(cfg.Metrics.OTLPEndpoint),
		),
	)
	if err != nil {
		slog.Error("failed to build OTLP exporter", "error", err)
	}
	resources, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", "mesytec-mvlc-collator"),
			attribute.String("library.language", "go"),
		),
	)
	if err != nil {
		slog.Error("failed to build tracer resource", "error", err)
	}

	otel.SetTracerProvider(
		sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(resources),
		),
	)
	return exporter.Shutdown
}

// setupScheduler starts a gocron scheduler with a single periodic job that
// logs throughput, and returns it for the caller to stop at shutdown.
func setupScheduler(logger *slog.Logger, throughput func() uint64) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	const logInterval = 10 * time.Second
	var lastTotal uint64
	_, err = scheduler.NewJob(
		gocron.DurationJob(logInterval),
		gocron.NewTask(func() {
			total := throughput()
			rate := float64(total-lastTotal) / logInterval.Seconds()
			lastTotal = total
			logger.Info("readout throughput", "events_total", total, "events_per_second", rate)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule throughput job: %w", err)
	}

	scheduler.Start()
	return scheduler, nil
}
