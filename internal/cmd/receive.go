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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/cratemap"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/event"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/reader"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/metrics"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mfm"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/transport"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/ztrue/shutdown"
	"golang.org/x/sync/errgroup"
)

// newReceiveCommand builds the "receive" subcommand: read raw buffers from
// a message-bus source, decode them, and republish the resulting events to
// another message-bus channel.
func newReceiveCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "receive",
		Short:             "Decode MVLC buffers from the message bus and republish the resulting events",
		RunE:              runReceive,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
}

func runReceive(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)
	slog.SetDefault(logger)

	instanceID := uuid.New().String()
	logger.Info("starting receive", "instance_id", instanceID)

	crate, err := loadCrateMap(cfg)
	if err != nil {
		return err
	}
	crate.Describe(os.Stdout)

	m := metrics.NewMetrics()
	go func() {
		if err := metrics.ServeMetrics(cfg.Metrics.Enabled, cfg.Metrics.Bind, cfg.Metrics.Port); err != nil {
			logger.Error("metrics server exited", "error", err)
		}
	}()

	var cleanupTracer func(context.Context) error
	if cfg.Metrics.OTLPEndpoint != "" {
		cleanupTracer = initTracer(cfg)
	}

	src, err := transport.NewRedisSource(ctx, fmt.Sprintf("%s:%d", cfg.Source.Host, cfg.Source.Port), "", "mvlc.raw")
	if err != nil {
		return fmt.Errorf("failed to connect source: %w", err)
	}
	defer src.Close()

	sink, err := transport.NewRedisSink(ctx, fmt.Sprintf("%s:%d", cfg.Source.Host, cfg.Publish.Port), "", "mvlc.events")
	if err != nil {
		return fmt.Errorf("failed to connect sink: %w", err)
	}
	defer sink.Close()

	var r *reader.Reader
	r = reader.New(crate, func(ev *event.Event, cm *cratemap.Map) (reader.SinkResult, error) {
		recordModuleCounts(ev, cm, m)
		frame, err := mfm.Encode(ev)
		if err != nil {
			return reader.Accepted, fmt.Errorf("failed to encode event: %w", err)
		}
		if err := sink.Publish(ctx, frame); err != nil {
			return reader.Accepted, fmt.Errorf("failed to publish event: %w", err)
		}
		return reader.Accepted, nil
	}, reader.WithLogger(logger), reader.WithObserver(m))

	scheduler, err := setupScheduler(logger, r.TotalEventsParsed)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- pumpSource(runCtx, src, r, logger)
	}()

	stop := func(sig os.Signal) {
		logger.Warn("shutting down due to signal", "signal", sig)
		shutdownReceive(runCtx, cancel, scheduler, cleanupTracer, logger)
	}
	shutdown.AddWithParam(stop)
	go shutdown.Listen(syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case <-runCtx.Done():
		return nil
	}
}

// pumpSource reads raw buffers from src until ctx is cancelled, feeding
// each one to r.ReadBuffer. A parse error is logged and the reader is
// reset so a malformed buffer does not wedge the stream.
func pumpSource(ctx context.Context, src *transport.RedisSource, r *reader.Reader, logger *slog.Logger) error {
	for {
		buf, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("source read failed: %w", err)
		}
		if _, err := r.ReadBuffer(buf); err != nil {
			logger.Error("failed to parse buffer, resetting reader state", "error", err)
			r.Reset()
		}
	}
}

// shutdownReceive stops background collaborators with a bounded timeout,
// mirroring the teacher's errgroup-based shutdown sequencing in
// internal/cmd/root.go.
func shutdownReceive(ctx context.Context, cancel context.CancelFunc, scheduler interface {
	StopJobs() error
	Shutdown() error
}, cleanupTracer func(context.Context) error, logger *slog.Logger) {
	cancel()
	g := new(errgroup.Group)

	g.Go(func() error {
		if err := scheduler.StopJobs(); err != nil {
			return fmt.Errorf("failed to stop scheduler jobs: %w", err)
		}
		if err := scheduler.Shutdown(); err != nil {
			return fmt.Errorf("failed to shut down scheduler: %w", err)
		}
		return nil
	})

	if cleanupTracer != nil {
		g.Go(func() error {
			const timeout = 5 * time.Second
			tctx, tcancel := context.WithTimeout(ctx, timeout)
			defer tcancel()
			if err := cleanupTracer(tctx); err != nil {
				return fmt.Errorf("failed to shut down tracer: %w", err)
			}
			return nil
		})
	}

	c := make(chan error, 1)
	go func() { c <- g.Wait() }()

	const timeout = 10 * time.Second
	select {
	case err := <-c:
		if err != nil {
			logger.Error("shutdown completed with errors", "error", err)
		} else {
			logger.Info("shutdown complete")
		}
	case <-time.After(timeout):
		logger.Error("shutdown timed out")
	}
	os.Exit(0)
}
