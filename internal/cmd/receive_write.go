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
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/cratemap"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/event"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/reader"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/metrics"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mfm"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/rollfile"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/transport"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/ztrue/shutdown"
)

// bufferReadSize is the chunk size used to read raw buffers back out of a
// replay listfile; MVLC buffers in practice are far smaller than this, so
// one read is expected to contain many buffers end to end.
const bufferReadSize = 1 << 20

// newReceiveWriteCommand builds the "receive-write" subcommand: read raw
// buffers from a message-bus source (or, in replay mode, a captured
// listfile) and write the decoded events to rolling files on disk.
func newReceiveWriteCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "receive-write",
		Short:             "Decode MVLC buffers and write the resulting events to rolling output files",
		RunE:              runReceiveWrite,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
}

func runReceiveWrite(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)
	slog.SetDefault(logger)

	instanceID := uuid.New().String()
	logger.Info("starting receive-write", "instance_id", instanceID, "run_number", cfg.Run.Number)

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

	out := rollfile.New(cfg.Run.OutputDir, cfg.Run.Number, cfg.Run.MaxFileSizeMB)
	defer out.Close()

	var r *reader.Reader
	r = reader.New(crate, func(ev *event.Event, cm *cratemap.Map) (reader.SinkResult, error) {
		recordModuleCounts(ev, cm, m)
		frame, err := mfm.Encode(ev)
		if err != nil {
			return reader.Accepted, fmt.Errorf("failed to encode event: %w", err)
		}
		if _, err := out.Write(frame); err != nil {
			return reader.Accepted, fmt.Errorf("failed to write event: %w", err)
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
	if cfg.Replay.File != "" {
		go func() {
			done <- replayFile(cfg.Replay.File, r, logger)
		}()
	} else {
		src, err := transport.NewRedisSource(ctx, fmt.Sprintf("%s:%d", cfg.Source.Host, cfg.Source.Port), "", "mvlc.raw")
		if err != nil {
			return fmt.Errorf("failed to connect source: %w", err)
		}
		defer src.Close()
		go func() {
			done <- pumpSource(runCtx, src, r, logger)
		}()
	}

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

// replayFile reads a captured raw buffer file in bufferReadSize chunks and
// feeds each chunk to r.ReadBuffer, the supplemented offline-replay path
// (SPEC_FULL.md §4). It stops at end of file rather than blocking for more
// data, unlike the live message-bus source path.
func replayFile(path string, r *reader.Reader, logger *slog.Logger) error {
	f, err := os.Open(path) //nolint:gosec // operator-configured replay path
	if err != nil {
		return fmt.Errorf("failed to open replay file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, bufferReadSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			aligned := n - (n % 4)
			if _, perr := r.ReadBuffer(buf[:aligned]); perr != nil {
				logger.Error("failed to parse replayed buffer, resetting reader state", "error", perr)
				r.Reset()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info("replay complete", "events_total", r.TotalEventsParsed())
				return nil
			}
			return fmt.Errorf("replay read failed: %w", err)
		}
	}
}
