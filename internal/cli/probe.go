package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/wasm-oj/wark/internal/alloc"
	"github.com/wasm-oj/wark/internal/host"
	"github.com/wasm-oj/wark/internal/probe"
	"github.com/wasm-oj/wark/internal/record"
)

// probeCmdFlags holds flags for the probe (root) command
type probeCmdFlags struct {
	minMB             uint64
	maxMB             uint64
	allocator         string
	recordFile        string
	addressSpaceLimit string
}

var probeFlags probeCmdFlags

func init() {
	rootCmd.Flags().Uint64Var(&probeFlags.minMB, "min", probe.DefaultBounds.MinMB, "First size to try, in MB")
	rootCmd.Flags().Uint64Var(&probeFlags.maxMB, "max", probe.DefaultBounds.MaxMB, "Search bound in MB (never attempted)")
	rootCmd.Flags().StringVar(&probeFlags.allocator, "allocator", "", "Allocator to probe: os or heap (default: platform)")
	rootCmd.Flags().StringVar(&probeFlags.recordFile, "record", "", "Append every attempt as JSON lines to this file")
	rootCmd.Flags().StringVar(&probeFlags.addressSpaceLimit, "address-space-limit", "", "Lower RLIMIT_AS before probing (e.g., 2G)")
}

// probeOutput is the --json rendering of a run
type probeOutput struct {
	probe.Result
	Allocator string `json:"allocator"`
	Duration  string `json:"duration"`
}

// runProbe searches for the memory limit and prints it. Running out of
// memory is the expected way for the search to end, so it never causes a
// non-zero exit.
func runProbe(cmd *cobra.Command, args []string) error {
	logger := createLogger(cfg.LogLevel)
	out := cmd.OutOrStdout()

	bounds := probe.Bounds{MinMB: cfg.MinMB, MaxMB: cfg.MaxMB}
	if err := bounds.Validate(); err != nil {
		return err
	}

	allocator, err := alloc.New(cfg.Allocator)
	if err != nil {
		return fmt.Errorf("failed to create allocator: %w", err)
	}

	if cfg.AddressSpaceLimit != "" {
		limit, err := host.ParseMemory(cfg.AddressSpaceLimit)
		if err != nil {
			return fmt.Errorf("invalid address space limit: %w", err)
		}
		if err := host.SetAddressSpaceLimit(uint64(limit)); err != nil {
			return fmt.Errorf("failed to set address space limit: %w", err)
		}
		logger.Info("address space limit applied", slog.String("limit", host.FormatBytes(uint64(limit))))
	}

	observers := []probe.Observer{logAttempt(logger)}
	if !jsonOutput {
		observers = append(observers, printAttempt(out))
	}

	var recorder *record.Recorder
	if cfg.RecordFile != "" {
		recorder, err = record.NewRecorder(cfg.RecordFile, logger)
		if err != nil {
			return fmt.Errorf("failed to create recorder: %w", err)
		}
		defer func() {
			if closeErr := recorder.Close(); closeErr != nil {
				logger.Warn("failed to close record file", slog.String("error", closeErr.Error()))
			}
		}()
		if err := recorder.LogStart(allocator.Name(), bounds); err != nil {
			logger.Warn("failed to record start", slog.String("error", err.Error()))
		}
		observers = append(observers, recorder.Observe)
	}

	logger.Info("probing memory limit",
		slog.String("allocator", allocator.Name()),
		slog.Uint64("min_mb", bounds.MinMB),
		slog.Uint64("max_mb", bounds.MaxMB),
	)

	start := time.Now()
	res, err := probe.FindLimit(allocator, bounds, probe.Chain(observers...))
	if err != nil {
		return err
	}
	duration := time.Since(start)

	logger.Info("probe finished",
		slog.Uint64("limit_mb", res.LimitMB),
		slog.Int("attempts", res.Attempts),
		slog.Bool("failed", res.Failed),
		slog.Duration("duration", duration),
	)
	if res.Immediate {
		logger.Warn("first attempt failed, no size in range could be allocated",
			slog.Uint64("size_mb", res.FailedMB))
	}

	if recorder != nil {
		if err := recorder.LogResult(res, duration); err != nil {
			logger.Warn("failed to record result", slog.String("error", err.Error()))
		}
	}

	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(probeOutput{
			Result:    res,
			Allocator: allocator.Name(),
			Duration:  duration.String(),
		})
	}

	fmt.Fprintf(out, "Memory limit: %d MB\n", res.LimitMB)
	return nil
}

// printAttempt writes the human-readable progress line for each attempt
func printAttempt(w io.Writer) probe.Observer {
	return func(att probe.Attempt) {
		if att.OK {
			fmt.Fprintf(w, "Successfully allocated %d MB of memory. [%#x ~ %#x]\n", att.SizeMB, att.Start, att.End)
			return
		}
		fmt.Fprintf(w, "Could not allocate %d MB of memory.\n", att.SizeMB)
	}
}

func logAttempt(logger *slog.Logger) probe.Observer {
	return func(att probe.Attempt) {
		if att.OK {
			logger.Debug("allocated", slog.Uint64("size_mb", att.SizeMB), slog.Uint64("bytes", att.Bytes))
			return
		}
		errMsg := ""
		if att.Err != nil {
			errMsg = att.Err.Error()
		}
		logger.Debug("allocation refused", slog.Uint64("size_mb", att.SizeMB), slog.String("error", errMsg))
	}
}
