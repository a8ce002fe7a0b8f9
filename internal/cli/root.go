package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wasm-oj/wark/internal/config"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"

	// Global flags
	configFile string
	verbose    bool
	jsonOutput bool

	// Global config
	cfg *config.Config
)

// rootCmd runs the probe when invoked without a subcommand
var rootCmd = &cobra.Command{
	Use:   "memlimit",
	Short: "memlimit - find the largest contiguous allocation this host allows",
	Long: `memlimit allocates and immediately releases blocks of 0, 1, 2, ... megabytes
until the host refuses a request, then reports the last size that succeeded.
With no flags it searches up to 4096 MB.`,
	Version:       Version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	RunE:          runProbe,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load configuration
		var err error
		cfg, err = config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Override config with flags if provided
		flags := cmd.Flags()
		if flags.Changed("min") {
			cfg.MinMB = probeFlags.minMB
		}
		if flags.Changed("max") {
			cfg.MaxMB = probeFlags.maxMB
		}
		if probeFlags.allocator != "" {
			cfg.Allocator = probeFlags.allocator
		}
		if probeFlags.recordFile != "" {
			cfg.RecordFile = probeFlags.recordFile
		}
		if probeFlags.addressSpaceLimit != "" {
			cfg.AddressSpaceLimit = probeFlags.addressSpaceLimit
		}
		if verbose {
			cfg.LogLevel = "debug"
		}

		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default ~/.memlimit/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	// Version template
	rootCmd.SetVersionTemplate(fmt.Sprintf("memlimit version %s\ncommit: %s\nbuilt: %s\n", Version, GitCommit, BuildDate))

	// Add subcommands
	rootCmd.AddCommand(doctorCmd)
}

// doctorCmd reports what may cap allocations on this host
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose host memory ceilings",
	Long:  `Report physical memory, cgroup limits, RLIMIT_AS and overcommit settings that bound what the probe can allocate.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor(cmd)
	},
}
