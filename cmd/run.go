package cmd

import (
	"log"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tclemos/safetensors-bench/benchmark"
)

var (
	device    string
	format    string
	logFormat string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <path> [loop]",
	Short: "Benchmark reading every tensor in a collection file",
	Long: `Run opens the tensor collection at <path>, materializes every tensor
by key [loop] times (default 1) and prints the average wall-clock
duration of one full pass.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		loop := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				log.Fatalf("Invalid loop count %q: %v", args[1], err)
			}
			loop = n
		}

		cfg := benchmark.Config{
			Path:      args[0],
			Loop:      loop,
			Device:    device,
			Format:    format,
			LogFormat: logFormat,
		}
		if err := benchmark.RunBenchmark(cfg); err != nil {
			log.Fatalf("Benchmark failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&device, "device", "cpu", "Target device for materialized tensors (only 'cpu' is supported)")
	runCmd.Flags().StringVar(&format, "format", "auto", "Collection format: 'auto', 'safetensors' or 'npz'")
	runCmd.Flags().StringVar(&logFormat, "log-format", "console", "Log format: 'json' or 'console'")
}
