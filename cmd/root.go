package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command for safetensors-bench
var rootCmd = &cobra.Command{
	Use:   "safetensors-bench",
	Short: "Benchmark and inspect tensor collection files",
	Long: `safetensors-bench measures how fast a tensor collection file
(safetensors or NumPy .npz) can be read back in full, and ships helpers
to inspect existing collections and create small test ones.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits nonzero on any failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
