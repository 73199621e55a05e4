package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tclemos/safetensors-bench/benchmark"
)

var inspectFormat string

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <path>",
	Short: "List metadata and tensors stored in a collection file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := inspect(os.Stdout, args[0]); err != nil {
			log.Fatalf("Inspect failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVar(&inspectFormat, "format", "auto", "Collection format: 'auto', 'safetensors' or 'npz'")
}

func inspect(w io.Writer, path string) (err error) {
	coll, err := benchmark.OpenCollection(benchmark.CollectionConfig{
		Path:   path,
		Format: benchmark.FormatType(inspectFormat),
		Device: "cpu",
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := coll.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if meta := coll.Metadata(); len(meta) > 0 {
		fmt.Fprintln(w, "Metadata:")
		metaKeys := make([]string, 0, len(meta))
		for k := range meta {
			metaKeys = append(metaKeys, k)
		}
		sort.Strings(metaKeys)
		for _, k := range metaKeys {
			fmt.Fprintf(w, "  %s: %s\n", k, meta[k])
		}
		fmt.Fprintln(w)
	}

	keys := coll.Keys()
	fmt.Fprintf(w, "%d tensor(s) in %s\n\n", len(keys), path)

	fmt.Fprintln(w, "| Name | Dtype | Shape | Elements | Bytes |")
	fmt.Fprintln(w, "|------|-------|-------|----------|-------|")
	for _, key := range keys {
		t, err := coll.Get(key)
		if err != nil {
			return fmt.Errorf("failed to fetch tensor %q: %w", key, err)
		}
		fmt.Fprintf(w, "| %s | %s | %s | %d | %d |\n",
			key, t.Dtype, formatShape(t.Shape), numElements(t.Shape), t.Size)
	}

	return nil
}

func formatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, dim := range shape {
		parts[i] = fmt.Sprintf("%d", dim)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func numElements(shape []int) int {
	n := 1
	for _, dim := range shape {
		n *= dim
	}
	return n
}
