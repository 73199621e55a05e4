package cmd

import (
	"encoding/binary"
	"log"
	"math"
	"path/filepath"
	"strings"

	"github.com/gocnn/gonpy"
	"github.com/spf13/cobra"
	"github.com/tclemos/safetensors-bench/safetensors"
)

// createCmd represents the create command
var createCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Write a small deterministic test collection file",
	Long: `Create writes a two-tensor test collection (tensor1 F32 [2,3],
tensor2 I32 [4]) so the run and inspect commands have something to read.
The format is picked from the file extension: .npz for a NumPy archive,
anything else for safetensors.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := createTestCollection(args[0]); err != nil {
			log.Fatalf("Create failed: %v", err)
		}
		log.Printf("Created test collection: %s", args[0])
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
}

func createTestCollection(path string) error {
	tensor1 := []float32{1, 2, 3, 4, 5, 6}
	tensor2 := []int32{10, 20, 30, 40}

	if strings.ToLower(filepath.Ext(path)) == ".npz" {
		tensors := map[string]*gonpy.Tensor{
			"tensor1": {
				Data:   tensor1,
				Shape:  gonpy.Shape{2, 3},
				DType:  gonpy.DTypeF32,
				Device: "cpu",
			},
			"tensor2": {
				Data:   tensor2,
				Shape:  gonpy.Shape{4},
				DType:  gonpy.DTypeI32,
				Device: "cpu",
			},
		}
		return gonpy.WriteNPZ(path, tensors)
	}

	return safetensors.WriteFile(path, []safetensors.NamedTensor{
		{Name: "tensor1", Dtype: safetensors.F32, Shape: []int{2, 3}, Data: float32Bytes(tensor1)},
		{Name: "tensor2", Dtype: safetensors.I32, Shape: []int{4}, Data: int32Bytes(tensor2)},
	}, map[string]string{
		"created_by": "safetensors-bench",
		"version":    "1.0",
	})
}

func float32Bytes(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func int32Bytes(values []int32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
	}
	return out
}
