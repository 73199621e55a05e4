package benchmark

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Collection defines the interface that all tensor-file backends must
// implement. It is the scoped read handle over one collection file:
// enumerate keys, materialize tensors by key, release the underlying
// resources on Close.
type Collection interface {
	// Keys returns the tensor names exposed by the collection. The order
	// is defined by the backend and is not guaranteed stable across
	// backends.
	Keys() []string

	// Get materializes the tensor stored under key into host memory.
	// Returns ErrKeyNotFound if the key doesn't exist.
	Get(key string) (Tensor, error)

	// Metadata returns the free-form string pairs stored alongside the
	// tensors, or nil if the format carries none.
	Metadata() map[string]string

	// Close releases the underlying resources (memory mappings, file
	// descriptors). It must be safe to call exactly once per handle.
	Close() error
}

// Tensor is a materialized host tensor fetched from a collection.
type Tensor struct {
	Dtype string // header dtype name, e.g. "F32"
	Shape []int
	Size  int // payload size in bytes
	Value any // backend-native payload, e.g. []float32
}

// Collection format types
type FormatType string

const (
	FormatAuto        FormatType = "auto"
	FormatSafetensors FormatType = "safetensors"
	FormatNPZ         FormatType = "npz"
)

// CollectionConfig holds configuration for opening a collection
type CollectionConfig struct {
	Path   string
	Format FormatType // "auto" detects by file extension
	Device string     // empty defaults to "cpu"
}

// Common collection errors
var (
	ErrKeyNotFound       = errors.New("key not found")
	ErrUnknownFormat     = errors.New("unknown collection format")
	ErrUnsupportedDevice = errors.New("unsupported device")
)

// OpenCollection acquires a scoped read handle over the collection at
// cfg.Path using the backend matching its format.
func OpenCollection(cfg CollectionConfig) (Collection, error) {
	device := cfg.Device
	if device == "" {
		device = "cpu"
	}
	if device != "cpu" {
		return nil, fmt.Errorf("%w: %q (only \"cpu\" is supported)", ErrUnsupportedDevice, cfg.Device)
	}

	format := cfg.Format
	if format == "" || format == FormatAuto {
		format = detectFormat(cfg.Path)
	}

	switch format {
	case FormatSafetensors:
		return OpenSafetensorsCollection(cfg.Path)
	case FormatNPZ:
		return OpenNPZCollection(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
	}
}

func detectFormat(path string) FormatType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".npz":
		return FormatNPZ
	default:
		return FormatSafetensors
	}
}

// Helper function to check if an error is "key not found"
// This abstracts away backend-specific error types
func IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}
