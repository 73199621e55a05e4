package benchmark

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tclemos/safetensors-bench/safetensors"
)

// SafetensorsCollection implements the Collection interface over a
// memory-mapped safetensors file
type SafetensorsCollection struct {
	f *safetensors.File
}

// OpenSafetensorsCollection opens and validates a safetensors file
func OpenSafetensorsCollection(path string) (Collection, error) {
	f, err := safetensors.Open(path)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("path", path).
		Int("tensors", len(f.Keys())).
		Msg("Opened safetensors collection")

	return &SafetensorsCollection{f: f}, nil
}

// Keys implements Collection.Keys; names come back sorted by data offset
func (c *SafetensorsCollection) Keys() []string {
	return c.f.Keys()
}

// Get implements Collection.Get. The tensor bytes are decoded out of the
// mapping into a typed Go slice, so the returned value survives Close.
func (c *SafetensorsCollection) Get(key string) (Tensor, error) {
	view, err := c.f.Tensor(key)
	if err != nil {
		if errors.Is(err, safetensors.ErrTensorNotFound) {
			return Tensor{}, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
		}
		return Tensor{}, err
	}

	value, err := view.Value()
	if err != nil {
		return Tensor{}, fmt.Errorf("failed to materialize tensor %q: %w", key, err)
	}

	return Tensor{
		Dtype: view.Dtype.String(),
		Shape: view.Shape,
		Size:  len(view.Data),
		Value: value,
	}, nil
}

// Metadata implements Collection.Metadata
func (c *SafetensorsCollection) Metadata() map[string]string {
	return c.f.Metadata()
}

// Close implements Collection.Close
func (c *SafetensorsCollection) Close() error {
	return c.f.Close()
}
