package benchmark

import (
	"fmt"
	"sort"

	"github.com/gocnn/gonpy"
	"github.com/rs/zerolog/log"
)

// NPZCollection implements the Collection interface over a NumPy .npz
// archive using gonpy's lazy tensor handle
type NPZCollection struct {
	npz  *gonpy.NpzTensors
	keys []string
}

// OpenNPZCollection opens an npz archive for lazy per-tensor reads
func OpenNPZCollection(path string) (Collection, error) {
	npz, err := gonpy.NewNpzTensors(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open npz archive %s: %w", path, err)
	}

	keys := npz.Names()
	sort.Strings(keys)

	log.Info().
		Str("path", path).
		Int("tensors", len(keys)).
		Msg("Opened npz collection")

	return &NPZCollection{npz: npz, keys: keys}, nil
}

// Keys implements Collection.Keys; npz member names are sorted
func (c *NPZCollection) Keys() []string {
	return c.keys
}

// Get implements Collection.Get for npz archives. Membership is checked
// against the sorted name list, so a missing key never reaches gonpy.
func (c *NPZCollection) Get(key string) (Tensor, error) {
	i := sort.SearchStrings(c.keys, key)
	if i >= len(c.keys) || c.keys[i] != key {
		return Tensor{}, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}

	t, err := c.npz.Get(key)
	if err != nil {
		return Tensor{}, fmt.Errorf("failed to read npz tensor %q: %w", key, err)
	}

	return Tensor{
		Dtype: fmt.Sprintf("%s", t.DType),
		Shape: []int(t.Shape),
		Size:  payloadSize(t.Data),
		Value: t.Data,
	}, nil
}

// Metadata implements Collection.Metadata; npz archives carry none
func (c *NPZCollection) Metadata() map[string]string {
	return nil
}

// Close implements Collection.Close. gonpy reads archive members on
// demand and holds no descriptor between reads, so there is nothing to
// release beyond dropping the handle.
func (c *NPZCollection) Close() error {
	c.npz = nil
	return nil
}

// payloadSize reports the byte size of a typed tensor payload
func payloadSize(data any) int {
	switch d := data.(type) {
	case []float64:
		return len(d) * 8
	case []float32:
		return len(d) * 4
	case []int64:
		return len(d) * 8
	case []int32:
		return len(d) * 4
	case []int16:
		return len(d) * 2
	case []uint64:
		return len(d) * 8
	case []uint32:
		return len(d) * 4
	case []uint16:
		return len(d) * 2
	case []int8:
		return len(d)
	case []uint8:
		return len(d)
	case []bool:
		return len(d)
	default:
		return 0
	}
}
