package safetensors

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"sort"
)

const (
	// headerLengthSize is the fixed little-endian prefix holding the JSON
	// header length.
	headerLengthSize = 8

	// maxHeaderSize caps the JSON header, mirroring the upstream
	// safetensors limit.
	maxHeaderSize = 100 * 1000 * 1000

	// metadataKey is the reserved header key for free-form string pairs.
	metadataKey = "__metadata__"
)

type tensorMeta struct {
	dtype Dtype
	shape []int
	begin uint64
	end   uint64
}

type rawTensorInfo struct {
	Dtype       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets []uint64 `json:"data_offsets"`
}

// parseHeader decodes the JSON header and validates every tensor entry
// against the data buffer length. Returned keys are sorted by data offset
// so a full pass over the collection touches the mapping sequentially.
func parseHeader(raw []byte, dataLen uint64) ([]string, map[string]tensorMeta, map[string]string, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid header JSON: %w", err)
	}

	var meta map[string]string
	keys := make([]string, 0, len(entries))
	tensors := make(map[string]tensorMeta, len(entries))
	for name, rawEntry := range entries {
		if name == metadataKey {
			if err := json.Unmarshal(rawEntry, &meta); err != nil {
				return nil, nil, nil, fmt.Errorf("invalid %s entry: %w", metadataKey, err)
			}
			continue
		}

		var info rawTensorInfo
		if err := json.Unmarshal(rawEntry, &info); err != nil {
			return nil, nil, nil, fmt.Errorf("invalid tensor entry %q: %w", name, err)
		}
		tm, err := validateTensorInfo(name, info, dataLen)
		if err != nil {
			return nil, nil, nil, err
		}
		tensors[name] = tm
		keys = append(keys, name)
	}

	// Secondary order on end keeps zero-length tensors ahead of the data
	// they share an offset with.
	sort.Slice(keys, func(i, j int) bool {
		a, b := tensors[keys[i]], tensors[keys[j]]
		if a.begin != b.begin {
			return a.begin < b.begin
		}
		return a.end < b.end
	})

	if err := validateCoverage(keys, tensors, dataLen); err != nil {
		return nil, nil, nil, err
	}
	return keys, tensors, meta, nil
}

func validateTensorInfo(name string, info rawTensorInfo, dataLen uint64) (tensorMeta, error) {
	dtype, err := ParseDtype(info.Dtype)
	if err != nil {
		return tensorMeta{}, fmt.Errorf("tensor %q: %w", name, err)
	}
	if len(info.DataOffsets) != 2 {
		return tensorMeta{}, fmt.Errorf("tensor %q: data_offsets must hold [begin, end]", name)
	}

	begin, end := info.DataOffsets[0], info.DataOffsets[1]
	if begin > end || end > dataLen {
		return tensorMeta{}, fmt.Errorf("tensor %q: data_offsets [%d, %d] out of range for %d data bytes",
			name, begin, end, dataLen)
	}

	elems := uint64(1)
	for _, dim := range info.Shape {
		if dim < 0 {
			return tensorMeta{}, fmt.Errorf("tensor %q: negative dimension %d", name, dim)
		}
		hi, lo := bits.Mul64(elems, uint64(dim))
		if hi != 0 {
			return tensorMeta{}, fmt.Errorf("tensor %q: element count of shape %v overflows", name, info.Shape)
		}
		elems = lo
	}
	hi, want := bits.Mul64(elems, uint64(dtype.Size()))
	if hi != 0 {
		return tensorMeta{}, fmt.Errorf("tensor %q: byte size of shape %v with dtype %s overflows", name, info.Shape, dtype)
	}
	if want != end-begin {
		return tensorMeta{}, fmt.Errorf("tensor %q: shape %v with dtype %s needs %d bytes, data_offsets span %d",
			name, info.Shape, dtype, want, end-begin)
	}

	return tensorMeta{dtype: dtype, shape: info.Shape, begin: begin, end: end}, nil
}

// validateCoverage requires the tensors to tile the data buffer exactly:
// no gaps, no overlap. keys must already be sorted by begin offset.
func validateCoverage(keys []string, tensors map[string]tensorMeta, dataLen uint64) error {
	var pos uint64
	for _, name := range keys {
		tm := tensors[name]
		if tm.begin != pos {
			return fmt.Errorf("tensor %q: data begins at offset %d, expected %d (gap or overlap in data buffer)",
				name, tm.begin, pos)
		}
		pos = tm.end
	}
	if pos != dataLen {
		return fmt.Errorf("data buffer has %d trailing bytes not covered by any tensor", dataLen-pos)
	}
	return nil
}
