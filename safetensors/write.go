package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math/bits"
	"os"
)

// NamedTensor pairs a tensor name with its dtype, shape and packed
// little-endian element bytes, ready for serialization.
type NamedTensor struct {
	Name  string
	Dtype Dtype
	Shape []int
	Data  []byte
}

// WriteFile serializes tensors and optional metadata into a new
// safetensors file at path. Tensors are laid out in the order given.
func WriteFile(path string, tensors []NamedTensor, meta map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Serialize(f, tensors, meta); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Serialize writes the 8-byte header length, the JSON header and the
// packed data buffer to w.
func Serialize(w io.Writer, tensors []NamedTensor, meta map[string]string) error {
	header := make(map[string]any, len(tensors)+1)
	if len(meta) > 0 {
		header[metadataKey] = meta
	}

	var offset uint64
	for _, t := range tensors {
		if t.Name == metadataKey {
			return fmt.Errorf("tensor name %q is reserved", metadataKey)
		}
		if _, dup := header[t.Name]; dup {
			return fmt.Errorf("duplicate tensor name %q", t.Name)
		}

		elems := uint64(1)
		for _, dim := range t.Shape {
			if dim < 0 {
				return fmt.Errorf("tensor %q: negative dimension %d", t.Name, dim)
			}
			hi, lo := bits.Mul64(elems, uint64(dim))
			if hi != 0 {
				return fmt.Errorf("tensor %q: element count of shape %v overflows", t.Name, t.Shape)
			}
			elems = lo
		}
		hi, want := bits.Mul64(elems, uint64(t.Dtype.Size()))
		if hi != 0 {
			return fmt.Errorf("tensor %q: byte size of shape %v with dtype %s overflows", t.Name, t.Shape, t.Dtype)
		}
		if want != uint64(len(t.Data)) {
			return fmt.Errorf("tensor %q: shape %v with dtype %s needs %d bytes, got %d",
				t.Name, t.Shape, t.Dtype, want, len(t.Data))
		}

		shape := t.Shape
		if shape == nil {
			shape = []int{}
		}
		header[t.Name] = map[string]any{
			"dtype":        t.Dtype.String(),
			"shape":        shape,
			"data_offsets": []uint64{offset, offset + uint64(len(t.Data))},
		}
		offset += uint64(len(t.Data))
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}

	var lenBuf [headerLengthSize]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(headerJSON)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("failed to write header length: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, t := range tensors {
		if _, err := w.Write(t.Data); err != nil {
			return fmt.Errorf("failed to write tensor %q: %w", t.Name, err)
		}
	}
	return nil
}
