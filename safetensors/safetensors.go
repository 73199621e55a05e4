// Package safetensors reads and writes safetensors tensor collection
// files. Files are read through a read-only memory mapping, so opening a
// multi-gigabyte checkpoint costs header parsing only; tensor bytes are
// paged in on access.
package safetensors

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// ErrTensorNotFound is returned by Tensor for keys absent from the file.
var ErrTensorNotFound = errors.New("tensor not found")

// File is an open, memory-mapped safetensors file. It acts as a scoped
// read handle: Close releases the mapping and the underlying descriptor.
type File struct {
	f       *os.File
	mm      mmap.MMap
	data    []byte
	keys    []string
	tensors map[string]tensorMeta
	meta    map[string]string
}

// Open memory-maps the file at path and parses and validates its header.
// The returned File must be closed to release the mapping.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if fi.Size() < headerLengthSize {
		f.Close()
		return nil, fmt.Errorf("file %s is too small: %d < %d bytes", path, fi.Size(), headerLengthSize)
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap %s: %w", path, err)
	}

	file, err := newFile(f, mm)
	if err != nil {
		mm.Unmap()
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

func newFile(f *os.File, mm mmap.MMap) (*File, error) {
	headerLen := binary.LittleEndian.Uint64(mm[:headerLengthSize])
	if headerLen > maxHeaderSize {
		return nil, fmt.Errorf("header length %d exceeds maximum %d", headerLen, maxHeaderSize)
	}
	if headerLengthSize+headerLen > uint64(len(mm)) {
		return nil, fmt.Errorf("header length %d exceeds file size %d", headerLen, len(mm))
	}

	data := mm[headerLengthSize+headerLen:]
	keys, tensors, meta, err := parseHeader(mm[headerLengthSize:headerLengthSize+headerLen], uint64(len(data)))
	if err != nil {
		return nil, err
	}

	return &File{
		f:       f,
		mm:      mm,
		data:    data,
		keys:    keys,
		tensors: tensors,
		meta:    meta,
	}, nil
}

// Keys returns the tensor names, sorted by their data offset so a full
// pass reads the file sequentially.
func (f *File) Keys() []string {
	return f.keys
}

// Metadata returns the free-form string pairs stored under __metadata__,
// or nil if the file carries none.
func (f *File) Metadata() map[string]string {
	return f.meta
}

// Tensor returns a zero-copy view of the named tensor's bytes. The view
// is only valid until Close.
func (f *File) Tensor(key string) (TensorView, error) {
	tm, ok := f.tensors[key]
	if !ok {
		return TensorView{}, fmt.Errorf("%w: %q", ErrTensorNotFound, key)
	}
	return TensorView{Dtype: tm.dtype, Shape: tm.shape, Data: f.data[tm.begin:tm.end]}, nil
}

// Close unmaps the file and closes the descriptor. Calling Close more
// than once is safe.
func (f *File) Close() error {
	var err error
	if f.mm != nil {
		err = f.mm.Unmap()
		f.mm = nil
		f.data = nil
	}
	if f.f != nil {
		if cerr := f.f.Close(); err == nil {
			err = cerr
		}
		f.f = nil
	}
	return err
}
