package safetensors

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func float32Bytes(values ...float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func int32Bytes(values ...int32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
	}
	return out
}

// writeTestFile lays out tensor2 before tensor1 so key ordering by data
// offset is observable.
func writeTestFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "model.safetensors")
	err := WriteFile(path, []NamedTensor{
		{Name: "tensor2", Dtype: I32, Shape: []int{4}, Data: int32Bytes(10, 20, 30, 40)},
		{Name: "tensor1", Dtype: F32, Shape: []int{2, 3}, Data: float32Bytes(1, 2, 3, 4, 5, 6)},
	}, map[string]string{"created_by": "test", "version": "1.0"})
	require.NoError(t, err)
	return path
}

// writeRawFile builds a file from a literal JSON header and data buffer,
// for exercising validation failures.
func writeRawFile(t *testing.T, header string, data []byte) string {
	t.Helper()

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(header)))

	path := filepath.Join(t.TempDir(), "raw.safetensors")
	raw := append(lenBuf[:], header...)
	raw = append(raw, data...)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func TestOpenRoundTrip(t *testing.T) {
	f, err := Open(writeTestFile(t))
	require.NoError(t, err)
	defer f.Close()

	// Keys sorted by data offset: tensor2 was written first.
	assert.Equal(t, []string{"tensor2", "tensor1"}, f.Keys())
	assert.Equal(t, map[string]string{"created_by": "test", "version": "1.0"}, f.Metadata())

	v1, err := f.Tensor("tensor1")
	require.NoError(t, err)
	assert.Equal(t, F32, v1.Dtype)
	assert.Equal(t, []int{2, 3}, v1.Shape)
	assert.Equal(t, 6, v1.NumElements())

	floats, err := v1.Float32s()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, floats)

	v2, err := f.Tensor("tensor2")
	require.NoError(t, err)
	ints, err := v2.Int32s()
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 20, 30, 40}, ints)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.safetensors"))
	require.Error(t, err)
}

func TestTensorUnknownKey(t *testing.T) {
	f, err := Open(writeTestFile(t))
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Tensor("missing")
	require.ErrorIs(t, err, ErrTensorNotFound)
}

func TestCloseIdempotent(t *testing.T) {
	f, err := Open(writeTestFile(t))
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
}

func TestOpenTooSmall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.safetensors")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
}

func TestOpenHeaderLengthBeyondFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.safetensors")
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], 1<<20)
	require.NoError(t, os.WriteFile(path, lenBuf[:], 0o644))

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds file size")
}

func TestOpenHeaderTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.safetensors")
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], maxHeaderSize+1)
	require.NoError(t, os.WriteFile(path, lenBuf[:], 0o644))

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum")
}

func TestOpenInvalidJSON(t *testing.T) {
	_, err := Open(writeRawFile(t, "{not json", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid header JSON")
}

func TestOpenUnknownDtype(t *testing.T) {
	header := `{"a":{"dtype":"Q4","shape":[2],"data_offsets":[0,2]}}`
	_, err := Open(writeRawFile(t, header, []byte{0, 0}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dtype")
}

func TestOpenSpanMismatch(t *testing.T) {
	header := `{"a":{"dtype":"F32","shape":[2],"data_offsets":[0,4]}}`
	_, err := Open(writeRawFile(t, header, []byte{0, 0, 0, 0}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs 8 bytes")
}

func TestOpenOffsetsOutOfRange(t *testing.T) {
	header := `{"a":{"dtype":"U8","shape":[8],"data_offsets":[0,8]}}`
	_, err := Open(writeRawFile(t, header, []byte{0, 0, 0, 0}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestOpenShapeProductOverflow(t *testing.T) {
	// 2^32 x 2^32 elements wraps a uint64 product to 0, which would
	// otherwise satisfy the zero-byte data_offsets span.
	header := `{"a":{"dtype":"F32","shape":[4294967296,4294967296],"data_offsets":[0,0]}}`
	_, err := Open(writeRawFile(t, header, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overflows")
}

func TestOpenByteSizeOverflow(t *testing.T) {
	// The element count (2^62) fits a uint64 but the byte size does not.
	header := `{"a":{"dtype":"F64","shape":[4611686018427387904],"data_offsets":[0,0]}}`
	_, err := Open(writeRawFile(t, header, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overflows")
}

func TestOpenDataGap(t *testing.T) {
	header := `{"a":{"dtype":"U8","shape":[2],"data_offsets":[2,4]}}`
	_, err := Open(writeRawFile(t, header, []byte{0, 0, 0, 0}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gap or overlap")
}

func TestOpenTrailingData(t *testing.T) {
	header := `{"a":{"dtype":"U8","shape":[2],"data_offsets":[0,2]}}`
	_, err := Open(writeRawFile(t, header, []byte{0, 0, 0, 0}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing bytes")
}

func TestOpenScalarAndEmptyTensor(t *testing.T) {
	header := `{"scalar":{"dtype":"F32","shape":[],"data_offsets":[0,4]},` +
		`"empty":{"dtype":"F32","shape":[0],"data_offsets":[4,4]}}`
	f, err := Open(writeRawFile(t, header, float32Bytes(3.5)))
	require.NoError(t, err)
	defer f.Close()

	v, err := f.Tensor("scalar")
	require.NoError(t, err)
	assert.Equal(t, 1, v.NumElements())
	floats, err := v.Float32s()
	require.NoError(t, err)
	assert.Equal(t, []float32{3.5}, floats)

	e, err := f.Tensor("empty")
	require.NoError(t, err)
	assert.Equal(t, 0, e.NumElements())
	assert.Empty(t, e.Data)
}

func TestFloat16Decoding(t *testing.T) {
	bits := float16.Fromfloat32(1.5).Bits()
	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data, bits)

	v := TensorView{Dtype: F16, Shape: []int{1}, Data: data}
	floats, err := v.Float32s()
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5}, floats)
}

func TestBFloat16Decoding(t *testing.T) {
	// bfloat16 keeps the top 16 bits of the float32 representation;
	// -2.25 is exactly representable.
	bits := uint16(math.Float32bits(-2.25) >> 16)
	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data, bits)

	v := TensorView{Dtype: BF16, Shape: []int{1}, Data: data}
	floats, err := v.Float32s()
	require.NoError(t, err)
	assert.Equal(t, []float32{-2.25}, floats)
}

func TestValueByDtype(t *testing.T) {
	boolView := TensorView{Dtype: Bool, Shape: []int{3}, Data: []byte{1, 0, 2}}
	val, err := boolView.Value()
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, val)

	i64 := make([]byte, 8)
	binary.LittleEndian.PutUint64(i64, uint64(1<<40))
	intView := TensorView{Dtype: I64, Shape: []int{1}, Data: i64}
	val, err = intView.Value()
	require.NoError(t, err)
	assert.Equal(t, []int64{1 << 40}, val)

	f8View := TensorView{Dtype: F8E4M3, Shape: []int{2}, Data: []byte{0x3f, 0x40}}
	val, err = f8View.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x3f, 0x40}, val)
}

func TestNumElementsOverflowClamps(t *testing.T) {
	v := TensorView{Dtype: F32, Shape: []int{1 << 32, 1 << 32, 1 << 32}}
	assert.Equal(t, math.MaxInt, v.NumElements())
}

func TestMaterializeCopies(t *testing.T) {
	data := []byte{1, 2, 3}
	v := TensorView{Dtype: U8, Shape: []int{3}, Data: data}

	out := v.Materialize()
	assert.Equal(t, data, out)

	out[0] = 42
	assert.Equal(t, byte(1), data[0])
}
