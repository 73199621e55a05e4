package safetensors

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	"github.com/x448/float16"
)

// TensorView is a view of one tensor's raw little-endian bytes inside an
// open file's mapping.
type TensorView struct {
	Dtype Dtype
	Shape []int
	Data  []byte
}

// NumElements returns the element count implied by the shape. A scalar
// (empty shape) has one element. Counts that do not fit an int clamp to
// math.MaxInt.
func (v TensorView) NumElements() int {
	n := uint64(1)
	for _, dim := range v.Shape {
		if dim <= 0 {
			return 0
		}
		hi, lo := bits.Mul64(n, uint64(dim))
		if hi != 0 || lo > math.MaxInt {
			return math.MaxInt
		}
		n = lo
	}
	return int(n)
}

// Materialize copies the tensor bytes out of the mapping into host memory.
func (v TensorView) Materialize() []byte {
	out := make([]byte, len(v.Data))
	copy(out, v.Data)
	return out
}

// Value materializes the tensor as its natural Go representation:
// []float32 for F32/F16/BF16, []float64 for F64, integer slices for the
// integer dtypes, []bool for BOOL, and a raw byte copy for the FP8
// dtypes, which have no native Go element type.
func (v TensorView) Value() (any, error) {
	switch v.Dtype {
	case F32, F16, BF16:
		return v.Float32s()
	case F64:
		return v.Float64s()
	case I64:
		return v.Int64s()
	case I32:
		return v.Int32s()
	case I16:
		out := make([]int16, len(v.Data)/2)
		for i := range out {
			out[i] = int16(binary.LittleEndian.Uint16(v.Data[i*2:]))
		}
		return out, nil
	case I8:
		out := make([]int8, len(v.Data))
		for i, b := range v.Data {
			out[i] = int8(b)
		}
		return out, nil
	case U64:
		out := make([]uint64, len(v.Data)/8)
		for i := range out {
			out[i] = binary.LittleEndian.Uint64(v.Data[i*8:])
		}
		return out, nil
	case U32:
		out := make([]uint32, len(v.Data)/4)
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(v.Data[i*4:])
		}
		return out, nil
	case U16:
		out := make([]uint16, len(v.Data)/2)
		for i := range out {
			out[i] = binary.LittleEndian.Uint16(v.Data[i*2:])
		}
		return out, nil
	case U8, F8E5M2, F8E4M3:
		return v.Materialize(), nil
	case Bool:
		out := make([]bool, len(v.Data))
		for i, b := range v.Data {
			out[i] = b != 0
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot materialize dtype %s", v.Dtype)
	}
}

// Float32s decodes F32, F16 and BF16 tensors into float32 values.
func (v TensorView) Float32s() ([]float32, error) {
	switch v.Dtype {
	case F32:
		out := make([]float32, len(v.Data)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(v.Data[i*4:]))
		}
		return out, nil
	case F16:
		out := make([]float32, len(v.Data)/2)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(v.Data[i*2:])).Float32()
		}
		return out, nil
	case BF16:
		// bfloat16 is the top half of an IEEE 754 float32.
		out := make([]float32, len(v.Data)/2)
		for i := range out {
			out[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(v.Data[i*2:])) << 16)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("dtype %s does not decode to float32", v.Dtype)
	}
}

// Float64s decodes an F64 tensor.
func (v TensorView) Float64s() ([]float64, error) {
	if v.Dtype != F64 {
		return nil, fmt.Errorf("dtype %s does not decode to float64", v.Dtype)
	}
	out := make([]float64, len(v.Data)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(v.Data[i*8:]))
	}
	return out, nil
}

// Int64s decodes an I64 tensor.
func (v TensorView) Int64s() ([]int64, error) {
	if v.Dtype != I64 {
		return nil, fmt.Errorf("dtype %s does not decode to int64", v.Dtype)
	}
	out := make([]int64, len(v.Data)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(v.Data[i*8:]))
	}
	return out, nil
}

// Int32s decodes an I32 tensor.
func (v TensorView) Int32s() ([]int32, error) {
	if v.Dtype != I32 {
		return nil, fmt.Errorf("dtype %s does not decode to int32", v.Dtype)
	}
	out := make([]int32, len(v.Data)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(v.Data[i*4:]))
	}
	return out, nil
}
