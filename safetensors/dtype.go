package safetensors

import "fmt"

// Dtype identifies the element type of a stored tensor. The constant
// names match the dtype strings used in safetensors file headers.
type Dtype uint8

const (
	Bool Dtype = iota
	U8
	I8
	F8E5M2
	F8E4M3
	U16
	I16
	F16
	BF16
	U32
	I32
	F32
	U64
	I64
	F64
)

var dtypeNames = map[Dtype]string{
	Bool:   "BOOL",
	U8:     "U8",
	I8:     "I8",
	F8E5M2: "F8_E5M2",
	F8E4M3: "F8_E4M3",
	U16:    "U16",
	I16:    "I16",
	F16:    "F16",
	BF16:   "BF16",
	U32:    "U32",
	I32:    "I32",
	F32:    "F32",
	U64:    "U64",
	I64:    "I64",
	F64:    "F64",
}

var dtypeSizes = map[Dtype]int{
	Bool:   1,
	U8:     1,
	I8:     1,
	F8E5M2: 1,
	F8E4M3: 1,
	U16:    2,
	I16:    2,
	F16:    2,
	BF16:   2,
	U32:    4,
	I32:    4,
	F32:    4,
	U64:    8,
	I64:    8,
	F64:    8,
}

// Size returns the width of one element in bytes.
func (d Dtype) Size() int {
	return dtypeSizes[d]
}

// String returns the header name of the dtype.
func (d Dtype) String() string {
	if name, ok := dtypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Dtype(%d)", uint8(d))
}

// ParseDtype maps a header dtype string to its Dtype.
func ParseDtype(s string) (Dtype, error) {
	for d, name := range dtypeNames {
		if name == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown dtype %q", s)
}
