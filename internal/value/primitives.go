package value

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tacitsys/dncdbg-mcp/internal/clr"
)

// typeNameFor gives the C#-familiar display name for a primitive
// element-type tag; used as VariableNode.TypeName.
func typeNameFor(t clr.ElementType) string {
	switch t {
	case clr.ElementBoolean:
		return "bool"
	case clr.ElementChar:
		return "char"
	case clr.ElementI1:
		return "sbyte"
	case clr.ElementU1:
		return "byte"
	case clr.ElementI2:
		return "short"
	case clr.ElementU2:
		return "ushort"
	case clr.ElementI4:
		return "int"
	case clr.ElementU4:
		return "uint"
	case clr.ElementI8:
		return "long"
	case clr.ElementU8:
		return "ulong"
	case clr.ElementR4:
		return "float"
	case clr.ElementR8:
		return "double"
	case clr.ElementString:
		return "string"
	default:
		return fmt.Sprintf("<%v>", t)
	}
}

// renderPrimitive decodes a GenericValue's raw bytes per its element-type
// tag into its canonical textual literal form.
func renderPrimitive(elemType clr.ElementType, raw []byte) string {
	switch elemType {
	case clr.ElementBoolean:
		if len(raw) > 0 && raw[0] != 0 {
			return "true"
		}
		return "false"
	case clr.ElementChar:
		if len(raw) >= 2 {
			return fmt.Sprintf("%q", rune(binary.LittleEndian.Uint16(raw)))
		}
	case clr.ElementI1:
		if len(raw) >= 1 {
			return fmt.Sprintf("%d", int8(raw[0]))
		}
	case clr.ElementU1:
		if len(raw) >= 1 {
			return fmt.Sprintf("%d", raw[0])
		}
	case clr.ElementI2:
		if len(raw) >= 2 {
			return fmt.Sprintf("%d", int16(binary.LittleEndian.Uint16(raw)))
		}
	case clr.ElementU2:
		if len(raw) >= 2 {
			return fmt.Sprintf("%d", binary.LittleEndian.Uint16(raw))
		}
	case clr.ElementI4:
		if len(raw) >= 4 {
			return fmt.Sprintf("%d", int32(binary.LittleEndian.Uint32(raw)))
		}
	case clr.ElementU4:
		if len(raw) >= 4 {
			return fmt.Sprintf("%d", binary.LittleEndian.Uint32(raw))
		}
	case clr.ElementI8:
		if len(raw) >= 8 {
			return fmt.Sprintf("%d", int64(binary.LittleEndian.Uint64(raw)))
		}
	case clr.ElementU8:
		if len(raw) >= 8 {
			return fmt.Sprintf("%d", binary.LittleEndian.Uint64(raw))
		}
	case clr.ElementR4:
		if len(raw) >= 4 {
			return fmt.Sprintf("%v", math.Float32frombits(binary.LittleEndian.Uint32(raw)))
		}
	case clr.ElementR8:
		if len(raw) >= 8 {
			return fmt.Sprintf("%v", math.Float64frombits(binary.LittleEndian.Uint64(raw)))
		}
	}
	return "<error: short read>"
}

// decodeIntBytes interprets raw little-endian bytes as a signed 64-bit
// integer, used for enum backing-field (value__) reads where the exact
// width varies by declared type.
func decodeIntBytes(raw []byte) int64 {
	var u uint64
	for i := len(raw) - 1; i >= 0; i-- {
		u = (u << 8) | uint64(raw[i])
	}
	switch len(raw) {
	case 1:
		return int64(int8(u))
	case 2:
		return int64(int16(u))
	case 4:
		return int64(int32(u))
	default:
		return int64(u)
	}
}

func decodeBoolBytes(raw []byte) bool {
	return len(raw) > 0 && raw[0] != 0
}
