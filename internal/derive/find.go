package derive

import (
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Find evaluates the derivation. inputs holds the encoded seed bytes of
// every runtime parameter keyed by its GoName; use EncodeSeed to produce
// them from Go values.
func (fn *Function) Find(programID solana.PublicKey, inputs map[string][]byte) (solana.PublicKey, uint8, error) {
	seeds := make([][]byte, 0, len(fn.Seeds))
	for _, s := range fn.Seeds {
		if s.Param == nil {
			seeds = append(seeds, s.Static)
			continue
		}
		value, ok := inputs[s.Param.GoName]
		if !ok {
			return solana.PublicKey{}, 0, fmt.Errorf("derive: %s: missing input %s", fn.Name, s.Param.GoName)
		}
		if want := fixedLength(s.Param.Encoding); want > 0 && len(value) != want {
			return solana.PublicKey{}, 0, fmt.Errorf("derive: %s: input %s is %d bytes, want %d", fn.Name, s.Param.GoName, len(value), want)
		}
		seeds = append(seeds, value)
	}

	program := programID
	if fn.Program != nil {
		program = *fn.Program
	}
	return solana.FindProgramAddress(seeds, program)
}

func fixedLength(e SeedEncoding) int {
	switch e.Kind {
	case RawBytes, PubkeyBytes, LittleEndian:
		return e.Width
	case SingleByte, BoolByte:
		return 1
	default:
		return 0
	}
}

// EncodeSeed converts a Go value to seed bytes with the given encoding.
func EncodeSeed(e SeedEncoding, value any) ([]byte, error) {
	switch e.Kind {
	case RawBytes:
		switch v := value.(type) {
		case string:
			return []byte(v), nil
		case []byte:
			return v, nil
		}
	case PubkeyBytes:
		if v, ok := value.(solana.PublicKey); ok {
			return v.Bytes(), nil
		}
	case SingleByte:
		switch v := value.(type) {
		case uint8:
			return []byte{v}, nil
		case int8:
			return []byte{byte(v)}, nil
		}
	case BoolByte:
		if v, ok := value.(bool); ok {
			if v {
				return []byte{1}, nil
			}
			return []byte{0}, nil
		}
	case LittleEndian:
		switch v := value.(type) {
		case uint16:
			return binary.LittleEndian.AppendUint16(nil, v), nil
		case int16:
			return binary.LittleEndian.AppendUint16(nil, uint16(v)), nil
		case uint32:
			return binary.LittleEndian.AppendUint32(nil, v), nil
		case int32:
			return binary.LittleEndian.AppendUint32(nil, uint32(v)), nil
		case uint64:
			return binary.LittleEndian.AppendUint64(nil, v), nil
		case int64:
			return binary.LittleEndian.AppendUint64(nil, uint64(v)), nil
		case bin.Uint128:
			return binary.LittleEndian.AppendUint64(binary.LittleEndian.AppendUint64(nil, v.Lo), v.Hi), nil
		case bin.Int128:
			return binary.LittleEndian.AppendUint64(binary.LittleEndian.AppendUint64(nil, v.Lo), v.Hi), nil
		}
	}
	return nil, fmt.Errorf("derive: cannot encode %T as %s seed", value, e)
}
