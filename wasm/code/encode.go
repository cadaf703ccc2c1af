package code

import (
	"encoding/binary"
	"io"

	"github.com/neri/wami/wasm/leb128"
)

// Encode writes the binary encoding of the given instruction sequence to w.
// Branch-carrying instructions must use relative label indices, as in the
// binary format.
func Encode(w io.Writer, instrs []Instruction) error {
	for i := range instrs {
		if err := encodeInstruction(w, &instrs[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func encodeBlockType(w io.Writer, immediate uint64) error {
	if immediate&0x8000000000000000 != 0 {
		return writeByte(w, byte(immediate))
	}
	_, err := leb128.WriteVarint64(w, int64(uint32(immediate)))
	return err
}

func encodeInstruction(w io.Writer, i *Instruction) error {
	if err := writeByte(w, i.Opcode); err != nil {
		return err
	}

	switch i.Opcode {
	case OpBlock, OpLoop, OpIf:
		return encodeBlockType(w, i.Immediate)

	case OpBr, OpBrIf, OpCall, OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet:
		_, err := leb128.WriteVarUint32(w, uint32(i.Immediate))
		return err

	case OpBrTable:
		if _, err := leb128.WriteVarUint32(w, uint32(len(i.Labels))); err != nil {
			return err
		}
		for _, l := range i.Labels {
			if _, err := leb128.WriteVarUint32(w, uint32(l)); err != nil {
				return err
			}
		}
		_, err := leb128.WriteVarUint32(w, uint32(i.Immediate))
		return err

	case OpCallIndirect:
		if _, err := leb128.WriteVarUint32(w, uint32(i.Immediate)); err != nil {
			return err
		}
		return writeByte(w, 0x00)

	case OpI32Load, OpI64Load, OpF32Load, OpF64Load, OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U, OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U, OpI64Load32S, OpI64Load32U, OpI32Store, OpI64Store, OpF32Store, OpF64Store, OpI32Store8, OpI32Store16, OpI64Store8, OpI64Store16, OpI64Store32:
		offset, align := i.Memarg()
		if _, err := leb128.WriteVarUint32(w, align); err != nil {
			return err
		}
		_, err := leb128.WriteVarUint32(w, offset)
		return err

	case OpMemorySize, OpMemoryGrow:
		return writeByte(w, 0x00)

	case OpI32Const:
		_, err := leb128.WriteVarint64(w, int64(i.I32()))
		return err

	case OpI64Const:
		_, err := leb128.WriteVarint64(w, i.I64())
		return err

	case OpF32Const:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(i.Immediate))
		_, err := w.Write(buf[:])
		return err

	case OpF64Const:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], i.Immediate)
		_, err := w.Write(buf[:])
		return err

	case OpPrefix:
		if _, err := leb128.WriteVarUint32(w, uint32(i.Immediate)); err != nil {
			return err
		}
		switch i.Immediate {
		case OpMemoryCopy:
			if err := writeByte(w, 0x00); err != nil {
				return err
			}
			return writeByte(w, 0x00)
		case OpMemoryFill:
			return writeByte(w, 0x00)
		}
		return nil

	default:
		return nil
	}
}
