package value

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/lumelang/lume/internal/ast"
)

// Canonical encoding. Two structurally equal values must encode to the
// same bytes regardless of how they were built: struct fields are written
// in declared order, enum payloads in variant order, and no map ever feeds
// the stream. Hashing and the on-disk cache both rely on this.

const (
	tagInt byte = iota + 1
	tagFloat
	tagBool
	tagChar
	tagString
	tagUnit
	tagArray
	tagStruct
	tagEnum
	tagType
	tagCode
	tagClosure
)

// Encode writes the canonical byte form of v.
func Encode(w io.Writer, v Value) error {
	switch v := v.(type) {
	case *Int:
		writeByte(w, tagInt)
		writeByte(w, v.Width)
		if v.Signed {
			writeByte(w, 1)
		} else {
			writeByte(w, 0)
		}
		writeU64(w, v.Bits)
	case *Float:
		writeByte(w, tagFloat)
		writeByte(w, v.Width)
		writeU64(w, FloatBits(v.Val))
	case *Bool:
		writeByte(w, tagBool)
		if v.Val {
			writeByte(w, 1)
		} else {
			writeByte(w, 0)
		}
	case *Char:
		writeByte(w, tagChar)
		writeU64(w, uint64(v.Val))
	case *Str:
		writeByte(w, tagString)
		writeString(w, v.Val)
	case *Unit:
		writeByte(w, tagUnit)
	case *Array:
		writeByte(w, tagArray)
		writeU64(w, uint64(len(v.Elems)))
		for _, e := range v.Elems {
			if err := Encode(w, e); err != nil {
				return err
			}
		}
	case *Struct:
		writeByte(w, tagStruct)
		writeU64(w, uint64(v.Type))
		writeU64(w, uint64(len(v.Fields)))
		for _, f := range v.Fields {
			if err := Encode(w, f); err != nil {
				return err
			}
		}
	case *Enum:
		writeByte(w, tagEnum)
		writeU64(w, uint64(v.Type))
		writeU64(w, uint64(v.Variant))
		writeU64(w, uint64(len(v.Payload)))
		for _, p := range v.Payload {
			if err := Encode(w, p); err != nil {
				return err
			}
		}
	case *TypeHandle:
		writeByte(w, tagType)
		writeU64(w, uint64(v.ID))
	case *Code:
		writeByte(w, tagCode)
		writeString(w, v.Text)
		writeU64(w, uint64(len(v.Items)))
		// Items are structured; gob is deterministic here because no
		// item type contains a map.
		for _, item := range v.Items {
			if err := encodeItem(w, item); err != nil {
				return err
			}
		}
	case *Closure:
		writeByte(w, tagClosure)
		writeU64(w, uint64(v.Func))
		writeU64(w, uint64(len(v.Captured)))
		for _, c := range v.Captured {
			if err := Encode(w, c); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("cannot encode value of kind %s", v.Kind())
	}
	return nil
}

func encodeItem(w io.Writer, item ast.Item) error {
	var boxed struct{ Item ast.Item }
	boxed.Item = item
	return gob.NewEncoder(w).Encode(&boxed)
}

// Hash returns the hex sha256 of the canonical encoding of the given
// values in order. Used as the cache's argument snapshot hash.
func Hash(vs ...Value) (string, error) {
	h := sha256.New()
	for _, v := range vs {
		if err := Encode(h, v); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Equal reports structural equality. Identity never matters: two values
// built independently compare equal when their shapes and contents match.
func Equal(a, b Value) bool {
	switch a := a.(type) {
	case *Int:
		b, ok := b.(*Int)
		return ok && a.Width == b.Width && a.Signed == b.Signed && a.Bits == b.Bits
	case *Float:
		b, ok := b.(*Float)
		return ok && a.Width == b.Width && FloatBits(a.Val) == FloatBits(b.Val)
	case *Bool:
		b, ok := b.(*Bool)
		return ok && a.Val == b.Val
	case *Char:
		b, ok := b.(*Char)
		return ok && a.Val == b.Val
	case *Str:
		b, ok := b.(*Str)
		return ok && a.Val == b.Val
	case *Unit:
		_, ok := b.(*Unit)
		return ok
	case *Array:
		b, ok := b.(*Array)
		return ok && equalSlices(a.Elems, b.Elems)
	case *Struct:
		b, ok := b.(*Struct)
		return ok && a.Type == b.Type && equalSlices(a.Fields, b.Fields)
	case *Enum:
		b, ok := b.(*Enum)
		return ok && a.Type == b.Type && a.Variant == b.Variant && equalSlices(a.Payload, b.Payload)
	case *TypeHandle:
		b, ok := b.(*TypeHandle)
		return ok && a.ID == b.ID
	case *Code:
		b, ok := b.(*Code)
		if !ok || a.Text != b.Text {
			return false
		}
		ha, err1 := Hash(a)
		hb, err2 := Hash(b)
		return err1 == nil && err2 == nil && ha == hb
	case *Closure:
		b, ok := b.(*Closure)
		return ok && a.Func == b.Func && equalSlices(a.Captured, b.Captured)
	}
	return false
}

func equalSlices(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func writeByte(w io.Writer, b byte) {
	w.Write([]byte{b})
}

func writeU64(w io.Writer, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	w.Write(buf[:])
}

func writeString(w io.Writer, s string) {
	writeU64(w, uint64(len(s)))
	io.WriteString(w, s)
}
