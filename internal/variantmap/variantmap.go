// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package variantmap implements the self-describing typed key/value binary
// format used by the container header to carry KDF parameters and public
// custom data.
//
// Layout (all integers little-endian):
//
//	version uint16
//	{ type byte | nameLen int32 | name | valueLen int32 | value }*
//	0x00
//
// The map preserves insertion order so that encoding a decoded map
// reproduces the original bytes.
package variantmap

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Version is the variant map version written by [Map.Encode].
const Version uint16 = 0x0100

// versionCriticalMask selects the part of the version that must match for a
// map to be readable.
const versionCriticalMask uint16 = 0xFF00

// Kind is the type tag of a single value.
type Kind byte

const (
	kindEnd       Kind = 0x00
	KindUInt32    Kind = 0x04
	KindUInt64    Kind = 0x05
	KindBool      Kind = 0x08
	KindInt32     Kind = 0x0C
	KindInt64     Kind = 0x0D
	KindString    Kind = 0x18
	KindByteArray Kind = 0x42
)

// String returns a readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindUInt32:
		return "UInt32"
	case KindUInt64:
		return "UInt64"
	case KindBool:
		return "Bool"
	case KindInt32:
		return "Int32"
	case KindInt64:
		return "Int64"
	case KindString:
		return "String"
	case KindByteArray:
		return "ByteArray"
	default:
		return fmt.Sprintf("Kind(0x%02x)", byte(k))
	}
}

// Value is one typed value of a [Map]. The concrete Go type held in v
// always matches kind: bool, int32, uint32, int64, uint64, string or []byte.
type Value struct {
	kind Kind
	v    any
}

// Kind returns the type tag of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// Any returns the underlying Go value.
func (v Value) Any() any {
	return v.v
}

// Map is an ordered map of names to typed values.
type Map struct {
	keys   []string
	values map[string]Value
}

// New returns an empty map.
func New() *Map {
	return &Map{values: make(map[string]Value)}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the entry names in insertion order.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Get returns the value stored under name.
func (m *Map) Get(name string) (Value, bool) {
	v, ok := m.values[name]
	return v, ok
}

// Has reports whether name is present.
func (m *Map) Has(name string) bool {
	_, ok := m.values[name]
	return ok
}

// Delete removes name from the map.
func (m *Map) Delete(name string) {
	if _, ok := m.values[name]; !ok {
		return
	}
	delete(m.values, name)
	for i, k := range m.keys {
		if k == name {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *Map) set(name string, kind Kind, v any) {
	if _, ok := m.values[name]; !ok {
		m.keys = append(m.keys, name)
	}
	m.values[name] = Value{kind: kind, v: v}
}

func (m *Map) SetBool(name string, v bool)     { m.set(name, KindBool, v) }
func (m *Map) SetInt32(name string, v int32)   { m.set(name, KindInt32, v) }
func (m *Map) SetUInt32(name string, v uint32) { m.set(name, KindUInt32, v) }
func (m *Map) SetInt64(name string, v int64)   { m.set(name, KindInt64, v) }
func (m *Map) SetUInt64(name string, v uint64) { m.set(name, KindUInt64, v) }
func (m *Map) SetString(name string, v string) { m.set(name, KindString, v) }

// SetBytes stores a copy of v.
func (m *Map) SetBytes(name string, v []byte) {
	m.set(name, KindByteArray, bytes.Clone(v))
}

// Bool returns the value under name if it exists and is a Bool.
func (m *Map) Bool(name string) (bool, bool) {
	v, ok := m.values[name].v.(bool)
	return v, ok
}

// Int32 returns the value under name if it exists and is an Int32.
func (m *Map) Int32(name string) (int32, bool) {
	v, ok := m.values[name].v.(int32)
	return v, ok
}

// UInt32 returns the value under name if it exists and is a UInt32.
func (m *Map) UInt32(name string) (uint32, bool) {
	v, ok := m.values[name].v.(uint32)
	return v, ok
}

// Int64 returns the value under name if it exists and is an Int64.
func (m *Map) Int64(name string) (int64, bool) {
	v, ok := m.values[name].v.(int64)
	return v, ok
}

// UInt64 returns the value under name if it exists and is a UInt64.
func (m *Map) UInt64(name string) (uint64, bool) {
	v, ok := m.values[name].v.(uint64)
	return v, ok
}

// String returns the value under name if it exists and is a String.
func (m *Map) String(name string) (string, bool) {
	v, ok := m.values[name].v.(string)
	return v, ok
}

// Bytes returns the value under name if it exists and is a ByteArray.
// The returned slice is shared with the map.
func (m *Map) Bytes(name string) ([]byte, bool) {
	v, ok := m.values[name].v.([]byte)
	return v, ok
}

// Clone returns a deep copy of m. A nil map clones to nil.
func (m *Map) Clone() *Map {
	if m == nil {
		return nil
	}
	out := New()
	for _, k := range m.keys {
		v := m.values[k]
		if b, ok := v.v.([]byte); ok {
			v.v = bytes.Clone(b)
		}
		out.keys = append(out.keys, k)
		out.values[k] = v
	}
	return out
}

// Equal reports whether both maps hold the same entries in the same order.
func (m *Map) Equal(other *Map) bool {
	if m.Len() != other.Len() {
		return false
	}
	if m == nil || other == nil {
		return true
	}
	for i, k := range m.keys {
		if other.keys[i] != k {
			return false
		}
		a, b := m.values[k], other.values[k]
		if a.kind != b.kind {
			return false
		}
		if ab, ok := a.v.([]byte); ok {
			if !bytes.Equal(ab, b.v.([]byte)) {
				return false
			}
			continue
		}
		if a.v != b.v {
			return false
		}
	}
	return true
}

// Encode serializes the map. It fails only when a name or value does not
// fit the int32 length prefix.
func (m *Map) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, Version)

	for _, name := range m.keys {
		v := m.values[name]
		var raw []byte
		switch x := v.v.(type) {
		case bool:
			raw = []byte{0}
			if x {
				raw[0] = 1
			}
		case int32:
			raw = binary.LittleEndian.AppendUint32(nil, uint32(x))
		case uint32:
			raw = binary.LittleEndian.AppendUint32(nil, x)
		case int64:
			raw = binary.LittleEndian.AppendUint64(nil, uint64(x))
		case uint64:
			raw = binary.LittleEndian.AppendUint64(nil, x)
		case string:
			raw = []byte(x)
		case []byte:
			raw = x
		}
		if len(name) > math.MaxInt32 || len(raw) > math.MaxInt32 {
			return nil, fmt.Errorf("%w: entry %q too large", ErrMalformed, name)
		}

		buf.WriteByte(byte(v.kind))
		_ = binary.Write(buf, binary.LittleEndian, int32(len(name)))
		buf.WriteString(name)
		_ = binary.Write(buf, binary.LittleEndian, int32(len(raw)))
		buf.Write(raw)
	}
	buf.WriteByte(byte(kindEnd))

	return buf.Bytes(), nil
}

// Decode parses a serialized variant map. Every byte of data must be
// consumed; trailing bytes after the terminator are an error.
func Decode(data []byte) (*Map, error) {
	r := reader{data: data}

	version, ok := r.uint16()
	if !ok {
		return nil, fmt.Errorf("%w: missing version", ErrMalformed)
	}
	if version&versionCriticalMask > Version&versionCriticalMask {
		return nil, fmt.Errorf("%w: 0x%04x", ErrUnsupportedVersion, version)
	}

	m := New()
	for {
		tag, ok := r.byte()
		if !ok {
			return nil, fmt.Errorf("%w: missing terminator", ErrMalformed)
		}
		kind := Kind(tag)
		if kind == kindEnd {
			break
		}

		name, ok := r.lengthPrefixed()
		if !ok {
			return nil, fmt.Errorf("%w: truncated entry name", ErrMalformed)
		}
		raw, ok := r.lengthPrefixed()
		if !ok {
			return nil, fmt.Errorf("%w: truncated value of %q", ErrMalformed, name)
		}
		if m.Has(string(name)) {
			return nil, fmt.Errorf("%w: duplicate entry %q", ErrMalformed, name)
		}

		if err := m.decodeValue(string(name), kind, raw); err != nil {
			return nil, err
		}
	}

	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, r.remaining())
	}

	return m, nil
}

func (m *Map) decodeValue(name string, kind Kind, raw []byte) error {
	fixed := map[Kind]int{
		KindBool: 1, KindInt32: 4, KindUInt32: 4, KindInt64: 8, KindUInt64: 8,
	}
	if want, ok := fixed[kind]; ok && len(raw) != want {
		return fmt.Errorf("%w: %s %q has %d bytes, want %d", ErrMalformed, kind, name, len(raw), want)
	}

	switch kind {
	case KindBool:
		m.SetBool(name, raw[0] != 0)
	case KindInt32:
		m.SetInt32(name, int32(binary.LittleEndian.Uint32(raw)))
	case KindUInt32:
		m.SetUInt32(name, binary.LittleEndian.Uint32(raw))
	case KindInt64:
		m.SetInt64(name, int64(binary.LittleEndian.Uint64(raw)))
	case KindUInt64:
		m.SetUInt64(name, binary.LittleEndian.Uint64(raw))
	case KindString:
		m.SetString(name, string(raw))
	case KindByteArray:
		m.SetBytes(name, raw)
	default:
		return fmt.Errorf("%w: unknown type 0x%02x for %q", ErrMalformed, byte(kind), name)
	}
	return nil
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) next(n int) ([]byte, bool) {
	if n < 0 || r.remaining() < n {
		return nil, false
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, true
}

func (r *reader) byte() (byte, bool) {
	b, ok := r.next(1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (r *reader) uint16() (uint16, bool) {
	b, ok := r.next(2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

func (r *reader) lengthPrefixed() ([]byte, bool) {
	b, ok := r.next(4)
	if !ok {
		return nil, false
	}
	return r.next(int(int32(binary.LittleEndian.Uint32(b))))
}
