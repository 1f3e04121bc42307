// Package bcursor provides the primitive little-endian reader/writer and
// 4-byte alignment helper shared by the VS_VERSIONINFO, STRINGTABLE and
// RT_GROUP_ICON codecs. It mirrors the boundary-checked read helpers on
// saferwall/pe's File (ReadUint16/ReadUint32/ReadBytesAtOffset), generalized
// to operate over a plain []byte instead of a memory-mapped PE image.
package bcursor

import (
	"encoding/binary"
	"errors"
)

// ErrOutsideBoundary is returned when a read or write would run past the
// end of the underlying buffer.
var ErrOutsideBoundary = errors.New("bcursor: access outside buffer boundary")

// Align4 rounds n up to the next multiple of 4. Every nested VS_VERSIONINFO
// child, and every String value, begins at an Align4 offset.
func Align4(n uint32) uint32 {
	return n + ((4 - (n % 4)) % 4)
}

// Cursor is a bounds-checked reading cursor over a byte slice.
type Cursor struct {
	buf []byte
	pos uint32
}

// NewCursor returns a Cursor positioned at the start of buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Pos returns the current read offset.
func (c *Cursor) Pos() uint32 { return c.pos }

// Len returns the total buffer length.
func (c *Cursor) Len() uint32 { return uint32(len(c.buf)) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() uint32 {
	if c.pos >= c.Len() {
		return 0
	}
	return c.Len() - c.pos
}

// Seek repositions the cursor to an absolute offset.
func (c *Cursor) Seek(pos uint32) {
	c.pos = pos
}

// AlignTo4 advances the cursor to the next 4-byte aligned offset.
func (c *Cursor) AlignTo4() {
	c.pos = Align4(c.pos)
}

// ReadUint16 reads a little-endian WORD and advances the cursor.
func (c *Cursor) ReadUint16() (uint16, error) {
	if c.pos+2 > c.Len() {
		return 0, ErrOutsideBoundary
	}
	v := binary.LittleEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, nil
}

// ReadUint32 reads a little-endian DWORD and advances the cursor.
func (c *Cursor) ReadUint32() (uint32, error) {
	if c.pos+4 > c.Len() {
		return 0, ErrOutsideBoundary
	}
	v := binary.LittleEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

// ReadBytes reads n raw bytes and advances the cursor.
func (c *Cursor) ReadBytes(n uint32) ([]byte, error) {
	if c.pos+n > c.Len() || c.pos+n < c.pos {
		return nil, ErrOutsideBoundary
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Slice returns buf[start:end] without moving the cursor, bounds-checked.
func (c *Cursor) Slice(start, end uint32) ([]byte, error) {
	if end < start || end > c.Len() {
		return nil, ErrOutsideBoundary
	}
	return c.buf[start:end], nil
}

// ReadUTF16String reads a NUL-terminated UTF-16LE string, leaving the
// cursor positioned immediately after the terminating NUL word.
func (c *Cursor) ReadUTF16String() (string, error) {
	start := c.pos
	for {
		if c.pos+2 > c.Len() {
			return "", ErrOutsideBoundary
		}
		u := binary.LittleEndian.Uint16(c.buf[c.pos:])
		c.pos += 2
		if u == 0 {
			break
		}
	}
	return DecodeUTF16(c.buf[start : c.pos-2]), nil
}

// Builder accumulates bytes for serialization with the same alignment
// discipline the reading Cursor enforces.
type Builder struct {
	buf []byte
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// Len returns the number of bytes written so far.
func (b *Builder) Len() uint32 { return uint32(len(b.buf)) }

// Bytes returns the accumulated buffer.
func (b *Builder) Bytes() []byte { return b.buf }

// WriteUint16 appends a little-endian WORD.
func (b *Builder) WriteUint16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

// WriteUint32 appends a little-endian DWORD.
func (b *Builder) WriteUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

// WriteBytes appends raw bytes.
func (b *Builder) WriteBytes(p []byte) {
	b.buf = append(b.buf, p...)
}

// WriteUTF16String appends s encoded as UTF-16LE with a trailing NUL word.
func (b *Builder) WriteUTF16String(s string) {
	b.WriteBytes(EncodeUTF16(s))
	b.WriteUint16(0)
}

// PadTo4 appends zero bytes until Len() is a multiple of 4.
func (b *Builder) PadTo4() {
	for uint32(len(b.buf))%4 != 0 {
		b.buf = append(b.buf, 0)
	}
}
