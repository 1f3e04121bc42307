// Package rcres implements the RT_STRING, RT_GROUP_ICON/RT_ICON, and
// RT_RCDATA resource codecs, grounded on rescle.cc's SerializeStringTable,
// SetIcon, and ChangeRcData, generalized into standalone encode/decode pairs
// operating on plain byte slices rather than a live HMODULE.
package rcres

import (
	"fmt"

	"github.com/rcedit-go/rcedit/internal/bcursor"
)

// StringBlockSize is the number of string slots packed into one RT_STRING
// resource (Windows LoadString's id = block*16 + index convention).
const StringBlockSize = 16

// StringBlock holds the 16 string slots of one RT_STRING resource. An empty
// slot serializes as a zero-length pascal string, per rescle.cc's
// SerializeStringTable.
type StringBlock struct {
	Strings [StringBlockSize]string
}

// SplitStringID splits a Windows string resource id into its containing
// block id and in-block slot index (rescle.cc's ChangeString: blockId =
// id/16, blockIndex = id%16).
func SplitStringID(id uint32) (block uint32, index uint32) {
	return id / StringBlockSize, id % StringBlockSize
}

// DecodeStringBlock parses one RT_STRING resource: 16 consecutive pascal
// strings (WORD length, WCHAR[length], no NUL terminator, no padding).
func DecodeStringBlock(buf []byte) (*StringBlock, error) {
	block := &StringBlock{}
	cur := bcursor.NewCursor(buf)
	for i := 0; i < StringBlockSize; i++ {
		length, err := cur.ReadUint16()
		if err != nil {
			return nil, fmt.Errorf("rcres: string block slot %d: %w", i, err)
		}
		if length == 0 {
			continue
		}
		raw, err := cur.ReadBytes(uint32(length) * 2)
		if err != nil {
			return nil, fmt.Errorf("rcres: string block slot %d: %w", i, err)
		}
		block.Strings[i] = bcursor.DecodeUTF16(raw)
	}
	return block, nil
}

// Encode serializes the block back to its 16-slot on-disk form. There is no
// 4-byte padding between or after slots: RT_STRING resources are not
// alignment-padded the way VS_VERSIONINFO nodes are.
func (b *StringBlock) Encode() []byte {
	out := bcursor.NewBuilder()
	for _, s := range b.Strings {
		units := bcursor.EncodeUTF16(s)
		out.WriteUint16(uint16(len(units) / 2))
		out.WriteBytes(units)
	}
	return out.Bytes()
}

// Get returns the slot-th string, true if present and non-empty.
func (b *StringBlock) Get(slot uint32) (string, bool) {
	if slot >= StringBlockSize {
		return "", false
	}
	s := b.Strings[slot]
	return s, s != ""
}

// Set overwrites the slot-th string.
func (b *StringBlock) Set(slot uint32, value string) error {
	if slot >= StringBlockSize {
		return fmt.Errorf("rcres: string slot %d out of range", slot)
	}
	b.Strings[slot] = value
	return nil
}
