package rcres

import (
	"fmt"

	"github.com/rcedit-go/rcedit/internal/bcursor"
)

// icoEntrySize is the byte size of one ICONDIRENTRY in a .ico file.
const icoEntrySize = 16

// grpIconEntrySize is the byte size of one GRPICONDIRENTRY as written into
// an RT_GROUP_ICON resource (rescle.cc's anonymous-namespace GRPICONENTRY).
const grpIconEntrySize = 14

// IcoImage is one image entry read out of a source .ico file: its directory
// metadata plus the raw image bytes (a BITMAPINFOHEADER DIB or a PNG blob).
type IcoImage struct {
	Width, Height, ColorCount byte
	Planes, BitCount          uint16
	Data                      []byte
}

// IconBundle is a decoded .ico file: the full set of images it carries,
// ready to become one language's RT_GROUP_ICON + RT_ICON resources.
type IconBundle struct {
	Images []IcoImage
}

// DecodeICOFile parses a Windows .ico file (ICONDIR header followed by
// ICONDIRENTRY[count], followed by the image payloads).
func DecodeICOFile(buf []byte) (*IconBundle, error) {
	cur := bcursor.NewCursor(buf)
	reserved, err := cur.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("rcres: reading ICONDIR: %w", err)
	}
	iconType, err := cur.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("rcres: reading ICONDIR: %w", err)
	}
	if reserved != 0 || iconType != 1 {
		return nil, fmt.Errorf("rcres: not an icon file (reserved=%d type=%d)", reserved, iconType)
	}
	count, err := cur.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("rcres: reading ICONDIR count: %w", err)
	}

	type rawEntry struct {
		width, height, colorCount byte
		planes, bitCount          uint16
		bytesInRes                uint32
		imageOffset               uint32
	}
	entries := make([]rawEntry, count)
	for i := range entries {
		wb, err := cur.ReadBytes(4)
		if err != nil {
			return nil, fmt.Errorf("rcres: reading ICONDIRENTRY %d: %w", i, err)
		}
		planes, err := cur.ReadUint16()
		if err != nil {
			return nil, err
		}
		bitCount, err := cur.ReadUint16()
		if err != nil {
			return nil, err
		}
		bytesInRes, err := cur.ReadUint32()
		if err != nil {
			return nil, err
		}
		imageOffset, err := cur.ReadUint32()
		if err != nil {
			return nil, err
		}
		entries[i] = rawEntry{
			width: wb[0], height: wb[1], colorCount: wb[2],
			planes: planes, bitCount: bitCount,
			bytesInRes: bytesInRes, imageOffset: imageOffset,
		}
	}

	bundle := &IconBundle{}
	for i, e := range entries {
		data, err := cur.Slice(e.imageOffset, e.imageOffset+e.bytesInRes)
		if err != nil {
			return nil, fmt.Errorf("rcres: image %d data out of bounds: %w", i, err)
		}
		bundle.Images = append(bundle.Images, IcoImage{
			Width: e.width, Height: e.height, ColorCount: e.colorCount,
			Planes: e.planes, BitCount: e.bitCount,
			Data: append([]byte(nil), data...),
		})
	}
	return bundle, nil
}

// EncodeGroupIcon builds the RT_GROUP_ICON resource bytes for bundle, with
// sequential RT_ICON ids starting at firstID. This preserves rescle.cc's
// SetIcon field-swap quirk bit-for-bit: bytesInRes is set from the source
// ICONDIRENTRY's bitCount, and bytesInRes2 from the source's bytesInRes
// (the actual image size), not the other way around. Fixing this would
// change the on-disk byte layout real rcedit-compatible tools expect.
func EncodeGroupIcon(bundle *IconBundle, firstID uint16) []byte {
	b := bcursor.NewBuilder()
	b.WriteUint16(0) // reserved
	b.WriteUint16(1) // type = icon
	b.WriteUint16(uint16(len(bundle.Images)))
	for i, img := range bundle.Images {
		b.WriteBytes([]byte{img.Width, img.Height, img.ColorCount, 0})
		b.WriteUint16(img.Planes)
		b.WriteUint16(img.BitCount)           // quirk: "bytesInRes" slot <- source bitCount
		b.WriteUint16(uint16(len(img.Data)))  // quirk: "bytesInRes2" slot <- source bytesInRes
		b.WriteUint16(0)                      // reserved2
		b.WriteUint16(firstID + uint16(i))
	}
	return b.Bytes()
}

// IconResourceID returns the RT_ICON id for the i-th image in a bundle
// written starting at firstID, matching EncodeGroupIcon's id assignment.
func IconResourceID(firstID uint16, i int) uint16 {
	return firstID + uint16(i)
}

// StaleIconIDs returns the RT_ICON ids that must be deleted when a bundle
// with newCount images replaces one that previously used ids up to and
// including maxPreviousID — rescle.cc's Commit loop that nulls out
// RT_ICON ids count+1..maxIconId after writing the new, smaller set.
func StaleIconIDs(firstID uint16, newCount int, maxPreviousID uint16) []uint16 {
	var stale []uint16
	for id := firstID + uint16(newCount); id <= maxPreviousID; id++ {
		stale = append(stale, id)
	}
	return stale
}
