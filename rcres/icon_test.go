package rcres

import (
	"encoding/binary"
	"testing"
)

// buildICOFile assembles a minimal single-image .ico file for tests.
func buildICOFile(t *testing.T, imageData []byte) []byte {
	t.Helper()
	header := make([]byte, 6)
	binary.LittleEndian.PutUint16(header[0:], 0) // reserved
	binary.LittleEndian.PutUint16(header[2:], 1) // type
	binary.LittleEndian.PutUint16(header[4:], 1) // count

	entry := make([]byte, icoEntrySize)
	entry[0] = 32 // width
	entry[1] = 32 // height
	entry[2] = 0  // colorCount
	entry[3] = 0  // reserved
	binary.LittleEndian.PutUint16(entry[4:], 1)                           // planes
	binary.LittleEndian.PutUint16(entry[6:], 32)                          // bitCount
	binary.LittleEndian.PutUint32(entry[8:], uint32(len(imageData)))      // bytesInRes
	binary.LittleEndian.PutUint32(entry[12:], uint32(len(header)+len(entry))) // imageOffset

	out := append(append([]byte{}, header...), entry...)
	out = append(out, imageData...)
	return out
}

func TestDecodeICOFile(t *testing.T) {
	imageData := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	buf := buildICOFile(t, imageData)

	bundle, err := DecodeICOFile(buf)
	if err != nil {
		t.Fatalf("DecodeICOFile() error: %v", err)
	}
	if len(bundle.Images) != 1 {
		t.Fatalf("len(Images) = %d, want 1", len(bundle.Images))
	}
	img := bundle.Images[0]
	if img.Width != 32 || img.Height != 32 || img.BitCount != 32 {
		t.Errorf("image metadata = %+v, want width/height=32 bitCount=32", img)
	}
	if string(img.Data) != string(imageData) {
		t.Errorf("image data = %x, want %x", img.Data, imageData)
	}
}

func TestDecodeICOFileRejectsNonIcon(t *testing.T) {
	buf := make([]byte, 6)
	binary.LittleEndian.PutUint16(buf[2:], 2) // type = cursor, not icon
	if _, err := DecodeICOFile(buf); err == nil {
		t.Fatal("expected error for non-icon type, got nil")
	}
}

func TestEncodeGroupIconPreservesFieldSwapQuirk(t *testing.T) {
	bundle := &IconBundle{Images: []IcoImage{
		{Width: 16, Height: 16, BitCount: 24, Data: make([]byte, 1128)},
	}}
	grp := EncodeGroupIcon(bundle, 1)

	// GRPICONDIRENTRY starts at offset 6, is 14 bytes: 4 BYTE fields,
	// planes WORD, bytesInRes WORD, bytesInRes2 WORD, reserved2 WORD, id WORD.
	entry := grp[6 : 6+grpIconEntrySize]
	bytesInRes := binary.LittleEndian.Uint16(entry[6:8])
	bytesInRes2 := binary.LittleEndian.Uint16(entry[8:10])
	id := binary.LittleEndian.Uint16(entry[12:14])

	if bytesInRes != 24 {
		t.Errorf("bytesInRes = %d, want source bitCount 24 (preserved quirk)", bytesInRes)
	}
	if bytesInRes2 != 1128 {
		t.Errorf("bytesInRes2 = %d, want source image size 1128 (preserved quirk)", bytesInRes2)
	}
	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}
}

func TestStaleIconIDs(t *testing.T) {
	ids := StaleIconIDs(1, 2, 5)
	want := []uint16{3, 4, 5}
	if len(ids) != len(want) {
		t.Fatalf("StaleIconIDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("StaleIconIDs()[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}

func TestStaleIconIDsEmptyWhenGrowing(t *testing.T) {
	if ids := StaleIconIDs(1, 5, 3); len(ids) != 0 {
		t.Errorf("StaleIconIDs() = %v, want empty", ids)
	}
}
