package bcursor

import "testing"

func TestAlign4(t *testing.T) {
	tests := []struct {
		in   uint32
		want uint32
	}{
		{0, 0},
		{1, 4},
		{2, 4},
		{3, 4},
		{4, 4},
		{5, 8},
		{17, 20},
	}
	for _, tt := range tests {
		if got := Align4(tt.in); got != tt.want {
			t.Errorf("Align4(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCursorReadUint16Uint32(t *testing.T) {
	buf := []byte{0x34, 0x12, 0x78, 0x56, 0x34, 0x12}
	c := NewCursor(buf)
	u16, err := c.ReadUint16()
	if err != nil || u16 != 0x1234 {
		t.Fatalf("ReadUint16() = %#x, %v; want 0x1234, nil", u16, err)
	}
	u32, err := c.ReadUint32()
	if err != nil || u32 != 0x12345678 {
		t.Fatalf("ReadUint32() = %#x, %v; want 0x12345678, nil", u32, err)
	}
	if c.Remaining() != 0 {
		t.Fatalf("Remaining() = %d, want 0", c.Remaining())
	}
}

func TestCursorOutsideBoundary(t *testing.T) {
	c := NewCursor([]byte{0x01})
	if _, err := c.ReadUint16(); err != ErrOutsideBoundary {
		t.Fatalf("ReadUint16() err = %v, want ErrOutsideBoundary", err)
	}
	if _, err := c.ReadBytes(5); err != ErrOutsideBoundary {
		t.Fatalf("ReadBytes() err = %v, want ErrOutsideBoundary", err)
	}
}

func TestCursorReadUTF16String(t *testing.T) {
	b := NewBuilder()
	b.WriteUTF16String("abc")
	b.WriteUint16(0xBEEF)
	c := NewCursor(b.Bytes())
	s, err := c.ReadUTF16String()
	if err != nil || s != "abc" {
		t.Fatalf("ReadUTF16String() = %q, %v; want \"abc\", nil", s, err)
	}
	rest, err := c.ReadUint16()
	if err != nil || rest != 0xBEEF {
		t.Fatalf("trailing ReadUint16() = %#x, %v; want 0xbeef, nil", rest, err)
	}
}

func TestBuilderPadTo4(t *testing.T) {
	b := NewBuilder()
	b.WriteBytes([]byte{1, 2, 3})
	b.PadTo4()
	if b.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", b.Len())
	}
	b.PadTo4()
	if b.Len() != 4 {
		t.Fatalf("PadTo4 on already-aligned buffer changed length to %d", b.Len())
	}
}

func TestEncodeDecodeUTF16RoundTrip(t *testing.T) {
	tests := []string{"", "hello", "Acme Corp.", "1.2.3.4"}
	for _, s := range tests {
		enc := EncodeUTF16(s)
		if got := DecodeUTF16(enc); got != s {
			t.Errorf("round trip %q -> %x -> %q", s, enc, got)
		}
		if got := UTF16Len(s); got != uint32(len(enc)/2) {
			t.Errorf("UTF16Len(%q) = %d, want %d", s, got, len(enc)/2)
		}
	}
}
