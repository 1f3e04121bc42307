package bcursor

import "unicode/utf16"

// EncodeUTF16 returns s encoded as UTF-16LE code units, without a
// terminating NUL.
func EncodeUTF16(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units)*2)
	for i, u := range units {
		out[i*2] = byte(u)
		out[i*2+1] = byte(u >> 8)
	}
	return out
}

// DecodeUTF16 decodes a UTF-16LE byte slice (an even number of bytes,
// no terminating NUL expected) into a string.
func DecodeUTF16(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[i*2]) | uint16(b[i*2+1])<<8
	}
	return string(utf16.Decode(units))
}

// UTF16Len returns the number of UTF-16 code units s encodes to, the
// "WCHAR length" unit VS_VERSIONINFO's wValueLength uses for text nodes.
func UTF16Len(s string) uint32 {
	return uint32(len(utf16.Encode([]rune(s))))
}
