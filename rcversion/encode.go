package rcversion

import (
	"encoding/binary"
	"fmt"

	"github.com/rcedit-go/rcedit/internal/bcursor"
)

// buildNode serializes one VS_VERSIONINFO node: a 6-byte header
// (wLength, wValueLength, wType), a NUL-terminated UTF-16LE key, the value
// bytes, and the already-serialized children, with Align4 padding after the
// key and after the value. Each child must already be a self-contained,
// 4-byte-aligned buffer (readNode/buildNode's invariant), so no padding is
// needed between children — matching rescle.cc's VersionStampValue::Serialize.
func buildNode(key string, wType uint16, wValueLength uint16, value []byte, children [][]byte) []byte {
	b := bcursor.NewBuilder()
	b.WriteUint16(0) // wLength placeholder, patched below
	b.WriteUint16(wValueLength)
	b.WriteUint16(wType)
	b.WriteUTF16String(key)
	b.PadTo4()
	b.WriteBytes(value)
	b.PadTo4()
	for _, c := range children {
		b.WriteBytes(c)
	}
	out := b.Bytes()
	binary.LittleEndian.PutUint16(out[0:2], uint16(len(out)))
	return out
}

// Serialize renders v back into a raw VS_VERSIONINFO resource blob.
func Serialize(v *VersionInfo) ([]byte, error) {
	var fixedValue []byte
	var fixedValueLen uint16
	if v.Fixed != nil {
		fixedValue = encodeFixedFileInfo(v.Fixed)
		fixedValueLen = fixedFileInfoSize
	}

	var children [][]byte
	if len(v.StringTables) > 0 {
		sfi, err := encodeStringFileInfo(v.StringTables)
		if err != nil {
			return nil, err
		}
		children = append(children, sfi)
	}
	if len(v.SupportedTranslations) > 0 {
		children = append(children, encodeVarFileInfo(v.SupportedTranslations))
	}

	return buildNode("VS_VERSION_INFO", 0, fixedValueLen, fixedValue, children), nil
}

func encodeFixedFileInfo(f *FixedFileInfo) []byte {
	b := bcursor.NewBuilder()
	for _, field := range []uint32{
		f.Signature, f.StrucVersion, f.FileVersionMS, f.FileVersionLS,
		f.ProductVersionMS, f.ProductVersionLS, f.FileFlagsMask, f.FileFlags,
		f.FileOS, f.FileType, f.FileSubtype, f.FileDateMS, f.FileDateLS,
	} {
		b.WriteUint32(field)
	}
	return b.Bytes()
}

func encodeStringFileInfo(tables []StringTable) ([]byte, error) {
	var tableNodes [][]byte
	for _, t := range tables {
		var stringNodes [][]byte
		for _, s := range t.Strings {
			// wValueLength counts WCHARs including the terminating NUL,
			// rescle.cc's VersionStringValue convention.
			valueLen := bcursor.UTF16Len(s.Value) + 1
			valueBytes := append(bcursor.EncodeUTF16(s.Value), 0, 0)
			stringNodes = append(stringNodes, buildNode(s.Key, 1, uint16(valueLen), valueBytes, nil))
		}
		key := fmt.Sprintf("%04x%04x", t.Language, t.CodePage)
		tableNodes = append(tableNodes, buildNode(key, 1, 0, nil, stringNodes))
	}
	return buildNode("StringFileInfo", 1, 0, nil, tableNodes), nil
}

func encodeVarFileInfo(translations []Translation) []byte {
	b := bcursor.NewBuilder()
	for _, t := range translations {
		b.WriteUint16(t.Language)
		b.WriteUint16(t.CodePage)
	}
	value := b.Bytes()
	translationNode := buildNode("Translation", 0, uint16(len(value)), value, nil)
	return buildNode("VarFileInfo", 1, 0, nil, [][]byte{translationNode})
}
