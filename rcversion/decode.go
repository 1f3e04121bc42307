package rcversion

import (
	"encoding/binary"
	"fmt"

	"github.com/rcedit-go/rcedit/internal/bcursor"
)

// node is one raw VS_VERSIONINFO tree node: header + key + value bytes +
// the byte range occupied by its children, not yet recursively parsed.
// This mirrors rescle.cc's GetChildrenData split (children start at
// round(header+key) and run for wLength-childrenOffset bytes).
type node struct {
	wLength      uint16
	wValueLength uint16
	wType        uint16
	key          string
	value        []byte
	children     []byte
}

// readNode reads one node starting at cur's current position and leaves
// cur positioned (4-byte aligned) right after the node, ready for the next
// sibling to be read.
func readNode(cur *bcursor.Cursor) (node, error) {
	var n node
	start := cur.Pos()

	wLength, err := cur.ReadUint16()
	if err != nil {
		return n, err
	}
	wValueLength, err := cur.ReadUint16()
	if err != nil {
		return n, err
	}
	wType, err := cur.ReadUint16()
	if err != nil {
		return n, err
	}
	key, err := cur.ReadUTF16String()
	if err != nil {
		return n, err
	}
	cur.AlignTo4()

	valueStart := cur.Pos()
	var valueBytes uint32
	if wType == 1 {
		valueBytes = uint32(wValueLength) * 2
	} else {
		valueBytes = uint32(wValueLength)
	}
	if valueBytes > 0 {
		v, err := cur.ReadBytes(valueBytes)
		if err != nil {
			return n, err
		}
		n.value = append([]byte(nil), v...)
	}
	cur.AlignTo4()

	nodeEnd := start + uint32(wLength)
	if nodeEnd < cur.Pos() || nodeEnd > cur.Len() {
		return n, fmt.Errorf("rcversion: node %q has invalid wLength %d", key, wLength)
	}
	childrenStart := cur.Pos()
	childSlice, err := cur.Slice(childrenStart, nodeEnd)
	if err != nil {
		return n, err
	}
	n.children = append([]byte(nil), childSlice...)
	_ = valueStart

	cur.Seek(nodeEnd)
	cur.AlignTo4()

	n.wLength = wLength
	n.wValueLength = wValueLength
	n.wType = wType
	n.key = key
	return n, nil
}

// Deserialize parses a raw VS_VERSIONINFO resource (the root node, szKey
// "VS_VERSION_INFO") into a VersionInfo tree.
func Deserialize(buf []byte) (*VersionInfo, error) {
	cur := bcursor.NewCursor(buf)
	root, err := readNode(cur)
	if err != nil {
		return nil, err
	}
	if root.key != "VS_VERSION_INFO" {
		return nil, fmt.Errorf("rcversion: unexpected root key %q", root.key)
	}

	v := &VersionInfo{}
	if len(root.value) >= fixedFileInfoSize {
		if fixed := decodeFixedFileInfo(root.value); fixed.Signature == FixedFileInfoSignature {
			v.Fixed = fixed
		}
	}

	childCur := bcursor.NewCursor(root.children)
	for childCur.Remaining() > 0 {
		child, err := readNode(childCur)
		if err != nil {
			return nil, err
		}
		switch child.key {
		case "StringFileInfo":
			tables, err := decodeStringFileInfo(child.children)
			if err != nil {
				return nil, err
			}
			v.StringTables = tables
		case "VarFileInfo":
			translations, err := decodeVarFileInfo(child.children)
			if err != nil {
				return nil, err
			}
			v.SupportedTranslations = translations
		}
	}
	return v, nil
}

func decodeFixedFileInfo(b []byte) *FixedFileInfo {
	f := &FixedFileInfo{}
	r := bcursor.NewCursor(b)
	fields := []*uint32{
		&f.Signature, &f.StrucVersion, &f.FileVersionMS, &f.FileVersionLS,
		&f.ProductVersionMS, &f.ProductVersionLS, &f.FileFlagsMask, &f.FileFlags,
		&f.FileOS, &f.FileType, &f.FileSubtype, &f.FileDateMS, &f.FileDateLS,
	}
	for _, field := range fields {
		val, err := r.ReadUint32()
		if err != nil {
			break
		}
		*field = val
	}
	return f
}

func decodeStringFileInfo(b []byte) ([]StringTable, error) {
	var tables []StringTable
	cur := bcursor.NewCursor(b)
	for cur.Remaining() > 0 {
		tableNode, err := readNode(cur)
		if err != nil {
			return nil, err
		}
		table, err := decodeStringTableKey(tableNode.key)
		if err != nil {
			return nil, err
		}
		strCur := bcursor.NewCursor(tableNode.children)
		for strCur.Remaining() > 0 {
			strNode, err := readNode(strCur)
			if err != nil {
				return nil, err
			}
			table.Strings = append(table.Strings, String{
				Key:   strNode.key,
				Value: decodeStringValue(strNode.value),
			})
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// decodeStringValue trims the trailing NUL a text-valued node's wValueLength
// includes, if present, since our in-memory String.Value excludes it.
func decodeStringValue(b []byte) string {
	s := bcursor.DecodeUTF16(b)
	if n := len(s); n > 0 && s[n-1] == 0 {
		s = s[:n-1]
	}
	return s
}

// decodeStringTableKey parses the 8-hex-digit szKey
// (language<<16 | codepage), rescle.cc's VersionStringTable key format.
func decodeStringTableKey(key string) (StringTable, error) {
	if len(key) != 8 {
		return StringTable{}, fmt.Errorf("rcversion: malformed StringTable key %q", key)
	}
	var packed uint32
	if _, err := fmt.Sscanf(key, "%08x", &packed); err != nil {
		return StringTable{}, fmt.Errorf("rcversion: malformed StringTable key %q: %w", key, err)
	}
	return StringTable{
		Language: uint16(packed >> 16),
		CodePage: uint16(packed),
	}, nil
}

func decodeVarFileInfo(b []byte) ([]Translation, error) {
	cur := bcursor.NewCursor(b)
	for cur.Remaining() > 0 {
		child, err := readNode(cur)
		if err != nil {
			return nil, err
		}
		if child.key != "Translation" {
			continue
		}
		var translations []Translation
		n := len(child.value) / 4
		for i := 0; i < n; i++ {
			lang := binary.LittleEndian.Uint16(child.value[i*4:])
			cp := binary.LittleEndian.Uint16(child.value[i*4+2:])
			translations = append(translations, Translation{Language: lang, CodePage: cp})
		}
		return translations, nil
	}
	return nil, nil
}
