package rcversion

import "errors"

// ErrNoFixedFileInfo is returned by SetFileVersion/SetProductVersion when no
// FixedFileInfo block exists to update, matching rescle.cc's SetFileVersion
// family returning false when !HasFixedFileInfo().
var ErrNoFixedFileInfo = errors.New("rcversion: no FixedFileInfo present")

// SetVersionString sets key to value. If language or codePage is nil,
// rescle.cc's SetVersionString(key, value) semantics apply: update the
// string in every table that already has that key, and if no table has it,
// append it to every table. If both are non-nil, only that language/codepage
// table is touched (appended as a new table if absent), appending the key
// if absent.
func (v *VersionInfo) SetVersionString(language, codePage *uint16, key, value string) {
	if language == nil || codePage == nil {
		v.setVersionStringAllTables(key, value)
		return
	}
	idx := v.findTable(*language, *codePage)
	if idx < 0 {
		v.StringTables = append(v.StringTables, StringTable{Language: *language, CodePage: *codePage})
		idx = len(v.StringTables) - 1
	}
	v.setInTable(idx, key, value)
}

func (v *VersionInfo) setVersionStringAllTables(key, value string) {
	found := false
	for i := range v.StringTables {
		if v.StringTables[i].find(key) >= 0 {
			v.setInTable(i, key, value)
			found = true
		}
	}
	if found {
		return
	}
	// rescle.cc: not present anywhere — append to every existing table.
	for i := range v.StringTables {
		v.setInTable(i, key, value)
	}
}

func (v *VersionInfo) setInTable(idx int, key, value string) {
	t := &v.StringTables[idx]
	if i := t.find(key); i >= 0 {
		t.Strings[i].Value = value
		return
	}
	t.Strings = append(t.Strings, String{Key: key, Value: value})
}

// GetVersionString returns the value of key, preferring the given
// language/codepage table when non-nil, otherwise the first table
// (insertion order) that has it, and false if not found anywhere.
func (v *VersionInfo) GetVersionString(language, codePage *uint16, key string) (string, bool) {
	if language != nil && codePage != nil {
		if idx := v.findTable(*language, *codePage); idx >= 0 {
			if i := v.StringTables[idx].find(key); i >= 0 {
				return v.StringTables[idx].Strings[i].Value, true
			}
		}
		return "", false
	}
	for i := range v.StringTables {
		if j := v.StringTables[i].find(key); j >= 0 {
			return v.StringTables[i].Strings[j].Value, true
		}
	}
	return "", false
}

// SetFileVersion packs (v1,v2,v3,v4) into FileVersionMS/LS, rescle.cc's
// SetFileVersion(v1,v2,v3,v4): MS = v1<<16|v2, LS = v3<<16|v4.
func (v *VersionInfo) SetFileVersion(v1, v2, v3, v4 uint16) error {
	if v.Fixed == nil {
		return ErrNoFixedFileInfo
	}
	v.Fixed.FileVersionMS = uint32(v1)<<16 | uint32(v2)
	v.Fixed.FileVersionLS = uint32(v3)<<16 | uint32(v4)
	return nil
}

// SetProductVersion packs (v1,v2,v3,v4) into ProductVersionMS/LS.
func (v *VersionInfo) SetProductVersion(v1, v2, v3, v4 uint16) error {
	if v.Fixed == nil {
		return ErrNoFixedFileInfo
	}
	v.Fixed.ProductVersionMS = uint32(v1)<<16 | uint32(v2)
	v.Fixed.ProductVersionLS = uint32(v3)<<16 | uint32(v4)
	return nil
}
