package rcversion

import "testing"

func sampleVersionInfo() *VersionInfo {
	lang := uint16(0x0409)
	cp := uint16(0x04B0)
	return &VersionInfo{
		Fixed: &FixedFileInfo{
			Signature:     FixedFileInfoSignature,
			FileVersionMS: 0x00010002,
			FileVersionLS: 0x00030004,
		},
		StringTables: []StringTable{
			{
				Language: lang,
				CodePage: cp,
				Strings: []String{
					{Key: "CompanyName", Value: "Acme Corp."},
					{Key: "FileDescription", Value: "Acme Tool"},
				},
			},
		},
		SupportedTranslations: []Translation{{Language: lang, CodePage: cp}},
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	v := sampleVersionInfo()
	raw, err := Serialize(v)
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	if len(raw)%4 != 0 {
		t.Fatalf("serialized length %d not 4-byte aligned", len(raw))
	}
	got, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if got.Fixed == nil || got.Fixed.Signature != FixedFileInfoSignature {
		t.Fatalf("FixedFileInfo not round-tripped: %+v", got.Fixed)
	}
	if got.Fixed.FileVersionMS != 0x00010002 || got.Fixed.FileVersionLS != 0x00030004 {
		t.Fatalf("FileVersion not round-tripped: MS=%#x LS=%#x", got.Fixed.FileVersionMS, got.Fixed.FileVersionLS)
	}
	if len(got.StringTables) != 1 || len(got.StringTables[0].Strings) != 2 {
		t.Fatalf("StringTables not round-tripped: %+v", got.StringTables)
	}
	if val, ok := got.GetVersionString(nil, nil, "CompanyName"); !ok || val != "Acme Corp." {
		t.Fatalf("CompanyName = %q, %v; want \"Acme Corp.\", true", val, ok)
	}
	if len(got.SupportedTranslations) != 1 || got.SupportedTranslations[0].Language != 0x0409 {
		t.Fatalf("SupportedTranslations not round-tripped: %+v", got.SupportedTranslations)
	}
}

func TestSetVersionStringAppendsToAllTablesWhenAbsent(t *testing.T) {
	v := sampleVersionInfo()
	v.StringTables = append(v.StringTables, StringTable{Language: 0x0409, CodePage: 0x04E4})
	v.SetVersionString(nil, nil, "LegalCopyright", "(c) Acme")
	for i, table := range v.StringTables {
		if table.find("LegalCopyright") < 0 {
			t.Errorf("table %d missing appended LegalCopyright", i)
		}
	}
}

func TestSetVersionStringUpdatesExistingOnly(t *testing.T) {
	v := sampleVersionInfo()
	v.SetVersionString(nil, nil, "CompanyName", "New Corp.")
	val, ok := v.GetVersionString(nil, nil, "CompanyName")
	if !ok || val != "New Corp." {
		t.Fatalf("CompanyName = %q, %v; want \"New Corp.\", true", val, ok)
	}
	if n := len(v.StringTables[0].Strings); n != 2 {
		t.Errorf("len(Strings) = %d, want 2 (existing key updated, nothing appended)", n)
	}
}

func TestSetFileVersionRequiresFixedFileInfo(t *testing.T) {
	v := NewVersionInfo(nil)
	if err := v.SetFileVersion(1, 2, 3, 4); err != ErrNoFixedFileInfo {
		t.Fatalf("SetFileVersion() err = %v, want ErrNoFixedFileInfo", err)
	}
}

func TestSetFileVersionPacksMSLS(t *testing.T) {
	v := sampleVersionInfo()
	if err := v.SetFileVersion(1, 2, 3, 4); err != nil {
		t.Fatalf("SetFileVersion() error: %v", err)
	}
	if v.Fixed.FileVersionMS != 0x00010002 {
		t.Errorf("FileVersionMS = %#x, want 0x00010002", v.Fixed.FileVersionMS)
	}
	if v.Fixed.FileVersionLS != 0x00030004 {
		t.Errorf("FileVersionLS = %#x, want 0x00030004", v.Fixed.FileVersionLS)
	}
}
