package rcupdate

import (
	"testing"

	pe "github.com/rcedit-go/rcedit"
	"github.com/rcedit-go/rcedit/rcres"
	"github.com/rcedit-go/rcedit/rcversion"
)

func sampleVersionInfo() *rcversion.VersionInfo {
	return &rcversion.VersionInfo{
		Fixed: &rcversion.FixedFileInfo{
			Signature:     rcversion.FixedFileInfoSignature,
			FileVersionMS: 0x00010000,
			FileVersionLS: 0x00000000,
		},
		StringTables: []rcversion.StringTable{
			{
				Language: 0x0409,
				CodePage: 0x04B0,
				Strings: []rcversion.String{
					{Key: "CompanyName", Value: "Acme Corp."},
				},
			},
		},
	}
}

func versionEntries(t *testing.T, lang uint32) map[pe.ResourceKey][]byte {
	t.Helper()
	raw, err := rcversion.Serialize(sampleVersionInfo())
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	return map[pe.ResourceKey][]byte{
		{Language: lang, Type: pe.RTVersion, ID: 1}: raw,
	}
}

func loadUpdater(t *testing.T, entries map[pe.ResourceKey][]byte) (*Updater, *fakeCollaborator) {
	t.Helper()
	collab := newFakeCollaborator(entries)
	u := NewUpdater()
	if err := u.Load("dummy.exe", collab); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return u, collab
}

func TestUpdaterSetVersionStringCommits(t *testing.T) {
	u, collab := loadUpdater(t, versionEntries(t, 0x0409))

	if err := u.SetVersionString(nil, "CompanyName", "New Corp."); err != nil {
		t.Fatalf("SetVersionString() error: %v", err)
	}
	if err := u.Commit(); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}

	key := pe.ResourceKey{Language: 0x0409, Type: pe.RTVersion, ID: 1}
	raw, ok := collab.committed[key]
	if !ok {
		t.Fatalf("committed set has no RT_VERSION entry")
	}
	got, err := rcversion.Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if val, ok := got.GetVersionString(nil, nil, "CompanyName"); !ok || val != "New Corp." {
		t.Fatalf("CompanyName = %q, %v; want \"New Corp.\", true", val, ok)
	}
}

func TestUpdaterGetVersionStringNoLanguageLoaded(t *testing.T) {
	u, _ := loadUpdater(t, nil)
	if _, err := u.GetVersionString(nil, "CompanyName"); err == nil {
		t.Fatal("GetVersionString() error = nil, want ArgError (no language loaded)")
	}
}

func TestUpdaterGetVersionStringNotFound(t *testing.T) {
	u, _ := loadUpdater(t, versionEntries(t, 0x0409))
	if _, err := u.GetVersionString(nil, "NoSuchKey"); err == nil {
		t.Fatal("GetVersionString() error = nil, want NotFound")
	} else if rerr, ok := err.(*Error); !ok || rerr.Kind != NotFound {
		t.Fatalf("GetVersionString() err = %v, want Kind=NotFound", err)
	}
}

func TestUpdaterSetFileVersionRequiresFixedFileInfo(t *testing.T) {
	raw, err := rcversion.Serialize(rcversion.NewVersionInfo(nil))
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	entries := map[pe.ResourceKey][]byte{
		{Language: 0x0409, Type: pe.RTVersion, ID: 1}: raw,
	}
	u, _ := loadUpdater(t, entries)
	if err := u.SetFileVersion(nil, 1, 2, 3, 4); err == nil {
		t.Fatal("SetFileVersion() error = nil, want MissingFixedFileInfo")
	} else if rerr, ok := err.(*Error); !ok || rerr.Kind != MissingFixedFileInfo {
		t.Fatalf("SetFileVersion() err = %v, want Kind=MissingFixedFileInfo", err)
	}
}

func TestUpdaterSetFileVersionUpdatesStringToo(t *testing.T) {
	u, collab := loadUpdater(t, versionEntries(t, 0x0409))
	if err := u.SetFileVersion(nil, 1, 2, 3, 4); err != nil {
		t.Fatalf("SetFileVersion() error: %v", err)
	}
	if err := u.Commit(); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	raw := collab.committed[pe.ResourceKey{Language: 0x0409, Type: pe.RTVersion, ID: 1}]
	got, err := rcversion.Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if got.Fixed.FileVersionMS != 0x00010002 || got.Fixed.FileVersionLS != 0x00030004 {
		t.Fatalf("FileVersion not packed: MS=%#x LS=%#x", got.Fixed.FileVersionMS, got.Fixed.FileVersionLS)
	}
	if val, ok := got.GetVersionString(nil, nil, "FileVersion"); !ok || val != "1.2.3.4" {
		t.Fatalf("FileVersion string = %q, %v; want \"1.2.3.4\", true", val, ok)
	}
}

func TestUpdaterCommitTwiceFails(t *testing.T) {
	u, _ := loadUpdater(t, versionEntries(t, 0x0409))
	if err := u.Commit(); err != nil {
		t.Fatalf("first Commit() error: %v", err)
	}
	if err := u.Commit(); err == nil {
		t.Fatal("second Commit() error = nil, want ArgError")
	}
}

func TestUpdaterSetResourceStringRoundTrip(t *testing.T) {
	block := &rcres.StringBlock{}
	block.Set(3, "hello")
	entries := map[pe.ResourceKey][]byte{
		{Language: 0x0409, Type: pe.RTString, ID: 1}: block.Encode(), // block id 0 -> PE name 1
	}
	u, collab := loadUpdater(t, entries)

	lang := uint32(0x0409)
	if err := u.SetResourceString(&lang, 3, "world"); err != nil {
		t.Fatalf("SetResourceString() error: %v", err)
	}
	if err := u.Commit(); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}

	raw := collab.committed[pe.ResourceKey{Language: 0x0409, Type: pe.RTString, ID: 1}]
	got, err := rcres.DecodeStringBlock(raw)
	if err != nil {
		t.Fatalf("DecodeStringBlock() error: %v", err)
	}
	if v, ok := got.Get(3); !ok || v != "world" {
		t.Fatalf("slot 3 = %q, %v; want \"world\", true", v, ok)
	}
}

func TestUpdaterSetResourceStringNotFoundWhenBlockAbsent(t *testing.T) {
	u, _ := loadUpdater(t, versionEntries(t, 0x0409))
	if err := u.SetResourceString(nil, 3, "world"); err == nil {
		t.Fatal("SetResourceString() error = nil, want NotFound (no RT_STRING block loaded)")
	} else if rerr, ok := err.(*Error); !ok || rerr.Kind != NotFound {
		t.Fatalf("SetResourceString() err = %v, want Kind=NotFound", err)
	}
}

func TestUpdaterGetResourceStringNotFound(t *testing.T) {
	u, _ := loadUpdater(t, versionEntries(t, 0x0409))
	if _, err := u.GetResourceString(nil, 5); err == nil {
		t.Fatal("GetResourceString() error = nil, want NotFound")
	}
}

func buildICOBytes(img []byte) []byte {
	header := []byte{0, 0, 1, 0, 1, 0}
	entry := make([]byte, 16)
	entry[0], entry[1], entry[2], entry[3] = 16, 16, 0, 0
	entry[4], entry[5] = 1, 0 // planes
	entry[6], entry[7] = 32, 0 // bitCount
	le32 := func(b []byte, v uint32) {
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
		b[3] = byte(v >> 24)
	}
	le32(entry[8:12], uint32(len(img)))
	le32(entry[12:16], uint32(len(header)+len(entry)))
	out := append([]byte{}, header...)
	out = append(out, entry...)
	out = append(out, img...)
	return out
}

func TestUpdaterSetIconReplacesFirstBundleAndDeletesStaleIcons(t *testing.T) {
	entries := map[pe.ResourceKey][]byte{
		{Language: 0x0409, Type: pe.RTGroupIcon, ID: 1}: {},
		{Language: 0x0409, Type: pe.RTIcon, ID: 1}:      {1},
		{Language: 0x0409, Type: pe.RTIcon, ID: 2}:      {2},
		{Language: 0x0409, Type: pe.RTIcon, ID: 3}:      {3},
	}
	u, collab := loadUpdater(t, entries)

	icoBytes := buildICOBytes([]byte{0xde, 0xad, 0xbe, 0xef})
	u.readFile = func(string) ([]byte, error) { return icoBytes, nil }

	if err := u.SetIcon("icon.ico"); err != nil {
		t.Fatalf("SetIcon() error: %v", err)
	}
	if err := u.Commit(); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}

	if _, ok := collab.committed[pe.ResourceKey{Language: 0x0409, Type: pe.RTIcon, ID: 1}]; !ok {
		t.Error("expected RT_ICON id 1 to survive the commit")
	}
	if _, ok := collab.committed[pe.ResourceKey{Language: 0x0409, Type: pe.RTIcon, ID: 2}]; ok {
		t.Error("expected stale RT_ICON id 2 to be deleted")
	}
	if _, ok := collab.committed[pe.ResourceKey{Language: 0x0409, Type: pe.RTIcon, ID: 3}]; ok {
		t.Error("expected stale RT_ICON id 3 to be deleted")
	}
	if _, ok := collab.committed[pe.ResourceKey{Language: 0x0409, Type: pe.RTGroupIcon, ID: 1}]; !ok {
		t.Error("expected RT_GROUP_ICON id 1 to be rewritten")
	}
}

func TestUpdaterSetRcDataAddsEntry(t *testing.T) {
	u, collab := loadUpdater(t, versionEntries(t, 0x0409))
	u.readFile = func(string) ([]byte, error) { return []byte("blob"), nil }

	if err := u.SetRcData(nil, 7, "data.bin"); err != nil {
		t.Fatalf("SetRcData() error: %v", err)
	}
	if err := u.Commit(); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}

	data, ok := collab.committed[pe.ResourceKey{Language: 0x0409, Type: pe.RTRCdata, ID: 7}]
	if !ok || string(data) != "blob" {
		t.Fatalf("committed rcdata = %q, %v; want \"blob\", true", data, ok)
	}
}
