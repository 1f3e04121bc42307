package rcupdate

import (
	"github.com/rcedit-go/rcedit/rcres"
	"github.com/rcedit-go/rcedit/rcversion"
)

// stringBlockKey addresses one RT_STRING resource block for one language.
type stringBlockKey struct {
	language uint32
	block    uint32
}

// iconLangState is the icon state for one resource language: the current
// RT_GROUP_ICON/RT_ICON bundle plus the highest RT_ICON id that has ever
// been written for it, so Commit knows which now-stale ids to delete when a
// smaller bundle replaces a larger one (rcres.StaleIconIDs).
type iconLangState struct {
	bundle    *rcres.IconBundle
	firstID   uint16
	maxIconID uint16
}

// ResourceModel is the in-memory working set an Updater builds from a
// loaded PE and mutates before Commit writes it back. It mirrors the DATA
// MODEL table's keyed collections directly: everything is addressed by
// (language[, block/id]), never by position in the PE's directory tree.
type ResourceModel struct {
	VersionInfos map[uint32]*rcversion.VersionInfo
	StringBlocks map[stringBlockKey]*rcres.StringBlock
	IconLangs    map[uint32]*iconLangState
	Manifest     *ManifestState
	RcData       map[uint32]*rcres.RcDataTable

	// languageOrder records each RT_VERSION language the first time it is
	// seen, in enumeration order. spec.md section 4.2's tie-break rule
	// ("first language encountered during enumeration, stable insertion
	// order") depends on this: Go map iteration order is randomized, so the
	// tie-break language cannot be recovered from VersionInfos alone.
	languageOrder []uint32
	languageSeen  map[uint32]bool
}

// newResourceModel returns an empty model, the starting point both for a
// freshly parsed PE (populated by loadResourceModel) and conceptually for
// one with no resources at all.
func newResourceModel() *ResourceModel {
	return &ResourceModel{
		VersionInfos: make(map[uint32]*rcversion.VersionInfo),
		StringBlocks: make(map[stringBlockKey]*rcres.StringBlock),
		IconLangs:    make(map[uint32]*iconLangState),
		RcData:       make(map[uint32]*rcres.RcDataTable),
		languageSeen: make(map[uint32]bool),
	}
}

// noteLanguage records language in languageOrder the first time it is seen.
func (m *ResourceModel) noteLanguage(language uint32) {
	if m.languageSeen[language] {
		return
	}
	m.languageSeen[language] = true
	m.languageOrder = append(m.languageOrder, language)
}

// primaryLanguage returns the first RT_VERSION language encountered during
// Load, the default spec.md section 4.2 falls back to when a CLI operation
// does not name a language explicitly. Returns (0, false) if no RT_VERSION
// language was ever loaded.
func (m *ResourceModel) primaryLanguage() (uint32, bool) {
	if len(m.languageOrder) == 0 {
		return 0, false
	}
	return m.languageOrder[0], true
}

// versionInfo returns the VersionInfo for language, creating an empty one
// if absent — the state a language with no RT_VERSION resource yet starts
// from when an edit first touches it.
func (m *ResourceModel) versionInfo(language uint32) *rcversion.VersionInfo {
	m.noteLanguage(language)
	v, ok := m.VersionInfos[language]
	if !ok {
		v = rcversion.NewVersionInfo(nil)
		m.VersionInfos[language] = v
	}
	return v
}

// rcDataTable returns the RcDataTable for language, creating an empty one
// if absent.
func (m *ResourceModel) rcDataTable(language uint32) *rcres.RcDataTable {
	t, ok := m.RcData[language]
	if !ok {
		t = rcres.NewRcDataTable()
		m.RcData[language] = t
	}
	return t
}

// iconLang returns the iconLangState for language, creating an empty one
// if absent.
func (m *ResourceModel) iconLang(language uint32) *iconLangState {
	s, ok := m.IconLangs[language]
	if !ok {
		s = &iconLangState{}
		m.IconLangs[language] = s
	}
	return s
}
