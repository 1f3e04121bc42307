package rcupdate

import (
	"os"

	pe "github.com/rcedit-go/rcedit"
	"github.com/rcedit-go/rcedit/internal/rclog"
	"github.com/rcedit-go/rcedit/rcres"
	"github.com/rcedit-go/rcedit/rcversion"
)

// state is the Updater's position in the Empty -> Loaded -> Edited* ->
// Committed | Dropped machine spec.md section 4.6 describes.
type state int

const (
	stateEmpty state = iota
	stateLoaded
	stateEdited
	stateCommitted
	stateDropped
)

// Updater drives one PE's resource edit session end to end: Load parses the
// existing resources into a ResourceModel, the Set/Get methods mutate or
// read it, and Commit replays it through a pe.Collaborator write session in
// the fixed order spec.md section 4.6 lists. Operations outside Loaded or
// Edited fail with ArgError; Commit may run at most once.
type Updater struct {
	st           state
	path         string
	collaborator pe.Collaborator
	handle       pe.Handle
	model        *ResourceModel
	readFile     func(string) ([]byte, error)
	log          *rclog.Helper
}

// Option configures an Updater at construction time.
type Option func(*Updater)

// WithLogger overrides the default stderr-at-warn logger.
func WithLogger(log *rclog.Helper) Option {
	return func(u *Updater) { u.log = log }
}

// WithFileReader overrides how SetIcon, SetRcData and Commit (for an
// explicit manifest path) read their input files, for tests that want to
// avoid real disk I/O.
func WithFileReader(read func(string) ([]byte, error)) Option {
	return func(u *Updater) { u.readFile = read }
}

// NewUpdater returns an Updater in the Empty state.
func NewUpdater(opts ...Option) *Updater {
	u := &Updater{
		st:       stateEmpty,
		log:      rclog.Default(),
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Updater) requireLoadedOrEdited() error {
	if u.st != stateLoaded && u.st != stateEdited {
		return newError(ArgError, "updater is not in a loaded/edited state", nil)
	}
	return nil
}

func (u *Updater) markEdited() {
	if u.st == stateLoaded {
		u.st = stateEdited
	}
}

// Load opens path through collaborator and ingests its existing STRING,
// VERSION, GROUP_ICON, ICON, and MANIFEST resources into a fresh
// ResourceModel, per spec.md section 4.6.
func (u *Updater) Load(path string, collaborator pe.Collaborator) error {
	if u.st != stateEmpty {
		return newError(ArgError, "Load called outside the Empty state", nil)
	}

	handle, err := collaborator.Load(path)
	if err != nil {
		return newError(OpenFailed, "opening "+path, err)
	}

	model := newResourceModel()
	if err := ingestVersions(collaborator, handle, model); err != nil {
		return newError(ParseFailed, "parsing RT_VERSION resources", err)
	}
	if err := ingestStrings(collaborator, handle, model); err != nil {
		return newError(ParseFailed, "parsing RT_STRING resources", err)
	}
	if err := ingestIcons(collaborator, handle, model); err != nil {
		return newError(ParseFailed, "parsing RT_ICON/RT_GROUP_ICON resources", err)
	}
	if err := ingestManifest(collaborator, handle, model); err != nil {
		return newError(ParseFailed, "parsing RT_MANIFEST resource", err)
	}

	if signed, ok := handle.(interface{ SignatureState() pe.SignatureState }); ok {
		if s := signed.SignatureState(); s.Signed {
			u.log.Warnf("%s is Authenticode-signed (signer %q); editing its resources will invalidate the signature", path, s.Signer)
		}
	}

	u.path = path
	u.collaborator = collaborator
	u.handle = handle
	u.model = model
	u.st = stateLoaded
	return nil
}

func ingestVersions(c pe.Collaborator, h pe.Handle, m *ResourceModel) error {
	keys, err := c.Enumerate(h, pe.RTVersion)
	if err != nil {
		return err
	}
	for _, key := range keys {
		data, err := c.Read(h, key)
		if err != nil {
			return err
		}
		v, err := rcversion.Deserialize(data)
		if err != nil {
			return err
		}
		m.noteLanguage(key.Language)
		m.VersionInfos[key.Language] = v
	}
	return nil
}

func ingestStrings(c pe.Collaborator, h pe.Handle, m *ResourceModel) error {
	keys, err := c.Enumerate(h, pe.RTString)
	if err != nil {
		return err
	}
	for _, key := range keys {
		data, err := c.Read(h, key)
		if err != nil {
			return err
		}
		block, err := rcres.DecodeStringBlock(data)
		if err != nil {
			return err
		}
		// The PE directory name is the 1-based block id (spec.md section 4.3).
		blockID := key.ID - 1
		m.StringBlocks[stringBlockKey{language: key.Language, block: blockID}] = block
	}
	return nil
}

func ingestIcons(c pe.Collaborator, h pe.Handle, m *ResourceModel) error {
	groupKeys, err := c.Enumerate(h, pe.RTGroupIcon)
	if err != nil {
		return err
	}
	for _, key := range groupKeys {
		// Placeholder only: payload is deferred until an edit supplies a
		// new bundle (spec.md section 4.6).
		m.iconLang(key.Language)
	}

	iconKeys, err := c.Enumerate(h, pe.RTIcon)
	if err != nil {
		return err
	}
	for _, key := range iconKeys {
		lang := m.iconLang(key.Language)
		if uint16(key.ID) > lang.maxIconID {
			lang.maxIconID = uint16(key.ID)
		}
	}
	return nil
}

func ingestManifest(c pe.Collaborator, h pe.Handle, m *ResourceModel) error {
	keys, err := c.Enumerate(h, pe.RTManifest)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	data, err := c.Read(h, keys[0])
	if err != nil {
		return err
	}
	m.Manifest = loadManifestState(data)
	return nil
}

// resolveLanguage returns *language if non-nil, else the primary (first
// encountered) RT_VERSION language, failing if neither is available —
// spec.md section 4.2's tie-break rule.
func (u *Updater) resolveLanguage(language *uint32) (uint32, error) {
	if language != nil {
		return *language, nil
	}
	lang, ok := u.model.primaryLanguage()
	if !ok {
		return 0, newError(ArgError, "no language specified and none loaded", nil)
	}
	return lang, nil
}

// SetVersionString sets/appends a version string, matching
// rcversion.VersionInfo.SetVersionString's per-table semantics.
func (u *Updater) SetVersionString(language *uint32, key, value string) error {
	if err := u.requireLoadedOrEdited(); err != nil {
		return err
	}
	lang, err := u.resolveLanguage(language)
	if err != nil {
		return err
	}
	v, ok := u.model.VersionInfos[lang]
	if !ok {
		return newError(NotFound, "no RT_VERSION resource for the resolved language", nil)
	}
	v.SetVersionString(nil, nil, key, value)
	u.markEdited()
	return nil
}

// GetVersionString reads a version string without mutating state.
func (u *Updater) GetVersionString(language *uint32, key string) (string, error) {
	if err := u.requireLoadedOrEdited(); err != nil {
		return "", err
	}
	lang, err := u.resolveLanguage(language)
	if err != nil {
		return "", err
	}
	v, ok := u.model.VersionInfos[lang]
	if !ok {
		return "", newError(NotFound, "no RT_VERSION resource for the resolved language", nil)
	}
	value, ok := v.GetVersionString(nil, nil, key)
	if !ok {
		return "", newError(NotFound, "version string "+key+" not found", nil)
	}
	return value, nil
}

// SetFileVersion sets FixedFileInfo.FileVersionMS/LS and, matching the
// source, the "FileVersion" string to the dotted v1.v2.v3.v4 form.
func (u *Updater) SetFileVersion(language *uint32, v1, v2, v3, v4 uint16) error {
	if err := u.requireLoadedOrEdited(); err != nil {
		return err
	}
	lang, err := u.resolveLanguage(language)
	if err != nil {
		return err
	}
	info := u.model.versionInfo(lang)
	if !info.HasFixedFileInfo() {
		return newError(MissingFixedFileInfo, "no FixedFileInfo to set file version on", nil)
	}
	if err := info.SetFileVersion(v1, v2, v3, v4); err != nil {
		return newError(MissingFixedFileInfo, "setting file version", err)
	}
	info.SetVersionString(nil, nil, "FileVersion", dottedVersion(v1, v2, v3, v4))
	u.markEdited()
	return nil
}

// SetProductVersion sets FixedFileInfo.ProductVersionMS/LS and the
// "ProductVersion" string.
func (u *Updater) SetProductVersion(language *uint32, v1, v2, v3, v4 uint16) error {
	if err := u.requireLoadedOrEdited(); err != nil {
		return err
	}
	lang, err := u.resolveLanguage(language)
	if err != nil {
		return err
	}
	info := u.model.versionInfo(lang)
	if !info.HasFixedFileInfo() {
		return newError(MissingFixedFileInfo, "no FixedFileInfo to set product version on", nil)
	}
	if err := info.SetProductVersion(v1, v2, v3, v4); err != nil {
		return newError(MissingFixedFileInfo, "setting product version", err)
	}
	info.SetVersionString(nil, nil, "ProductVersion", dottedVersion(v1, v2, v3, v4))
	u.markEdited()
	return nil
}

func dottedVersion(v1, v2, v3, v4 uint16) string {
	return uitoa(v1) + "." + uitoa(v2) + "." + uitoa(v3) + "." + uitoa(v4)
}

func uitoa(v uint16) string {
	if v == 0 {
		return "0"
	}
	var digits [5]byte
	i := len(digits)
	for v > 0 {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	return string(digits[i:])
}

// SetIcon replaces the first icon language's bundle with the one decoded
// from icoPath, matching rescle.cc's single-argument SetIcon overload that
// targets iconBundleMap.begin().
func (u *Updater) SetIcon(icoPath string) error {
	if err := u.requireLoadedOrEdited(); err != nil {
		return err
	}
	data, err := u.readFile(icoPath)
	if err != nil {
		return newError(IoFailed, "reading icon file "+icoPath, err)
	}
	bundle, err := rcres.DecodeICOFile(data)
	if err != nil {
		return newError(ParseFailed, "decoding icon file "+icoPath, err)
	}

	// rescle.cc's single-argument SetIcon targets iconBundleMap.begin(),
	// the lowest language id in the (ordered) std::map. Go map iteration
	// order is randomized, so the minimum is found explicitly instead of
	// trusting the first key seen.
	var lang *iconLangState
	if len(u.model.IconLangs) == 0 {
		lang = u.model.iconLang(0)
	} else {
		minLang, ok := uint32(0), false
		for l := range u.model.IconLangs {
			if !ok || l < minLang {
				minLang, ok = l, true
			}
		}
		lang = u.model.IconLangs[minLang]
	}
	lang.bundle = bundle
	lang.firstID = 1
	if uint16(len(bundle.Images)) > lang.maxIconID {
		lang.maxIconID = uint16(len(bundle.Images))
	}
	u.markEdited()
	return nil
}

// SetRequestedExecutionLevel rewrites the active manifest's execution
// level. Returns a warning (non-nil, non-fatal) if an explicit manifest
// path was also set — spec.md section 6.1's "-am also set" warning.
func (u *Updater) SetRequestedExecutionLevel(level string) (warning string, err error) {
	if err := u.requireLoadedOrEdited(); err != nil {
		return "", err
	}
	if u.model.Manifest == nil {
		return "", newError(NotFound, "no RT_MANIFEST resource to edit", nil)
	}
	if u.model.Manifest.setRequestedExecutionLevel(level) {
		warning = "both --set-requested-execution-level and --application-manifest were set; the explicit manifest path wins"
	}
	u.markEdited()
	return warning, nil
}

// SetApplicationManifest overrides the manifest with the verbatim contents
// of path. Returns a warning if a requested execution level was also set.
func (u *Updater) SetApplicationManifest(path string) (warning string, err error) {
	if err := u.requireLoadedOrEdited(); err != nil {
		return "", err
	}
	if u.model.Manifest == nil {
		return "", newError(NotFound, "no RT_MANIFEST resource to edit", nil)
	}
	if u.model.Manifest.setExplicitManifestPath(path) {
		warning = "both --set-requested-execution-level and --application-manifest were set; the explicit manifest path wins"
	}
	u.markEdited()
	return warning, nil
}

// SetResourceString sets the RT_STRING slot for id, computing its
// containing block via rcres.SplitStringID. Matching rescle.cc's
// ChangeString, it fails with NotFound if the target language or block was
// never loaded, rather than materializing an empty one.
func (u *Updater) SetResourceString(language *uint32, id uint32, value string) error {
	if err := u.requireLoadedOrEdited(); err != nil {
		return err
	}
	lang, err := u.resolveLanguage(language)
	if err != nil {
		return err
	}
	block, slot := rcres.SplitStringID(id)
	key := stringBlockKey{language: lang, block: block}
	b, ok := u.model.StringBlocks[key]
	if !ok {
		return newError(NotFound, "no RT_STRING block for the resolved id", nil)
	}
	if err := b.Set(slot, value); err != nil {
		return newError(ArgError, "setting resource string", err)
	}
	u.markEdited()
	return nil
}

// GetResourceString reads the RT_STRING slot for id.
func (u *Updater) GetResourceString(language *uint32, id uint32) (string, error) {
	if err := u.requireLoadedOrEdited(); err != nil {
		return "", err
	}
	lang, err := u.resolveLanguage(language)
	if err != nil {
		return "", err
	}
	block, slot := rcres.SplitStringID(id)
	key := stringBlockKey{language: lang, block: block}
	b, ok := u.model.StringBlocks[key]
	if !ok {
		return "", newError(NotFound, "no RT_STRING block for the resolved id", nil)
	}
	value, ok := b.Get(slot)
	if !ok {
		return "", newError(NotFound, "resource string slot is empty", nil)
	}
	return value, nil
}

// SetRcData replaces (or adds) the RT_RCDATA entry at id with dataPath's
// contents, for the resolved language. rescle.cc's ChangeRcData has no
// separate add path — a std::map::operator[] assignment either overwrites
// or inserts — so this mirrors that with a single Set call.
func (u *Updater) SetRcData(language *uint32, id uint32, dataPath string) error {
	if err := u.requireLoadedOrEdited(); err != nil {
		return err
	}
	lang, err := u.resolveLanguage(language)
	if err != nil {
		return err
	}
	data, err := u.readFile(dataPath)
	if err != nil {
		return newError(IoFailed, "reading rcdata file "+dataPath, err)
	}
	u.model.rcDataTable(lang).Set(id, data)
	u.markEdited()
	return nil
}

// Commit writes every change back to the target file via a fresh
// collaborator write session, in the fixed order spec.md section 4.6
// describes. On any failure the session is discarded and the on-disk file
// is left untouched. Commit may run at most once; the Updater moves to
// Committed on success and Dropped on failure.
func (u *Updater) Commit() error {
	if err := u.requireLoadedOrEdited(); err != nil {
		return err
	}

	if closer, ok := u.handle.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	u.handle = nil

	session, err := u.collaborator.BeginUpdate(u.path, false)
	if err != nil {
		u.st = stateDropped
		return newError(CommitFailed, "opening write session", err)
	}

	if err := u.writeAll(session); err != nil {
		_ = u.collaborator.Discard(session)
		u.st = stateDropped
		return newError(CommitFailed, "writing resources", err)
	}

	if err := u.collaborator.Commit(session); err != nil {
		u.st = stateDropped
		return newError(CommitFailed, "committing write session", err)
	}

	u.st = stateCommitted
	return nil
}

func (u *Updater) writeAll(session pe.Session) error {
	// (1) RT_VERSION id 1 per language.
	for lang, info := range u.model.VersionInfos {
		data, err := rcversion.Serialize(info)
		if err != nil {
			return err
		}
		if err := u.collaborator.Update(session, pe.ResourceKey{Language: lang, Type: pe.RTVersion, ID: 1}, data); err != nil {
			return err
		}
	}

	// (2) RT_MANIFEST id 1, only if editing is active.
	if u.model.Manifest != nil && u.model.Manifest.active() {
		var explicitBody []byte
		if u.model.Manifest.ExplicitManifestPath != nil {
			body, err := u.readFile(*u.model.Manifest.ExplicitManifestPath)
			if err != nil {
				return err
			}
			explicitBody = body
		}
		data := u.model.Manifest.render(explicitBody)
		key := pe.ResourceKey{Language: manifestLanguage, Type: pe.RTManifest, ID: 1}
		if err := u.collaborator.Update(session, key, data); err != nil {
			return err
		}
	}

	// (3) each RT_STRING block.
	for key, block := range u.model.StringBlocks {
		resKey := pe.ResourceKey{Language: key.language, Type: pe.RTString, ID: key.block + 1}
		if err := u.collaborator.Update(session, resKey, block.Encode()); err != nil {
			return err
		}
	}

	// (4) per icon language: RT_GROUP_ICON + RT_ICON 1..N, then deletions
	// for stale ids N+1..max_icon_id.
	for lang, iconState := range u.model.IconLangs {
		if iconState.bundle == nil {
			continue
		}
		firstID := iconState.firstID
		if firstID == 0 {
			firstID = 1
		}
		groupData := rcres.EncodeGroupIcon(iconState.bundle, firstID)
		groupKey := pe.ResourceKey{Language: lang, Type: pe.RTGroupIcon, ID: 1}
		if err := u.collaborator.Update(session, groupKey, groupData); err != nil {
			return err
		}
		for i, img := range iconState.bundle.Images {
			iconKey := pe.ResourceKey{
				Language: lang,
				Type:     pe.RTIcon,
				ID:       uint32(rcres.IconResourceID(firstID, i)),
			}
			if err := u.collaborator.Update(session, iconKey, img.Data); err != nil {
				return err
			}
		}
		for _, staleID := range rcres.StaleIconIDs(firstID, len(iconState.bundle.Images), iconState.maxIconID) {
			key := pe.ResourceKey{Language: lang, Type: pe.RTIcon, ID: uint32(staleID)}
			if err := u.collaborator.Update(session, key, nil); err != nil {
				return err
			}
		}
	}

	// (5) each RCDATA entry, verbatim.
	for lang, table := range u.model.RcData {
		for _, id := range table.IDs() {
			data, _ := table.Get(id)
			key := pe.ResourceKey{Language: lang, Type: pe.RTRCdata, ID: id}
			if err := u.collaborator.Update(session, key, data); err != nil {
				return err
			}
		}
	}

	return nil
}
