package rcupdate

import "strings"

// manifestLanguage is the hard-coded language id the source always writes
// RT_MANIFEST under, regardless of the original manifest's own language.
// Preserved deliberately; see SPEC_FULL.md.
const manifestLanguage = 1033

const (
	executionLevelStartToken = "requestedExecutionLevel"
	executionLevelEndToken   = "uiAccess"
	executionLevelStartSkip  = 31
	executionLevelEndSkip    = 33
)

// ManifestState is the manifest editing state spec.md section 3's DATA
// MODEL table describes: the manifest is cached as a narrow byte stream (not
// decoded as UTF-8) because the source locates requestedExecutionLevel by a
// byte-level substring match against wide literal keywords, a latent bug
// against multi-byte UTF-8 manifests that section 9 flags as an open
// question and this repo preserves rather than silently fixes.
type ManifestState struct {
	Original                string
	Current                 string
	OriginalExecutionLevel  string
	RequestedExecutionLevel *string
	ExplicitManifestPath    *string
}

// stripManifestLengthPrefix removes the single pascal-style length byte the
// stored RT_MANIFEST resource begins with, returning the narrow-string body.
func stripManifestLengthPrefix(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	return string(raw[1:])
}

// addManifestLengthPrefix re-adds the single length byte ahead of body,
// matching the source's on-disk framing. The length byte is a single
// unsigned byte, so bodies at or beyond 256 characters wrap; this is a
// preserved source quirk, not a repo-introduced bug.
func addManifestLengthPrefix(body string) []byte {
	out := make([]byte, 0, len(body)+1)
	out = append(out, byte(len(body)))
	out = append(out, body...)
	return out
}

// loadManifestState parses raw RT_MANIFEST resource bytes (as read off
// disk, length-byte prefix included) into a ManifestState, capturing the
// original execution level substring per spec.md section 4.5.
func loadManifestState(raw []byte) *ManifestState {
	body := stripManifestLengthPrefix(raw)
	level := locateExecutionLevel(body)
	return &ManifestState{
		Original:               body,
		Current:                body,
		OriginalExecutionLevel: level,
	}
}

// locateExecutionLevel mirrors rescle.cc's fixed-offset scan exactly:
//
//	found := manifestStringLocal.find(L"requestedExecutionLevel")
//	end   := manifestStringLocal.find(L"uiAccess", found)
//	original_executionLevel = manifestStringLocal.substr(found+31, end-found-33)
//
// Both offsets are relative to the START of "requestedExecutionLevel", not
// its end. It returns "" if either token is absent or the offsets do not
// leave a valid span.
func locateExecutionLevel(body string) string {
	startTok := strings.Index(body, executionLevelStartToken)
	if startTok < 0 {
		return ""
	}
	start := startTok + executionLevelStartSkip
	if start > len(body) {
		return ""
	}

	endRel := strings.Index(body[start:], executionLevelEndToken)
	if endRel < 0 {
		return ""
	}
	endTok := start + endRel
	length := endTok - startTok - executionLevelEndSkip
	if length < 0 || start+length > len(body) {
		return ""
	}
	return body[start : start+length]
}

// setRequestedExecutionLevel records level as the replacement for the
// captured original execution level. Returns true if explicitManifestPath
// was already set, signaling the caller should emit the "both set, explicit
// path wins" warning spec.md section 6.1 describes.
func (m *ManifestState) setRequestedExecutionLevel(level string) (warnExplicitAlsoSet bool) {
	m.RequestedExecutionLevel = &level
	return m.ExplicitManifestPath != nil
}

// setExplicitManifestPath records path as an override manifest to be read
// verbatim at commit time. Returns true if a requested execution level was
// already set, signaling the same warning in the other direction.
func (m *ManifestState) setExplicitManifestPath(path string) (warnExecutionLevelAlsoSet bool) {
	m.ExplicitManifestPath = &path
	return m.RequestedExecutionLevel != nil
}

// render produces the final RT_MANIFEST resource bytes to commit: either
// explicitBody (the verbatim contents of ExplicitManifestPath, read by the
// caller) when an explicit path is active, or the original manifest with
// every occurrence of the captured original execution level replaced by
// RequestedExecutionLevel.
func (m *ManifestState) render(explicitBody []byte) []byte {
	if m.ExplicitManifestPath != nil {
		return addManifestLengthPrefix(string(explicitBody))
	}
	body := m.Original
	if m.RequestedExecutionLevel != nil && m.OriginalExecutionLevel != "" {
		body = strings.ReplaceAll(m.Original, m.OriginalExecutionLevel, *m.RequestedExecutionLevel)
	}
	m.Current = body
	return addManifestLengthPrefix(body)
}

// active reports whether an edit has been requested against this manifest,
// the condition spec.md section 4.6 step 2 calls "manifest editing is
// active."
func (m *ManifestState) active() bool {
	return m.RequestedExecutionLevel != nil || m.ExplicitManifestPath != nil
}
