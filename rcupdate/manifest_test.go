package rcupdate

import "testing"

// sampleManifestBody mirrors the real Windows manifest layout rescle.cc's
// fixed-offset scan targets: `level="` sits exactly
// executionLevelStartSkip characters after the start of
// requestedExecutionLevel, and the closing quote plus a single space sit
// exactly executionLevelEndSkip characters before uiAccess, so
// locateExecutionLevel captures level verbatim without any synthetic
// padding.
func sampleManifestBody(level string) string {
	return "<" + executionLevelStartToken + " level=\"" + level + "\" " + executionLevelEndToken + "=\"false\"/>"
}

func TestLocateExecutionLevel(t *testing.T) {
	body := sampleManifestBody("asInvoker")
	got := locateExecutionLevel(body)
	if got != "asInvoker" {
		t.Fatalf("locateExecutionLevel(%q) = %q, want %q", body, got, "asInvoker")
	}
}

func TestManifestRenderReplacesExecutionLevel(t *testing.T) {
	body := sampleManifestBody("asInvoker")
	m := loadManifestState(addManifestLengthPrefix(body))
	if m.OriginalExecutionLevel == "" {
		t.Fatalf("OriginalExecutionLevel not captured from %q", body)
	}

	requested := "requireAdministrator"
	m.setRequestedExecutionLevel(requested)
	rendered := m.render(nil)

	gotBody := stripManifestLengthPrefix(rendered)
	if gotBody == body {
		t.Fatalf("render() did not change the manifest body")
	}
	if want := m.OriginalExecutionLevel; want != "" {
		for i := 0; i+len(want) <= len(gotBody); i++ {
			if gotBody[i:i+len(want)] == want {
				t.Fatalf("render() left an occurrence of the original execution level %q in %q", want, gotBody)
			}
		}
	}
}

func TestManifestRenderExplicitPathWins(t *testing.T) {
	body := sampleManifestBody("asInvoker")
	m := loadManifestState(addManifestLengthPrefix(body))

	requested := "requireAdministrator"
	m.setRequestedExecutionLevel(requested)
	path := "override.manifest"
	warned := m.setExplicitManifestPath(path)
	if !warned {
		t.Fatal("setExplicitManifestPath() = false, want true (execution level already set)")
	}

	explicitBody := []byte("<replacement/>")
	rendered := m.render(explicitBody)
	if got := stripManifestLengthPrefix(rendered); got != string(explicitBody) {
		t.Fatalf("render() = %q, want explicit body %q", got, explicitBody)
	}
}

func TestManifestActive(t *testing.T) {
	m := &ManifestState{}
	if m.active() {
		t.Fatal("active() = true for a freshly loaded manifest with no edits")
	}
	level := "asInvoker"
	m.RequestedExecutionLevel = &level
	if !m.active() {
		t.Fatal("active() = false after setting RequestedExecutionLevel")
	}
}

func TestManifestLengthPrefixRoundTrip(t *testing.T) {
	body := "hello manifest"
	raw := addManifestLengthPrefix(body)
	if int(raw[0]) != len(body) {
		t.Fatalf("length prefix = %d, want %d", raw[0], len(body))
	}
	if got := stripManifestLengthPrefix(raw); got != body {
		t.Fatalf("stripManifestLengthPrefix() = %q, want %q", got, body)
	}
}
