// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import (
	"fmt"
	"testing"
)

func TestEncodeResourceSectionRoundTrip(t *testing.T) {
	entries := []ResourceLeaf{
		{Type: RTVersion, ID: 1, Lang: 0x409, Data: []byte("version-bytes")},
		{Type: RTString, ID: 1, Lang: 0x409, Data: []byte{1, 2, 3}},
		{Type: RTString, ID: 2, Lang: 0x409, Data: []byte{4, 5, 6, 7}},
		{Type: RTManifest, ID: 1, Lang: 1033, Data: []byte("<manifest/>")},
	}

	const sectionRVA = 0
	buf := EncodeResourceSection(entries, sectionRVA)

	file, err := NewBytes(buf, nil)
	if err != nil {
		t.Fatalf("NewBytes failed: %v", err)
	}
	dir, err := file.doParseResourceDirectory(0, uint32(len(buf)), 0, 0, nil)
	if err != nil {
		t.Fatalf("doParseResourceDirectory failed: %v", err)
	}

	got := map[string][]byte{}
	for _, leaf := range FlattenResourceDirectory(dir) {
		got[leafKey(leaf)] = leaf.Data
	}

	for _, want := range entries {
		gotData, ok := got[leafKey(want)]
		if !ok {
			t.Fatalf("missing leaf %+v after round trip", want)
		}
		if string(gotData) != string(want.Data) {
			t.Fatalf("leaf %+v data mismatch, got %q want %q", want, gotData, want.Data)
		}
	}
}

func leafKey(l ResourceLeaf) string {
	return fmt.Sprintf("%d|%d|%d", l.Type, l.ID, l.Lang)
}

func TestAlign4(t *testing.T) {
	tests := []struct {
		in, out uint32
	}{
		{0, 0}, {1, 4}, {3, 4}, {4, 4}, {5, 8},
	}
	for _, tt := range tests {
		if got := align4(tt.in); got != tt.out {
			t.Errorf("align4(%d) = %d, want %d", tt.in, got, tt.out)
		}
	}
}
