package rcupdate

import pe "github.com/rcedit-go/rcedit"

// fakeCollaborator is an in-memory pe.Collaborator double so Updater's
// orchestration logic can be tested without a real PE file on disk.
type fakeCollaborator struct {
	initial map[pe.ResourceKey][]byte

	// committed captures the final entry set Commit was called with, for
	// assertions. nil until Commit runs.
	committed map[pe.ResourceKey][]byte
}

func newFakeCollaborator(initial map[pe.ResourceKey][]byte) *fakeCollaborator {
	if initial == nil {
		initial = map[pe.ResourceKey][]byte{}
	}
	return &fakeCollaborator{initial: initial}
}

type fakeHandle struct {
	entries map[pe.ResourceKey][]byte
}

type fakeSession struct {
	entries map[pe.ResourceKey][]byte
}

func (f *fakeCollaborator) Load(path string) (pe.Handle, error) {
	return &fakeHandle{entries: f.initial}, nil
}

func (f *fakeCollaborator) Enumerate(h pe.Handle, rtype pe.ResourceType) ([]pe.ResourceKey, error) {
	fh := h.(*fakeHandle)
	var keys []pe.ResourceKey
	for k := range fh.entries {
		if k.Type == rtype {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (f *fakeCollaborator) Read(h pe.Handle, key pe.ResourceKey) ([]byte, error) {
	fh := h.(*fakeHandle)
	data, ok := fh.entries[key]
	if !ok {
		return nil, pe.ErrResourceNotFound
	}
	return data, nil
}

func (f *fakeCollaborator) BeginUpdate(path string, deleteExisting bool) (pe.Session, error) {
	entries := map[pe.ResourceKey][]byte{}
	if !deleteExisting {
		for k, v := range f.initial {
			entries[k] = v
		}
	}
	return &fakeSession{entries: entries}, nil
}

func (f *fakeCollaborator) Update(s pe.Session, key pe.ResourceKey, data []byte) error {
	fs := s.(*fakeSession)
	if data == nil {
		delete(fs.entries, key)
		return nil
	}
	fs.entries[key] = data
	return nil
}

func (f *fakeCollaborator) Commit(s pe.Session) error {
	fs := s.(*fakeSession)
	f.committed = fs.entries
	return nil
}

func (f *fakeCollaborator) Discard(s pe.Session) error {
	return nil
}
