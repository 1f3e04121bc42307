// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
)

// ResourceKey addresses a single resource entry the way the collaborator
// contract treats one: a content-addressed (language, type, id) triple, not
// a position in a directory tree (spec section 6.3 — "the core never
// inspects the PE directory directly").
type ResourceKey struct {
	Language uint32
	Type     ResourceType
	ID       uint32
}

// Handle is an opaque reference to a loaded (read-only) PE, returned by
// Collaborator.Load.
type Handle interface{}

// Session is an opaque reference to an open update transaction, returned by
// Collaborator.BeginUpdate.
type Session interface{}

// Collaborator is the external PE resource-update collaborator spec.md
// section 6.3 describes: on Windows it would be backed by
// BeginUpdateResourceW/UpdateResourceW/EndUpdateResourceW
// (collaborator_windows.go); FileCollaborator is the portable, embedded
// reimplementation this repo ships for non-Windows use.
type Collaborator interface {
	Load(path string) (Handle, error)
	Enumerate(h Handle, rtype ResourceType) ([]ResourceKey, error)
	Read(h Handle, key ResourceKey) ([]byte, error)
	BeginUpdate(path string, deleteExisting bool) (Session, error)
	Update(s Session, key ResourceKey, data []byte) error
	Commit(s Session) error
	Discard(s Session) error
}

var (
	// ErrInvalidHandle is returned when a Handle was not produced by this
	// Collaborator's own Load.
	ErrInvalidHandle = errors.New("pe: invalid resource collaborator handle")

	// ErrInvalidSession is returned when a Session was not produced by this
	// Collaborator's own BeginUpdate.
	ErrInvalidSession = errors.New("pe: invalid resource collaborator session")

	// ErrResourceNotFound is returned by Read when the key is absent.
	ErrResourceNotFound = errors.New("pe: resource not found")

	// ErrNoResourceSection is returned by BeginUpdate when the file has no
	// resource data directory to anchor writes to.
	ErrNoResourceSection = errors.New("pe: file has no resource section")

	// ErrResourceSectionTooSmall is returned by Commit when the rewritten
	// resource blob does not fit the section's allocated raw size and the
	// resource section is not the file's last section, so it cannot be
	// grown in place without relocating every section after it. This
	// collaborator deliberately does not relocate the rest of the image;
	// see DESIGN.md.
	ErrResourceSectionTooSmall = errors.New("pe: resource section too small to hold the updated resources and is not the last section")
)

// FileCollaborator is the embedded, non-Windows implementation of
// Collaborator. It loads a PE via pe.File, re-derives the whole resource
// tree into a flat ResourceLeaf set on BeginUpdate, applies in-memory
// Update calls, and on Commit re-encodes the tree and patches it back into
// the resource section.
type FileCollaborator struct{}

// NewFileCollaborator returns the embedded PE resource-update collaborator.
func NewFileCollaborator() *FileCollaborator { return &FileCollaborator{} }

type fileHandle struct {
	file *File
}

// Close releases the underlying read-only PE parse. Callers type-assert for
// this before discarding a Handle, since Handle itself is opaque.
func (fh *fileHandle) Close() error {
	return fh.file.Close()
}

// SignatureState exposes the loaded file's Authenticode signature, so a
// caller can warn before editing resources invalidates it. Not part of the
// Collaborator interface itself (spec.md section 6.3 fixes that contract to
// seven methods) — callers type-assert a Handle for this optional method.
func (fh *fileHandle) SignatureState() SignatureState {
	return fh.file.SignatureState()
}

// Load opens path read-only and parses it just far enough to enumerate and
// read resources.
func (c *FileCollaborator) Load(path string) (Handle, error) {
	f, err := New(path, nil)
	if err != nil {
		return nil, err
	}
	if err := f.Parse(); err != nil {
		f.Close()
		return nil, err
	}
	return &fileHandle{file: f}, nil
}

// Enumerate lists the (language, id) resources present for rtype.
func (c *FileCollaborator) Enumerate(h Handle, rtype ResourceType) ([]ResourceKey, error) {
	fh, ok := h.(*fileHandle)
	if !ok {
		return nil, ErrInvalidHandle
	}
	var keys []ResourceKey
	for _, leaf := range FlattenResourceDirectory(fh.file.Resources) {
		if leaf.Type != rtype {
			continue
		}
		keys = append(keys, ResourceKey{Language: leaf.Lang, Type: leaf.Type, ID: leaf.ID})
	}
	return keys, nil
}

// Read returns the raw bytes of a single resource.
func (c *FileCollaborator) Read(h Handle, key ResourceKey) ([]byte, error) {
	fh, ok := h.(*fileHandle)
	if !ok {
		return nil, ErrInvalidHandle
	}
	for _, leaf := range FlattenResourceDirectory(fh.file.Resources) {
		if leaf.Type == key.Type && leaf.ID == key.ID && leaf.Lang == key.Language {
			return leaf.Data, nil
		}
	}
	return nil, ErrResourceNotFound
}

type fileSession struct {
	path           string
	raw            []byte
	entries        map[ResourceKey][]byte
	rsrcSectionIdx int
	sectionRVA     uint32
}

// BeginUpdate opens a write session against path. Unless deleteExisting is
// set, every resource already present is carried forward into the session's
// working set, matching BeginUpdateResourceW's default of preserving
// untouched resources; deleteExisting starts from an empty set the way
// BeginUpdateResourceW(bDeleteExistingResources=true) does.
func (c *FileCollaborator) BeginUpdate(path string, deleteExisting bool) (Session, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	f, err := NewBytes(append([]byte(nil), raw...), nil)
	if err != nil {
		return nil, err
	}
	if err := f.Parse(); err != nil {
		return nil, err
	}

	sectionRVA, err := dataDirectory(f, ImageDirectoryEntryResource)
	if err != nil {
		return nil, err
	}
	if sectionRVA.VirtualAddress == 0 {
		return nil, ErrNoResourceSection
	}

	secIdx := -1
	for i := range f.Sections {
		if f.Sections[i].Contains(sectionRVA.VirtualAddress, f) {
			secIdx = i
			break
		}
	}
	if secIdx < 0 {
		return nil, ErrNoResourceSection
	}

	entries := map[ResourceKey][]byte{}
	if !deleteExisting {
		for _, leaf := range FlattenResourceDirectory(f.Resources) {
			entries[ResourceKey{Language: leaf.Lang, Type: leaf.Type, ID: leaf.ID}] = leaf.Data
		}
	}

	return &fileSession{
		path:           path,
		raw:            raw,
		entries:        entries,
		rsrcSectionIdx: secIdx,
		sectionRVA:     f.Sections[secIdx].Header.VirtualAddress,
	}, nil
}

// Update sets or, when data is nil, deletes the resource addressed by key.
func (c *FileCollaborator) Update(s Session, key ResourceKey, data []byte) error {
	fs, ok := s.(*fileSession)
	if !ok {
		return ErrInvalidSession
	}
	if data == nil {
		delete(fs.entries, key)
		return nil
	}
	fs.entries[key] = append([]byte(nil), data...)
	return nil
}

// Commit re-encodes the resource tree and patches it into the file on disk,
// per the bounded in-place-or-fail strategy: if the new blob fits the
// section's already-allocated raw size it is rewritten in place; if not,
// and the resource section is the file's last section, the file is grown;
// otherwise Commit fails rather than relocate every following section.
func (c *FileCollaborator) Commit(s Session) error {
	fs, ok := s.(*fileSession)
	if !ok {
		return ErrInvalidSession
	}

	leaves := make([]ResourceLeaf, 0, len(fs.entries))
	for k, data := range fs.entries {
		leaves = append(leaves, ResourceLeaf{Type: k.Type, ID: k.ID, Lang: k.Language, Data: data})
	}
	encoded := EncodeResourceSection(leaves, fs.sectionRVA)

	f, err := NewBytes(append([]byte(nil), fs.raw...), nil)
	if err != nil {
		return err
	}
	if err := f.Parse(); err != nil {
		return err
	}

	fileAlignment, sectionAlignment, err := alignments(f)
	if err != nil {
		return err
	}

	sec := f.Sections[fs.rsrcSectionIdx]
	allocated := roundUp(sec.Header.SizeOfRawData, fileAlignment)
	encodedSize := uint32(len(encoded))

	var newRaw []byte
	var newSizeOfRawData, newVirtualSize uint32

	if encodedSize <= allocated {
		newRaw = append([]byte(nil), fs.raw...)
		region := newRaw[sec.Header.PointerToRawData : sec.Header.PointerToRawData+allocated]
		for i := range region {
			region[i] = 0
		}
		copy(region, encoded)
		newSizeOfRawData = sec.Header.SizeOfRawData
		newVirtualSize = encodedSize
	} else {
		if !isLastSection(f, fs.rsrcSectionIdx) {
			return ErrResourceSectionTooSmall
		}
		newSizeOfRawData = roundUp(encodedSize, fileAlignment)
		newVirtualSize = encodedSize
		padded := make([]byte, newSizeOfRawData)
		copy(padded, encoded)
		newRaw = append(append([]byte(nil), fs.raw[:sec.Header.PointerToRawData]...), padded...)
	}

	sec.Header.SizeOfRawData = newSizeOfRawData
	sec.Header.VirtualSize = newVirtualSize
	if err := patchSectionHeader(newRaw, f, fs.rsrcSectionIdx, sec.Header); err != nil {
		return err
	}
	if err := patchResourceDataDirectory(newRaw, f, sec.Header.VirtualAddress, encodedSize); err != nil {
		return err
	}

	grownImageSize := roundUp(sec.Header.VirtualAddress+newVirtualSize, sectionAlignment)
	if err := patchSizeOfImageIfGrown(newRaw, f, grownImageSize); err != nil {
		return err
	}

	return os.WriteFile(fs.path, newRaw, 0o644)
}

// Discard is a no-op: FileCollaborator never touches disk before Commit.
func (c *FileCollaborator) Discard(s Session) error {
	if _, ok := s.(*fileSession); !ok {
		return ErrInvalidSession
	}
	return nil
}

func roundUp(n, align uint32) uint32 {
	if align == 0 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}

func dataDirectory(f *File, entry ImageDirectoryEntry) (DataDirectory, error) {
	switch f.Is64 {
	case true:
		oh, ok := f.NtHeader.OptionalHeader.(ImageOptionalHeader64)
		if !ok {
			return DataDirectory{}, errors.New("pe: missing 64-bit optional header")
		}
		return oh.DataDirectory[entry], nil
	default:
		oh, ok := f.NtHeader.OptionalHeader.(ImageOptionalHeader32)
		if !ok {
			return DataDirectory{}, errors.New("pe: missing 32-bit optional header")
		}
		return oh.DataDirectory[entry], nil
	}
}

func alignments(f *File) (fileAlignment, sectionAlignment uint32, err error) {
	switch f.Is64 {
	case true:
		oh, ok := f.NtHeader.OptionalHeader.(ImageOptionalHeader64)
		if !ok {
			return 0, 0, errors.New("pe: missing 64-bit optional header")
		}
		return oh.FileAlignment, oh.SectionAlignment, nil
	default:
		oh, ok := f.NtHeader.OptionalHeader.(ImageOptionalHeader32)
		if !ok {
			return 0, 0, errors.New("pe: missing 32-bit optional header")
		}
		return oh.FileAlignment, oh.SectionAlignment, nil
	}
}

func isLastSection(f *File, idx int) bool {
	target := f.Sections[idx].Header.PointerToRawData
	for i, s := range f.Sections {
		if i == idx {
			continue
		}
		if s.Header.PointerToRawData > target {
			return false
		}
	}
	return true
}

func optionalHeaderOffset(f *File) uint32 {
	fileHeaderSize := uint32(binary.Size(f.NtHeader.FileHeader))
	return f.DOSHeader.AddressOfNewEXEHeader + 4 + fileHeaderSize
}

func sectionHeaderOffset(f *File, idx int) uint32 {
	secHeaderSize := uint32(binary.Size(ImageSectionHeader{}))
	base := optionalHeaderOffset(f) + uint32(f.NtHeader.FileHeader.SizeOfOptionalHeader)
	return base + uint32(idx)*secHeaderSize
}

func patchSectionHeader(raw []byte, f *File, idx int, hdr ImageSectionHeader) error {
	off := sectionHeaderOffset(f, idx)
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		return err
	}
	copy(raw[off:off+uint32(buf.Len())], buf.Bytes())
	return nil
}

func patchResourceDataDirectory(raw []byte, f *File, rva, size uint32) error {
	ohOff := optionalHeaderOffset(f)
	switch f.Is64 {
	case true:
		oh := f.NtHeader.OptionalHeader.(ImageOptionalHeader64)
		oh.DataDirectory[ImageDirectoryEntryResource] = DataDirectory{VirtualAddress: rva, Size: size}
		return patchOptionalHeader(raw, ohOff, oh)
	default:
		oh := f.NtHeader.OptionalHeader.(ImageOptionalHeader32)
		oh.DataDirectory[ImageDirectoryEntryResource] = DataDirectory{VirtualAddress: rva, Size: size}
		return patchOptionalHeader(raw, ohOff, oh)
	}
}

func patchSizeOfImageIfGrown(raw []byte, f *File, grown uint32) error {
	ohOff := optionalHeaderOffset(f)
	switch f.Is64 {
	case true:
		oh := f.NtHeader.OptionalHeader.(ImageOptionalHeader64)
		if grown <= oh.SizeOfImage {
			return nil
		}
		oh.SizeOfImage = grown
		return patchOptionalHeader(raw, ohOff, oh)
	default:
		oh := f.NtHeader.OptionalHeader.(ImageOptionalHeader32)
		if grown <= oh.SizeOfImage {
			return nil
		}
		oh.SizeOfImage = grown
		return patchOptionalHeader(raw, ohOff, oh)
	}
}

func patchOptionalHeader(raw []byte, offset uint32, oh interface{}) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, oh); err != nil {
		return err
	}
	copy(raw[offset:offset+uint32(buf.Len())], buf.Bytes())
	return nil
}
