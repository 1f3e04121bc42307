// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

//go:build windows

package pe

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// WindowsCollaborator implements Collaborator on top of the OS's own
// resource-update API (BeginUpdateResourceW / UpdateResourceW /
// EndUpdateResourceW), the collaborator spec.md section 6.3 calls "on
// Windows this is the OS API." It reads resources through pe.File the same
// way FileCollaborator does — the OS API has no general-purpose "enumerate
// and read" surface outside of EnumResourceNames/EnumResourceLanguages
// callbacks, which the teacher's File.Parse already gives us as a plain
// tree — and only defers to the native calls for the write path, which is
// the part the OS actually owns.
type WindowsCollaborator struct{}

// NewWindowsCollaborator returns the native Windows resource-update
// collaborator.
func NewWindowsCollaborator() *WindowsCollaborator { return &WindowsCollaborator{} }

func (c *WindowsCollaborator) Load(path string) (Handle, error) {
	return (&FileCollaborator{}).Load(path)
}

func (c *WindowsCollaborator) Enumerate(h Handle, rtype ResourceType) ([]ResourceKey, error) {
	return (&FileCollaborator{}).Enumerate(h, rtype)
}

func (c *WindowsCollaborator) Read(h Handle, key ResourceKey) ([]byte, error) {
	return (&FileCollaborator{}).Read(h, key)
}

var (
	modkernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procBeginUpdateResource = modkernel32.NewProc("BeginUpdateResourceW")
	procUpdateResource      = modkernel32.NewProc("UpdateResourceW")
	procEndUpdateResource   = modkernel32.NewProc("EndUpdateResourceW")
)

type windowsSession struct {
	handle syscall.Handle
}

// BeginUpdate opens a native update session via BeginUpdateResourceW.
// deleteExisting maps directly onto the API's own bDeleteExistingResources
// parameter.
func (c *WindowsCollaborator) BeginUpdate(path string, deleteExisting bool) (Session, error) {
	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}
	var delFlag uintptr
	if deleteExisting {
		delFlag = 1
	}
	h, _, callErr := procBeginUpdateResource.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		delFlag,
	)
	if h == 0 {
		return nil, callErr
	}
	return &windowsSession{handle: syscall.Handle(h)}, nil
}

// Update calls UpdateResourceW for a single (language, type, id) entry.
// data == nil removes the resource, exactly as a null lpData does in the
// native API.
func (c *WindowsCollaborator) Update(s Session, key ResourceKey, data []byte) error {
	ws, ok := s.(*windowsSession)
	if !ok {
		return ErrInvalidSession
	}

	var dataPtr uintptr
	var dataLen uintptr
	if data != nil {
		dataPtr = uintptr(unsafe.Pointer(&data[0]))
		dataLen = uintptr(len(data))
	}

	ret, _, callErr := procUpdateResource.Call(
		uintptr(ws.handle),
		uintptr(key.Type),
		uintptr(key.ID),
		uintptr(key.Language),
		dataPtr,
		dataLen,
	)
	if ret == 0 {
		return callErr
	}
	return nil
}

// Commit calls EndUpdateResourceW(fDiscard=false), persisting every Update
// call made on this session.
func (c *WindowsCollaborator) Commit(s Session) error {
	ws, ok := s.(*windowsSession)
	if !ok {
		return ErrInvalidSession
	}
	ret, _, callErr := procEndUpdateResource.Call(uintptr(ws.handle), 0)
	if ret == 0 {
		return callErr
	}
	return nil
}

// Discard calls EndUpdateResourceW(fDiscard=true), rolling back every
// Update call made on this session.
func (c *WindowsCollaborator) Discard(s Session) error {
	ws, ok := s.(*windowsSession)
	if !ok {
		return ErrInvalidSession
	}
	ret, _, callErr := procEndUpdateResource.Call(uintptr(ws.handle), 1)
	if ret == 0 {
		return callErr
	}
	return nil
}
