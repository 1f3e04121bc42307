// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import (
	"encoding/binary"
	"sort"
)

// ResourceLeaf is a single (type, id, language) resource entry flattened out
// of a resource directory tree, or about to be written back into one. The
// embedded PE resource writer treats resources as a flat, content-addressed
// store keyed by this triple, matching the collaborator contract of spec
// section 6.3 rather than walking the directory tree by hand.
type ResourceLeaf struct {
	Type ResourceType
	ID   uint32
	Lang uint32
	Data []byte
}

// FlattenResourceDirectory walks a parsed three-level resource directory
// (type -> name/id -> language) and returns its leaves. Named (string-keyed)
// entries at any level are skipped: every resource type this repo edits is
// addressed by a numeric id, so a string-named type or resource name falls
// outside the data model and is not returned; a section re-encoded from
// these leaves no longer contains it. Keeping such entries would require
// carrying names through ResourceLeaf, which no caller in this repo needs.
func FlattenResourceDirectory(dir ResourceDirectory) []ResourceLeaf {
	var leaves []ResourceLeaf
	for _, typeEntry := range dir.Entries {
		if !typeEntry.IsResourceDir || typeEntry.Name != "" {
			continue
		}
		rtype := ResourceType(typeEntry.ID)
		for _, idEntry := range typeEntry.Directory.Entries {
			if !idEntry.IsResourceDir || idEntry.Name != "" {
				continue
			}
			for _, langEntry := range idEntry.Directory.Entries {
				if langEntry.IsResourceDir {
					continue
				}
				leaves = append(leaves, ResourceLeaf{
					Type: rtype,
					ID:   idEntry.ID,
					Lang: langEntry.ID,
					Data: langEntry.Data.Bytes,
				})
			}
		}
	}
	return leaves
}

// resourceTreeType/resourceTreeID/resourceTreeLeaf are the in-memory shape
// EncodeResourceSection serializes: a
// 3-level tree matching IMAGE_RESOURCE_DIRECTORY's type/name-or-id/language
// nesting, built and kept sorted by ID at every level the way resource
// compilers emit them (ascending numeric id, per doParseResourceDirectory's
// own reading order expectations).
type resourceTreeLeaf struct {
	lang uint32
	data []byte
}

type resourceTreeID struct {
	id     uint32
	leaves []resourceTreeLeaf
}

type resourceTreeType struct {
	typ ResourceType
	ids []resourceTreeID
}

func buildResourceTree(entries []ResourceLeaf) []resourceTreeType {
	byType := map[ResourceType]map[uint32]map[uint32][]byte{}
	for _, e := range entries {
		byID, ok := byType[e.Type]
		if !ok {
			byID = map[uint32]map[uint32][]byte{}
			byType[e.Type] = byID
		}
		byLang, ok := byID[e.ID]
		if !ok {
			byLang = map[uint32][]byte{}
			byID[e.ID] = byLang
		}
		byLang[e.Lang] = e.Data
	}

	var types []resourceTreeType
	for t, byID := range byType {
		tn := resourceTreeType{typ: t}
		for id, byLang := range byID {
			idn := resourceTreeID{id: id}
			for lang, data := range byLang {
				idn.leaves = append(idn.leaves, resourceTreeLeaf{lang: lang, data: data})
			}
			sort.Slice(idn.leaves, func(i, j int) bool { return idn.leaves[i].lang < idn.leaves[j].lang })
			tn.ids = append(tn.ids, idn)
		}
		sort.Slice(tn.ids, func(i, j int) bool { return tn.ids[i].id < tn.ids[j].id })
		types = append(types, tn)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].typ < types[j].typ })
	return types
}

const (
	resourceDirHeaderSize = 16
	resourceDirEntrySize  = 8
	resourceDataEntrySize = 16
	resourceHighBitSubdir = 0x80000000
)

// EncodeResourceSection serializes a flat set of resource leaves into a
// complete IMAGE_RESOURCE_DIRECTORY tree (type -> id -> language -> data),
// the layout a resource compiler emits: a directory header and entry array
// per level, all directory levels before any IMAGE_RESOURCE_DATA_ENTRY
// structs, and the raw resource bytes last, each 4-byte aligned. sectionRVA
// is the virtual address the .rsrc section will be mapped at once written
// back, needed because IMAGE_RESOURCE_DATA_ENTRY.OffsetToData is an RVA, not
// an offset relative to the resource directory.
func EncodeResourceSection(entries []ResourceLeaf, sectionRVA uint32) []byte {
	types := buildResourceTree(entries)

	pos := uint32(resourceDirHeaderSize + len(types)*resourceDirEntrySize)

	typeDirOff := make([]uint32, len(types))
	idDirOff := make([][]uint32, len(types))
	for i, t := range types {
		typeDirOff[i] = pos
		pos += resourceDirHeaderSize + uint32(len(t.ids))*resourceDirEntrySize
		idDirOff[i] = make([]uint32, len(t.ids))
	}
	for i, t := range types {
		for j, idn := range t.ids {
			idDirOff[i][j] = pos
			pos += resourceDirHeaderSize + uint32(len(idn.leaves))*resourceDirEntrySize
		}
	}

	dataEntriesBase := pos
	type leafRef struct {
		typeIdx, idIdx, leafIdx int
		dataEntryOff            uint32
	}
	var refs []leafRef
	for i, t := range types {
		for j, idn := range t.ids {
			for k := range idn.leaves {
				refs = append(refs, leafRef{i, j, k, pos})
				pos += resourceDataEntrySize
			}
		}
	}

	blobOff := make([]uint32, len(refs))
	for k, r := range refs {
		blobOff[k] = pos
		leaf := types[r.typeIdx].ids[r.idIdx].leaves[r.leafIdx]
		pos += align4(uint32(len(leaf.data)))
	}

	total := pos
	buf := make([]byte, total)

	writeDirHeader := func(off uint32, numID uint16) {
		binary.LittleEndian.PutUint32(buf[off:], 0)   // Characteristics
		binary.LittleEndian.PutUint32(buf[off+4:], 0) // TimeDateStamp
		binary.LittleEndian.PutUint16(buf[off+8:], 0) // MajorVersion
		binary.LittleEndian.PutUint16(buf[off+10:], 0)
		binary.LittleEndian.PutUint16(buf[off+12:], 0) // NumberOfNamedEntries
		binary.LittleEndian.PutUint16(buf[off+14:], numID)
	}
	writeDirEntry := func(off uint32, entryIdx int, name, offsetToData uint32) {
		base := off + resourceDirHeaderSize + uint32(entryIdx)*resourceDirEntrySize
		binary.LittleEndian.PutUint32(buf[base:], name)
		binary.LittleEndian.PutUint32(buf[base+4:], offsetToData)
	}

	writeDirHeader(0, uint16(len(types)))
	for i, t := range types {
		writeDirEntry(0, i, uint32(t.typ), typeDirOff[i]|resourceHighBitSubdir)
		writeDirHeader(typeDirOff[i], uint16(len(t.ids)))
		for j, idn := range t.ids {
			writeDirEntry(typeDirOff[i], j, idn.id, idDirOff[i][j]|resourceHighBitSubdir)
		}
	}

	refIdx := 0
	for i, t := range types {
		for j, idn := range t.ids {
			writeDirHeader(idDirOff[i][j], uint16(len(idn.leaves)))
			for k := range idn.leaves {
				writeDirEntry(idDirOff[i][j], k, idn.leaves[k].lang, refs[refIdx].dataEntryOff)
				refIdx++
			}
		}
	}

	for k, r := range refs {
		leaf := types[r.typeIdx].ids[r.idIdx].leaves[r.leafIdx]
		off := dataEntriesBase + uint32(k)*resourceDataEntrySize
		binary.LittleEndian.PutUint32(buf[off:], sectionRVA+blobOff[k])
		binary.LittleEndian.PutUint32(buf[off+4:], uint32(len(leaf.data)))
		binary.LittleEndian.PutUint32(buf[off+8:], 0)  // CodePage
		binary.LittleEndian.PutUint32(buf[off+12:], 0) // Reserved
		copy(buf[blobOff[k]:], leaf.data)
	}

	return buf
}

func align4(n uint32) uint32 {
	return n + ((4 - (n % 4)) % 4)
}
