package pdb

import (
	"bytes"
	"compress/flate"
	"debug/pe"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// tableID numbers the ECMA-335 metadata tables plus the Portable PDB
// extension tables (0x30-0x37), matching the reference table numbering
// exactly so token math (0x06000000 | row) lines up.
type tableID byte

const (
	tblModule                 tableID = 0x00
	tblTypeRef                tableID = 0x01
	tblTypeDef                tableID = 0x02
	tblField                  tableID = 0x04
	tblMethodDef              tableID = 0x06
	tblParam                  tableID = 0x08
	tblInterfaceImpl          tableID = 0x09
	tblMemberRef              tableID = 0x0A
	tblConstant               tableID = 0x0B
	tblCustomAttribute        tableID = 0x0C
	tblFieldMarshal           tableID = 0x0D
	tblDeclSecurity           tableID = 0x0E
	tblClassLayout            tableID = 0x0F
	tblFieldLayout            tableID = 0x10
	tblStandAloneSig          tableID = 0x11
	tblEventMap               tableID = 0x12
	tblEvent                  tableID = 0x14
	tblPropertyMap            tableID = 0x15
	tblProperty               tableID = 0x17
	tblMethodSemantics        tableID = 0x18
	tblMethodImpl             tableID = 0x19
	tblModuleRef              tableID = 0x1A
	tblTypeSpec               tableID = 0x1B
	tblImplMap                tableID = 0x1C
	tblFieldRVA               tableID = 0x1D
	tblAssembly               tableID = 0x20
	tblAssemblyProcessor      tableID = 0x21
	tblAssemblyOS             tableID = 0x22
	tblAssemblyRef            tableID = 0x23
	tblAssemblyRefProcessor   tableID = 0x24
	tblAssemblyRefOS          tableID = 0x25
	tblFile                   tableID = 0x26
	tblExportedType           tableID = 0x27
	tblManifestResource       tableID = 0x28
	tblNestedClass            tableID = 0x29
	tblGenericParam           tableID = 0x2A
	tblMethodSpec             tableID = 0x2B
	tblGenericParamConstraint tableID = 0x2C

	tblDocument              tableID = 0x30
	tblMethodDebugInfo       tableID = 0x31
	tblLocalScope            tableID = 0x32
	tblLocalVariable         tableID = 0x33
	tblLocalConstant         tableID = 0x34
	tblImportScope           tableID = 0x35
	tblStateMachineMethod    tableID = 0x36
	tblCustomDebugInfo       tableID = 0x37
)

type colKind int

const (
	colU16 colKind = iota
	colU32
	colString
	colGUID
	colBlob
	colSimple
	colCoded
)

type column struct {
	kind      colKind
	table     tableID   // for colSimple
	codedKind codedKind // for colCoded
}

type codedKind struct {
	name    string
	tables  []tableID // index i corresponds to tag value i; tableID(0xFF) means unused tag
	tagBits uint
}

func bitsFor(n int) uint {
	bits := uint(0)
	for (1 << bits) < n {
		bits++
	}
	return bits
}

func newCoded(name string, tables ...tableID) codedKind {
	return codedKind{name: name, tables: tables, tagBits: bitsFor(len(tables))}
}

var (
	codedTypeDefOrRef         = newCoded("TypeDefOrRef", tblTypeDef, tblTypeRef, tblTypeSpec)
	codedHasConstant          = newCoded("HasConstant", tblField, tblParam, tblProperty)
	codedHasCustomAttribute   = newCoded("HasCustomAttribute", tblMethodDef, tblField, tblTypeRef, tblTypeDef, tblParam, tblInterfaceImpl, tblMemberRef, tblModule, tblDeclSecurity, tblProperty, tblEvent, tblStandAloneSig, tblModuleRef, tblTypeSpec, tblAssembly, tblAssemblyRef, tblFile, tblExportedType, tblManifestResource, tblGenericParam, tblGenericParamConstraint, tblMethodSpec)
	codedHasFieldMarshal      = newCoded("HasFieldMarshal", tblField, tblParam)
	codedHasDeclSecurity      = newCoded("HasDeclSecurity", tblTypeDef, tblMethodDef, tblAssembly)
	codedMemberRefParent      = newCoded("MemberRefParent", tblTypeDef, tblTypeRef, tblModuleRef, tblMethodDef, tblTypeSpec)
	codedHasSemantics         = newCoded("HasSemantics", tblEvent, tblProperty)
	codedMethodDefOrRef       = newCoded("MethodDefOrRef", tblMethodDef, tblMemberRef)
	codedMemberForwarded      = newCoded("MemberForwarded", tblField, tblMethodDef)
	codedImplementation       = newCoded("Implementation", tblFile, tblAssemblyRef, tblExportedType)
	codedCustomAttributeType  = codedKind{name: "CustomAttributeType", tables: []tableID{0xFF, 0xFF, tblMethodDef, tblMemberRef, 0xFF}, tagBits: 3}
	codedResolutionScope      = newCoded("ResolutionScope", tblModule, tblModuleRef, tblAssemblyRef, tblTypeRef)
	codedTypeOrMethodDef      = newCoded("TypeOrMethodDef", tblTypeDef, tblMethodDef)
	codedHasCustomDebugInfo   = newCoded("HasCustomDebugInformation", tblMethodDef, tblField, tblTypeRef, tblTypeDef, tblParam, tblInterfaceImpl, tblMemberRef, tblModule, tblDeclSecurity, tblProperty, tblEvent, tblStandAloneSig, tblModuleRef, tblTypeSpec, tblAssembly, tblAssemblyRef, tblFile, tblExportedType, tblManifestResource, tblGenericParam, tblGenericParamConstraint, tblMethodSpec, tblDocument, tblLocalScope, tblLocalVariable, tblLocalConstant, tblImportScope)
)

func u16() column             { return column{kind: colU16} }
func u32() column             { return column{kind: colU32} }
func str() column             { return column{kind: colString} }
func guid() column            { return column{kind: colGUID} }
func blb() column             { return column{kind: colBlob} }
func simple(t tableID) column { return column{kind: colSimple, table: t} }
func coded(k codedKind) column { return column{kind: colCoded, codedKind: k} }

// schema lists the column layout of every table this reader can
// encounter. A table present in a given file but absent here is a format
// newer than this reader understands; decodeTables stops with an error on
// the first such table.
var schema = map[tableID][]column{
	tblModule:          {u16(), str(), guid(), guid(), guid()},
	tblTypeRef:         {coded(codedResolutionScope), str(), str()},
	tblTypeDef:         {u32(), str(), str(), coded(codedTypeDefOrRef), simple(tblField), simple(tblMethodDef)},
	tblField:           {u16(), str(), blb()},
	tblMethodDef:       {u32(), u16(), u16(), str(), blb(), simple(tblParam)},
	tblParam:           {u16(), u16(), str()},
	tblInterfaceImpl:   {simple(tblTypeDef), coded(codedTypeDefOrRef)},
	tblMemberRef:       {coded(codedMemberRefParent), str(), blb()},
	tblConstant:        {u16(), coded(codedHasConstant), blb()},
	tblCustomAttribute: {coded(codedHasCustomAttribute), coded(codedCustomAttributeType), blb()},
	tblFieldMarshal:    {coded(codedHasFieldMarshal), blb()},
	tblDeclSecurity:    {u16(), coded(codedHasDeclSecurity), blb()},
	tblClassLayout:     {u16(), u32(), simple(tblTypeDef)},
	tblFieldLayout:     {u32(), simple(tblField)},
	tblStandAloneSig:   {blb()},
	tblEventMap:        {simple(tblTypeDef), simple(tblEvent)},
	tblEvent:           {u16(), str(), coded(codedTypeDefOrRef)},
	tblPropertyMap:     {simple(tblTypeDef), simple(tblProperty)},
	tblProperty:        {u16(), str(), blb()},
	tblMethodSemantics:  {u16(), simple(tblMethodDef), coded(codedHasSemantics)},
	tblMethodImpl:      {simple(tblTypeDef), coded(codedMethodDefOrRef), coded(codedMethodDefOrRef)},
	tblModuleRef:       {str()},
	tblTypeSpec:        {blb()},
	tblImplMap:         {u16(), coded(codedMemberForwarded), str(), simple(tblModuleRef)},
	tblFieldRVA:        {u32(), simple(tblField)},
	tblAssembly:        {u32(), u16(), u16(), u16(), u16(), u32(), blb(), str(), str()},
	tblAssemblyProcessor: {u32()},
	tblAssemblyOS:       {u32(), u32(), u32()},
	tblAssemblyRef:      {u16(), u16(), u16(), u16(), u32(), blb(), str(), str(), blb()},
	tblAssemblyRefProcessor: {u32(), simple(tblAssemblyRef)},
	tblAssemblyRefOS:    {u32(), u32(), u32(), simple(tblAssemblyRef)},
	tblFile:             {u32(), str(), blb()},
	tblExportedType:     {u32(), u32(), str(), str(), coded(codedImplementation)},
	tblManifestResource: {u32(), u32(), str(), coded(codedImplementation)},
	tblNestedClass:      {simple(tblTypeDef), simple(tblTypeDef)},
	tblGenericParam:     {u16(), u16(), coded(codedTypeOrMethodDef), str()},
	tblMethodSpec:       {coded(codedMethodDefOrRef), blb()},
	tblGenericParamConstraint: {simple(tblGenericParam), coded(codedTypeDefOrRef)},

	tblDocument:           {blb(), guid(), blb(), guid()},
	tblMethodDebugInfo:    {simple(tblDocument), blb()},
	tblLocalScope:         {simple(tblMethodDef), simple(tblImportScope), simple(tblLocalVariable), simple(tblLocalConstant), u32(), u32()},
	tblLocalVariable:      {u16(), u16(), str()},
	tblLocalConstant:      {str(), blb()},
	tblImportScope:        {simple(tblImportScope), blb()},
	tblStateMachineMethod: {simple(tblMethodDef), simple(tblMethodDef)},
	tblCustomDebugInfo:    {coded(codedHasCustomDebugInfo), guid(), blb()},
}

type streamHeader struct {
	offset uint32
	size   uint32
}

// metadataRoot is one parsed "BSJB" metadata blob: either an assembly's
// own metadata (#~ carries TypeDef/Field/MethodDef/...) or a Portable
// PDB's metadata (#~ carries Document/MethodDebugInformation/...). Both
// use the identical container format (ECMA-335 §II.24).
type metadataRoot struct {
	data    []byte
	streams map[string]streamHeader

	stringIdxSize uint32
	guidIdxSize   uint32
	blobIdxSize   uint32

	rowCounts map[tableID]uint32
	rows      map[tableID][][]uint32 // decoded rows, 0-indexed; row N corresponds to token row N+1
}

func parseMetadataRoot(data []byte) (*metadataRoot, error) {
	if len(data) < 16 || binary.LittleEndian.Uint32(data) != 0x424A5342 {
		return nil, fmt.Errorf("pdb: not a metadata root (bad BSJB signature)")
	}

	versionLen := binary.LittleEndian.Uint32(data[12:16])
	pos := 16 + int(versionLen)
	if pos+4 > len(data) {
		return nil, fmt.Errorf("pdb: truncated metadata root")
	}
	pos += 2 // Flags
	numStreams := int(binary.LittleEndian.Uint16(data[pos : pos+2]))
	pos += 2

	root := &metadataRoot{data: data, streams: make(map[string]streamHeader, numStreams)}

	for i := 0; i < numStreams; i++ {
		if pos+8 > len(data) {
			return nil, fmt.Errorf("pdb: truncated stream header")
		}
		offset := binary.LittleEndian.Uint32(data[pos : pos+4])
		size := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		pos += 8

		nameStart := pos
		for pos < len(data) && data[pos] != 0 {
			pos++
		}
		name := string(data[nameStart:pos])
		pos++ // NUL
		pos = (pos + 3) &^ 3 // align to 4 bytes

		root.streams[name] = streamHeader{offset: offset, size: size}
	}

	if err := root.decodeTables(); err != nil {
		return nil, err
	}
	return root, nil
}

func (m *metadataRoot) streamBytes(name string) []byte {
	h, ok := m.streams[name]
	if !ok {
		return nil
	}
	end := h.offset + h.size
	if int(end) > len(m.data) {
		end = uint32(len(m.data))
	}
	return m.data[h.offset:end]
}

func (m *metadataRoot) stringAt(idx uint32) string {
	heap := m.streamBytes("#Strings")
	if int(idx) >= len(heap) {
		return ""
	}
	end := int(idx)
	for end < len(heap) && heap[end] != 0 {
		end++
	}
	return string(heap[idx:end])
}

func (m *metadataRoot) blobAt(idx uint32) []byte {
	heap := m.streamBytes("#Blob")
	if int(idx) >= len(heap) {
		return nil
	}
	r := newBlobReader(heap[idx:])
	length, _, err := r.readCompressedUint()
	if err != nil {
		return nil
	}
	start := idx + uint32(r.pos)
	end := start + length
	if int(end) > len(heap) {
		return nil
	}
	return heap[start:end]
}

func (m *metadataRoot) guidAt(idx uint32) [16]byte {
	var out [16]byte
	if idx == 0 {
		return out
	}
	heap := m.streamBytes("#GUID")
	offset := (idx - 1) * 16
	if int(offset)+16 > len(heap) {
		return out
	}
	copy(out[:], heap[offset:offset+16])
	return out
}

func (m *metadataRoot) idxSize(kind colKind) uint32 {
	switch kind {
	case colString:
		return m.stringIdxSize
	case colGUID:
		return m.guidIdxSize
	case colBlob:
		return m.blobIdxSize
	}
	return 2
}

func (m *metadataRoot) simpleIdxSize(t tableID) uint32 {
	if m.rowCounts[t] > 0xFFFF {
		return 4
	}
	return 2
}

func (m *metadataRoot) codedIdxSize(k codedKind) uint32 {
	maxRows := uint32(0)
	for _, t := range k.tables {
		if t == 0xFF {
			continue
		}
		if m.rowCounts[t] > maxRows {
			maxRows = m.rowCounts[t]
		}
	}
	if maxRows < (1 << (16 - k.tagBits)) {
		return 2
	}
	return 4
}

func (m *metadataRoot) columnSize(c column) uint32 {
	switch c.kind {
	case colU16:
		return 2
	case colU32:
		return 4
	case colString, colGUID, colBlob:
		return m.idxSize(c.kind)
	case colSimple:
		return m.simpleIdxSize(c.table)
	case colCoded:
		return m.codedIdxSize(c.codedKind)
	}
	return 0
}

func readUint(data []byte, size uint32) uint32 {
	if size == 2 {
		return uint32(binary.LittleEndian.Uint16(data))
	}
	return binary.LittleEndian.Uint32(data)
}

// decodeTables parses the #~ (or #- ) stream header and every row of
// every present table, in ascending table-number order (the only order
// the format allows). A present table whose schema isn't modeled stops
// decoding with an error, since its row width is unknown.
func (m *metadataRoot) decodeTables() error {
	tilde := m.streamBytes("#~")
	if tilde == nil {
		tilde = m.streamBytes("#-")
	}
	if tilde == nil {
		// No table stream at all (e.g. a heap-only blob); nothing to decode.
		m.rowCounts = map[tableID]uint32{}
		m.rows = map[tableID][][]uint32{}
		m.stringIdxSize, m.guidIdxSize, m.blobIdxSize = 2, 2, 2
		return nil
	}

	if len(tilde) < 24 {
		return fmt.Errorf("pdb: truncated table stream")
	}

	heapSizes := tilde[6]
	if heapSizes&0x01 != 0 {
		m.stringIdxSize = 4
	} else {
		m.stringIdxSize = 2
	}
	if heapSizes&0x02 != 0 {
		m.guidIdxSize = 4
	} else {
		m.guidIdxSize = 2
	}
	if heapSizes&0x04 != 0 {
		m.blobIdxSize = 4
	} else {
		m.blobIdxSize = 2
	}

	valid := binary.LittleEndian.Uint64(tilde[8:16])
	pos := 24

	m.rowCounts = make(map[tableID]uint32)
	var present []tableID
	for i := 0; i < 64; i++ {
		if valid&(1<<uint(i)) == 0 {
			continue
		}
		t := tableID(i)
		if pos+4 > len(tilde) {
			return fmt.Errorf("pdb: truncated row-count block")
		}
		count := binary.LittleEndian.Uint32(tilde[pos : pos+4])
		pos += 4
		m.rowCounts[t] = count
		present = append(present, t)
	}

	m.rows = make(map[tableID][][]uint32, len(present))
	for _, t := range present {
		cols, known := schema[t]
		count := m.rowCounts[t]
		if !known {
			// Unmodeled table: we cannot know its row width, so parsing
			// must stop here rather than silently misreading the rest.
			return fmt.Errorf("pdb: unsupported metadata table 0x%02x", t)
		}

		rowWidth := 0
		colSizes := make([]uint32, len(cols))
		for i, c := range cols {
			colSizes[i] = m.columnSize(c)
			rowWidth += int(colSizes[i])
		}

		rows := make([][]uint32, count)
		for r := uint32(0); r < count; r++ {
			if pos+rowWidth > len(tilde) {
				return fmt.Errorf("pdb: truncated table 0x%02x row %d", t, r)
			}
			row := make([]uint32, len(cols))
			off := pos
			for i, sz := range colSizes {
				row[i] = readUint(tilde[off:off+int(sz)], sz)
				off += int(sz)
			}
			rows[r] = row
			pos += rowWidth
		}
		m.rows[t] = rows
	}

	return nil
}

func (m *metadataRoot) row(t tableID, rid uint32) []uint32 {
	if rid == 0 {
		return nil
	}
	rows := m.rows[t]
	if int(rid) > len(rows) {
		return nil
	}
	return rows[rid-1]
}

func (m *metadataRoot) rowCount(t tableID) uint32 {
	return m.rowCounts[t]
}

// decodeCoded splits a coded-index raw value into its target table and
// row id.
func decodeCoded(k codedKind, raw uint32) (tableID, uint32) {
	mask := uint32(1)<<k.tagBits - 1
	tag := raw & mask
	row := raw >> k.tagBits
	if int(tag) >= len(k.tables) {
		return 0xFF, 0
	}
	return k.tables[tag], row
}

// --- PE / embedded-PDB discovery -------------------------------------------

// loadAssemblyMetadata reads the CLI metadata root directly out of the PE
// file's COR20 header.
func loadAssemblyMetadata(dllPath string) (*metadataRoot, error) {
	f, err := pe.Open(dllPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rva, size, err := corHeaderMetadataDirectory(f)
	if err != nil {
		return nil, err
	}

	data, err := readRVA(f, rva, size)
	if err != nil {
		return nil, err
	}
	return parseMetadataRoot(data)
}

// corHeaderMetadataDirectory reads the IMAGE_COR20_HEADER's MetaData
// directory (RVA, size) out of the COM-descriptor data directory.
func corHeaderMetadataDirectory(f *pe.File) (uint32, uint32, error) {
	const imageDirectoryEntryComDescriptor = 14

	var dataDir [16]struct{ VirtualAddress, Size uint32 }
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		for i := range dataDir {
			dataDir[i].VirtualAddress = oh.DataDirectory[i].VirtualAddress
			dataDir[i].Size = oh.DataDirectory[i].Size
		}
	case *pe.OptionalHeader64:
		for i := range dataDir {
			dataDir[i].VirtualAddress = oh.DataDirectory[i].VirtualAddress
			dataDir[i].Size = oh.DataDirectory[i].Size
		}
	default:
		return 0, 0, fmt.Errorf("pdb: unrecognized PE optional header")
	}

	comDir := dataDir[imageDirectoryEntryComDescriptor]
	if comDir.VirtualAddress == 0 {
		return 0, 0, fmt.Errorf("pdb: not a managed assembly (no COR20 header)")
	}

	header, err := readRVA(f, comDir.VirtualAddress, comDir.Size)
	if err != nil {
		return 0, 0, err
	}
	if len(header) < 16 {
		return 0, 0, fmt.Errorf("pdb: truncated COR20 header")
	}
	metaRVA := binary.LittleEndian.Uint32(header[8:12])
	metaSize := binary.LittleEndian.Uint32(header[12:16])
	return metaRVA, metaSize, nil
}

func readRVA(f *pe.File, rva, size uint32) ([]byte, error) {
	for _, sec := range f.Sections {
		if rva >= sec.VirtualAddress && rva < sec.VirtualAddress+sec.Size {
			data, err := sec.Data()
			if err != nil {
				return nil, err
			}
			start := rva - sec.VirtualAddress
			end := start + size
			if int(end) > len(data) {
				end = uint32(len(data))
			}
			return data[start:end], nil
		}
	}
	return nil, fmt.Errorf("pdb: rva 0x%x not found in any section", rva)
}

// debugDirectoryEntry mirrors IMAGE_DEBUG_DIRECTORY.
type debugDirectoryEntry struct {
	Type             uint32
	SizeOfData       uint32
	AddressOfRawData uint32
	PointerToRawData uint32
}

const (
	imageDirectoryEntryDebug          = 6
	debugTypeCodeView                 = 2
	debugTypeEmbeddedPortablePDB      = 13
)

func readDebugDirectory(f *pe.File) ([]debugDirectoryEntry, error) {
	var dataDir [16]struct{ VirtualAddress, Size uint32 }
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		for i := range dataDir {
			dataDir[i].VirtualAddress = oh.DataDirectory[i].VirtualAddress
			dataDir[i].Size = oh.DataDirectory[i].Size
		}
	case *pe.OptionalHeader64:
		for i := range dataDir {
			dataDir[i].VirtualAddress = oh.DataDirectory[i].VirtualAddress
			dataDir[i].Size = oh.DataDirectory[i].Size
		}
	default:
		return nil, fmt.Errorf("pdb: unrecognized PE optional header")
	}

	debugDir := dataDir[imageDirectoryEntryDebug]
	if debugDir.VirtualAddress == 0 {
		return nil, nil
	}
	raw, err := readRVA(f, debugDir.VirtualAddress, debugDir.Size)
	if err != nil {
		return nil, err
	}

	const entrySize = 28
	var entries []debugDirectoryEntry
	for off := 0; off+entrySize <= len(raw); off += entrySize {
		e := debugDirectoryEntry{
			Type:             binary.LittleEndian.Uint32(raw[off+12 : off+16]),
			SizeOfData:       binary.LittleEndian.Uint32(raw[off+16 : off+20]),
			AddressOfRawData: binary.LittleEndian.Uint32(raw[off+20 : off+24]),
			PointerToRawData: binary.LittleEndian.Uint32(raw[off+24 : off+28]),
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// locatePortablePdb finds the Portable PDB bytes for an assembly: embedded
// (compressed, debug-directory type 13), or a sibling .pdb file pointed to
// by a CodeView debug-directory entry, or a same-named sibling .pdb as a
// last resort.
func locatePortablePdb(dllPath string) ([]byte, error) {
	f, err := pe.Open(dllPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := readDebugDirectory(f)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if e.Type != debugTypeEmbeddedPortablePDB {
			continue
		}
		raw, err := readFileRange(f, e)
		if err != nil || len(raw) < 8 {
			continue
		}
		if binary.LittleEndian.Uint32(raw[0:4]) != 0x4244504D { // "MPDB"
			continue
		}
		uncompressedSize := binary.LittleEndian.Uint32(raw[4:8])
		fr := flate.NewReader(bytes.NewReader(raw[8:]))
		defer fr.Close()
		out := make([]byte, uncompressedSize)
		if _, err := io.ReadFull(fr, out); err != nil {
			continue
		}
		return out, nil
	}

	for _, e := range entries {
		if e.Type != debugTypeCodeView {
			continue
		}
		raw, err := readFileRange(f, e)
		if err != nil || len(raw) < 24 {
			continue
		}
		if binary.LittleEndian.Uint32(raw[0:4]) != 0x53445352 { // "RSDS"
			continue
		}
		nameEnd := bytes.IndexByte(raw[24:], 0)
		if nameEnd < 0 {
			continue
		}
		pdbPath := string(raw[24 : 24+nameEnd])
		if data, err := os.ReadFile(pdbPath); err == nil {
			return extractPdbMetadata(data)
		}
		sibling := filepath.Join(filepath.Dir(dllPath), filepath.Base(pdbPath))
		if data, err := os.ReadFile(sibling); err == nil {
			return extractPdbMetadata(data)
		}
	}

	sibling := strings.TrimSuffix(dllPath, filepath.Ext(dllPath)) + ".pdb"
	if data, err := os.ReadFile(sibling); err == nil {
		return extractPdbMetadata(data)
	}

	return nil, fmt.Errorf("pdb: no portable pdb found for %s", dllPath)
}

// extractPdbMetadata strips a standalone Portable PDB file down to its
// metadata root: the file is itself "BSJB"-prefixed, optionally preceded
// by nothing else (unlike Windows PDB/MSF containers, which this reader
// does not support — spec scope is Portable PDB only).
func extractPdbMetadata(data []byte) ([]byte, error) {
	idx := bytes.Index(data, []byte{0x42, 0x53, 0x4A, 0x42})
	if idx < 0 {
		return nil, fmt.Errorf("pdb: not a portable pdb (no BSJB root found)")
	}
	return data[idx:], nil
}

func readFileRange(f *pe.File, e debugDirectoryEntry) ([]byte, error) {
	// PointerToRawData is a file offset already, not an RVA; read straight
	// from the section data covering that offset via Sections' raw bytes.
	for _, sec := range f.Sections {
		if e.PointerToRawData >= sec.Offset && e.PointerToRawData < sec.Offset+sec.Size {
			data, err := sec.Data()
			if err != nil {
				return nil, err
			}
			start := e.PointerToRawData - sec.Offset
			end := start + e.SizeOfData
			if int(end) > len(data) {
				end = uint32(len(data))
			}
			return data[start:end], nil
		}
	}
	return nil, fmt.Errorf("pdb: debug directory raw data not found in any section")
}
