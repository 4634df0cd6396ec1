package pdb

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

const (
	methodTokenPrefix = 0x06000000
	typeTokenPrefix   = 0x02000000
	fieldTokenPrefix  = 0x04000000

	fieldAttrStatic = 0x0010
)

func tokenRow(token uint32) uint32 { return token & 0x00FFFFFF }
func methodToken(row uint32) uint32 { return methodTokenPrefix | row }
func typeToken(row uint32) uint32   { return typeTokenPrefix | row }
func fieldToken(row uint32) uint32  { return fieldTokenPrefix | row }

// FieldInfo is one entry from ReadInstanceFields / ReadStaticFields.
type FieldInfo struct {
	Token uint32
	Name  string
}

// Reader serves every C3 operation for a single compiled assembly and its
// Portable PDB. Construction parses both files once; callers share a
// cached Reader per DLL path via Open.
type Reader struct {
	dllPath  string
	assembly *metadataRoot
	pdbRoot  *metadataRoot // nil if no PDB was found (metadata-only queries still work)
}

var readerCache = struct {
	mu    sync.Mutex
	byDLL map[string]*Reader
}{byDLL: make(map[string]*Reader)}

// Open returns the cached Reader for dllPath, parsing it on first use.
func Open(dllPath string) (*Reader, error) {
	readerCache.mu.Lock()
	defer readerCache.mu.Unlock()

	if r, ok := readerCache.byDLL[dllPath]; ok {
		return r, nil
	}

	assembly, err := loadAssemblyMetadata(dllPath)
	if err != nil {
		return nil, fmt.Errorf("pdb: reading assembly metadata: %w", err)
	}

	r := &Reader{dllPath: dllPath, assembly: assembly}

	if pdbData, err := locatePortablePdb(dllPath); err == nil {
		if pdbRoot, err := parseMetadataRoot(pdbData); err == nil {
			r.pdbRoot = pdbRoot
		}
	}

	readerCache.byDLL[dllPath] = r
	return r, nil
}

// listRange computes the half-open row range [start, end) a "list run"
// column points into, using the next row's same column (or the target
// table's row count for the last row) as the exclusive upper bound — the
// convention ECMA-335 uses for TypeDef.FieldList/MethodList and the
// Portable PDB LocalScope's Variable/ConstantList columns alike.
func listRange(owner *metadataRoot, ownerTable tableID, ownerRow uint32, col int, target tableID) (uint32, uint32) {
	rows := owner.rows[ownerTable]
	if ownerRow == 0 || int(ownerRow) > len(rows) {
		return 0, 0
	}
	start := rows[ownerRow-1][col]
	end := owner.rowCount(target) + 1
	if int(ownerRow) < len(rows) {
		next := rows[ownerRow][col]
		if next != 0 {
			end = next
		}
	}
	return start, end
}

func (r *Reader) requirePdb() error {
	if r.pdbRoot == nil {
		return fmt.Errorf("pdb: no portable pdb available for %s", r.dllPath)
	}
	return nil
}

// sequencePointsForMethod returns every decoded sequence point of the
// method whose MethodDebugInformation row matches the method's row
// number (the two tables are 1:1 by construction).
func (r *Reader) sequencePointsForMethod(token uint32) ([]SequencePoint, error) {
	if err := r.requirePdb(); err != nil {
		return nil, err
	}
	row := r.pdbRoot.row(tblMethodDebugInfo, tokenRow(token))
	if row == nil {
		return nil, fmt.Errorf("pdb: no debug info for method token 0x%08x", token)
	}
	return decodeSequencePoints(r.pdbRoot.blobAt(row[1]), row[0])
}

func (r *Reader) documentName(docRow uint32) string {
	row := r.pdbRoot.row(tblDocument, docRow)
	if row == nil {
		return ""
	}
	return decodeDocumentName(r.pdbRoot, row[0])
}

func matchesSourceFile(documentPath, requested string) bool {
	if documentPath == requested {
		return true
	}
	norm := strings.ReplaceAll(documentPath, "\\", "/")
	return strings.HasSuffix(norm, "/"+strings.ReplaceAll(requested, "\\", "/")) ||
		strings.HasSuffix(norm, requested)
}

// FindLocation maps (source_file, line) to the first matching
// (method_token, il_offset), scanning methods in MethodDebugInformation
// row order.
func (r *Reader) FindLocation(sourceFile string, line uint32) (uint32, uint32, error) {
	locs, err := r.FindAllLocations(sourceFile, line)
	if err != nil {
		return 0, 0, err
	}
	if len(locs) == 0 {
		return 0, 0, fmt.Errorf("pdb: no sequence point at %s:%d", sourceFile, line)
	}
	return locs[0][0], locs[0][1], nil
}

// FindAllLocations returns every (method_token, il_offset) pair whose
// sequence point starts at the requested source line — more than one for
// async methods where a single source line maps to multiple IL ranges.
func (r *Reader) FindAllLocations(sourceFile string, line uint32) ([][2]uint32, error) {
	if err := r.requirePdb(); err != nil {
		return nil, err
	}

	var matches [][2]uint32
	count := r.pdbRoot.rowCount(tblMethodDebugInfo)
	for row := uint32(1); row <= count; row++ {
		tok := methodToken(row)
		points, err := r.sequencePointsForMethod(tok)
		if err != nil {
			continue
		}
		for _, sp := range points {
			if sp.Hidden || sp.StartLine != line {
				continue
			}
			if matchesSourceFile(r.documentName(sp.DocumentRow), sourceFile) {
				matches = append(matches, [2]uint32{tok, sp.ILOffset})
			}
		}
	}
	return matches, nil
}

// ReverseLookup maps (method_token, il_offset) back to (source_file,
// line), preferring an exact offset match and falling back to the
// nearest preceding sequence point.
func (r *Reader) ReverseLookup(methodTok, ilOffset uint32) (string, uint32, bool) {
	points, err := r.sequencePointsForMethod(methodTok)
	if err != nil {
		return "", 0, false
	}

	var best *SequencePoint
	for i := range points {
		sp := &points[i]
		if sp.Hidden {
			continue
		}
		if sp.ILOffset == ilOffset {
			return r.documentName(sp.DocumentRow), sp.StartLine, true
		}
		if sp.ILOffset < ilOffset && (best == nil || sp.ILOffset > best.ILOffset) {
			best = sp
		}
	}
	if best == nil {
		return "", 0, false
	}
	return r.documentName(best.DocumentRow), best.StartLine, true
}

// StepRangeForOffset returns the [start, end) IL-offset span of the
// sequence point containing ilOffset, the span a stepper must cover for
// step-over/step-into.
func (r *Reader) StepRangeForOffset(methodTok, ilOffset uint32) (uint32, uint32, error) {
	points, err := r.sequencePointsForMethod(methodTok)
	if err != nil {
		return 0, 0, err
	}

	for i, sp := range points {
		if sp.Hidden {
			continue
		}
		var next uint32 = ^uint32(0)
		for j := i + 1; j < len(points); j++ {
			if !points[j].Hidden {
				next = points[j].ILOffset
				break
			}
		}
		if ilOffset >= sp.ILOffset && (next == ^uint32(0) || ilOffset < next) {
			return sp.ILOffset, next, nil
		}
	}
	return 0, 0, fmt.Errorf("pdb: no sequence point covers il offset %d in method 0x%08x", ilOffset, methodTok)
}

// parseLocalName applies the async-hoisted-local and compiler-internal
// naming rules: "<>..." names are dropped entirely, "<field>N__M" names
// display as "field", everything else displays as-is.
func parseLocalName(raw string) (string, bool) {
	if strings.HasPrefix(raw, "<>") {
		return "", true
	}
	if strings.HasPrefix(raw, "<") {
		if end := strings.Index(raw, ">"); end > 0 {
			return raw[1:end], false
		}
	}
	return raw, false
}

// GetLocalNames returns the slot→display-name map for a method's local
// variables, read from the PDB's LocalScope/LocalVariable tables.
func (r *Reader) GetLocalNames(methodTok uint32) (map[uint32]string, error) {
	if err := r.requirePdb(); err != nil {
		return nil, err
	}

	names := make(map[uint32]string)
	scopeCount := r.pdbRoot.rowCount(tblLocalScope)
	for scopeRow := uint32(1); scopeRow <= scopeCount; scopeRow++ {
		scope := r.pdbRoot.row(tblLocalScope, scopeRow)
		if scope == nil || scope[0] != tokenRow(methodTok) {
			continue
		}
		start, end := listRange(r.pdbRoot, tblLocalScope, scopeRow, 2, tblLocalVariable)
		for varRow := start; varRow < end; varRow++ {
			v := r.pdbRoot.row(tblLocalVariable, varRow)
			if v == nil {
				continue
			}
			slot := v[1]
			display, skip := parseLocalName(r.pdbRoot.stringAt(v[2]))
			if skip {
				continue
			}
			names[slot] = display
		}
	}
	return names, nil
}

func isStaticField(flags uint32) bool { return flags&fieldAttrStatic != 0 }

func (r *Reader) fieldsOf(typedefTok uint32, wantStatic bool) ([]FieldInfo, error) {
	row := r.assembly.row(tblTypeDef, tokenRow(typedefTok))
	if row == nil {
		return nil, fmt.Errorf("pdb: typedef token 0x%08x not found", typedefTok)
	}
	start, end := listRange(r.assembly, tblTypeDef, tokenRow(typedefTok), 4, tblField)

	var out []FieldInfo
	for fr := start; fr < end; fr++ {
		field := r.assembly.row(tblField, fr)
		if field == nil {
			continue
		}
		if isStaticField(field[0]) != wantStatic {
			continue
		}
		name := r.assembly.stringAt(field[1])
		if wantStatic && (name == "value__" || strings.HasPrefix(name, "<")) {
			continue
		}
		out = append(out, FieldInfo{Token: fieldToken(fr), Name: name})
	}
	return out, nil
}

// ReadInstanceFields returns every non-static field of a type definition.
func (r *Reader) ReadInstanceFields(typedefTok uint32) ([]FieldInfo, error) {
	return r.fieldsOf(typedefTok, false)
}

// ReadStaticFields returns every static field of a type definition,
// excluding the enum backing field "value__" and compiler-internal names.
func (r *Reader) ReadStaticFields(typedefTok uint32) ([]FieldInfo, error) {
	return r.fieldsOf(typedefTok, true)
}

// GetTypeName returns a type definition's fully-qualified name.
func (r *Reader) GetTypeName(typedefTok uint32) (string, error) {
	row := r.assembly.row(tblTypeDef, tokenRow(typedefTok))
	if row == nil {
		return "", fmt.Errorf("pdb: typedef token 0x%08x not found", typedefTok)
	}
	ns := r.assembly.stringAt(row[2])
	name := r.assembly.stringAt(row[1])
	if ns == "" {
		return name, nil
	}
	return ns + "." + name, nil
}

// GetBaseTypeToken returns the base type's typedef token, or 0 when the
// base is cross-assembly or the root Object.
func (r *Reader) GetBaseTypeToken(typedefTok uint32) (uint32, error) {
	row := r.assembly.row(tblTypeDef, tokenRow(typedefTok))
	if row == nil {
		return 0, fmt.Errorf("pdb: typedef token 0x%08x not found", typedefTok)
	}
	table, rid := decodeCoded(codedTypeDefOrRef, row[3])
	if rid == 0 || table != tblTypeDef {
		return 0, nil
	}
	return typeToken(rid), nil
}

// IsEnumType reports whether a type definition's base type is
// System.Enum, checked through either a same-assembly or cross-assembly
// reference to it.
func (r *Reader) IsEnumType(typedefTok uint32) (bool, error) {
	row := r.assembly.row(tblTypeDef, tokenRow(typedefTok))
	if row == nil {
		return false, fmt.Errorf("pdb: typedef token 0x%08x not found", typedefTok)
	}
	table, rid := decodeCoded(codedTypeDefOrRef, row[3])
	switch table {
	case tblTypeRef:
		tr := r.assembly.row(tblTypeRef, rid)
		if tr == nil {
			return false, nil
		}
		return r.assembly.stringAt(tr[2]) == "System" && r.assembly.stringAt(tr[1]) == "Enum", nil
	case tblTypeDef:
		name, err := r.GetTypeName(typeToken(rid))
		if err != nil {
			return false, nil
		}
		return name == "System.Enum", nil
	default:
		return false, nil
	}
}

// findConstant returns the Constant table row whose Parent coded index
// targets (parentTable, parentRow), if any.
func (r *Reader) findConstant(parentTable tableID, parentRow uint32) ([]uint32, bool) {
	for _, row := range r.assembly.rows[tblConstant] {
		t, rid := decodeCoded(codedHasConstant, row[1])
		if t == parentTable && rid == parentRow {
			return row, true
		}
	}
	return nil, false
}

// decodeConstantInt interprets a Constant row's value blob as a signed
// 64-bit integer, using the Constant's recorded element-type code.
func decodeConstantInt(typeCode byte, blob []byte) (int64, bool) {
	var u uint64
	for i := len(blob) - 1; i >= 0; i-- {
		u = (u << 8) | uint64(blob[i])
	}
	switch typeCode {
	case 0x02: // BOOLEAN
		return int64(u), true
	case 0x03: // CHAR
		return int64(u), true
	case 0x04: // I1
		return int64(int8(u)), true
	case 0x05: // U1
		return int64(uint8(u)), true
	case 0x06: // I2
		return int64(int16(u)), true
	case 0x07: // U2
		return int64(uint16(u)), true
	case 0x08: // I4
		return int64(int32(u)), true
	case 0x09: // U4
		return int64(uint32(u)), true
	case 0x0A: // I8
		return int64(u), true
	case 0x0B: // U8
		return int64(u), true
	}
	return 0, false
}

// GetEnumMembers decodes an enum type's named constant values.
func (r *Reader) GetEnumMembers(typedefTok uint32) (string, map[int64]string, error) {
	typeName, err := r.GetTypeName(typedefTok)
	if err != nil {
		return "", nil, err
	}

	fields, err := r.ReadStaticFields(typedefTok)
	if err != nil {
		return "", nil, err
	}

	members := make(map[int64]string, len(fields))
	for _, f := range fields {
		row, ok := r.findConstant(tblField, tokenRow(f.Token))
		if !ok {
			continue
		}
		value, ok := decodeConstantInt(byte(row[0]), r.assembly.blobAt(row[2]))
		if !ok {
			continue
		}
		members[value] = f.Name
	}
	return typeName, members, nil
}

// FormatEnumValue renders "TypeName.Member" or "TypeName(rawValue)" when
// no member matches, the C4 rendering rule for enum values.
func FormatEnumValue(typeName string, members map[int64]string, raw int64) string {
	if name, ok := members[raw]; ok {
		return typeName + "." + name
	}
	return typeName + "(" + strconv.FormatInt(raw, 10) + ")"
}
