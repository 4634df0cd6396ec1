package pdb

import "strings"

// hiddenSequencePointLine is the sentinel line number Portable PDB uses
// to mark a sequence point that has no source mapping (compiler-generated
// code, state-machine plumbing).
const hiddenSequencePointLine = 0xFEEFEE

// SequencePoint is one decoded entry from a MethodDebugInformation row's
// sequence-points blob.
type SequencePoint struct {
	ILOffset    uint32
	DocumentRow uint32
	StartLine   uint32
	StartColumn uint32
	EndLine     uint32
	EndColumn   uint32
	Hidden      bool
}

// decodeSequencePoints decodes the Portable PDB sequence-points blob
// format: a local-signature header, then records that are absolute for
// the first entry and delta-encoded against the previous entry
// thereafter, with a special zero-IL-delta record used to signal a
// document change mid-method.
func decodeSequencePoints(blob []byte, defaultDocument uint32) ([]SequencePoint, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	r := newBlobReader(blob)

	if _, _, err := r.readCompressedUint(); err != nil { // local-signature token, unused
		return nil, err
	}

	var points []SequencePoint
	document := defaultDocument
	have := false
	var prevIL, prevLine, prevCol uint32

	for !r.atEnd() {
		deltaIL, _, err := r.readCompressedUint()
		if err != nil {
			return points, nil
		}

		if have && deltaIL == 0 {
			docIdx, _, err := r.readCompressedUint()
			if err != nil {
				return points, nil
			}
			document = docIdx
			continue
		}

		ilOffset := deltaIL
		if have {
			ilOffset = prevIL + deltaIL
		}

		deltaLines, _, err := r.readCompressedUint()
		if err != nil {
			return points, nil
		}

		var deltaCols int32
		if deltaLines == 0 {
			v, _, err := r.readCompressedUint()
			if err != nil {
				return points, nil
			}
			deltaCols = int32(v)
		} else {
			v, err := r.readCompressedInt()
			if err != nil {
				return points, nil
			}
			deltaCols = v
		}

		hidden := deltaLines == 0 && deltaCols == 0

		if hidden {
			points = append(points, SequencePoint{ILOffset: ilOffset, DocumentRow: document, Hidden: true})
			prevIL = ilOffset
			have = true
			continue
		}

		var startLine, startCol uint32
		if !have {
			sl, _, err := r.readCompressedUint()
			if err != nil {
				return points, nil
			}
			sc, _, err := r.readCompressedUint()
			if err != nil {
				return points, nil
			}
			startLine, startCol = sl, sc
		} else {
			dl, err := r.readCompressedInt()
			if err != nil {
				return points, nil
			}
			dc, err := r.readCompressedInt()
			if err != nil {
				return points, nil
			}
			startLine = uint32(int32(prevLine) + dl)
			startCol = uint32(int32(prevCol) + dc)
		}

		points = append(points, SequencePoint{
			ILOffset:    ilOffset,
			DocumentRow: document,
			StartLine:   startLine,
			StartColumn: startCol,
			EndLine:     startLine + deltaLines,
			EndColumn:   uint32(int32(startCol) + deltaCols),
		})

		prevIL, prevLine, prevCol = ilOffset, startLine, startCol
		have = true
	}

	return points, nil
}

// decodeDocumentName decodes a Document.Name blob: a single separator
// byte followed by compressed blob-heap indices for each path component.
// A zero separator means the parts concatenate directly (used for URLs
// and single-component names).
func decodeDocumentName(root *metadataRoot, blobIdx uint32) string {
	blob := root.blobAt(blobIdx)
	if len(blob) == 0 {
		return ""
	}
	sep := blob[0]
	r := newBlobReader(blob[1:])

	var parts []string
	for !r.atEnd() {
		partIdx, _, err := r.readCompressedUint()
		if err != nil {
			break
		}
		parts = append(parts, string(root.blobAt(partIdx)))
	}

	if sep == 0 {
		return strings.Join(parts, "")
	}
	return strings.Join(parts, string(rune(sep)))
}
