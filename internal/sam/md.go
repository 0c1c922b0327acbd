package sam

import (
	"fmt"
	"strconv"
)

// Mismatch is one substituted base inside the aligned span.
type Mismatch struct {
	ReadPos int  // 0-based offset in the stored read sequence
	RefPos  int  // 0-based offset from the alignment start on the reference
	RefBase byte // reference base reported by the MD tag
}

// MismatchPositions derives per-base mismatches from a record's CIGAR and
// MD tag. Deleted reference bases consume MD runs but produce no read
// position. Records without an MD tag yield no mismatches.
func (r *Record) MismatchPositions() ([]Mismatch, error) {
	md, ok := r.Tags["MD"]
	if !ok {
		return nil, nil
	}

	// Map aligned reference offsets to read offsets by walking the CIGAR.
	// alignedRead[i] is the read position of the i-th reference-consuming,
	// read-consuming base; deletions insert -1 placeholders.
	var alignedRead []int
	readPos := 0
	for _, op := range r.Cigar {
		switch op.Op {
		case 'S', 'I':
			readPos += op.Len
		case 'M', '=', 'X':
			for i := 0; i < op.Len; i++ {
				alignedRead = append(alignedRead, readPos)
				readPos++
			}
		case 'D', 'N':
			for i := 0; i < op.Len; i++ {
				alignedRead = append(alignedRead, -1)
			}
		}
	}

	var mismatches []Mismatch
	refOff := 0
	i := 0
	for i < len(md) {
		c := md[i]
		switch {
		case c >= '0' && c <= '9':
			j := i
			for j < len(md) && md[j] >= '0' && md[j] <= '9' {
				j++
			}
			n, err := strconv.Atoi(md[i:j])
			if err != nil {
				return nil, fmt.Errorf("invalid MD tag %q", md)
			}
			refOff += n
			i = j
		case c == '^':
			// Deletion: skip the deleted reference bases.
			i++
			for i < len(md) && isBase(md[i]) {
				refOff++
				i++
			}
		case isBase(c):
			if refOff >= len(alignedRead) {
				return nil, fmt.Errorf("MD tag %q exceeds aligned span %s", md, r.Cigar)
			}
			if rp := alignedRead[refOff]; rp >= 0 {
				mismatches = append(mismatches, Mismatch{
					ReadPos: rp,
					RefPos:  refOff,
					RefBase: c,
				})
			}
			refOff++
			i++
		default:
			return nil, fmt.Errorf("invalid MD tag %q", md)
		}
	}

	return mismatches, nil
}

// ReadPosAt returns the 0-based read position aligned to the given
// 0-based reference offset from the alignment start, or -1 when that
// reference base is deleted or outside the aligned span.
func (r *Record) ReadPosAt(refOff int) int {
	readPos := 0
	cur := 0
	for _, op := range r.Cigar {
		switch op.Op {
		case 'S', 'I':
			readPos += op.Len
		case 'M', '=', 'X':
			if refOff < cur+op.Len {
				return readPos + (refOff - cur)
			}
			readPos += op.Len
			cur += op.Len
		case 'D', 'N':
			if refOff < cur+op.Len {
				return -1
			}
			cur += op.Len
		}
	}
	return -1
}

func isBase(b byte) bool {
	switch b {
	case 'A', 'C', 'G', 'T', 'N', 'a', 'c', 'g', 't', 'n':
		return true
	}
	return false
}
