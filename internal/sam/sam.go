// Package sam parses the text alignment records produced by the external
// short-read aligner. Only the fields the post-alignment stages need are
// modeled; optional tags are kept as raw strings.
package sam

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// SAM flag bits.
const (
	FlagUnmapped      = 0x4
	FlagReversed      = 0x10
	FlagSecondary     = 0x100
	FlagSupplementary = 0x800
)

// Record is one alignment line.
type Record struct {
	QName string
	Flag  uint16
	RName string
	Pos   int64 // 1-based leftmost reference position
	MapQ  int
	Cigar Cigar
	Seq   string
	Tags  map[string]string // tag name -> value (type byte dropped)
}

// IsUnmapped reports whether the read did not align.
func (r *Record) IsUnmapped() bool { return r.Flag&FlagUnmapped != 0 }

// IsReversed reports whether the alignment is on the reverse strand.
func (r *Record) IsReversed() bool { return r.Flag&FlagReversed != 0 }

// IsSecondary reports whether this is a secondary alignment record.
func (r *Record) IsSecondary() bool { return r.Flag&FlagSecondary != 0 }

// Reader streams records from a SAM text file, skipping header lines.
type Reader struct {
	scanner *bufio.Scanner
	file    *os.File
	line    int
	header  []string
}

// Open opens a SAM file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open SAM file: %w", err)
	}
	r := NewReader(f)
	r.file = f
	return r, nil
}

// NewReader creates a reader over SAM text content.
func NewReader(rd io.Reader) *Reader {
	scanner := bufio.NewScanner(rd)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)
	return &Reader{scanner: scanner}
}

// Next returns the next alignment record, or nil at end of input.
func (r *Reader) Next() (*Record, error) {
	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "@") {
			r.header = append(r.header, line)
			continue
		}
		rec, err := parseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("sam parse error at line %d: %w", r.line, err)
		}
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan SAM: %w", err)
	}
	return nil, nil
}

// Header returns the header lines seen so far.
func (r *Reader) Header() []string {
	return r.header
}

// Close closes the underlying file, if the reader owns one.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

func parseRecord(line string) (*Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 11 {
		return nil, fmt.Errorf("expected at least 11 columns, found %d", len(fields))
	}

	flag, err := strconv.ParseUint(fields[1], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid flag %q", fields[1])
	}
	pos, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid position %q", fields[3])
	}
	mapq, err := strconv.Atoi(fields[4])
	if err != nil {
		return nil, fmt.Errorf("invalid mapq %q", fields[4])
	}

	rec := &Record{
		QName: fields[0],
		Flag:  uint16(flag),
		RName: fields[2],
		Pos:   pos,
		MapQ:  mapq,
		Seq:   strings.ToUpper(fields[9]),
	}

	if fields[5] != "*" {
		rec.Cigar, err = ParseCigar(fields[5])
		if err != nil {
			return nil, err
		}
	}

	if len(fields) > 11 {
		rec.Tags = make(map[string]string, len(fields)-11)
		for _, tag := range fields[11:] {
			// Tag format NAME:TYPE:VALUE
			parts := strings.SplitN(tag, ":", 3)
			if len(parts) == 3 {
				rec.Tags[parts[0]] = parts[2]
			}
		}
	}

	return rec, nil
}

// CigarOp is a single CIGAR operation.
type CigarOp struct {
	Len int
	Op  byte
}

// Cigar is a parsed CIGAR string.
type Cigar []CigarOp

// ParseCigar parses a CIGAR string such as "2S20M1S".
func ParseCigar(s string) (Cigar, error) {
	var cigar Cigar
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			n = n*10 + int(c-'0')
			continue
		}
		switch c {
		case 'M', 'I', 'D', 'N', 'S', 'H', 'P', '=', 'X':
			if n == 0 {
				return nil, fmt.Errorf("invalid cigar %q", s)
			}
			cigar = append(cigar, CigarOp{Len: n, Op: c})
			n = 0
		default:
			return nil, fmt.Errorf("invalid cigar operation %q in %q", string(c), s)
		}
	}
	if n != 0 {
		return nil, fmt.Errorf("invalid cigar %q", s)
	}
	return cigar, nil
}

// String renders the CIGAR back to its text form.
func (c Cigar) String() string {
	var b strings.Builder
	for _, op := range c {
		b.WriteString(strconv.Itoa(op.Len))
		b.WriteByte(op.Op)
	}
	return b.String()
}

// SoftClip5 returns the length of the leading soft clip.
func (c Cigar) SoftClip5() int {
	for _, op := range c {
		switch op.Op {
		case 'H':
			continue
		case 'S':
			return op.Len
		default:
			return 0
		}
	}
	return 0
}

// SoftClip3 returns the length of the trailing soft clip.
func (c Cigar) SoftClip3() int {
	for i := len(c) - 1; i >= 0; i-- {
		switch c[i].Op {
		case 'H':
			continue
		case 'S':
			return c[i].Len
		default:
			return 0
		}
	}
	return 0
}

// RefSpan returns the number of reference bases the alignment covers.
func (c Cigar) RefSpan() int {
	span := 0
	for _, op := range c {
		switch op.Op {
		case 'M', 'D', 'N', '=', 'X':
			span += op.Len
		}
	}
	return span
}

// ReadLen returns the read length implied by the CIGAR (soft clips included).
func (c Cigar) ReadLen() int {
	n := 0
	for _, op := range c {
		switch op.Op {
		case 'M', 'I', 'S', '=', 'X':
			n += op.Len
		}
	}
	return n
}
