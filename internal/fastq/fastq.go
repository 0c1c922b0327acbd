// Package fastq provides FASTQ reading and read collapsing for the
// pre-alignment stages. Both plain and gzipped files are supported.
package fastq

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record is a single FASTQ read.
type Record struct {
	Name string
	Seq  string
	Qual string
}

// Reader streams records from a FASTQ file.
type Reader struct {
	scanner *bufio.Scanner
	file    *os.File
	gz      *gzip.Reader
	line    int
}

// Open opens a FASTQ file for reading, transparently decompressing
// .gz inputs.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FASTQ file: %w", err)
	}

	r := &Reader{file: f}
	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		r.gz, err = gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		reader = r.gz
	}

	r.scanner = bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	r.scanner.Buffer(buf, 1024*1024)
	return r, nil
}

// Next returns the next read, or nil at end of input.
func (r *Reader) Next() (*Record, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("scan FASTQ: %w", err)
		}
		return nil, nil
	}
	r.line++
	header := r.scanner.Text()
	if !strings.HasPrefix(header, "@") {
		return nil, fmt.Errorf("fastq parse error at line %d: expected @ header, got %q", r.line, header)
	}

	fields := [3]string{}
	for i := 0; i < 3; i++ {
		if !r.scanner.Scan() {
			return nil, fmt.Errorf("fastq parse error at line %d: truncated record", r.line)
		}
		r.line++
		fields[i] = r.scanner.Text()
	}
	if !strings.HasPrefix(fields[1], "+") {
		return nil, fmt.Errorf("fastq parse error at line %d: expected + separator", r.line-1)
	}

	name := strings.TrimPrefix(header, "@")
	if idx := strings.IndexAny(name, " \t"); idx != -1 {
		name = name[:idx]
	}

	return &Record{Name: name, Seq: strings.ToUpper(fields[0]), Qual: fields[2]}, nil
}

// Close closes the reader and the underlying file.
func (r *Reader) Close() error {
	if r.gz != nil {
		r.gz.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
