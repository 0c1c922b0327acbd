// Package fasta provides FASTA reading and writing for miRNA sequence
// libraries. Both plain and gzipped files are supported.
package fasta

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record is a single FASTA entry. Name is the first whitespace-delimited
// token of the header; Description is the remainder, if any.
type Record struct {
	Name        string
	Description string
	Seq         string
}

// ReadFile reads all records from a FASTA file, transparently
// decompressing .gz inputs. Record order follows file order.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FASTA file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return Read(reader)
}

// Read parses FASTA content from a reader.
func Read(reader io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(reader)
	// Increase buffer size for long sequence lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var records []Record
	var current Record
	var seq strings.Builder
	inRecord := false

	flush := func() {
		if inRecord {
			current.Seq = strings.ToUpper(seq.String())
			records = append(records, current)
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, ">") {
			flush()
			header := strings.TrimPrefix(line, ">")
			current = Record{Name: header}
			if idx := strings.IndexAny(header, " \t"); idx != -1 {
				current.Name = header[:idx]
				current.Description = strings.TrimSpace(header[idx+1:])
			}
			seq.Reset()
			inRecord = true
		} else if inRecord {
			seq.WriteString(strings.TrimSpace(line))
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan FASTA: %w", err)
	}

	return records, nil
}

// WriteFile writes records to a FASTA file, one sequence line per record.
func WriteFile(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create FASTA file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range records {
		header := r.Name
		if r.Description != "" {
			header += " " + r.Description
		}
		if _, err := fmt.Fprintf(w, ">%s\n%s\n", header, r.Seq); err != nil {
			return fmt.Errorf("write FASTA record %s: %w", r.Name, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush FASTA file: %w", err)
	}
	return nil
}

// ReverseComplement returns the reverse complement of a DNA sequence.
// Uracil is treated as thymine so RNA-space miRBase sequences round-trip.
func ReverseComplement(seq string) string {
	out := make([]byte, len(seq))
	for i := 0; i < len(seq); i++ {
		out[len(seq)-1-i] = complementBase(seq[i])
	}
	return string(out)
}

func complementBase(b byte) byte {
	switch b {
	case 'A', 'a':
		return 'T'
	case 'T', 't', 'U', 'u':
		return 'A'
	case 'C', 'c':
		return 'G'
	case 'G', 'g':
		return 'C'
	default:
		return 'N'
	}
}
