// Package gff parses miRBase GFF3 coordinate annotations. Only the two
// feature types the reference library needs are kept: miRNA (mature) and
// miRNA_primary_transcript (hairpin).
package gff

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Feature types retained from miRBase GFF3 files.
const (
	TypeMature  = "miRNA"
	TypeHairpin = "miRNA_primary_transcript"
)

// Feature is a single coordinate annotation.
type Feature struct {
	Type        string
	Chrom       string
	Start       int64 // 1-based
	End         int64 // 1-based, inclusive
	Strand      int8  // +1 or -1
	ID          string
	Name        string
	DerivesFrom string // hairpin accession for mature features
}

// ReadFile parses a miRBase GFF3 file, transparently decompressing
// .gz inputs. Features of other types are skipped.
func ReadFile(path string) ([]Feature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open GFF3 file: %w", err)
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

// Read parses GFF3 content from a reader.
func Read(reader io.Reader) ([]Feature, error) {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var features []Feature
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 9 {
			continue // skip malformed lines
		}

		featureType := fields[2]
		if featureType != TypeMature && featureType != TypeHairpin {
			continue
		}

		start, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("gff3 parse error at line %d: invalid start %q", lineNum, fields[3])
		}
		end, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("gff3 parse error at line %d: invalid end %q", lineNum, fields[4])
		}

		attrs := parseAttributes(fields[8])
		features = append(features, Feature{
			Type:        featureType,
			Chrom:       fields[0],
			Start:       start,
			End:         end,
			Strand:      parseStrand(fields[6]),
			ID:          attrs["ID"],
			Name:        attrs["Name"],
			DerivesFrom: attrs["Derives_from"],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan GFF3: %w", err)
	}

	return features, nil
}

// parseAttributes parses the semicolon-separated key=value attribute column.
func parseAttributes(col string) map[string]string {
	attrs := make(map[string]string)
	for _, kv := range strings.Split(col, ";") {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			attrs[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return attrs
}

func parseStrand(s string) int8 {
	if s == "-" {
		return -1
	}
	return 1
}
