package fastq

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mirtk/polymir/internal/fasta"
	"github.com/mirtk/polymir/internal/library"
)

// Collapse deduplicates identical read sequences into unique reads with
// occurrence counts. Reads are named "<rank>_x<count>" so counts survive
// the round trip through the external aligner, and ordered by descending
// count with ties broken by sequence for determinism.
func Collapse(r *Reader, sample string) ([]*library.UniqueRead, error) {
	counts := make(map[string]int)
	for {
		rec, err := r.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}
		counts[rec.Seq]++
	}

	reads := make([]*library.UniqueRead, 0, len(counts))
	for seq, count := range counts {
		reads = append(reads, &library.UniqueRead{Seq: seq, Count: count, Sample: sample})
	}
	sort.Slice(reads, func(i, j int) bool {
		if reads[i].Count != reads[j].Count {
			return reads[i].Count > reads[j].Count
		}
		return reads[i].Seq < reads[j].Seq
	})
	for i, read := range reads {
		read.Name = fmt.Sprintf("%d_x%d", i+1, read.Count)
	}
	return reads, nil
}

// WriteCollapsed writes unique reads as FASTA for the aligner.
func WriteCollapsed(path string, reads []*library.UniqueRead) error {
	records := make([]fasta.Record, len(reads))
	for i, read := range reads {
		records[i] = fasta.Record{Name: read.Name, Seq: read.Seq}
	}
	return fasta.WriteFile(path, records)
}

// ParseCollapsedName recovers the collapsed count from a read name
// produced by Collapse.
func ParseCollapsedName(name string) (count int, err error) {
	idx := strings.LastIndex(name, "_x")
	if idx < 0 {
		return 0, fmt.Errorf("not a collapsed read name: %q", name)
	}
	count, err = strconv.Atoi(name[idx+2:])
	if err != nil || count <= 0 {
		return 0, fmt.Errorf("not a collapsed read name: %q", name)
	}
	return count, nil
}
