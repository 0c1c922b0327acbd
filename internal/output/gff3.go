package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/mirtk/polymir/internal/abundance"
	"github.com/mirtk/polymir/internal/library"
)

// GFF3Writer exports per-feature expression as GFF3, one line per
// expressed mature miRNA or hairpin, with the aggregated count in an
// Expression attribute.
type GFF3Writer struct {
	w      *bufio.Writer
	lib    *library.Library
	source string
}

// NewGFF3Writer creates a GFF3 exporter. source names the sequence
// database the coordinates came from (e.g. the mature FASTA basename).
func NewGFF3Writer(w io.Writer, lib *library.Library, source string) *GFF3Writer {
	return &GFF3Writer{w: bufio.NewWriter(w), lib: lib, source: source}
}

// Write renders the export for one sample's aggregated tables.
func (gw *GFF3Writer) Write(sample string, matures, hairpins []abundance.ExpressionEntry) error {
	if _, err := fmt.Fprintf(gw.w, "##gff-version 3\n# polymir expression export, sample %s, source %s\n", sample, gw.source); err != nil {
		return err
	}

	if err := gw.writeEntries("miRNA_primary_transcript", hairpins); err != nil {
		return err
	}
	if err := gw.writeEntries("miRNA", matures); err != nil {
		return err
	}
	return gw.w.Flush()
}

func (gw *GFF3Writer) writeEntries(featureType string, entries []abundance.ExpressionEntry) error {
	for _, e := range entries {
		// Expression tables are keyed by feature name; fall back to a
		// representative locus when the name repeats in miRBase.
		ref, ok := gw.lib.Sequence(e.Feature)
		if !ok {
			ref, ok = gw.lib.SequenceByName(e.Feature)
		}
		if !ok {
			continue
		}
		strand := "+"
		if ref.Strand < 0 {
			strand = "-"
		}
		attrs := []string{
			"ID=" + ref.Name,
			"Name=" + ref.Name,
			fmt.Sprintf("Expression=%d", e.Count),
		}
		if ref.Kind == library.KindMature && ref.Hairpin != "" {
			attrs = append(attrs, "Derives_from="+ref.Hairpin)
		}
		if _, err := fmt.Fprintf(gw.w, "%s\t%s\t%s\t%d\t%d\t.\t%s\t.\t%s\n",
			ref.Chrom, gw.source, featureType, ref.Start, ref.End, strand,
			strings.Join(attrs, ";")); err != nil {
			return err
		}
	}
	return nil
}
