// Package output renders the result tables and secondary export formats.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mirtk/polymir/internal/abundance"
	"github.com/mirtk/polymir/internal/resolve"
)

// TableWriter writes tab-delimited result tables.
type TableWriter struct {
	w *bufio.Writer
}

// NewTableWriter creates a writer over w.
func NewTableWriter(w io.Writer) *TableWriter {
	return &TableWriter{w: bufio.NewWriter(w)}
}

// WriteExpression writes a feature/sample/count table (hairpin or mature
// granularity).
func (tw *TableWriter) WriteExpression(featureColumn string, entries []abundance.ExpressionEntry) error {
	if err := tw.row(featureColumn, "sample", "count"); err != nil {
		return err
	}
	for _, e := range entries {
		if err := tw.row(e.Feature, e.Sample, strconv.Itoa(e.Count)); err != nil {
			return err
		}
	}
	return tw.w.Flush()
}

// WritePolymiRs writes the per-site, per-allele table.
func (tw *TableWriter) WritePolymiRs(sample string, entries []abundance.PolymirEntry) error {
	if err := tw.row("site", "chrom", "pos", "allele", "allele_index", "genotype",
		"sample", "consistent", "inconsistent", "not_applicable", "total"); err != nil {
		return err
	}
	for _, e := range entries {
		genotype := "-"
		if g, ok := e.Site.GenotypeFor(sample); ok {
			genotype = g.String()
		}
		if err := tw.row(
			e.Site.ID,
			e.Site.Chrom,
			strconv.FormatInt(e.Site.Pos, 10),
			e.Allele,
			strconv.Itoa(e.AlleleIndex),
			genotype,
			sample,
			strconv.Itoa(e.Consistent),
			strconv.Itoa(e.Inconsistent),
			strconv.Itoa(e.NotApplic),
			strconv.Itoa(e.Total()),
		); err != nil {
			return err
		}
	}
	return tw.w.Flush()
}

// WriteConsistency writes the per-site consistency report. Suspicious
// sites carry the HIGHLY_SUSPICIOUS flag; the flag is diagnostic only and
// never excludes reads.
func (tw *TableWriter) WriteConsistency(sample string, reports []resolve.SiteReport) error {
	if err := tw.row("site", "chrom", "pos", "ref", "alts", "genotype",
		"sample", "consistent", "inconsistent", "inconsistent_rate", "flag"); err != nil {
		return err
	}
	for _, r := range reports {
		flag := "OK"
		if r.Suspicious {
			flag = "HIGHLY_SUSPICIOUS"
		}
		if err := tw.row(
			r.Site.ID,
			r.Site.Chrom,
			strconv.FormatInt(r.Site.Pos, 10),
			r.Site.Ref,
			strings.Join(r.Site.Alts, ","),
			r.Genotype,
			sample,
			strconv.Itoa(r.ConsistentCount),
			strconv.Itoa(r.InconsistentCount),
			formatRate(r.Rate),
			flag,
		); err != nil {
			return err
		}
	}
	return tw.w.Flush()
}

// WriteAmbiguous writes the remaining-ambiguous table. These counts are
// deliberately kept out of the per-locus tables.
func (tw *TableWriter) WriteAmbiguous(sample string, entries []abundance.AmbiguousRead) error {
	if err := tw.row("sequence", "sample", "count", "score", "tied_features"); err != nil {
		return err
	}
	for _, e := range entries {
		if err := tw.row(
			e.Seq,
			sample,
			strconv.Itoa(e.Count),
			strconv.Itoa(e.Score),
			strings.Join(e.Loci, ","),
		); err != nil {
			return err
		}
	}
	return tw.w.Flush()
}

// WriteIsomiRs writes the isomiR distribution.
func (tw *TableWriter) WriteIsomiRs(sample string, entries []abundance.IsomirEntry) error {
	if err := tw.row("mature", "isomir", "sample", "count"); err != nil {
		return err
	}
	for _, e := range entries {
		if err := tw.row(e.Mature, e.Signature, sample, strconv.Itoa(e.Count)); err != nil {
			return err
		}
	}
	return tw.w.Flush()
}

func (tw *TableWriter) row(fields ...string) error {
	_, err := tw.w.WriteString(strings.Join(fields, "\t") + "\n")
	return err
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', 6, 64)
}

// Summary is the per-sample run summary written alongside the tables.
type Summary struct {
	Sample       string
	UniqueReads  int
	Consistent   int
	Inconsistent int
	Ambiguous    int
	NotApplic    int
	Unaligned    int
}

// WriteSummary writes classification bucket totals for one sample.
func (tw *TableWriter) WriteSummary(s Summary) error {
	rows := [][2]string{
		{"sample", s.Sample},
		{"unique_reads", strconv.Itoa(s.UniqueReads)},
		{"consistent", strconv.Itoa(s.Consistent)},
		{"inconsistent", strconv.Itoa(s.Inconsistent)},
		{"ambiguous", strconv.Itoa(s.Ambiguous)},
		{"not_applicable", strconv.Itoa(s.NotApplic)},
		{"unaligned", strconv.Itoa(s.Unaligned)},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw.w, "%s\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	return tw.w.Flush()
}
