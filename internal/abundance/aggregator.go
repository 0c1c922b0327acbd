// Package abundance re-expands resolved read classifications into
// expression tables at four granularities: hairpin, mature miRNA,
// polymiR allele and isomiR. Ambiguous reads are reported in their own
// table and never silently divided across tied loci.
package abundance

import (
	"sort"
	"strconv"
	"strings"

	"github.com/mirtk/polymir/internal/align"
	"github.com/mirtk/polymir/internal/library"
)

// ExpressionEntry is one row of an expression table.
type ExpressionEntry struct {
	Feature string
	Sample  string
	Count   int
}

// PolymirEntry is the per-site, per-allele expression breakdown.
type PolymirEntry struct {
	Site         *library.VariantSite
	AlleleIndex  int
	Allele       string
	Consistent   int
	Inconsistent int
	NotApplic    int
}

// Total returns the allele's full attributed count.
func (e PolymirEntry) Total() int {
	return e.Consistent + e.Inconsistent + e.NotApplic
}

// IsomirEntry is one isomiR signature's count under a mature miRNA.
type IsomirEntry struct {
	Mature    string
	Signature string
	Count     int
}

// AmbiguousRead is a read excluded from single-locus attribution because
// its surviving alignments tie at minimal score across several loci.
type AmbiguousRead struct {
	Seq   string
	Count int
	Loci  []string // tied feature names, deterministic order
	Score int
}

type polymirKey struct {
	siteID string
	allele int
}

// Aggregator accumulates resolved reads for one sample.
type Aggregator struct {
	lib    *library.Library
	sample string

	hairpins  map[string]int
	matures   map[string]int
	polymirs  map[polymirKey]*PolymirEntry
	isomirs   map[string]*IsomirEntry // key mature+"\x00"+signature
	ambiguous []AmbiguousRead

	buckets   map[align.Classification]int
	unaligned int
	reads     int
}

// NewAggregator creates an empty aggregator for one sample.
func NewAggregator(lib *library.Library, sample string) *Aggregator {
	return &Aggregator{
		lib:      lib,
		sample:   sample,
		hairpins: make(map[string]int),
		matures:  make(map[string]int),
		polymirs: make(map[polymirKey]*PolymirEntry),
		isomirs:  make(map[string]*IsomirEntry),
		buckets:  make(map[align.Classification]int),
	}
}

// Add re-expands one resolved read's collapsed count into the tables.
// The count lands in exactly one classification bucket, so per-read
// totals are conserved across consistent + inconsistent + ambiguous +
// not-applicable.
func (g *Aggregator) Add(result *align.ReadResult) {
	g.reads++
	if !result.Aligned() {
		g.unaligned += result.Read.Count
		return
	}

	g.buckets[result.Class] += result.Read.Count

	if result.Class == align.Ambiguous {
		g.addAmbiguous(result)
		return
	}

	// Single-locus attribution: all best alignments share one locus.
	best := result.Best[0]
	switch best.Ref.Kind {
	case library.KindMature:
		g.matures[best.Ref.Name] += result.Read.Count
		if best.Ref.Hairpin != "" {
			g.hairpins[best.Ref.Hairpin] += result.Read.Count
		}
		g.addIsomir(result, best)
	case library.KindHairpin:
		g.hairpins[best.Ref.Name] += result.Read.Count
	}

	g.addPolymirs(result)
}

func (g *Aggregator) addAmbiguous(result *align.ReadResult) {
	seen := make(map[string]bool)
	var loci []string
	for _, s := range result.Best {
		if !seen[s.Ref.Name] {
			seen[s.Ref.Name] = true
			loci = append(loci, s.Ref.Name)
		}
	}
	sort.Strings(loci)
	g.ambiguous = append(g.ambiguous, AmbiguousRead{
		Seq:   result.Read.Seq,
		Count: result.Read.Count,
		Loci:  loci,
		Score: result.Best[0].Score,
	})
}

func (g *Aggregator) addPolymirs(result *align.ReadResult) {
	// One contribution per site per read.
	type obsVal struct {
		allele int
		name   string
		class  align.Classification
	}
	seen := make(map[string]obsVal)
	for _, s := range result.Best {
		for _, obs := range s.Observations {
			if _, ok := seen[obs.SiteID]; !ok {
				seen[obs.SiteID] = obsVal{allele: obs.AlleleIndex, name: obs.Allele, class: obs.Class}
			}
		}
	}

	for siteID, obs := range seen {
		key := polymirKey{siteID: siteID, allele: obs.allele}
		entry, ok := g.polymirs[key]
		if !ok {
			site, found := g.lib.Site(siteID)
			if !found {
				continue
			}
			entry = &PolymirEntry{Site: site, AlleleIndex: obs.allele, Allele: obs.name}
			g.polymirs[key] = entry
		}
		switch obs.class {
		case align.Consistent:
			entry.Consistent += result.Read.Count
		case align.Inconsistent:
			entry.Inconsistent += result.Read.Count
		default:
			entry.NotApplic += result.Read.Count
		}
	}
}

func (g *Aggregator) addIsomir(result *align.ReadResult, best *align.ScoredAlignment) {
	sig := Signature(best)
	key := best.Ref.Name + "\x00" + sig
	entry, ok := g.isomirs[key]
	if !ok {
		entry = &IsomirEntry{Mature: best.Ref.Name, Signature: sig}
		g.isomirs[key] = entry
	}
	entry.Count += result.Read.Count
}

// Hairpins returns the hairpin expression table, sorted by feature.
func (g *Aggregator) Hairpins() []ExpressionEntry {
	return g.entries(g.hairpins)
}

// Matures returns the mature miRNA expression table, sorted by feature.
func (g *Aggregator) Matures() []ExpressionEntry {
	return g.entries(g.matures)
}

// PolymiRs returns the per-site, per-allele table in deterministic
// (chrom, pos, allele index) order.
func (g *Aggregator) PolymiRs() []PolymirEntry {
	entries := make([]PolymirEntry, 0, len(g.polymirs))
	for _, e := range g.polymirs {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Site.Chrom != b.Site.Chrom {
			return a.Site.Chrom < b.Site.Chrom
		}
		if a.Site.Pos != b.Site.Pos {
			return a.Site.Pos < b.Site.Pos
		}
		return a.AlleleIndex < b.AlleleIndex
	})
	return entries
}

// IsomiRs returns the isomiR distribution, sorted by mature then signature.
func (g *Aggregator) IsomiRs() []IsomirEntry {
	entries := make([]IsomirEntry, 0, len(g.isomirs))
	for _, e := range g.isomirs {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Mature != entries[j].Mature {
			return entries[i].Mature < entries[j].Mature
		}
		return entries[i].Signature < entries[j].Signature
	})
	return entries
}

// Ambiguous returns the ambiguous-reads table, sorted by descending count
// then sequence.
func (g *Aggregator) Ambiguous() []AmbiguousRead {
	entries := make([]AmbiguousRead, len(g.ambiguous))
	copy(entries, g.ambiguous)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Seq < entries[j].Seq
	})
	return entries
}

// BucketTotal returns the summed collapsed counts in one classification
// bucket.
func (g *Aggregator) BucketTotal(class align.Classification) int {
	return g.buckets[class]
}

// UnalignedTotal returns the summed counts of reads with no surviving
// alignment.
func (g *Aggregator) UnalignedTotal() int {
	return g.unaligned
}

// ReadCount returns the number of unique reads aggregated.
func (g *Aggregator) ReadCount() int {
	return g.reads
}

// Sample returns the sample this aggregator belongs to.
func (g *Aggregator) Sample() string {
	return g.sample
}

func (g *Aggregator) entries(counts map[string]int) []ExpressionEntry {
	entries := make([]ExpressionEntry, 0, len(counts))
	for feature, count := range counts {
		entries = append(entries, ExpressionEntry{Feature: feature, Sample: g.sample, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Feature < entries[j].Feature })
	return entries
}

// Signature derives the isomiR signature of an alignment relative to the
// canonical mature sequence: 5' and 3' end shifts plus internal
// substitutions. The canonical form (exact full-length match) is "ref".
func Signature(s *align.ScoredAlignment) string {
	// End shifts in reference orientation. Soft-clipped bases extend the
	// read beyond the aligned span.
	start := s.Offset - s.SoftClip5
	end := s.Offset + s.RefSpan + s.SoftClip3
	shift5 := start            // >0 trimmed, <0 tailed at the 5' end
	shift3 := end - len(s.Ref.Seq) // >0 tailed, <0 trimmed at the 3' end

	var subs []string
	for _, mm := range s.Mismatches {
		readBase := byte('N')
		if mm.ReadPos < len(s.AlignedSeq) {
			readBase = s.AlignedSeq[mm.ReadPos]
		}
		subs = append(subs, strconv.Itoa(mm.RefPos+s.Offset)+string(mm.RefBase)+">"+string(readBase))
	}

	if shift5 == 0 && shift3 == 0 && len(subs) == 0 {
		return "ref"
	}

	parts := []string{
		"5p:" + signedInt(shift5),
		"3p:" + signedInt(shift3),
	}
	if len(subs) > 0 {
		parts = append(parts, "sub:"+strings.Join(subs, ","))
	}
	return strings.Join(parts, "|")
}

func signedInt(n int) string {
	if n > 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
