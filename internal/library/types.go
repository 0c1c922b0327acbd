// Package library builds and caches the allele-expanded miRNA reference
// library: baseline mature and hairpin sequences from miRBase plus one
// sequence per allele combination at loci overlapping genotyped variants
// (polymiRs).
package library

import (
	"strings"

	"github.com/mirtk/polymir/internal/vcf"
)

// SequenceKind distinguishes mature miRNAs from hairpin precursors.
type SequenceKind int8

const (
	KindMature SequenceKind = iota
	KindHairpin
)

func (k SequenceKind) String() string {
	if k == KindHairpin {
		return "hairpin"
	}
	return "mature"
}

// AlleleTag records one variant allele carried by a ReferenceSequence.
type AlleleTag struct {
	SiteID string // VariantSite identifier
	Allele string // allele bases as substituted (transcript orientation not applied)
	Index  int    // VCF allele index: 0 = ref, 1 = first alt, ...
	Offset int    // 0-based transcript-relative offset of the site in Seq
	Length int    // length of the substituted segment in Seq
}

// ReferenceSequence is one alignment target in the expanded library.
// Several entries may share a locus and differ only by allele.
type ReferenceSequence struct {
	ID      string       // library entry name, unique within the library
	Name    string       // canonical feature name (e.g. hsa-miR-146a-5p)
	Kind    SequenceKind // mature or hairpin
	Hairpin string       // parent hairpin name; for hairpin entries, the entry's own name
	Chrom   string
	Start   int64 // 1-based genomic start
	End     int64 // 1-based genomic end, inclusive
	Strand  int8  // +1 or -1
	Seq     string
	Alleles []AlleleTag // nil for sequences at loci without variants
}

// IsCanonical reports whether the entry carries only reference alleles.
func (r *ReferenceSequence) IsCanonical() bool {
	for _, tag := range r.Alleles {
		if tag.Index != 0 {
			return false
		}
	}
	return true
}

// AlleleSuffix returns the non-reference allele portion of the entry ID,
// empty for canonical entries.
func (r *ReferenceSequence) AlleleSuffix() string {
	var parts []string
	for _, tag := range r.Alleles {
		if tag.Index != 0 {
			parts = append(parts, tag.SiteID+":"+tag.Allele)
		}
	}
	return strings.Join(parts, "&")
}

// TagAt returns the allele tag covering the given site, if any.
func (r *ReferenceSequence) TagAt(siteID string) (AlleleTag, bool) {
	for _, tag := range r.Alleles {
		if tag.SiteID == siteID {
			return tag, true
		}
	}
	return AlleleTag{}, false
}

// VariantSite is a genotyped variant overlapping at least one library
// sequence interval.
type VariantSite struct {
	ID          string
	Chrom       string
	Pos         int64 // 1-based genomic position
	Ref         string
	Alts        []string
	SequenceIDs []string                // IDs of ReferenceSequences carrying an allele of this site
	Genotypes   map[string]vcf.Genotype // sample name -> genotype call
}

// Alleles returns the full allele list, reference first.
func (s *VariantSite) Alleles() []string {
	alleles := make([]string, 0, len(s.Alts)+1)
	alleles = append(alleles, s.Ref)
	alleles = append(alleles, s.Alts...)
	return alleles
}

// GenotypeFor returns the genotype called for a sample, if present and called.
func (s *VariantSite) GenotypeFor(sample string) (vcf.Genotype, bool) {
	g, ok := s.Genotypes[sample]
	if !ok || !g.IsCalled() {
		return vcf.Genotype{}, false
	}
	return g, true
}

// UniqueRead is a collapsed read: one distinct sequence with its total
// occurrence count for one sample.
type UniqueRead struct {
	Name   string // collapsed read identifier (encodes rank and count)
	Seq    string
	Count  int
	Sample string
}

// Library is the expanded reference set for one (VCF, matures, hairpins,
// GFF3) input combination, cached by content hash and read-only after
// construction.
type Library struct {
	Hash          string
	Sequences     []*ReferenceSequence
	Sites         []*VariantSite
	Samples       []string // genotyped sample names from the VCF, nil without genotypes
	VCFAvailable  bool
	GenoAvailable bool

	byID     map[string]*ReferenceSequence
	byName   map[string]*ReferenceSequence
	siteByID map[string]*VariantSite
}

// Index (re)builds the internal lookup maps. Must be called after
// decoding a Library from its cached form.
func (l *Library) Index() {
	l.byID = make(map[string]*ReferenceSequence, len(l.Sequences))
	l.byName = make(map[string]*ReferenceSequence)
	for _, seq := range l.Sequences {
		l.byID[seq.ID] = seq
		if seq.IsCanonical() {
			if _, ok := l.byName[seq.Name]; !ok {
				l.byName[seq.Name] = seq
			}
		}
	}
	l.siteByID = make(map[string]*VariantSite, len(l.Sites))
	for _, site := range l.Sites {
		l.siteByID[site.ID] = site
	}
}

// Sequence returns the reference sequence with the given entry ID.
func (l *Library) Sequence(id string) (*ReferenceSequence, bool) {
	seq, ok := l.byID[id]
	return seq, ok
}

// SequenceByName returns the first canonical entry with the given feature
// name. Names repeat across loci in miRBase, so this is a representative
// entry, not a unique one.
func (l *Library) SequenceByName(name string) (*ReferenceSequence, bool) {
	seq, ok := l.byName[name]
	return seq, ok
}

// Site returns the variant site with the given ID.
func (l *Library) Site(id string) (*VariantSite, bool) {
	site, ok := l.siteByID[id]
	return site, ok
}

// HasSample reports whether the sample was genotyped in the input VCF.
func (l *Library) HasSample(sample string) bool {
	for _, s := range l.Samples {
		if s == sample {
			return true
		}
	}
	return false
}
