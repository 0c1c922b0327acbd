package library

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mirtk/polymir/internal/fasta"
	"github.com/mirtk/polymir/internal/gff"
	"github.com/mirtk/polymir/internal/vcf"
)

// Inputs carries the parsed baseline data the incorporator expands.
// Variants and Samples are nil when no genotype file was supplied.
type Inputs struct {
	Matures  []fasta.Record
	Hairpins []fasta.Record
	Features []gff.Feature
	Variants []*vcf.Variant
	Samples  []string
}

// Incorporator expands baseline miRNA sequences with per-allele variants.
type Incorporator struct {
	logger *zap.Logger
}

// NewIncorporator creates an incorporator with a no-op logger.
func NewIncorporator() *Incorporator {
	return &Incorporator{logger: zap.NewNop()}
}

// SetLogger sets the logger for warning messages.
func (inc *Incorporator) SetLogger(l *zap.Logger) {
	inc.logger = l
}

// baseline is one coordinate-anchored feature with its sequence attached.
type baseline struct {
	feature gff.Feature
	kind    SequenceKind
	hairpin string // parent hairpin name
	idBase  string // entry ID stem, accession-qualified on name collision
	seq     string // DNA alphabet, transcript orientation
	sites   []*siteBinding
}

// siteBinding anchors a variant site inside one baseline transcript.
type siteBinding struct {
	site    *VariantSite
	variant *vcf.Variant
	offset  int // 0-based transcript offset of the substituted segment
}

// Build constructs the expanded reference library. For every feature
// interval overlapping variant positions it emits one ReferenceSequence
// per allele combination, fully enumerating multi-allelic sites; features
// without overlapping variants get a single canonical entry.
func (inc *Incorporator) Build(in Inputs) (*Library, error) {
	lib := &Library{
		VCFAvailable:  in.Variants != nil,
		GenoAvailable: in.Variants != nil && len(in.Samples) > 0,
		Samples:       in.Samples,
	}

	baselines, err := inc.collectBaselines(in)
	if err != nil {
		return nil, err
	}

	sites := inc.bindVariants(baselines, in.Variants)

	for _, b := range baselines {
		entries := inc.expand(b)
		lib.Sequences = append(lib.Sequences, entries...)
		for _, entry := range entries {
			for _, tag := range entry.Alleles {
				if site, ok := findSite(sites, tag.SiteID); ok {
					site.SequenceIDs = append(site.SequenceIDs, entry.ID)
				}
			}
		}
	}

	lib.Sites = sites
	lib.Index()
	return lib, nil
}

// collectBaselines joins GFF3 coordinates with FASTA sequences. Features
// without a matching sequence are skipped with a warning; a library with
// no usable feature at all is an error.
func (inc *Incorporator) collectBaselines(in Inputs) ([]*baseline, error) {
	matureSeqs := sequencesByName(in.Matures)
	hairpinSeqs := sequencesByName(in.Hairpins)

	// Map hairpin accession (GFF3 ID) -> hairpin name, for Derives_from.
	hairpinNames := make(map[string]string)
	for _, f := range in.Features {
		if f.Type == gff.TypeHairpin {
			hairpinNames[f.ID] = f.Name
		}
	}

	var baselines []*baseline
	for _, f := range in.Features {
		var seq, hairpin string
		var kind SequenceKind
		var ok bool
		switch f.Type {
		case gff.TypeMature:
			kind = KindMature
			seq, ok = matureSeqs[f.Name]
			hairpin = hairpinNames[f.DerivesFrom]
		case gff.TypeHairpin:
			kind = KindHairpin
			seq, ok = hairpinSeqs[f.Name]
			hairpin = f.Name
		default:
			continue
		}
		if !ok {
			inc.logger.Warn("no sequence for annotated feature, skipping",
				zap.String("name", f.Name),
				zap.String("type", f.Type))
			continue
		}
		baselines = append(baselines, &baseline{
			feature: f,
			kind:    kind,
			hairpin: hairpin,
			seq:     rnaToDNA(seq),
		})
	}

	if len(baselines) == 0 {
		return nil, fmt.Errorf("no annotated feature matched a sequence; check that FASTA names and GFF3 Name attributes agree")
	}

	// miRBase reuses mature names across loci (hsa-miR-16-5p derives
	// from both hsa-mir-16-1 and hsa-mir-16-2). Entry IDs must stay
	// unique, so colliding names are qualified with the accession.
	names := make(map[string]int)
	for _, b := range baselines {
		names[b.feature.Name]++
	}
	for _, b := range baselines {
		b.idBase = b.feature.Name
		if names[b.feature.Name] > 1 && b.feature.ID != "" {
			b.idBase = b.feature.Name + "_" + b.feature.ID
		}
	}
	return baselines, nil
}

// bindVariants attaches each variant to every baseline whose interval
// fully contains the reference allele span, and returns the VariantSite
// set in deterministic (chrom, pos) order.
func (inc *Incorporator) bindVariants(baselines []*baseline, variants []*vcf.Variant) []*VariantSite {
	if len(variants) == 0 {
		return nil
	}

	byChrom := make(map[string][]treeInterval)
	for i, b := range baselines {
		byChrom[normalizeChrom(b.feature.Chrom)] = append(byChrom[normalizeChrom(b.feature.Chrom)], treeInterval{
			start: b.feature.Start,
			end:   b.feature.End,
			index: i,
		})
	}
	trees := make(map[string]*intervalTree, len(byChrom))
	for chrom, intervals := range byChrom {
		trees[chrom] = buildIntervalTree(intervals)
	}

	var sites []*VariantSite
	for _, v := range variants {
		tree, ok := trees[v.NormalizeChrom()]
		if !ok {
			continue
		}

		var site *VariantSite
		for _, idx := range tree.findOverlaps(v.Pos) {
			b := baselines[idx]
			refEnd := v.Pos + int64(len(v.Ref)) - 1
			if refEnd > b.feature.End {
				inc.logger.Warn("variant overlaps feature boundary, skipping",
					zap.String("site", v.Key()),
					zap.String("feature", b.feature.Name))
				continue
			}

			offset, refT := transcriptSegment(b.feature, v.Pos, v.Ref)
			if got := b.seq[offset : offset+len(refT)]; got != refT {
				inc.logger.Warn("reference allele does not match library sequence, skipping",
					zap.String("site", v.Key()),
					zap.String("feature", b.feature.Name),
					zap.String("expected", refT),
					zap.String("found", got))
				continue
			}

			if site == nil {
				site = &VariantSite{
					ID:        v.Key(),
					Chrom:     v.Chrom,
					Pos:       v.Pos,
					Ref:       v.Ref,
					Alts:      v.Alts,
					Genotypes: v.Genotypes,
				}
			}
			b.sites = append(b.sites, &siteBinding{site: site, variant: v, offset: offset})
		}

		if site != nil {
			sites = append(sites, site)
		}
	}

	sort.Slice(sites, func(i, j int) bool {
		if sites[i].Chrom != sites[j].Chrom {
			return sites[i].Chrom < sites[j].Chrom
		}
		return sites[i].Pos < sites[j].Pos
	})
	return sites
}

// expand emits every allele combination of one baseline. The all-reference
// combination is the canonical entry and keeps the bare feature name.
func (inc *Incorporator) expand(b *baseline) []*ReferenceSequence {
	sort.Slice(b.sites, func(i, j int) bool { return b.sites[i].offset < b.sites[j].offset })

	// Drop bindings whose reference span overlaps an earlier site; allele
	// combinations would not be well defined over overlapping edits.
	bindings := b.sites[:0]
	prevEnd := -1
	for _, sb := range b.sites {
		refLen := len(transcriptAllele(b.feature, sb.site.Ref))
		if sb.offset < prevEnd {
			inc.logger.Warn("overlapping variant sites on one feature, keeping first",
				zap.String("feature", b.feature.Name),
				zap.String("site", sb.site.ID))
			continue
		}
		prevEnd = sb.offset + refLen
		bindings = append(bindings, sb)
	}
	b.sites = bindings

	if len(b.sites) == 0 {
		return []*ReferenceSequence{inc.entryFor(b, nil)}
	}

	// Mixed-radix enumeration over allele indices of each site.
	choices := make([]int, len(b.sites))
	var entries []*ReferenceSequence
	for {
		entries = append(entries, inc.entryFor(b, choices))

		i := len(choices) - 1
		for i >= 0 {
			choices[i]++
			if choices[i] <= len(b.sites[i].site.Alts) {
				break
			}
			choices[i] = 0
			i--
		}
		if i < 0 {
			break
		}
	}
	return entries
}

// entryFor builds the ReferenceSequence for one allele choice vector.
func (inc *Incorporator) entryFor(b *baseline, choices []int) *ReferenceSequence {
	entry := &ReferenceSequence{
		Name:    b.feature.Name,
		Kind:    b.kind,
		Hairpin: b.hairpin,
		Chrom:   b.feature.Chrom,
		Start:   b.feature.Start,
		End:     b.feature.End,
		Strand:  b.feature.Strand,
	}

	var out strings.Builder
	prev := 0
	shift := 0
	for i, sb := range b.sites {
		alleles := sb.site.Alleles()
		chosen := alleles[choices[i]]
		refT := transcriptAllele(b.feature, sb.site.Ref)
		altT := transcriptAllele(b.feature, chosen)

		out.WriteString(b.seq[prev:sb.offset])
		out.WriteString(altT)
		entry.Alleles = append(entry.Alleles, AlleleTag{
			SiteID: sb.site.ID,
			Allele: chosen,
			Index:  choices[i],
			Offset: sb.offset + shift,
			Length: len(altT),
		})
		shift += len(altT) - len(refT)
		prev = sb.offset + len(refT)
	}
	out.WriteString(b.seq[prev:])
	entry.Seq = out.String()

	entry.ID = b.idBase
	if suffix := entry.AlleleSuffix(); suffix != "" {
		entry.ID = b.idBase + "_" + suffix
	}
	return entry
}

// transcriptSegment translates a genomic variant span into the transcript
// offset and transcript-orientation reference bases for a feature.
func transcriptSegment(f gff.Feature, pos int64, ref string) (int, string) {
	if f.Strand < 0 {
		offset := int(f.End - pos - int64(len(ref)) + 1)
		return offset, fasta.ReverseComplement(ref)
	}
	return int(pos - f.Start), strings.ToUpper(ref)
}

// transcriptAllele converts allele bases into transcript orientation.
func transcriptAllele(f gff.Feature, allele string) string {
	if f.Strand < 0 {
		return fasta.ReverseComplement(allele)
	}
	return strings.ToUpper(allele)
}

func sequencesByName(records []fasta.Record) map[string]string {
	m := make(map[string]string, len(records))
	for _, r := range records {
		m[r.Name] = r.Seq
	}
	return m
}

func rnaToDNA(seq string) string {
	return strings.Map(func(r rune) rune {
		if r == 'U' || r == 'u' {
			return 'T'
		}
		return r
	}, strings.ToUpper(seq))
}

func normalizeChrom(chrom string) string {
	if len(chrom) > 3 && chrom[:3] == "chr" {
		return chrom[3:]
	}
	return chrom
}

func findSite(sites []*VariantSite, id string) (*VariantSite, bool) {
	for _, s := range sites {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}
