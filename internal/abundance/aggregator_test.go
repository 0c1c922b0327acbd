package abundance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirtk/polymir/internal/align"
	"github.com/mirtk/polymir/internal/library"
	"github.com/mirtk/polymir/internal/sam"
	"github.com/mirtk/polymir/internal/vcf"
)

func aggregatorLibrary() *library.Library {
	lib := &library.Library{
		GenoAvailable: true,
		Sequences: []*library.ReferenceSequence{
			{ID: "hsa-miR-146a-3p", Name: "hsa-miR-146a-3p", Kind: library.KindMature,
				Hairpin: "hsa-mir-146a", Chrom: "chr5", Seq: "CCTCTGAAATTCAGTTCTTCAG"},
			{ID: "hsa-mir-146a", Name: "hsa-mir-146a", Kind: library.KindHairpin,
				Hairpin: "hsa-mir-146a", Chrom: "chr5", Seq: "CCTCTGAAATTCAGTTCTTCAGGGGGGGGG"},
			{ID: "hsa-miR-other", Name: "hsa-miR-other", Kind: library.KindMature,
				Hairpin: "hsa-mir-other", Chrom: "chr9", Seq: "TGAGAACTGAATTCCATGGGTT"},
		},
		Sites: []*library.VariantSite{
			{ID: "rs1", Chrom: "chr5", Pos: 100, Ref: "G", Alts: []string{"C"},
				Genotypes: map[string]vcf.Genotype{"S1": vcf.ParseGenotype("0/1")}},
		},
	}
	lib.Index()
	return lib
}

func scored(lib *library.Library, refID string, score int) *align.ScoredAlignment {
	ref, _ := lib.Sequence(refID)
	return &align.ScoredAlignment{
		AlignmentRecord: align.AlignmentRecord{
			Ref:        ref,
			RefSpan:    len(ref.Seq),
			AlignedSeq: ref.Seq,
		},
		Score: score,
	}
}

func matureResult(lib *library.Library, count int, class align.Classification) *align.ReadResult {
	best := scored(lib, "hsa-miR-146a-3p", 0)
	best.Class = class
	return &align.ReadResult{
		Read:       &library.UniqueRead{Name: "1_x1", Seq: best.Ref.Seq, Count: count, Sample: "S1"},
		Alignments: []*align.ScoredAlignment{best},
		Best:       []*align.ScoredAlignment{best},
		Class:      class,
		Loci:       []string{best.LocusKey()},
	}
}

func TestAggregator_MatureAttribution(t *testing.T) {
	lib := aggregatorLibrary()
	g := NewAggregator(lib, "S1")

	g.Add(matureResult(lib, 10, align.Consistent))
	g.Add(matureResult(lib, 3, align.NotApplicable))

	matures := g.Matures()
	require.Len(t, matures, 1)
	assert.Equal(t, "hsa-miR-146a-3p", matures[0].Feature)
	assert.Equal(t, "S1", matures[0].Sample)
	assert.Equal(t, 13, matures[0].Count)

	// Mature counts roll up into the parent hairpin.
	hairpins := g.Hairpins()
	require.Len(t, hairpins, 1)
	assert.Equal(t, "hsa-mir-146a", hairpins[0].Feature)
	assert.Equal(t, 13, hairpins[0].Count)
}

func TestAggregator_HairpinAttribution(t *testing.T) {
	lib := aggregatorLibrary()
	g := NewAggregator(lib, "S1")

	best := scored(lib, "hsa-mir-146a", 0)
	g.Add(&align.ReadResult{
		Read:       &library.UniqueRead{Name: "1_x4", Seq: best.Ref.Seq, Count: 4},
		Alignments: []*align.ScoredAlignment{best},
		Best:       []*align.ScoredAlignment{best},
		Class:      align.NotApplicable,
	})

	assert.Empty(t, g.Matures())
	hairpins := g.Hairpins()
	require.Len(t, hairpins, 1)
	assert.Equal(t, 4, hairpins[0].Count)
	assert.Empty(t, g.IsomiRs(), "hairpin-only reads carry no isomiR signature")
}

func TestAggregator_CountConservation(t *testing.T) {
	lib := aggregatorLibrary()
	g := NewAggregator(lib, "S1")

	g.Add(matureResult(lib, 10, align.Consistent))
	g.Add(matureResult(lib, 4, align.Inconsistent))
	g.Add(matureResult(lib, 2, align.NotApplicable))

	// Ambiguous read tied across two loci.
	a1 := scored(lib, "hsa-miR-146a-3p", 1)
	a2 := scored(lib, "hsa-miR-other", 1)
	g.Add(&align.ReadResult{
		Read:       &library.UniqueRead{Name: "5_x7", Seq: a1.Ref.Seq, Count: 7},
		Alignments: []*align.ScoredAlignment{a1, a2},
		Best:       []*align.ScoredAlignment{a1, a2},
		Class:      align.Ambiguous,
		Loci:       []string{a1.LocusKey(), a2.LocusKey()},
	})

	// Unaligned read.
	g.Add(&align.ReadResult{
		Read:  &library.UniqueRead{Name: "6_x5", Seq: "TTTTTTTTTTTTTTTT", Count: 5},
		Class: align.NotApplicable,
	})

	total := g.BucketTotal(align.Consistent) +
		g.BucketTotal(align.Inconsistent) +
		g.BucketTotal(align.Ambiguous) +
		g.BucketTotal(align.NotApplicable) +
		g.UnalignedTotal()
	assert.Equal(t, 10+4+2+7+5, total, "every count lands in exactly one bucket")
	assert.Equal(t, 5, g.ReadCount())
	assert.Equal(t, 5, g.UnalignedTotal())
}

func TestAggregator_AmbiguousKeptApart(t *testing.T) {
	lib := aggregatorLibrary()
	g := NewAggregator(lib, "S1")

	a1 := scored(lib, "hsa-miR-146a-3p", 2)
	a2 := scored(lib, "hsa-miR-other", 2)
	g.Add(&align.ReadResult{
		Read:       &library.UniqueRead{Name: "1_x9", Seq: a1.Ref.Seq, Count: 9},
		Alignments: []*align.ScoredAlignment{a1, a2},
		Best:       []*align.ScoredAlignment{a1, a2},
		Class:      align.Ambiguous,
		Loci:       []string{a1.LocusKey(), a2.LocusKey()},
	})

	// Ambiguous counts never leak into the per-locus tables.
	assert.Empty(t, g.Matures())
	assert.Empty(t, g.Hairpins())
	assert.Empty(t, g.IsomiRs())

	ambiguous := g.Ambiguous()
	require.Len(t, ambiguous, 1)
	assert.Equal(t, 9, ambiguous[0].Count)
	assert.Equal(t, []string{"hsa-miR-146a-3p", "hsa-miR-other"}, ambiguous[0].Loci)
	assert.Equal(t, 2, ambiguous[0].Score)
}

func TestAggregator_PolymirBreakdown(t *testing.T) {
	lib := aggregatorLibrary()
	g := NewAggregator(lib, "S1")

	result := matureResult(lib, 6, align.Consistent)
	result.Best[0].Observations = []align.SiteObservation{
		{SiteID: "rs1", AlleleIndex: 1, Allele: "C", Class: align.Consistent},
	}
	g.Add(result)

	result = matureResult(lib, 2, align.Inconsistent)
	result.Best[0].Observations = []align.SiteObservation{
		{SiteID: "rs1", AlleleIndex: 0, Allele: "G", Class: align.Inconsistent},
	}
	g.Add(result)

	entries := g.PolymiRs()
	require.Len(t, entries, 2)

	ref := entries[0]
	assert.Equal(t, 0, ref.AlleleIndex)
	assert.Equal(t, "G", ref.Allele)
	assert.Equal(t, 2, ref.Inconsistent)
	assert.Equal(t, 2, ref.Total())

	alt := entries[1]
	assert.Equal(t, 1, alt.AlleleIndex)
	assert.Equal(t, 6, alt.Consistent)
	assert.Equal(t, 6, alt.Total())
}

func TestSignature_Canonical(t *testing.T) {
	lib := aggregatorLibrary()
	s := scored(lib, "hsa-miR-146a-3p", 0)
	assert.Equal(t, "ref", Signature(s))
}

func TestSignature_EndShifts(t *testing.T) {
	lib := aggregatorLibrary()
	ref, _ := lib.Sequence("hsa-miR-146a-3p")

	// Aligned span starts 2 bases in and stops 1 base short: a 5'
	// trimming of 2 and a 3' trimming of 1.
	s := &align.ScoredAlignment{AlignmentRecord: align.AlignmentRecord{
		Ref:        ref,
		Offset:     2,
		RefSpan:    len(ref.Seq) - 3,
		AlignedSeq: ref.Seq[2 : len(ref.Seq)-1],
	}}
	assert.Equal(t, "5p:+2|3p:-1", Signature(s))
}

func TestSignature_TailingViaSoftClip(t *testing.T) {
	lib := aggregatorLibrary()
	ref, _ := lib.Sequence("hsa-miR-146a-3p")

	// Two soft-clipped bases beyond the reference 3' end: a +2 tail.
	s := &align.ScoredAlignment{AlignmentRecord: align.AlignmentRecord{
		Ref:        ref,
		Offset:     0,
		RefSpan:    len(ref.Seq),
		SoftClip3:  2,
		AlignedSeq: ref.Seq + "AA",
	}}
	assert.Equal(t, "5p:0|3p:+2", Signature(s))
}

func TestSignature_Substitution(t *testing.T) {
	lib := aggregatorLibrary()
	ref, _ := lib.Sequence("hsa-miR-146a-3p")

	seq := []byte(ref.Seq)
	seq[7] = 'T'
	s := &align.ScoredAlignment{AlignmentRecord: align.AlignmentRecord{
		Ref:        ref,
		Offset:     0,
		RefSpan:    len(ref.Seq),
		AlignedSeq: string(seq),
		Mismatches: []sam.Mismatch{{ReadPos: 7, RefPos: 7, RefBase: 'A'}},
	}}
	assert.Equal(t, "5p:0|3p:0|sub:7A>T", Signature(s))
}

func TestAggregator_IsomirDistribution(t *testing.T) {
	lib := aggregatorLibrary()
	g := NewAggregator(lib, "S1")

	g.Add(matureResult(lib, 8, align.Consistent))
	g.Add(matureResult(lib, 2, align.Consistent))

	isomirs := g.IsomiRs()
	require.Len(t, isomirs, 1)
	assert.Equal(t, "hsa-miR-146a-3p", isomirs[0].Mature)
	assert.Equal(t, "ref", isomirs[0].Signature)
	assert.Equal(t, 10, isomirs[0].Count)
}
