package library

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirtk/polymir/internal/fasta"
	"github.com/mirtk/polymir/internal/gff"
	"github.com/mirtk/polymir/internal/vcf"
)

// Plus-strand fixture: a 70 bp hairpin at chr1:101-170 with a 22 bp
// mature at chr1:111-132. The variant position 115 is offset 4 in the
// mature and offset 14 in the hairpin.
var (
	testHairpinSeq = strings.Repeat("ACGTG", 14)
	testMatureSeq  = testHairpinSeq[10:32]
)

func plusStrandInputs(variants []*vcf.Variant, samples []string) Inputs {
	return Inputs{
		Matures:  []fasta.Record{{Name: "hsa-miR-test-5p", Seq: testMatureSeq}},
		Hairpins: []fasta.Record{{Name: "hsa-mir-test", Seq: testHairpinSeq}},
		Features: []gff.Feature{
			{Type: gff.TypeHairpin, Chrom: "chr1", Start: 101, End: 170, Strand: 1,
				ID: "MI0001", Name: "hsa-mir-test"},
			{Type: gff.TypeMature, Chrom: "chr1", Start: 111, End: 132, Strand: 1,
				ID: "MIMAT0001", Name: "hsa-miR-test-5p", DerivesFrom: "MI0001"},
		},
		Variants: variants,
		Samples:  samples,
	}
}

func TestBuild_NoVariants(t *testing.T) {
	lib, err := NewIncorporator().Build(plusStrandInputs(nil, nil))
	require.NoError(t, err)

	assert.False(t, lib.VCFAvailable)
	assert.False(t, lib.GenoAvailable)
	assert.Empty(t, lib.Sites)
	require.Len(t, lib.Sequences, 2)

	for _, seq := range lib.Sequences {
		assert.True(t, seq.IsCanonical())
		assert.Empty(t, seq.Alleles)
		assert.Equal(t, seq.Name, seq.ID)
	}

	mature, ok := lib.Sequence("hsa-miR-test-5p")
	require.True(t, ok)
	assert.Equal(t, KindMature, mature.Kind)
	assert.Equal(t, "hsa-mir-test", mature.Hairpin)
	assert.Equal(t, testMatureSeq, mature.Seq)
}

func TestBuild_BiallelicSite(t *testing.T) {
	variant := &vcf.Variant{
		Chrom: "chr1", Pos: 115, ID: "rs1", Ref: "G", Alts: []string{"A"},
		Genotypes: map[string]vcf.Genotype{"S1": vcf.ParseGenotype("0/1")},
	}
	lib, err := NewIncorporator().Build(plusStrandInputs([]*vcf.Variant{variant}, []string{"S1"}))
	require.NoError(t, err)

	assert.True(t, lib.VCFAvailable)
	assert.True(t, lib.GenoAvailable)
	assert.True(t, lib.HasSample("S1"))
	require.Len(t, lib.Sites, 1)

	// Two alleles at one site: exactly two entries per overlapped feature.
	require.Len(t, lib.Sequences, 4)

	canonical, ok := lib.Sequence("hsa-miR-test-5p")
	require.True(t, ok)
	assert.True(t, canonical.IsCanonical())
	assert.Equal(t, testMatureSeq, canonical.Seq)
	require.Len(t, canonical.Alleles, 1)
	assert.Equal(t, 0, canonical.Alleles[0].Index)
	assert.Equal(t, "G", canonical.Alleles[0].Allele)
	assert.Equal(t, 4, canonical.Alleles[0].Offset)

	alt, ok := lib.Sequence("hsa-miR-test-5p_rs1:A")
	require.True(t, ok)
	assert.False(t, alt.IsCanonical())
	assert.Equal(t, "hsa-miR-test-5p", alt.Name)
	assert.Equal(t, testMatureSeq[:4]+"A"+testMatureSeq[5:], alt.Seq)

	altHairpin, ok := lib.Sequence("hsa-mir-test_rs1:A")
	require.True(t, ok)
	assert.Equal(t, testHairpinSeq[:14]+"A"+testHairpinSeq[15:], altHairpin.Seq)
	assert.Equal(t, 14, altHairpin.Alleles[0].Offset)

	// Every entry carrying an allele of the site is recorded on it.
	site, ok := lib.Site("rs1")
	require.True(t, ok)
	assert.Len(t, site.SequenceIDs, 4)
	g, called := site.GenotypeFor("S1")
	require.True(t, called)
	assert.True(t, g.IsHet())
}

func TestBuild_HairpinLoopVariant(t *testing.T) {
	// Position 150 lies in the hairpin loop, past the mature's end at
	// 132: the site must still bind to the hairpin and expand it.
	variant := &vcf.Variant{
		Chrom: "chr1", Pos: 150, ID: "rs_loop", Ref: "G", Alts: []string{"C"},
	}
	lib, err := NewIncorporator().Build(plusStrandInputs([]*vcf.Variant{variant}, nil))
	require.NoError(t, err)

	require.Len(t, lib.Sites, 1)
	site, ok := lib.Site("rs_loop")
	require.True(t, ok)
	assert.Len(t, site.SequenceIDs, 2)

	// Canonical mature and hairpin plus one alternate hairpin.
	require.Len(t, lib.Sequences, 3)
	mature, ok := lib.Sequence("hsa-miR-test-5p")
	require.True(t, ok)
	assert.Empty(t, mature.Alleles)

	alt, ok := lib.Sequence("hsa-mir-test_rs_loop:C")
	require.True(t, ok)
	assert.Equal(t, testHairpinSeq[:49]+"C"+testHairpinSeq[50:], alt.Seq)
	assert.Equal(t, 49, alt.Alleles[0].Offset)
}

func TestBuild_MultiAllelicSite(t *testing.T) {
	in := Inputs{
		Matures: []fasta.Record{{Name: "hsa-miR-test-5p", Seq: testMatureSeq}},
		Features: []gff.Feature{
			{Type: gff.TypeMature, Chrom: "chr1", Start: 111, End: 132, Strand: 1,
				ID: "MIMAT0001", Name: "hsa-miR-test-5p"},
		},
		Variants: []*vcf.Variant{
			{Chrom: "chr1", Pos: 115, ID: "rs1", Ref: "G", Alts: []string{"A", "T"}},
		},
	}
	lib, err := NewIncorporator().Build(in)
	require.NoError(t, err)

	// Three alleles at one site: exactly three entries.
	require.Len(t, lib.Sequences, 3)
	ids := make([]string, len(lib.Sequences))
	for i, seq := range lib.Sequences {
		ids[i] = seq.ID
	}
	assert.ElementsMatch(t, []string{
		"hsa-miR-test-5p",
		"hsa-miR-test-5p_rs1:A",
		"hsa-miR-test-5p_rs1:T",
	}, ids)
}

func TestBuild_TwoSitesCartesian(t *testing.T) {
	in := Inputs{
		Matures: []fasta.Record{{Name: "hsa-miR-test-5p", Seq: testMatureSeq}},
		Features: []gff.Feature{
			{Type: gff.TypeMature, Chrom: "chr1", Start: 111, End: 132, Strand: 1,
				ID: "MIMAT0001", Name: "hsa-miR-test-5p"},
		},
		Variants: []*vcf.Variant{
			{Chrom: "chr1", Pos: 113, ID: "rs_a", Ref: "G", Alts: []string{"C"}},
			{Chrom: "chr1", Pos: 119, ID: "rs_b", Ref: "T", Alts: []string{"A"}},
		},
	}
	lib, err := NewIncorporator().Build(in)
	require.NoError(t, err)

	// 2 alleles x 2 alleles: four combinations, one canonical.
	require.Len(t, lib.Sequences, 4)
	canonical := 0
	for _, seq := range lib.Sequences {
		if seq.IsCanonical() {
			canonical++
			assert.Equal(t, "hsa-miR-test-5p", seq.ID)
		} else {
			assert.Len(t, seq.Alleles, 2)
		}
	}
	assert.Equal(t, 1, canonical)

	both, ok := lib.Sequence("hsa-miR-test-5p_rs_a:C&rs_b:A")
	require.True(t, ok)
	want := testMatureSeq[:2] + "C" + testMatureSeq[3:8] + "A" + testMatureSeq[9:]
	assert.Equal(t, want, both.Seq)
}

func TestBuild_MinusStrand(t *testing.T) {
	genomic := "ACGTACGTACGTACGTACGTAC"
	transcript := fasta.ReverseComplement(genomic)

	in := Inputs{
		Matures: []fasta.Record{{Name: "hsa-miR-minus", Seq: transcript}},
		Features: []gff.Feature{
			{Type: gff.TypeMature, Chrom: "chr2", Start: 201, End: 222, Strand: -1,
				ID: "MIMAT0002", Name: "hsa-miR-minus"},
		},
		Variants: []*vcf.Variant{
			// Plus-strand C>A at position 210; transcript offset 12,
			// substituted as the complement.
			{Chrom: "chr2", Pos: 210, ID: "rs_m", Ref: "C", Alts: []string{"A"}},
		},
	}
	lib, err := NewIncorporator().Build(in)
	require.NoError(t, err)
	require.Len(t, lib.Sequences, 2)

	alt, ok := lib.Sequence("hsa-miR-minus_rs_m:A")
	require.True(t, ok)
	assert.Equal(t, transcript[:12]+"T"+transcript[13:], alt.Seq)
	assert.Equal(t, 12, alt.Alleles[0].Offset)
	assert.Equal(t, "A", alt.Alleles[0].Allele, "tags keep the VCF allele spelling")
}

func TestBuild_DuplicateMatureNames(t *testing.T) {
	// miRBase emits the same mature name at two loci (hsa-miR-16-5p from
	// hsa-mir-16-1 and hsa-mir-16-2); entry IDs must still be unique.
	seq := "TAGCAGCACGTAAATATTGGCG"
	in := Inputs{
		Matures: []fasta.Record{{Name: "hsa-miR-16-5p", Seq: seq}},
		Features: []gff.Feature{
			{Type: gff.TypeMature, Chrom: "chr13", Start: 50623109, End: 50623130, Strand: -1,
				ID: "MIMAT0000069", Name: "hsa-miR-16-5p"},
			{Type: gff.TypeMature, Chrom: "chr3", Start: 160122376, End: 160122397, Strand: 1,
				ID: "MIMAT0000069_1", Name: "hsa-miR-16-5p"},
		},
	}
	lib, err := NewIncorporator().Build(in)
	require.NoError(t, err)

	require.Len(t, lib.Sequences, 2)
	ids := []string{lib.Sequences[0].ID, lib.Sequences[1].ID}
	assert.ElementsMatch(t, []string{
		"hsa-miR-16-5p_MIMAT0000069",
		"hsa-miR-16-5p_MIMAT0000069_1",
	}, ids)

	for _, id := range ids {
		entry, ok := lib.Sequence(id)
		require.True(t, ok, "entry %q resolvable by ID", id)
		assert.Equal(t, "hsa-miR-16-5p", entry.Name)
		assert.True(t, entry.IsCanonical())
	}

	rep, ok := lib.SequenceByName("hsa-miR-16-5p")
	require.True(t, ok, "name lookup yields a representative locus")
	assert.Equal(t, "hsa-miR-16-5p", rep.Name)
}

func TestBuild_RefMismatchSkipsSite(t *testing.T) {
	variant := &vcf.Variant{
		Chrom: "chr1", Pos: 115, ID: "rs_bad", Ref: "T", Alts: []string{"A"},
	}
	lib, err := NewIncorporator().Build(plusStrandInputs([]*vcf.Variant{variant}, nil))
	require.NoError(t, err)

	assert.Empty(t, lib.Sites)
	require.Len(t, lib.Sequences, 2)
	for _, seq := range lib.Sequences {
		assert.Empty(t, seq.Alleles)
	}
}

func TestBuild_VariantOutsideFeatures(t *testing.T) {
	variant := &vcf.Variant{Chrom: "chr9", Pos: 500, ID: "rs_far", Ref: "A", Alts: []string{"G"}}
	lib, err := NewIncorporator().Build(plusStrandInputs([]*vcf.Variant{variant}, nil))
	require.NoError(t, err)
	assert.Empty(t, lib.Sites)
	assert.Len(t, lib.Sequences, 2)
}

func TestBuild_RNAInput(t *testing.T) {
	rna := strings.ReplaceAll(testMatureSeq, "T", "U")
	in := Inputs{
		Matures: []fasta.Record{{Name: "hsa-miR-test-5p", Seq: rna}},
		Features: []gff.Feature{
			{Type: gff.TypeMature, Chrom: "chr1", Start: 111, End: 132, Strand: 1,
				ID: "MIMAT0001", Name: "hsa-miR-test-5p"},
		},
	}
	lib, err := NewIncorporator().Build(in)
	require.NoError(t, err)
	require.Len(t, lib.Sequences, 1)
	assert.Equal(t, testMatureSeq, lib.Sequences[0].Seq, "U is converted to T")
}

func TestBuild_NoUsableFeature(t *testing.T) {
	in := Inputs{
		Matures: []fasta.Record{{Name: "other", Seq: "ACGT"}},
		Features: []gff.Feature{
			{Type: gff.TypeMature, Chrom: "chr1", Start: 1, End: 4, Strand: 1, Name: "unmatched"},
		},
	}
	_, err := NewIncorporator().Build(in)
	assert.Error(t, err)
}
