package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirtk/polymir/internal/abundance"
	"github.com/mirtk/polymir/internal/library"
	"github.com/mirtk/polymir/internal/resolve"
	"github.com/mirtk/polymir/internal/vcf"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_ExpressionRoundTrip(t *testing.T) {
	s := openTestStore(t)

	err := s.WriteExpression(GranularityMature, []abundance.ExpressionEntry{
		{Feature: "hsa-miR-146a-3p", Sample: "S1", Count: 42},
		{Feature: "hsa-miR-146a-5p", Sample: "S1", Count: 7},
	})
	require.NoError(t, err)
	err = s.WriteExpression(GranularityMature, []abundance.ExpressionEntry{
		{Feature: "hsa-miR-146a-3p", Sample: "S2", Count: 11},
	})
	require.NoError(t, err)

	counts, err := s.ExpressionAcrossSamples(GranularityMature, "hsa-miR-146a-3p")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"S1": 42, "S2": 11}, counts)
}

func TestStore_ClearSampleReplaces(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.WriteExpression(GranularityMature, []abundance.ExpressionEntry{
		{Feature: "hsa-miR-146a-3p", Sample: "S1", Count: 42},
	}))
	require.NoError(t, s.ClearSample("S1"))
	require.NoError(t, s.WriteExpression(GranularityMature, []abundance.ExpressionEntry{
		{Feature: "hsa-miR-146a-3p", Sample: "S1", Count: 50},
	}))

	counts, err := s.ExpressionAcrossSamples(GranularityMature, "hsa-miR-146a-3p")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"S1": 50}, counts)
}

func TestStore_SuspiciousSites(t *testing.T) {
	s := openTestStore(t)

	site := &library.VariantSite{
		ID: "rs2910164", Chrom: "chr5", Pos: 159912439, Ref: "G", Alts: []string{"C"},
		Genotypes: map[string]vcf.Genotype{"S1": vcf.ParseGenotype("0/1")},
	}
	err := s.WriteConsistency("S1", []resolve.SiteReport{
		{Site: site, Genotype: "0/1", ConsistentCount: 95, InconsistentCount: 5,
			Rate: 0.05, Suspicious: true},
	})
	require.NoError(t, err)

	other := &library.VariantSite{ID: "rs11614913", Chrom: "chr9", Pos: 2015362, Ref: "C", Alts: []string{"T"}}
	err = s.WriteConsistency("S1", []resolve.SiteReport{
		{Site: other, Genotype: "0/0", ConsistentCount: 100, InconsistentCount: 0},
	})
	require.NoError(t, err)

	sites, err := s.SuspiciousSites()
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "rs2910164", sites[0].Site)
	assert.Equal(t, "S1", sites[0].Sample)
	assert.InDelta(t, 0.05, sites[0].Rate, 1e-9)
}

func TestStore_WriteIsomirs(t *testing.T) {
	s := openTestStore(t)

	err := s.WriteIsomirs("S1", []abundance.IsomirEntry{
		{Mature: "hsa-miR-146a-3p", Signature: "ref", Count: 40},
		{Mature: "hsa-miR-146a-3p", Signature: "5p:0|3p:+2", Count: 3},
	})
	require.NoError(t, err)

	counts, err := s.ExpressionAcrossSamples(GranularityIsomir, "hsa-miR-146a-3p|ref")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"S1": 40}, counts)
}
