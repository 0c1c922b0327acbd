package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultSeedLength, cfg.SeedLength)
	assert.Equal(t, DefaultWeight5, cfg.Weight5)
	assert.Equal(t, DefaultScoreThreshold, cfg.ScoreThreshold)
	assert.Equal(t, DefaultInconsistentRate, cfg.InconsistentRate)
	assert.Equal(t, "hpics", cfg.Tables)
	assert.Equal(t, "cutadapt", cfg.Cutadapt)
	assert.False(t, cfg.RemoveTemp, "temp files are kept unless requested")
}

func TestDefault_TrimsBothAdapters(t *testing.T) {
	// Both library-kit 3' adapters are trimmed unless overridden.
	adapters := strings.Split(Default().Adapter3, ",")
	assert.Equal(t, []string{DefaultAdapter3, DefaultAdapter3Secondary}, adapters)
}

func TestWantsTable(t *testing.T) {
	cfg := Default()
	for _, letter := range []byte{'h', 'p', 'i', 'c', 's'} {
		assert.True(t, cfg.WantsTable(letter), "default selects %q", string(letter))
	}

	cfg.Tables = "pi"
	assert.True(t, cfg.WantsTable('p'))
	assert.True(t, cfg.WantsTable('i'))
	assert.False(t, cfg.WantsTable('h'))
	assert.False(t, cfg.WantsTable('s'))

	cfg.Tables = ""
	assert.False(t, cfg.WantsTable('p'))
}

func TestHasGenotypes(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.HasGenotypes())
	cfg.VCFPath = "cohort.vcf.gz"
	assert.True(t, cfg.HasGenotypes())
}
