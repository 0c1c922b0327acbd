package fasta

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	content := `>hsa-miR-146a-5p MIMAT0000449 Homo sapiens miR-146a-5p
UGAGAACUGAAUUCCAUGGGUU
>hsa-miR-146a-3p
ccucu
gaauu
cagu
`
	records, err := Read(strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "hsa-miR-146a-5p", records[0].Name)
	assert.Equal(t, "MIMAT0000449 Homo sapiens miR-146a-5p", records[0].Description)
	assert.Equal(t, "UGAGAACUGAAUUCCAUGGGUU", records[0].Seq)

	// Multi-line sequences are joined and upcased.
	assert.Equal(t, "hsa-miR-146a-3p", records[1].Name)
	assert.Equal(t, "", records[1].Description)
	assert.Equal(t, "CCUCUGAAUUCAGU", records[1].Seq)
}

func TestRead_Empty(t *testing.T) {
	records, err := Read(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.fa")
	in := []Record{
		{Name: "seq1", Description: "first", Seq: "ACGT"},
		{Name: "seq2", Seq: "TTTT"},
	}
	require.NoError(t, WriteFile(path, in))

	out, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReverseComplement(t *testing.T) {
	assert.Equal(t, "ACGT", ReverseComplement("ACGT"))
	assert.Equal(t, "TTAA", ReverseComplement("TTAA"))
	assert.Equal(t, "CATG", ReverseComplement("CATG"))
	// Uracil complements like thymine.
	assert.Equal(t, "AAGC", ReverseComplement("GCUU"))
	assert.Equal(t, "N", ReverseComplement("X"))
}
