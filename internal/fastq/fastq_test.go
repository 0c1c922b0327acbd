package fastq

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFastq(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleFastq = `@read1 extra comment
TGAGAACTGAATTCCATGGGTT
+
IIIIIIIIIIIIIIIIIIIIII
@read2
acgt
+read2
IIII
`

func TestReader(t *testing.T) {
	r, err := Open(writeTempFastq(t, "sample.fastq", sampleFastq))
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.Next()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "read1", rec.Name, "name stops at first whitespace")
	assert.Equal(t, "TGAGAACTGAATTCCATGGGTT", rec.Seq)
	assert.Equal(t, "IIIIIIIIIIIIIIIIIIIIII", rec.Qual)

	rec, err = r.Next()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "read2", rec.Name)
	assert.Equal(t, "ACGT", rec.Seq, "sequence is upcased")

	rec, err = r.Next()
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestReader_Gzipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.fastq.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(sampleFastq))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	n := 0
	for {
		rec, err := r.Next()
		require.NoError(t, err)
		if rec == nil {
			break
		}
		n++
	}
	assert.Equal(t, 2, n)
}

func TestReader_Truncated(t *testing.T) {
	r, err := Open(writeTempFastq(t, "bad.fastq", "@read1\nACGT\n"))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}

func TestReader_BadHeader(t *testing.T) {
	r, err := Open(writeTempFastq(t, "bad.fastq", "read1\nACGT\n+\nIIII\n"))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected @ header")
}
