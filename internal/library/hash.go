package library

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ContentHash computes the SHA-256 content hash over the library input
// files in a fixed order: genotype VCF, mature FASTA, hairpin FASTA,
// coordinate GFF3. An empty VCF path contributes a fixed marker, so
// genotype-free libraries hash deterministically too. Unchanged inputs
// produce an unchanged hash, which is what makes cached libraries and
// alignment indexes reusable across runs.
func ContentHash(vcfPath, maturesPath, hairpinsPath, gff3Path string) (string, error) {
	h := sha256.New()

	if vcfPath == "" {
		io.WriteString(h, "no-vcf\x00")
	} else {
		if err := hashFile(h, vcfPath); err != nil {
			return "", err
		}
	}
	for _, path := range []string{maturesPath, hairpinsPath, gff3Path} {
		if err := hashFile(h, path); err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(h io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("hash library input: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash library input %s: %w", path, err)
	}
	io.WriteString(h, "\x00")
	return nil
}
