// Package vcf provides VCF file parsing, including per-sample genotypes.
package vcf

import (
	"fmt"
	"strconv"
	"strings"
)

// Variant represents a single genomic variant from a VCF file.
// Multi-allelic records are kept whole; Alts holds every alternate allele.
type Variant struct {
	Chrom     string              // Chromosome name (e.g., "12", "chr12")
	Pos       int64               // 1-based genomic position
	ID        string              // Variant identifier (e.g., rs ID)
	Ref       string              // Reference allele
	Alts      []string            // Alternate alleles
	Qual      float64             // Quality score
	Filter    string              // Filter status (PASS or filter name)
	Info      map[string]string   // INFO field key-value pairs
	Genotypes map[string]Genotype // Sample name -> genotype call
}

// Genotype is one sample's called genotype as VCF allele indices
// (0 = ref, 1 = first alt, ...). Missing calls have no alleles.
type Genotype struct {
	Alleles []int
	Phased  bool
}

// ParseGenotype parses a GT field value such as "0/1", "1|2" or "./.".
func ParseGenotype(gt string) Genotype {
	var g Genotype
	g.Phased = strings.ContainsRune(gt, '|')
	for _, tok := range strings.FieldsFunc(gt, func(r rune) bool { return r == '/' || r == '|' }) {
		if tok == "." || tok == "" {
			continue
		}
		idx, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		g.Alleles = append(g.Alleles, idx)
	}
	return g
}

// IsCalled reports whether at least one allele was called.
func (g Genotype) IsCalled() bool {
	return len(g.Alleles) > 0
}

// Has reports whether the genotype carries the given allele index.
func (g Genotype) Has(allele int) bool {
	for _, a := range g.Alleles {
		if a == allele {
			return true
		}
	}
	return false
}

// IsHet reports whether the call carries more than one distinct allele.
func (g Genotype) IsHet() bool {
	if !g.IsCalled() {
		return false
	}
	for _, a := range g.Alleles[1:] {
		if a != g.Alleles[0] {
			return true
		}
	}
	return false
}

// String renders the genotype in VCF notation.
func (g Genotype) String() string {
	if !g.IsCalled() {
		return "./."
	}
	sep := "/"
	if g.Phased {
		sep = "|"
	}
	parts := make([]string, len(g.Alleles))
	for i, a := range g.Alleles {
		parts[i] = strconv.Itoa(a)
	}
	return strings.Join(parts, sep)
}

// Key returns a stable identifier for the variant. The VCF ID column is
// used when present; otherwise a chrom:pos:ref:alts key is built.
func (v *Variant) Key() string {
	if v.ID != "" && v.ID != "." {
		return v.ID
	}
	return fmt.Sprintf("%s:%d:%s:%s", v.Chrom, v.Pos, v.Ref, strings.Join(v.Alts, ","))
}

// Alleles returns the full allele list, reference first.
func (v *Variant) Alleles() []string {
	alleles := make([]string, 0, len(v.Alts)+1)
	alleles = append(alleles, v.Ref)
	alleles = append(alleles, v.Alts...)
	return alleles
}

// IsSNV returns true if every allele is a single nucleotide.
func (v *Variant) IsSNV() bool {
	if len(v.Ref) != 1 {
		return false
	}
	for _, alt := range v.Alts {
		if len(alt) != 1 {
			return false
		}
	}
	return true
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func (v *Variant) NormalizeChrom() string {
	if len(v.Chrom) > 3 && v.Chrom[:3] == "chr" {
		return v.Chrom[3:]
	}
	return v.Chrom
}
