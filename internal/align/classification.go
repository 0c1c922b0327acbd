// Package align scores aligner output against the expanded reference
// library and classifies each read's consistency with the sample's
// called genotype.
package align

// Classification is the genotype-consistency verdict for a read or a
// single alignment.
type Classification int8

const (
	// NotApplicable: no genotype available, or the read does not span
	// a variant site.
	NotApplicable Classification = iota
	// Consistent: the allele implied by the read is present in the
	// sample's genotype.
	Consistent
	// Inconsistent: the implied allele is absent from the genotype.
	Inconsistent
	// Ambiguous: the read ties at minimal score across more than one
	// locus and cannot be attributed.
	Ambiguous
)

func (c Classification) String() string {
	switch c {
	case Consistent:
		return "consistent"
	case Inconsistent:
		return "inconsistent"
	case Ambiguous:
		return "ambiguous"
	default:
		return "not-applicable"
	}
}
