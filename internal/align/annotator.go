package align

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mirtk/polymir/internal/library"
	"github.com/mirtk/polymir/internal/sam"
)

// AlignmentRecord ties one aligner record to its library entry and read.
type AlignmentRecord struct {
	Read      *library.UniqueRead
	Ref       *library.ReferenceSequence
	Offset    int // 0-based offset of the aligned span on the reference
	RefSpan   int
	SoftClip5 int // bases clipped at the reference-orientation left end
	SoftClip3 int
	Reverse   bool
	// AlignedSeq is the read sequence as stored in the alignment record,
	// reference orientation.
	AlignedSeq string
	Mismatches []sam.Mismatch
	rec        *sam.Record
}

// ScoredAlignment is an AlignmentRecord with its score and per-alignment
// genotype-consistency classification.
type ScoredAlignment struct {
	AlignmentRecord
	Score int
	Class Classification
	// Sites the alignment spans with a determinable implied allele.
	Observations []SiteObservation
}

// SiteObservation is one read's implied allele at one variant site.
type SiteObservation struct {
	SiteID      string
	AlleleIndex int
	Allele      string
	Class       Classification
}

// LocusKey identifies the locus an alignment attributes to, with allele
// tags collapsed: alignments to different allele versions of one polymiR
// share a key and never count as ambiguous against each other.
func (a *AlignmentRecord) LocusKey() string {
	return a.Ref.Hairpin + "\x00" + a.Ref.Name
}

// ReadResult is the resolved outcome for one unique read.
type ReadResult struct {
	Read *library.UniqueRead
	// Surviving alignments, scores at or below the discard threshold.
	Alignments []*ScoredAlignment
	// Best is the subset tied at minimal score.
	Best []*ScoredAlignment
	// Class is the read-level classification bucket. The read's whole
	// collapsed count lands in exactly this bucket.
	Class Classification
	// Loci are the distinct locus keys among Best (len > 1 iff Ambiguous).
	Loci []string
}

// Aligned reports whether any alignment survived scoring.
func (r *ReadResult) Aligned() bool {
	return len(r.Alignments) > 0
}

// Options configures alignment scoring.
type Options struct {
	Weight5        int // additive weight for 5'-window mismatches
	Window5        int // 5'-proximal window length in bases
	ScoreThreshold int // alignments scoring strictly above are discarded
}

// Annotator scores and classifies the alignments of one sample.
// Per-read annotation is side-effect-free, so reads can be processed
// concurrently by the worker pool in parallel.go.
type Annotator struct {
	lib           *library.Library
	sample        string
	genoAvailable bool
	opts          Options
	logger        *zap.Logger
}

// NewAnnotator creates an annotator for one sample. genoAvailable must be
// false when the sample is absent from the genotype file; every
// consistency classification then degrades to not-applicable.
func NewAnnotator(lib *library.Library, sample string, genoAvailable bool, opts Options) *Annotator {
	return &Annotator{
		lib:           lib,
		sample:        sample,
		genoAvailable: genoAvailable && lib.GenoAvailable,
		opts:          opts,
		logger:        zap.NewNop(),
	}
}

// SetLogger sets the logger for warning messages.
func (a *Annotator) SetLogger(l *zap.Logger) {
	a.logger = l
}

// AnnotateRead scores every alignment of one unique read, discards those
// above the score threshold, and resolves the read-level classification.
func (a *Annotator) AnnotateRead(read *library.UniqueRead, records []*sam.Record) (*ReadResult, error) {
	result := &ReadResult{Read: read, Class: NotApplicable}

	for _, rec := range records {
		if rec.IsUnmapped() {
			continue
		}
		ar, err := a.toRecord(read, rec)
		if err != nil {
			return nil, err
		}
		scored := &ScoredAlignment{AlignmentRecord: *ar, Class: NotApplicable}
		scored.Score = a.score(ar)
		if scored.Score > a.opts.ScoreThreshold {
			// Discarding is per-alignment: the read keeps its other
			// surviving alignments.
			continue
		}
		a.classify(scored)
		result.Alignments = append(result.Alignments, scored)
	}

	if len(result.Alignments) == 0 {
		return result, nil
	}

	min := result.Alignments[0].Score
	for _, s := range result.Alignments[1:] {
		if s.Score < min {
			min = s.Score
		}
	}
	for _, s := range result.Alignments {
		if s.Score == min {
			result.Best = append(result.Best, s)
		}
	}

	seen := make(map[string]bool)
	for _, s := range result.Best {
		key := s.LocusKey()
		if !seen[key] {
			seen[key] = true
			result.Loci = append(result.Loci, key)
		}
	}

	result.Class = a.resolve(result)
	return result, nil
}

// toRecord converts a SAM record into an AlignmentRecord against the
// expanded library.
func (a *Annotator) toRecord(read *library.UniqueRead, rec *sam.Record) (*AlignmentRecord, error) {
	ref, ok := a.lib.Sequence(rec.RName)
	if !ok {
		return nil, fmt.Errorf("alignment references unknown library entry %q", rec.RName)
	}
	mismatches, err := rec.MismatchPositions()
	if err != nil {
		return nil, fmt.Errorf("read %s vs %s: %w", read.Name, rec.RName, err)
	}
	return &AlignmentRecord{
		Read:       read,
		Ref:        ref,
		Offset:     int(rec.Pos - 1),
		RefSpan:    rec.Cigar.RefSpan(),
		SoftClip5:  rec.Cigar.SoftClip5(),
		SoftClip3:  rec.Cigar.SoftClip3(),
		Reverse:    rec.IsReversed(),
		AlignedSeq: rec.Seq,
		Mismatches: mismatches,
		rec:        rec,
	}, nil
}

// score computes the alignment score: one per mismatch, with mismatches
// inside the 5'-proximal window weighted by Weight5. The window is
// measured from the read's biological 5' end, which for reverse-strand
// alignments is the right end of the stored sequence.
func (a *Annotator) score(ar *AlignmentRecord) int {
	readLen := len(ar.AlignedSeq)
	score := 0
	for _, mm := range ar.Mismatches {
		dist := mm.ReadPos
		if ar.Reverse {
			dist = readLen - 1 - mm.ReadPos
		}
		if dist < a.opts.Window5 {
			score += a.opts.Weight5
		} else {
			score++
		}
	}
	return score
}

// classify determines the per-alignment genotype consistency: for every
// variant site whose substituted segment the alignment fully and cleanly
// covers, the reference entry's allele is the allele implied by the read.
func (a *Annotator) classify(s *ScoredAlignment) {
	if len(s.Ref.Alleles) == 0 {
		return
	}

	for _, tag := range s.Ref.Alleles {
		if !a.covers(s, tag) {
			continue
		}
		obs := SiteObservation{
			SiteID:      tag.SiteID,
			AlleleIndex: tag.Index,
			Allele:      tag.Allele,
			Class:       NotApplicable,
		}
		if a.genoAvailable {
			if site, ok := a.lib.Site(tag.SiteID); ok {
				if g, called := site.GenotypeFor(a.sample); called {
					if g.Has(tag.Index) {
						obs.Class = Consistent
					} else {
						obs.Class = Inconsistent
					}
				}
			}
		}
		s.Observations = append(s.Observations, obs)
	}

	for _, obs := range s.Observations {
		switch obs.Class {
		case Inconsistent:
			s.Class = Inconsistent
			return
		case Consistent:
			s.Class = Consistent
		}
	}
}

// covers reports whether the aligned read spans the allele segment with
// aligned bases and no mismatch inside it, i.e. the read actually carries
// the entry's allele rather than merely overlapping the site.
func (a *Annotator) covers(s *ScoredAlignment, tag library.AlleleTag) bool {
	segStart := tag.Offset
	segEnd := tag.Offset + tag.Length // exclusive
	if segStart < s.Offset || segEnd > s.Offset+s.RefSpan {
		return false
	}
	for refOff := segStart; refOff < segEnd; refOff++ {
		if s.rec.ReadPosAt(refOff-s.Offset) < 0 {
			return false
		}
	}
	for _, mm := range s.Mismatches {
		if p := mm.RefPos + s.Offset; p >= segStart && p < segEnd {
			return false
		}
	}
	return true
}

// resolve derives the read-level classification from the minimal-score
// alignment set. Ties across more than one locus are preserved as
// ambiguous; no arbitrary pick is ever made.
func (a *Annotator) resolve(r *ReadResult) Classification {
	if len(r.Loci) > 1 {
		return Ambiguous
	}

	class := NotApplicable
	for _, s := range r.Best {
		switch s.Class {
		case Inconsistent:
			return Inconsistent
		case Consistent:
			class = Consistent
		}
	}
	return class
}
