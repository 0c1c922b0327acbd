// Package resolve aggregates per-variant-site genotype-consistency rates
// and flags suspicious sites. Resolution only annotates; it never
// discards or reweights reads.
package resolve

import (
	"sort"

	"github.com/mirtk/polymir/internal/align"
	"github.com/mirtk/polymir/internal/library"
)

// SiteReport is the consistency summary for one genotype-available site.
type SiteReport struct {
	Site              *library.VariantSite
	Genotype          string // the sample's call in VCF notation
	ConsistentCount   int    // collapsed-count weighted
	InconsistentCount int
	// Rate = inconsistent / (consistent + inconsistent). Zero when no
	// read was classified at the site.
	Rate float64
	// Suspicious marks sites whose rate strictly exceeds the threshold:
	// a diagnostic for genotyping error, contamination or annotation
	// error, never an automatic read exclusion.
	Suspicious bool
}

// Resolver accumulates site observations from resolved reads. Rates are
// recomputed from the accumulated counts on every Reports call rather
// than stored, so a report is always a pure function of the reads seen.
type Resolver struct {
	lib       *library.Library
	sample    string
	threshold float64

	consistent   map[string]int
	inconsistent map[string]int
}

// NewResolver creates a resolver for one sample. threshold is the
// inconsistency rate above which (strictly) a site is flagged.
func NewResolver(lib *library.Library, sample string, threshold float64) *Resolver {
	return &Resolver{
		lib:          lib,
		sample:       sample,
		threshold:    threshold,
		consistent:   make(map[string]int),
		inconsistent: make(map[string]int),
	}
}

// Add accumulates the site observations of one resolved read. Ambiguous
// reads carry no single-locus attribution and contribute nothing.
func (r *Resolver) Add(result *align.ReadResult) {
	if result.Class == align.Ambiguous {
		return
	}

	// One contribution per site per read, even if several best
	// alignments observe the same site.
	seen := make(map[string]align.Classification)
	for _, s := range result.Best {
		for _, obs := range s.Observations {
			if _, ok := seen[obs.SiteID]; !ok {
				seen[obs.SiteID] = obs.Class
			}
		}
	}

	for siteID, class := range seen {
		switch class {
		case align.Consistent:
			r.consistent[siteID] += result.Read.Count
		case align.Inconsistent:
			r.inconsistent[siteID] += result.Read.Count
		}
	}
}

// Reports computes the per-site consistency reports in deterministic
// (chrom, pos) order. Sites without genotype for the sample are omitted.
func (r *Resolver) Reports() []SiteReport {
	var reports []SiteReport
	for _, site := range r.lib.Sites {
		g, called := site.GenotypeFor(r.sample)
		if !called {
			continue
		}

		report := SiteReport{
			Site:              site,
			Genotype:          g.String(),
			ConsistentCount:   r.consistent[site.ID],
			InconsistentCount: r.inconsistent[site.ID],
		}
		total := report.ConsistentCount + report.InconsistentCount
		if total > 0 {
			report.Rate = float64(report.InconsistentCount) / float64(total)
		}
		report.Suspicious = report.Rate > r.threshold
		reports = append(reports, report)
	}

	sort.Slice(reports, func(i, j int) bool {
		a, b := reports[i].Site, reports[j].Site
		if a.Chrom != b.Chrom {
			return a.Chrom < b.Chrom
		}
		return a.Pos < b.Pos
	})
	return reports
}
