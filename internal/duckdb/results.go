package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/mirtk/polymir/internal/abundance"
	"github.com/mirtk/polymir/internal/resolve"
)

// Expression table granularities.
const (
	GranularityHairpin = "hairpin"
	GranularityMature  = "mature"
	GranularityIsomir  = "isomir"
)

// WriteExpression batch-inserts one granularity's expression entries for
// a sample using the Appender API.
func (s *Store) WriteExpression(granularity string, entries []abundance.ExpressionEntry) error {
	if len(entries) == 0 {
		return nil
	}

	appender, cleanup, err := s.appender("expression")
	if err != nil {
		return err
	}
	defer cleanup()

	for _, e := range entries {
		if err := appender.AppendRow(e.Sample, granularity, e.Feature, int64(e.Count)); err != nil {
			return fmt.Errorf("append expression row: %w", err)
		}
	}
	return appender.Flush()
}

// WriteIsomirs batch-inserts isomiR entries, keyed feature = mature|signature.
func (s *Store) WriteIsomirs(sample string, entries []abundance.IsomirEntry) error {
	if len(entries) == 0 {
		return nil
	}

	appender, cleanup, err := s.appender("expression")
	if err != nil {
		return err
	}
	defer cleanup()

	for _, e := range entries {
		feature := e.Mature + "|" + e.Signature
		if err := appender.AppendRow(sample, GranularityIsomir, feature, int64(e.Count)); err != nil {
			return fmt.Errorf("append isomir row: %w", err)
		}
	}
	return appender.Flush()
}

// WriteConsistency batch-inserts one sample's site consistency reports.
func (s *Store) WriteConsistency(sample string, reports []resolve.SiteReport) error {
	if len(reports) == 0 {
		return nil
	}

	appender, cleanup, err := s.appender("site_consistency")
	if err != nil {
		return err
	}
	defer cleanup()

	for _, r := range reports {
		if err := appender.AppendRow(
			sample, r.Site.ID, r.Site.Chrom, r.Site.Pos, r.Site.Ref,
			strings.Join(r.Site.Alts, ","), r.Genotype,
			int64(r.ConsistentCount), int64(r.InconsistentCount),
			r.Rate, r.Suspicious,
		); err != nil {
			return fmt.Errorf("append consistency row: %w", err)
		}
	}
	return appender.Flush()
}

// ExpressionAcrossSamples queries one feature's counts in every stored
// sample.
func (s *Store) ExpressionAcrossSamples(granularity, feature string) (map[string]int64, error) {
	rows, err := s.db.Query(
		`SELECT sample, count FROM expression WHERE granularity = ? AND feature = ?`,
		granularity, feature)
	if err != nil {
		return nil, fmt.Errorf("query expression: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var sample string
		var count int64
		if err := rows.Scan(&sample, &count); err != nil {
			return nil, fmt.Errorf("scan expression row: %w", err)
		}
		counts[sample] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expression rows: %w", err)
	}
	return counts, nil
}

// SuspiciousSites queries all flagged sites across stored samples.
func (s *Store) SuspiciousSites() ([]SuspiciousSite, error) {
	rows, err := s.db.Query(
		`SELECT sample, site, chrom, pos, genotype, rate
		 FROM site_consistency WHERE suspicious ORDER BY chrom, pos, sample`)
	if err != nil {
		return nil, fmt.Errorf("query suspicious sites: %w", err)
	}
	defer rows.Close()

	var sites []SuspiciousSite
	for rows.Next() {
		var site SuspiciousSite
		if err := rows.Scan(&site.Sample, &site.Site, &site.Chrom, &site.Pos,
			&site.Genotype, &site.Rate); err != nil {
			return nil, fmt.Errorf("scan suspicious site: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suspicious sites: %w", err)
	}
	return sites, nil
}

// SuspiciousSite is one flagged site in one sample.
type SuspiciousSite struct {
	Sample   string
	Site     string
	Chrom    string
	Pos      int64
	Genotype string
	Rate     float64
}

// appender opens a DuckDB appender on a table through the raw driver
// connection.
func (s *Store) appender(table string) (*goduckdb.Appender, func(), error) {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return nil, nil, fmt.Errorf("get connection: %w", err)
	}

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("create appender: %w", err)
	}

	cleanup := func() {
		appender.Close()
		conn.Close()
	}
	return appender, cleanup, nil
}
