package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mirtk/polymir/internal/abundance"
	"github.com/mirtk/polymir/internal/align"
	"github.com/mirtk/polymir/internal/config"
	"github.com/mirtk/polymir/internal/duckdb"
	"github.com/mirtk/polymir/internal/fasta"
	"github.com/mirtk/polymir/internal/fastq"
	"github.com/mirtk/polymir/internal/gff"
	"github.com/mirtk/polymir/internal/index"
	"github.com/mirtk/polymir/internal/library"
	"github.com/mirtk/polymir/internal/output"
	"github.com/mirtk/polymir/internal/resolve"
	"github.com/mirtk/polymir/internal/sam"
	"github.com/mirtk/polymir/internal/vcf"
)

// Pipeline runs the full chain for one sample.
type Pipeline struct {
	cfg    config.Config
	logger *zap.Logger
	runner *ToolRunner
	store  *duckdb.Store // optional cross-sample results store
}

// New creates a pipeline for one immutable run configuration.
func New(cfg config.Config, logger *zap.Logger) *Pipeline {
	runner := NewToolRunner()
	runner.SetLogger(logger)
	return &Pipeline{cfg: cfg, logger: logger, runner: runner}
}

// SetStore attaches a DuckDB results store; per-sample results are then
// persisted in addition to the tabular reports.
func (p *Pipeline) SetStore(store *duckdb.Store) {
	p.store = store
}

// SampleName derives the sample name from the reads file: the basename
// up to the first dot, matching sample naming in genotype files.
func SampleName(fastqPath string) string {
	base := filepath.Base(fastqPath)
	if idx := strings.IndexByte(base, '.'); idx != -1 {
		return base[:idx]
	}
	return base
}

// Run executes the stage chain: library preparation, trimming,
// collapsing, alignment, post-processing and report writing.
func (p *Pipeline) Run(ctx context.Context) error {
	cfg := p.cfg

	// Inputs are verified eagerly, before any stage runs.
	if err := CheckInputs(cfg.FastqPath, cfg.VCFPath, cfg.MaturesPath, cfg.HairpinsPath, cfg.GFF3Path); err != nil {
		return err
	}
	if err := CheckBinaries(cfg.Cutadapt, cfg.Bowtie2, cfg.Bowtie2Build); err != nil {
		return err
	}

	sample := SampleName(cfg.FastqPath)
	tmpDir := filepath.Join(cfg.OutDir, "tmp")
	resultsDir := filepath.Join(cfg.OutDir, "results")
	for _, dir := range []string{tmpDir, resultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	lib, cache, err := p.PrepareLibrary(ctx)
	if err != nil {
		return err
	}

	genoAvailable := lib.GenoAvailable
	if genoAvailable && !lib.HasSample(sample) {
		// Non-fatal: the sample degrades to not-applicable classification.
		p.logger.Warn("sample not genotyped in provided VCF, consistency disabled",
			zap.String("sample", sample))
		genoAvailable = false
	}

	trimmedPath := filepath.Join(tmpDir, sample+".trimmed.fq")
	collapsedPath := filepath.Join(tmpDir, sample+".collapsed.fa")
	samPath := filepath.Join(tmpDir, sample+".sam")

	var reads []*library.UniqueRead

	trimmer := NewTrimmer(cfg, p.runner)
	aligner := NewAligner(cfg, p.runner)

	stages := []*Stage{
		{
			Name:    "trim",
			Inputs:  []string{cfg.FastqPath},
			Outputs: []string{trimmedPath},
			Force:   cfg.TrimAgain,
			Run: func(ctx context.Context) error {
				return trimmer.Trim(ctx, cfg.FastqPath, trimmedPath)
			},
		},
		{
			Name: "collapse",
			Run: func(ctx context.Context) error {
				r, err := fastq.Open(trimmedPath)
				if err != nil {
					return err
				}
				defer r.Close()
				reads, err = fastq.Collapse(r, sample)
				if err != nil {
					return err
				}
				p.logger.Info("collapsed reads", zap.Int("unique", len(reads)))
				return fastq.WriteCollapsed(collapsedPath, reads)
			},
		},
		{
			Name: "align",
			Run: func(ctx context.Context) error {
				return aligner.Align(ctx, collapsedPath, cache.IndexPath(lib.Hash), samPath)
			},
		},
	}
	if err := RunStages(ctx, p.logger, stages); err != nil {
		return err
	}

	resolver := resolve.NewResolver(lib, sample, cfg.InconsistentRate)
	aggregator := abundance.NewAggregator(lib, sample)
	if err := p.postProcess(lib, sample, genoAvailable, reads, samPath, resolver, aggregator); err != nil {
		return err
	}

	reports := resolver.Reports()
	for _, r := range reports {
		if r.Suspicious {
			p.logger.Warn("variant site flagged highly suspicious",
				zap.String("site", r.Site.ID),
				zap.String("genotype", r.Genotype),
				zap.Float64("inconsistent_rate", r.Rate))
		}
	}

	if err := p.writeReports(resultsDir, sample, lib, aggregator, reports); err != nil {
		return err
	}
	if p.store != nil {
		if err := p.persist(sample, aggregator, reports); err != nil {
			return err
		}
	}

	if cfg.RemoveTemp {
		if err := os.RemoveAll(tmpDir); err != nil {
			p.logger.Warn("could not remove temporary directory", zap.Error(err))
		}
	}
	return nil
}

// PrepareLibrary loads the allele-expanded library for the current
// inputs, building and publishing it (including the aligner index) on
// cache miss. Unchanged inputs hash to an already-published directory
// and skip the rebuild entirely.
func (p *Pipeline) PrepareLibrary(ctx context.Context) (*library.Library, *library.Cache, error) {
	cfg := p.cfg
	hash, err := library.ContentHash(cfg.VCFPath, cfg.MaturesPath, cfg.HairpinsPath, cfg.GFF3Path)
	if err != nil {
		return nil, nil, err
	}

	cache := library.NewCache(filepath.Join(cfg.OutDir, "library"))
	if lib, ok, err := cache.Lookup(hash); err != nil {
		return nil, nil, err
	} else if ok {
		p.logger.Info("reusing cached reference library", zap.String("hash", hash[:16]))
		return lib, cache, nil
	}

	in, err := p.loadInputs()
	if err != nil {
		return nil, nil, err
	}

	incorporator := library.NewIncorporator()
	incorporator.SetLogger(p.logger)
	lib, err := incorporator.Build(in)
	if err != nil {
		return nil, nil, err
	}
	lib.Hash = hash
	p.logger.Info("built reference library",
		zap.Int("sequences", len(lib.Sequences)),
		zap.Int("variant_sites", len(lib.Sites)),
		zap.Bool("genotypes", lib.GenoAvailable))

	builder := index.NewBuilder(cfg.Bowtie2Build, p.runner)
	builder.SetLogger(p.logger)
	if _, err := cache.Publish(lib, func(dir string) error {
		return builder.Build(ctx, filepath.Join(dir, "library.fa"), filepath.Join(dir, library.IndexPrefix))
	}); err != nil {
		return nil, nil, err
	}
	return lib, cache, nil
}

// loadInputs parses the four library input files.
func (p *Pipeline) loadInputs() (library.Inputs, error) {
	cfg := p.cfg
	var in library.Inputs
	var err error

	if in.Matures, err = fasta.ReadFile(cfg.MaturesPath); err != nil {
		return in, err
	}
	if in.Hairpins, err = fasta.ReadFile(cfg.HairpinsPath); err != nil {
		return in, err
	}
	if in.Features, err = gff.ReadFile(cfg.GFF3Path); err != nil {
		return in, err
	}

	if cfg.HasGenotypes() {
		parser, err := vcf.NewParser(cfg.VCFPath)
		if err != nil {
			return in, err
		}
		defer parser.Close()
		if in.Variants, err = parser.ReadAll(); err != nil {
			return in, err
		}
		in.Samples = parser.SampleNames()
	}
	return in, nil
}

// postProcess streams the aligner output, scores and classifies each
// unique read on a worker pool, and feeds the resolver and aggregator.
// Reads with no alignment record at all are accounted as unaligned so
// collapsed counts stay conserved.
func (p *Pipeline) postProcess(lib *library.Library, sample string, genoAvailable bool,
	reads []*library.UniqueRead, samPath string,
	resolver *resolve.Resolver, aggregator *abundance.Aggregator) error {

	byName := make(map[string]*library.UniqueRead, len(reads))
	for _, read := range reads {
		byName[read.Name] = read
	}

	annotator := align.NewAnnotator(lib, sample, genoAvailable, align.Options{
		Weight5:        p.cfg.Weight5,
		Window5:        p.cfg.Window5,
		ScoreThreshold: p.cfg.ScoreThreshold,
	})
	annotator.SetLogger(p.logger)

	reader, err := sam.Open(samPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	items := make(chan align.WorkItem, 64)
	var produceErr error

	go func() {
		defer close(items)
		seq := 0
		var group []*sam.Record
		flush := func() {
			if len(group) == 0 {
				return
			}
			name := group[0].QName
			read, ok := byName[name]
			if !ok {
				p.logger.Warn("alignment for unknown collapsed read, skipping",
					zap.String("read", name))
				group = nil
				return
			}
			items <- align.WorkItem{Seq: seq, Read: read, Records: group}
			seq++
			group = nil
		}
		for {
			rec, err := reader.Next()
			if err != nil {
				produceErr = err
				return
			}
			if rec == nil {
				break
			}
			if len(group) > 0 && group[0].QName != rec.QName {
				flush()
			}
			group = append(group, rec)
		}
		flush()
	}()

	results := annotator.ParallelAnnotate(items, p.cfg.Threads)

	seen := make(map[string]bool, len(reads))
	if err := align.OrderedCollect(results, func(r align.WorkResult) error {
		if r.Err != nil {
			return r.Err
		}
		seen[r.Result.Read.Name] = true
		resolver.Add(r.Result)
		aggregator.Add(r.Result)
		return nil
	}); err != nil {
		return err
	}
	if produceErr != nil {
		return produceErr
	}

	for _, read := range reads {
		if !seen[read.Name] {
			aggregator.Add(&align.ReadResult{Read: read, Class: align.NotApplicable})
		}
	}
	return nil
}

// writeReports renders the selected tables plus the run summary and the
// optional secondary exports.
func (p *Pipeline) writeReports(resultsDir, sample string, lib *library.Library,
	aggregator *abundance.Aggregator, reports []resolve.SiteReport) error {

	write := func(name string, fn func(tw *output.TableWriter) error) error {
		f, err := os.Create(filepath.Join(resultsDir, name))
		if err != nil {
			return fmt.Errorf("create report %s: %w", name, err)
		}
		defer f.Close()
		return fn(output.NewTableWriter(f))
	}

	if err := write(sample+"_abundances.tsv", func(tw *output.TableWriter) error {
		return tw.WriteExpression("mature", aggregator.Matures())
	}); err != nil {
		return err
	}
	if p.cfg.WantsTable('h') {
		if err := write(sample+"_expressed_hairpins.tsv", func(tw *output.TableWriter) error {
			return tw.WriteExpression("hairpin", aggregator.Hairpins())
		}); err != nil {
			return err
		}
	}
	if p.cfg.WantsTable('p') {
		if err := write(sample+"_polymiRs.tsv", func(tw *output.TableWriter) error {
			return tw.WritePolymiRs(sample, aggregator.PolymiRs())
		}); err != nil {
			return err
		}
	}
	if p.cfg.WantsTable('i') {
		if err := write(sample+"_consistency.tsv", func(tw *output.TableWriter) error {
			return tw.WriteConsistency(sample, reports)
		}); err != nil {
			return err
		}
	}
	if p.cfg.WantsTable('c') {
		if err := write(sample+"_ambiguous.tsv", func(tw *output.TableWriter) error {
			return tw.WriteAmbiguous(sample, aggregator.Ambiguous())
		}); err != nil {
			return err
		}
	}
	if p.cfg.WantsTable('s') {
		if err := write(sample+"_isomiRs.tsv", func(tw *output.TableWriter) error {
			return tw.WriteIsomiRs(sample, aggregator.IsomiRs())
		}); err != nil {
			return err
		}
	}

	if err := write(sample+"_summary.tsv", func(tw *output.TableWriter) error {
		return tw.WriteSummary(output.Summary{
			Sample:       sample,
			UniqueReads:  aggregator.ReadCount(),
			Consistent:   aggregator.BucketTotal(align.Consistent),
			Inconsistent: aggregator.BucketTotal(align.Inconsistent),
			Ambiguous:    aggregator.BucketTotal(align.Ambiguous),
			NotApplic:    aggregator.BucketTotal(align.NotApplicable),
			Unaligned:    aggregator.UnalignedTotal(),
		})
	}); err != nil {
		return err
	}

	if p.cfg.WriteGFF {
		f, err := os.Create(filepath.Join(resultsDir, sample+"_expression.gff3"))
		if err != nil {
			return fmt.Errorf("create GFF3 export: %w", err)
		}
		defer f.Close()
		source := strings.TrimSuffix(filepath.Base(p.cfg.MaturesPath), filepath.Ext(p.cfg.MaturesPath))
		gw := output.NewGFF3Writer(f, lib, source)
		if err := gw.Write(sample, aggregator.Matures(), aggregator.Hairpins()); err != nil {
			return err
		}
	}
	if p.cfg.WriteVCF && !lib.VCFAvailable {
		p.logger.Warn("no genotype VCF provided, skipping VCF export")
	} else if p.cfg.WriteVCF {
		f, err := os.Create(filepath.Join(resultsDir, sample+"_consistency.vcf"))
		if err != nil {
			return fmt.Errorf("create VCF export: %w", err)
		}
		defer f.Close()
		if err := output.NewVCFWriter(f).Write(sample, reports); err != nil {
			return err
		}
	}
	return nil
}

// persist stores the sample's results in the DuckDB store.
func (p *Pipeline) persist(sample string, aggregator *abundance.Aggregator, reports []resolve.SiteReport) error {
	if err := p.store.ClearSample(sample); err != nil {
		return err
	}
	if err := p.store.WriteExpression(duckdb.GranularityMature, aggregator.Matures()); err != nil {
		return err
	}
	if err := p.store.WriteExpression(duckdb.GranularityHairpin, aggregator.Hairpins()); err != nil {
		return err
	}
	if err := p.store.WriteIsomirs(sample, aggregator.IsomiRs()); err != nil {
		return err
	}
	return p.store.WriteConsistency(sample, reports)
}
