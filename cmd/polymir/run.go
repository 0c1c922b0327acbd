package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mirtk/polymir/internal/config"
	"github.com/mirtk/polymir/internal/duckdb"
	"github.com/mirtk/polymir/internal/pipeline"
)

func newRunCmd(quiet *bool) *cobra.Command {
	var resultsDB string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process one sample: trim, collapse, align, quantify",
		Long: `Run the full chain on one miRSeq reads file. With a genotype VCF the
alignment reference is expanded with the sample's alleles and each
cross-mapping read is checked against the sample's genotype.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(*quiet)
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			defer logger.Sync()

			cfg := configFromViper()
			if cfg.FastqPath == "" {
				return fmt.Errorf("--fastq is required")
			}

			p := pipeline.New(cfg, logger)
			if resultsDB != "" {
				store, err := duckdb.Open(resultsDB)
				if err != nil {
					return err
				}
				defer store.Close()
				p.SetStore(store)
			}

			sample := pipeline.SampleName(cfg.FastqPath)
			logger.Info("processing sample",
				zap.String("sample", sample),
				zap.String("fastq", cfg.FastqPath),
				zap.Bool("genotypes", cfg.HasGenotypes()))

			if err := p.Run(cmd.Context()); err != nil {
				return err
			}
			logger.Info("sample done", zap.String("sample", sample))
			return nil
		},
	}

	flags := cmd.Flags()
	def := config.Default()

	flags.String("fastq", "", "reads file to process (.fastq, .fq, optionally gzipped)")
	flags.String("vcf", "", "genotype VCF covering miRNA regions (optional)")
	flags.String("matures", defaultResourcePath("hsa_matures.fa"), "mature miRNA FASTA")
	flags.String("hairpins", defaultResourcePath("hsa_hairpins.fa"), "hairpin FASTA")
	flags.String("gff3", defaultResourcePath("hsa_coords.gff3"), "miRNA genomic coordinates GFF3")
	flags.StringP("outdir", "o", "polymir_results", "output directory")
	flags.String("tables", def.Tables, "report selection, any of 'hpics'")
	flags.Bool("gff-out", false, "also export expressed features as GFF3")
	flags.Bool("vcf-out", false, "also export site consistency as VCF")
	flags.Bool("rm-tmp", false, "delete intermediate files after the run")

	flags.String("adapter3", def.Adapter3, "3' adapter sequence(s), comma separated")
	flags.String("adapter5", def.Adapter5, "5' adapter sequence")
	flags.Int("read-min", def.ReadMin, "minimum read length after trimming")
	flags.Int("read-max", def.ReadMax, "maximum read length after trimming")
	flags.Int("quality", def.QualityThreshold, "base quality cutoff for trimming")
	flags.Bool("trim-again", false, "re-trim even if a trimmed file exists")

	flags.Int("seed-len", def.SeedLength, "aligner seed substring length")
	flags.Int("weight5", def.Weight5, "penalty weight for mismatches near the 5' end")
	flags.Int("window5", def.Window5, "number of 5' bases with weighted mismatches")
	flags.Int("score-threshold", def.ScoreThreshold, "discard alignments scoring above this")
	flags.Float64("inconsistent-rate", def.InconsistentRate, "flag sites with inconsistent rate above this")
	flags.IntP("threads", "t", runtime.NumCPU(), "worker threads")

	flags.String("cutadapt", def.Cutadapt, "path to cutadapt")
	flags.String("bowtie2", def.Bowtie2, "path to bowtie2")
	flags.String("bowtie2-build", def.Bowtie2Build, "path to bowtie2-build")

	flags.StringVar(&resultsDB, "results-db", "", "DuckDB file accumulating results across samples")

	viper.BindPFlags(flags)

	return cmd
}

// configFromViper assembles the run configuration from bound flags, the
// config file and POLYMIR_* environment overrides.
func configFromViper() config.Config {
	cfg := config.Default()

	cfg.FastqPath = viper.GetString("fastq")
	cfg.VCFPath = viper.GetString("vcf")
	cfg.MaturesPath = viper.GetString("matures")
	cfg.HairpinsPath = viper.GetString("hairpins")
	cfg.GFF3Path = viper.GetString("gff3")

	cfg.OutDir = viper.GetString("outdir")
	cfg.Tables = viper.GetString("tables")
	cfg.WriteGFF = viper.GetBool("gff-out")
	cfg.WriteVCF = viper.GetBool("vcf-out")
	cfg.RemoveTemp = viper.GetBool("rm-tmp")

	cfg.Adapter3 = viper.GetString("adapter3")
	cfg.Adapter5 = viper.GetString("adapter5")
	cfg.ReadMin = viper.GetInt("read-min")
	cfg.ReadMax = viper.GetInt("read-max")
	cfg.QualityThreshold = viper.GetInt("quality")
	cfg.TrimAgain = viper.GetBool("trim-again")

	cfg.SeedLength = viper.GetInt("seed-len")
	cfg.Weight5 = viper.GetInt("weight5")
	cfg.Window5 = viper.GetInt("window5")
	cfg.ScoreThreshold = viper.GetInt("score-threshold")
	cfg.InconsistentRate = viper.GetFloat64("inconsistent-rate")
	cfg.Threads = viper.GetInt("threads")

	cfg.Cutadapt = viper.GetString("cutadapt")
	cfg.Bowtie2 = viper.GetString("bowtie2")
	cfg.Bowtie2Build = viper.GetString("bowtie2-build")

	return cfg
}
