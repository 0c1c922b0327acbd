package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mirtk/polymir/internal/config"
	"github.com/mirtk/polymir/internal/library"
	"github.com/mirtk/polymir/internal/pipeline"
)

func newLibraryCmd(quiet *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Manage the allele-expanded alignment library",
	}
	cmd.AddCommand(newLibraryBuildCmd(quiet, false))
	cmd.AddCommand(newLibraryBuildCmd(quiet, true))
	return cmd
}

// newLibraryBuildCmd creates the "library build" command, or its
// read-mostly twin "library inspect" which additionally lists every
// polymiR and its allele variants.
func newLibraryBuildCmd(quiet *bool, inspect bool) *cobra.Command {
	use, short := "build", "Build (or reuse) the library for a set of inputs"
	if inspect {
		use, short = "inspect", "Build the library if needed and list its polymiRs"
	}

	var vcfPath, maturesPath, hairpinsPath, gff3Path, outDir, bowtie2Build string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(*quiet)
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			defer logger.Sync()

			cfg := config.Default()
			cfg.VCFPath = vcfPath
			cfg.MaturesPath = maturesPath
			cfg.HairpinsPath = hairpinsPath
			cfg.GFF3Path = gff3Path
			cfg.OutDir = outDir
			cfg.Bowtie2Build = bowtie2Build

			if err := pipeline.CheckInputs(cfg.VCFPath, cfg.MaturesPath, cfg.HairpinsPath, cfg.GFF3Path); err != nil {
				return err
			}
			if err := pipeline.CheckBinaries(cfg.Bowtie2Build); err != nil {
				return err
			}

			p := pipeline.New(cfg, logger)
			lib, cache, err := p.PrepareLibrary(cmd.Context())
			if err != nil {
				return err
			}

			canonical, variants := 0, 0
			for _, seq := range lib.Sequences {
				if seq.IsCanonical() {
					canonical++
				} else {
					variants++
				}
			}
			logger.Info("library ready",
				zap.String("dir", cache.Dir(lib.Hash)),
				zap.Int("canonical", canonical),
				zap.Int("allele_variants", variants),
				zap.Int("variant_sites", len(lib.Sites)),
				zap.Int("genotyped_samples", len(lib.Samples)))

			if inspect {
				printPolymirs(lib)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&vcfPath, "vcf", "", "genotype VCF covering miRNA regions (optional)")
	cmd.Flags().StringVar(&maturesPath, "matures", defaultResourcePath("hsa_matures.fa"), "mature miRNA FASTA")
	cmd.Flags().StringVar(&hairpinsPath, "hairpins", defaultResourcePath("hsa_hairpins.fa"), "hairpin FASTA")
	cmd.Flags().StringVar(&gff3Path, "gff3", defaultResourcePath("hsa_coords.gff3"), "miRNA genomic coordinates GFF3")
	cmd.Flags().StringVarP(&outDir, "outdir", "o", "polymir_results", "output directory holding the library cache")
	cmd.Flags().StringVar(&bowtie2Build, "bowtie2-build", "bowtie2-build", "path to bowtie2-build")

	return cmd
}

// printPolymirs lists each feature that has allele variants in the
// library, with the variant site alleles baked into each entry.
func printPolymirs(lib *library.Library) {
	byName := make(map[string][]string)
	var order []string
	for _, seq := range lib.Sequences {
		if seq.IsCanonical() {
			continue
		}
		if _, ok := byName[seq.Name]; !ok {
			order = append(order, seq.Name)
		}
		byName[seq.Name] = append(byName[seq.Name], seq.AlleleSuffix())
	}
	for _, name := range order {
		fmt.Printf("%s\n", name)
		for _, suffix := range byName[name] {
			fmt.Printf("  %s_%s\n", name, suffix)
		}
	}
}
