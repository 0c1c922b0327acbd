// Package config holds the immutable run configuration shared by every
// pipeline stage. A Config is built once in the command layer and passed
// by value; stages never mutate it.
package config

import "strings"

// Defaults for alignment scoring and post-processing.
const (
	DefaultSeedLength        = 17
	DefaultWeight5           = 4
	DefaultWindow5           = 2
	DefaultScoreThreshold    = 9
	DefaultInconsistentRate  = 0.01
	DefaultReadMin           = 15
	DefaultReadMax           = 27
	DefaultQualityThreshold  = 28
	DefaultTables            = "hpics"
	DefaultAdapter3          = "AGATCGGAAGAGCACACGTCTGAACTCCAGTCAC"
	DefaultAdapter3Secondary = "TGGAATTCTCGGGTGCCAAGG"
	DefaultAdapter5          = "ATCTACACGTTCAGAGTTCTACAGTCCGACGATC"
)

// Config is the complete, immutable configuration for one pipeline run.
type Config struct {
	// Inputs.
	FastqPath    string
	VCFPath      string // empty means no genotypes available
	MaturesPath  string
	HairpinsPath string
	GFF3Path     string

	// Output.
	OutDir   string
	Tables   string // subset of "hpics"
	WriteGFF bool
	WriteVCF bool
	RemoveTemp bool // delete tmp/ after the run; kept by default so trimmed files can be reused

	// Trimming.
	Adapter3         string
	Adapter5         string
	ReadMin          int
	ReadMax          int
	QualityThreshold int
	TrimAgain        bool

	// Alignment and scoring.
	SeedLength       int
	Weight5          int
	Window5          int
	ScoreThreshold   int
	InconsistentRate float64
	Threads          int

	// External tool paths.
	Cutadapt     string
	Bowtie2      string
	Bowtie2Build string
}

// Default returns a Config populated with the bundled defaults.
// Input and output paths are left empty.
func Default() Config {
	return Config{
		Tables:           DefaultTables,
		Adapter3:         DefaultAdapter3 + "," + DefaultAdapter3Secondary,
		Adapter5:         DefaultAdapter5,
		ReadMin:          DefaultReadMin,
		ReadMax:          DefaultReadMax,
		QualityThreshold: DefaultQualityThreshold,
		SeedLength:       DefaultSeedLength,
		Weight5:          DefaultWeight5,
		Window5:          DefaultWindow5,
		ScoreThreshold:   DefaultScoreThreshold,
		InconsistentRate: DefaultInconsistentRate,
		Cutadapt:         "cutadapt",
		Bowtie2:          "bowtie2",
		Bowtie2Build:     "bowtie2-build",
	}
}

// WantsTable reports whether the report selected by letter should be
// produced: 'h' hairpins, 'p' polymiRs, 'i' consistency, 'c' ambiguous,
// 's' isomiR distribution.
func (c Config) WantsTable(letter byte) bool {
	return strings.IndexByte(c.Tables, letter) >= 0
}

// HasGenotypes reports whether a genotype file was supplied.
func (c Config) HasGenotypes() bool {
	return c.VCFPath != ""
}
