package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/mirtk/polymir/internal/resolve"
)

// vcf INFO lines describing the consistency annotations.
var vcfInfoLines = []string{
	`##INFO=<ID=CONSISTENT,Number=1,Type=Integer,Description="Collapsed read count consistent with the sample genotype">`,
	`##INFO=<ID=INCONSISTENT,Number=1,Type=Integer,Description="Collapsed read count inconsistent with the sample genotype">`,
	`##INFO=<ID=RATE,Number=1,Type=Float,Description="Inconsistent rate among classified reads">`,
	`##INFO=<ID=SUSPICIOUS,Number=0,Type=Flag,Description="Inconsistent rate exceeds the flagging threshold">`,
	`##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">`,
}

// VCFWriter exports per-site genotype consistency as an annotated VCF.
type VCFWriter struct {
	w *bufio.Writer
}

// NewVCFWriter creates a VCF consistency exporter.
func NewVCFWriter(w io.Writer) *VCFWriter {
	return &VCFWriter{w: bufio.NewWriter(w)}
}

// Write renders the export for one sample's site reports.
func (vw *VCFWriter) Write(sample string, reports []resolve.SiteReport) error {
	if _, err := vw.w.WriteString("##fileformat=VCFv4.2\n##source=polymir\n"); err != nil {
		return err
	}
	for _, line := range vcfInfoLines {
		if _, err := vw.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(vw.w, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\t%s\n", sample); err != nil {
		return err
	}

	for _, r := range reports {
		info := fmt.Sprintf("CONSISTENT=%d;INCONSISTENT=%d;RATE=%s",
			r.ConsistentCount, r.InconsistentCount, formatRate(r.Rate))
		if r.Suspicious {
			info += ";SUSPICIOUS"
		}
		if _, err := fmt.Fprintf(vw.w, "%s\t%d\t%s\t%s\t%s\t.\tPASS\t%s\tGT\t%s\n",
			r.Site.Chrom, r.Site.Pos, r.Site.ID, r.Site.Ref,
			strings.Join(r.Site.Alts, ","), info, r.Genotype); err != nil {
			return err
		}
	}
	return vw.w.Flush()
}
