// Package report renders crack analyses into PDF documents with remediation
// guidance for each crack type.
package report

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
	"sort"
	"strings"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	pageMargin    = 15.0
	lineHeight    = 6.0
	maxImageEdge  = 1024
	fullImageMM   = 110.0
	detailImageMM = 70.0
	stampLayout   = "2006-01-02 15:04:05"
	fileLayout    = "20060102_150405"
)

type rgb struct{ r, g, b int }

var (
	titleColor    = rgb{0, 0, 139}
	subtitleColor = rgb{139, 0, 0}
	infoFill      = rgb{173, 216, 230}
	riskFill      = rgb{255, 255, 224}
	headerFill    = rgb{128, 128, 128}
	rowFill       = rgb{245, 245, 220}
	detailFill    = rgb{211, 211, 211}
)

var (
	batchRecommendations = []string{
		"Prioritize repairs based on crack severity levels indicated in the detailed analysis.",
		"Conduct regular monitoring of all detected crack locations.",
		"Consult with a qualified structural engineer for critical repairs.",
		"Implement preventive measures to avoid future crack development.",
	}
	videoRecommendations = []string{
		"Focus inspection efforts on the timestamps where cracks were detected.",
		"Conduct detailed physical inspection at the identified locations.",
		"Monitor crack progression by comparing with future video analyses.",
		"Prioritize repair actions based on crack type severity levels indicated above.",
	}
	disclaimer = "This report is generated by an AI-powered crack detection system. " +
		"For critical structural decisions, always consult with a qualified structural engineer. " +
		"Regular monitoring and professional assessment are recommended."
)

// SingleInput describes one analysed image.
type SingleInput struct {
	CrackType  string  `json:"crack_type"`
	Confidence float64 `json:"confidence"`
	Image      string  `json:"image_base64"`
}

// BatchItem is one image of an archive upload.
type BatchItem struct {
	Filename       string `json:"filename"`
	Cracked        bool   `json:"cracked"`
	Orientation    string `json:"orientation"`
	AnnotatedImage string `json:"annotated_image"`
}

// VideoItem is one reported frame of a video scan.
type VideoItem struct {
	Frame          int     `json:"frame"`
	Timestamp      float64 `json:"timestamp"`
	Classification string  `json:"classification"`
	AnnotatedImage string  `json:"annotated_image"`
}

type Generator struct {
	now    func() time.Time
	logger *zap.SugaredLogger
}

func NewGenerator(logger *zap.SugaredLogger) *Generator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Generator{now: time.Now, logger: logger}
}

func SingleFilename(crackType string, at time.Time) string {
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(crackType)), " ", "_")
	return fmt.Sprintf("crack_analysis_report_%s_%s.pdf", slug, at.Format(fileLayout))
}

func BatchFilename(at time.Time) string {
	return fmt.Sprintf("crack_batch_analysis_report_%s.pdf", at.Format(fileLayout))
}

func VideoFilename(at time.Time) string {
	return fmt.Sprintf("crack_video_analysis_report_%s.pdf", at.Format(fileLayout))
}

// Single writes the report for one analysed image.
func (g *Generator) Single(w io.Writer, in SingleInput) error {
	doc := g.newDocument("Crack Detection Analysis Report")
	doc.infoTable([][2]string{
		{"Report Generated:", g.now().Format(stampLayout)},
		{"Crack Type Detected:", in.CrackType},
		{"Detection Confidence:", fmt.Sprintf("%.1f%%", in.Confidence*100)},
		{"Analysis Status:", "Complete"},
	}, infoFill)

	if in.Image != "" {
		doc.subtitle("Detected Crack Image:")
		doc.image(in.Image, fullImageMM)
	}

	guide := GuidanceFor(in.CrackType)
	doc.subtitle("Risk Assessment:")
	doc.infoTable([][2]string{
		{"Severity Level:", guide.Severity},
		{"Action Timeline:", guide.Urgency},
	}, riskFill)

	doc.subtitle("Possible Causes:")
	doc.numbered(guide.Causes)
	doc.subtitle("Recommended Solutions:")
	doc.numbered(guide.Solutions)
	doc.subtitle("Prevention Measures:")
	doc.numbered(guide.Prevention)

	doc.subtitle("Important Note:")
	doc.paragraph(disclaimer)
	return doc.write(w)
}

// Batch writes the report for an archive of images.
func (g *Generator) Batch(w io.Writer, items []BatchItem) error {
	cracked := lo.Filter(items, func(it BatchItem, _ int) bool { return it.Cracked })

	doc := g.newDocument("Batch Crack Detection Analysis Report")
	doc.infoTable([][2]string{
		{"Report Generated:", g.now().Format(stampLayout)},
		{"Total Images Processed:", fmt.Sprint(len(items))},
		{"Images with Cracks:", fmt.Sprint(len(cracked))},
		{"Images without Cracks:", fmt.Sprint(len(items) - len(cracked))},
		{"Analysis Type:", "Batch Processing"},
	}, infoFill)

	labels := lo.FilterMap(cracked, func(it BatchItem, _ int) (string, bool) {
		return it.Orientation, it.Orientation != ""
	})
	if len(labels) > 0 {
		doc.subtitle("Crack Type Summary:")
		doc.grid([]string{"Crack Type", "Count"}, []float64{90, 40}, distribution(labels))
	}

	doc.subtitle("Detailed Analysis Results:")
	for i, it := range items {
		if !it.Cracked {
			doc.heading(fmt.Sprintf("Image %d: No Crack Detected", i+1))
			doc.paragraph("No specific recommendations required for this image.")
			continue
		}
		doc.heading(fmt.Sprintf("Image %d: %s", i+1, headline(it.Orientation)))
		if it.Filename != "" {
			doc.paragraph("File: " + it.Filename)
		}
		if it.AnnotatedImage != "" {
			doc.image(it.AnnotatedImage, detailImageMM)
		}
		guide := GuidanceFor(it.Orientation)
		doc.detailRows([][4]string{{"Severity:", guide.Severity, "Urgency:", guide.Urgency}})
		doc.guidance(guide)
	}

	doc.subtitle("General Recommendations:")
	doc.numbered(batchRecommendations)
	return doc.write(w)
}

// Video writes the report for the reported frames of a video scan.
func (g *Generator) Video(w io.Writer, items []VideoItem) error {
	doc := g.newDocument("Video Crack Detection Analysis Report")
	doc.infoTable([][2]string{
		{"Report Generated:", g.now().Format(stampLayout)},
		{"Total Crack Detections:", fmt.Sprint(len(items))},
		{"Analysis Type:", "Video Processing"},
		{"Detection Method:", "Frame-by-frame Analysis"},
	}, infoFill)

	if len(items) > 0 {
		doc.subtitle("Timeline Analysis:")
		rows := lo.Map(items, func(it VideoItem, _ int) []string {
			return []string{fmt.Sprint(it.Frame), formatSeconds(it.Timestamp), it.Classification}
		})
		doc.grid([]string{"Frame #", "Timestamp (s)", "Crack Type"}, []float64{40, 40, 80}, rows)

		doc.subtitle("Crack Type Distribution:")
		labels := lo.Map(items, func(it VideoItem, _ int) string { return it.Classification })
		doc.grid([]string{"Crack Type", "Occurrences"}, []float64{90, 40}, distribution(labels))
	}

	doc.subtitle("Detailed Frame Analysis:")
	for _, it := range items {
		ts := formatSeconds(it.Timestamp)
		doc.heading(fmt.Sprintf("Frame %d (Timestamp: %ss) - %s", it.Frame, ts, headline(it.Classification)))
		if it.AnnotatedImage != "" {
			doc.image(it.AnnotatedImage, detailImageMM)
		}
		guide := GuidanceFor(it.Classification)
		doc.detailRows([][4]string{
			{"Frame:", fmt.Sprint(it.Frame), "Timestamp:", ts + "s"},
			{"Severity:", guide.Severity, "Urgency:", guide.Urgency},
		})
		doc.guidance(guide)
	}

	doc.subtitle("General Video Analysis Recommendations:")
	doc.numbered(videoRecommendations)
	return doc.write(w)
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.2f", s)
}

// distribution counts labels and returns rows sorted by label.
func distribution(labels []string) [][]string {
	counts := lo.CountValues(labels)
	keys := lo.Keys(counts)
	sort.Strings(keys)
	return lo.Map(keys, func(k string, _ int) []string {
		return []string{k, fmt.Sprint(counts[k])}
	})
}

type document struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	images int
	logger *zap.SugaredLogger
}

func (g *Generator) newDocument(title string) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AddPage()

	d := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), logger: g.logger}
	d.color(titleColor)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, d.tr(title), "", 1, "C", false, 0, "")
	pdf.Ln(6)
	d.color(rgb{})
	return d
}

func (d *document) color(c rgb) { d.pdf.SetTextColor(c.r, c.g, c.b) }

func (d *document) subtitle(s string) {
	d.pdf.Ln(4)
	d.color(subtitleColor)
	d.pdf.SetFont("Helvetica", "B", 14)
	d.pdf.CellFormat(0, 9, d.tr(s), "", 1, "L", false, 0, "")
	d.color(rgb{})
}

func (d *document) heading(s string) {
	d.pdf.Ln(3)
	d.pdf.SetFont("Helvetica", "B", 12)
	d.pdf.MultiCell(0, 7, d.tr(s), "", "L", false)
}

func (d *document) paragraph(s string) {
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.MultiCell(0, lineHeight, d.tr(s), "", "L", false)
}

func (d *document) numbered(items []string) {
	for i, it := range items {
		d.paragraph(fmt.Sprintf("%d. %s", i+1, it))
	}
}

func (d *document) bullets(title string, items []string) {
	d.pdf.SetFont("Helvetica", "B", 10)
	d.pdf.CellFormat(0, lineHeight, d.tr(title), "", 1, "L", false, 0, "")
	for _, it := range items {
		d.paragraph("• " + it)
	}
}

func (d *document) guidance(g Guidance) {
	d.bullets("Possible Causes:", g.Causes)
	d.bullets("Recommended Solutions:", g.Solutions)
	d.bullets("Prevention Measures:", g.Prevention)
}

func (d *document) infoTable(rows [][2]string, fill rgb) {
	d.pdf.SetFillColor(fill.r, fill.g, fill.b)
	d.pdf.SetFont("Helvetica", "B", 11)
	for _, row := range rows {
		d.pdf.CellFormat(65, 9, d.tr(row[0]), "1", 0, "L", true, 0, "")
		d.pdf.CellFormat(90, 9, d.tr(row[1]), "1", 1, "L", true, 0, "")
	}
}

func (d *document) detailRows(rows [][4]string) {
	d.pdf.SetFillColor(detailFill.r, detailFill.g, detailFill.b)
	widths := []float64{25, 45, 25, 60}
	for _, row := range rows {
		for i, cell := range row {
			style := ""
			if i%2 == 0 {
				style = "B"
			}
			d.pdf.SetFont("Helvetica", style, 9)
			ln := 0
			if i == len(row)-1 {
				ln = 1
			}
			d.pdf.CellFormat(widths[i], 7, d.tr(cell), "", ln, "L", true, 0, "")
		}
	}
	d.pdf.Ln(2)
}

func (d *document) grid(header []string, widths []float64, rows [][]string) {
	d.pdf.SetFillColor(headerFill.r, headerFill.g, headerFill.b)
	d.pdf.SetTextColor(245, 245, 245)
	d.pdf.SetFont("Helvetica", "B", 11)
	for i, h := range header {
		ln := 0
		if i == len(header)-1 {
			ln = 1
		}
		d.pdf.CellFormat(widths[i], 9, d.tr(h), "1", ln, "C", true, 0, "")
	}

	d.color(rgb{})
	d.pdf.SetFillColor(rowFill.r, rowFill.g, rowFill.b)
	d.pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		for i, cell := range row {
			ln := 0
			if i == len(row)-1 {
				ln = 1
			}
			d.pdf.CellFormat(widths[i], 8, d.tr(cell), "1", ln, "C", true, 0, "")
		}
	}
}

// image embeds a downscaled copy of src. A broken image is noted in the
// document instead of failing the whole report.
func (d *document) image(src string, widthMM float64) {
	data, err := thumbnail(src)
	if err != nil {
		d.logger.Warnw("skipping report image", "error", err)
		d.paragraph("Error loading image: " + err.Error())
		return
	}

	d.images++
	name := fmt.Sprintf("img%d", d.images)
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	d.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	left, _, _, _ := d.pdf.GetMargins()
	d.pdf.ImageOptions(name, left, d.pdf.GetY(), widthMM, 0, true, opts, 0, "")
	d.pdf.Ln(2)
}

func thumbnail(src string) ([]byte, error) {
	img, err := DecodeImage(src)
	if err != nil {
		return nil, err
	}
	small := imaging.Fit(img, maxImageEdge, maxImageEdge, imaging.Lanczos)
	var buf bytes.Buffer
	if err := png.Encode(&buf, small); err != nil {
		return nil, errors.Wrap(err, "encoding thumbnail")
	}
	return buf.Bytes(), nil
}

func (d *document) write(w io.Writer) error {
	if err := d.pdf.Output(w); err != nil {
		return errors.Wrap(err, "rendering pdf")
	}
	return nil
}
