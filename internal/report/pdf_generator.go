package report

import (
	"bytes"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/user/qy_analyzer_go/internal/analysis"
	"github.com/user/qy_analyzer_go/internal/parser"
)

const (
	inchToMm               = 25.4
	pdfPageWidthLandscape  = 11 * inchToMm // Letter landscape
	pdfPageHeightLandscape = 8.5 * inchToMm
	pdfMargin              = 0.5 * inchToMm
	pdfContentWidth        = pdfPageWidthLandscape - (2 * pdfMargin)
)

// pdfStyler holds reusable styling and state for PDF generation.
type pdfStyler struct {
	pdf         *gofpdf.Fpdf
	styles      map[string]func()
	lineHeight  float64
	currentY    float64 // manually tracked Y position for flowing content
	pageHeight  float64
	contentTopY float64
}

func newPDFStyler(pdf *gofpdf.Fpdf) *pdfStyler {
	s := &pdfStyler{
		pdf:         pdf,
		styles:      make(map[string]func()),
		lineHeight:  6, // mm
		pageHeight:  pdfPageHeightLandscape - (2 * pdfMargin),
		contentTopY: pdfMargin,
	}
	s.currentY = s.contentTopY
	s.defineStyles()
	return s
}

func (s *pdfStyler) defineStyles() {
	s.styles["h1"] = func() {
		s.pdf.SetFont("Arial", "B", 16)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["h2"] = func() {
		s.pdf.SetFont("Arial", "B", 14)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["normal"] = func() {
		s.pdf.SetFont("Arial", "", 10)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["tableHeader"] = func() {
		s.pdf.SetFont("Arial", "B", 9)
		s.pdf.SetFillColor(200, 200, 200) // Light grey
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["tableCell"] = func() {
		s.pdf.SetFont("Arial", "", 9)
		s.pdf.SetTextColor(50, 50, 50)
	}
	s.styles["tableCellEm"] = func() { // the headline quantum yield row
		s.pdf.SetFont("Arial", "B", 9)
		s.pdf.SetTextColor(0, 0, 150)
	}
}

func (s *pdfStyler) applyStyle(styleName string) {
	if fn, ok := s.styles[styleName]; ok {
		fn()
	} else {
		s.styles["normal"]()
	}
}

func (s *pdfStyler) checkAddPage(neededHeight float64) {
	if s.currentY+neededHeight > s.pageHeight {
		s.pdf.AddPage()
		s.currentY = s.contentTopY
	}
}

func (s *pdfStyler) newPage() {
	s.pdf.AddPage()
	s.currentY = s.contentTopY
}

func (s *pdfStyler) writeParagraph(text string, styleName string, align string) {
	s.applyStyle(styleName)
	estimatedLines := float64(len(text))/90 + 1
	s.checkAddPage(estimatedLines * s.lineHeight)

	s.pdf.SetXY(pdfMargin, s.currentY)
	s.pdf.MultiCell(pdfContentWidth, s.lineHeight, text, "", align, false)
	s.currentY = s.pdf.GetY()
	s.currentY += 1 // small gap after paragraph
}

func (s *pdfStyler) addSpacer(height float64) {
	s.currentY += height
	if s.currentY > s.pageHeight {
		s.newPage()
	}
}

// writeTable lays out a bordered table. Rows listed in emphasized render in
// the tableCellEm style.
func (s *pdfStyler) writeTable(headers []string, widthsRel []float64, rows [][]string, emphasized map[int]bool) {
	widths := make([]float64, len(widthsRel))
	for i, rel := range widthsRel {
		widths[i] = rel * pdfContentWidth
	}

	s.checkAddPage(s.lineHeight * float64(len(rows)+1))

	sY := s.currentY
	sX := pdfMargin
	s.applyStyle("tableHeader")
	for i, header := range headers {
		s.pdf.SetXY(sX, sY)
		s.pdf.CellFormat(widths[i], s.lineHeight, header, "1", 0, "C", true, 0, "")
		sX += widths[i]
	}
	s.currentY = sY + s.lineHeight

	for r, row := range rows {
		s.checkAddPage(s.lineHeight)
		sY = s.currentY
		sX = pdfMargin
		if emphasized[r] {
			s.applyStyle("tableCellEm")
		} else {
			s.applyStyle("tableCell")
		}
		for i, cell := range row {
			s.pdf.SetXY(sX, sY)
			s.pdf.CellFormat(widths[i], s.lineHeight, cell, "1", 0, "C", false, 0, "")
			sX += widths[i]
		}
		s.currentY = sY + s.lineHeight
	}
}

func (s *pdfStyler) addImage(imageBytes []byte, imageName string, width, height float64, caption string) {
	s.pdf.RegisterImageReader(imageName, "PNG", bytes.NewReader(imageBytes))

	if width > pdfContentWidth {
		ratio := pdfContentWidth / width
		width = pdfContentWidth
		height *= ratio
	}
	captionHeight := 0.0
	if caption != "" {
		captionHeight = s.lineHeight + 1
	}
	s.checkAddPage(height + captionHeight)

	s.pdf.Image(imageName, pdfMargin, s.currentY, width, height, false, "PNG", 0, "")
	s.currentY += height

	if caption != "" {
		s.addSpacer(1)
		s.writeParagraph(caption, "normal", "C")
	}
	s.addSpacer(2)
}

// ReportData bundles everything the quantum yield report prints.
type ReportData struct {
	Title         string
	GeneratedAt   time.Time
	CorrectionKey string

	Fluor   *parser.Spectrum
	Solvent *parser.Spectrum
	Dilute  *parser.Spectrum // nil when no reabsorption reference was used

	Result *analysis.QYResult
	Peak   *analysis.PeakFit // nil when the emission peak fit was skipped

	// PlotImages carries pre-rendered PNGs keyed by plot name, see the
	// plotDefs list in BuildPDFReport.
	PlotImages map[string][]byte
}

func describeSpectrum(role string, spec *parser.Spectrum) []string {
	return []string{
		role,
		filepath.Base(spec.SourcePath),
		spec.RunType.String(),
		fmt.Sprintf("%d", spec.Samples()),
		spec.ExRange.String(),
		spec.EmRange.String(),
		spec.AcqStart.Format("2006-01-02 15:04"),
	}
}

// BuildPDFReport writes the full analysis report to path.
func BuildPDFReport(path string, data *ReportData) error {
	if data == nil || data.Result == nil || data.Fluor == nil || data.Solvent == nil {
		return fmt.Errorf("report needs both spectra and a quantum yield result")
	}

	pdf := gofpdf.New("L", "mm", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.AddPage()

	styler := newPDFStyler(pdf)

	title := data.Title
	if title == "" {
		title = "Fluorescence Quantum Yield Report"
	}
	generated := data.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	styler.writeParagraph(title, "h1", "C")
	styler.addSpacer(3)
	styler.writeParagraph(fmt.Sprintf("Generated %s    Correction: %s",
		generated.Format("2006-01-02 15:04"), data.CorrectionKey), "normal", "C")
	styler.addSpacer(5)

	styler.writeParagraph("Measurements", "h2", "L")
	measurementRows := [][]string{
		describeSpectrum("Sample", data.Fluor),
		describeSpectrum("Solvent", data.Solvent),
	}
	if data.Dilute != nil {
		measurementRows = append(measurementRows, describeSpectrum("Dilute reference", data.Dilute))
	}
	styler.writeTable(
		[]string{"Role", "File", "Run", "Samples", "Excitation", "Emission", "Acquired"},
		[]float64{0.14, 0.3, 0.1, 0.08, 0.13, 0.13, 0.12},
		measurementRows, nil)
	styler.addSpacer(5)

	res := data.Result
	styler.writeParagraph("Quantum Yield", "h2", "L")
	qyRows := [][]string{
		{"Emitted counts", fmt.Sprintf("%.6g", res.NEmitted), fmt.Sprintf("%.3g", res.UNEmitted)},
		{"Total counts (solvent)", fmt.Sprintf("%.6g", res.NTotEmpty), fmt.Sprintf("%.3g", res.UNTotEmpty)},
		{"Total counts (sample)", fmt.Sprintf("%.6g", res.NTotSample), fmt.Sprintf("%.3g", res.UNTotSample)},
		{"Quantum yield (raw)", fmt.Sprintf("%.4f", res.QYRaw), fmt.Sprintf("%.4f", res.UQYRaw)},
		{"Reabsorption weight", fmt.Sprintf("%.4f", res.Reabsorption), fmt.Sprintf("%.4f", res.UReabsorption)},
		{"Quantum yield", fmt.Sprintf("%.4f", res.QY), fmt.Sprintf("%.4f", res.UQY)},
	}
	styler.writeTable(
		[]string{"Quantity", "Value", "Uncertainty"},
		[]float64{0.4, 0.3, 0.3},
		qyRows, map[int]bool{len(qyRows) - 1: true})
	styler.addSpacer(5)

	if data.Peak != nil {
		styler.writeParagraph(fmt.Sprintf(
			"Emission peak: %.1f nm center, %.1f nm FWHM (Gaussian fit, amplitude %.4g over offset %.4g).",
			data.Peak.Center, data.Peak.FWHM, data.Peak.Amplitude, data.Peak.Offset), "normal", "L")
		styler.addSpacer(3)
	}

	styler.newPage()
	styler.writeParagraph("Graphical Analysis", "h1", "C")
	styler.addSpacer(5)

	plotDefs := []struct {
		Key     string
		Title   string
		Caption string
	}{
		{"qy_regions", "Integration Regions", "Corrected spectra with fitted baselines and integration windows"},
		{"spectrum_fluor", "Sample Spectrum", "Raw and corrected sample intensity"},
		{"spectrum_solvent", "Solvent Spectrum", "Raw and corrected solvent intensity"},
		{"spectrum_dilute", "Dilute Reference Spectrum", "Raw and corrected dilute reference intensity"},
	}

	imgWidth := pdfContentWidth * 0.9
	imgHeight := imgWidth * (4.0 / 8.0)

	for _, pDef := range plotDefs {
		imgBytes, ok := data.PlotImages[pDef.Key]
		if !ok || len(imgBytes) == 0 {
			continue
		}
		styler.writeParagraph(pDef.Title, "h2", "L")
		styler.addImage(imgBytes, pDef.Key, imgWidth, imgHeight, pDef.Caption)
		styler.addSpacer(2)
	}

	return pdf.OutputFileAndClose(path)
}
