package report

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/user/qy_analyzer_go/internal/analysis"
	"github.com/user/qy_analyzer_go/internal/parser"
)

// valueErrors pairs plotted points with their error bar extents.
type valueErrors struct {
	plotter.XYs
	plotter.YErrors
}

// maxErrorBars keeps dense spectra readable by thinning the drawn bars.
const maxErrorBars = 40

// CreateSpectrumPlot renders one measurement as raw counts with the
// corrected view overlaid, error bars included on the corrected trace.
func CreateSpectrumPlot(spec *parser.Spectrum, title string) ([]byte, error) {
	if spec == nil || spec.Samples() == 0 {
		return nil, fmt.Errorf("no spectrum data to plot")
	}

	p := plot.New()
	if title == "" {
		title = fmt.Sprintf("%s (%s scan)", filepath.Base(spec.SourcePath), spec.RunType)
	}
	p.Title.Text = title
	p.X.Label.Text = "Wavelength (nm)"
	p.Y.Label.Text = "Intensity (counts)"
	p.X.Min = spec.Wavelengths[0]
	p.X.Max = spec.Wavelengths[spec.Samples()-1]
	p.X.Tick.Marker = plot.ConstantTicks(wavelengthTicks(p.X.Min, p.X.Max))
	p.Add(plotter.NewGrid())

	raw := spec.RawIntensity()
	rawPts := make(plotter.XYs, spec.Samples())
	for i := range rawPts {
		rawPts[i] = plotter.XY{X: spec.Wavelengths[i], Y: raw[i]}
	}
	rawLine, err := plotter.NewLine(rawPts)
	if err != nil {
		return nil, fmt.Errorf("failed to create raw intensity line: %v", err)
	}
	rawLine.Color = color.RGBA{R: 130, G: 130, B: 130, A: 255} // Grey
	rawLine.LineStyle.Width = vg.Points(1)
	p.Add(rawLine)
	p.Legend.Add("Raw counts", rawLine)

	if spec.IsCorrected() {
		corrPts := make(plotter.XYs, spec.Samples())
		for i := range corrPts {
			corrPts[i] = plotter.XY{X: spec.Wavelengths[i], Y: spec.CorrectedIntensity[i]}
		}
		corrLine, err := plotter.NewLine(corrPts)
		if err != nil {
			return nil, fmt.Errorf("failed to create corrected intensity line: %v", err)
		}
		corrLine.Color = color.RGBA{B: 255, A: 255} // Blue
		corrLine.LineStyle.Width = vg.Points(1.5)
		p.Add(corrLine)
		p.Legend.Add("Corrected", corrLine)

		bars, err := plotter.NewYErrorBars(thinnedErrorBars(spec, maxErrorBars))
		if err != nil {
			return nil, fmt.Errorf("failed to create error bars: %v", err)
		}
		bars.LineStyle.Color = color.RGBA{B: 255, A: 255}
		p.Add(bars)
	}

	p.Legend.Top = true
	p.Legend.XOffs = vg.Points(10)

	return renderPNG(p)
}

// CreateQYRegionsPlot overlays the corrected sample and solvent spectra with
// the fitted baselines and the integration windows behind a quantum yield.
func CreateQYRegionsPlot(fluor, solvent *parser.Spectrum, res *analysis.QYResult) ([]byte, error) {
	if fluor == nil || solvent == nil || res == nil {
		return nil, fmt.Errorf("regions plot needs both spectra and a result")
	}
	if !fluor.IsCorrected() || !solvent.IsCorrected() {
		return nil, fmt.Errorf("regions plot needs corrected spectra")
	}

	p := plot.New()
	p.Title.Text = "Quantum Yield Integration Regions"
	p.X.Label.Text = "Wavelength (nm)"
	p.Y.Label.Text = "Corrected intensity (counts)"
	p.X.Min = math.Min(fluor.Wavelengths[0], solvent.Wavelengths[0])
	p.X.Max = math.Max(fluor.Wavelengths[fluor.Samples()-1], solvent.Wavelengths[solvent.Samples()-1])
	p.X.Tick.Marker = plot.ConstantTicks(wavelengthTicks(p.X.Min, p.X.Max))
	p.Add(plotter.NewGrid())

	yLo := math.Min(floats.Min(fluor.CorrectedIntensity), floats.Min(solvent.CorrectedIntensity))
	yHi := math.Max(floats.Max(fluor.CorrectedIntensity), floats.Max(solvent.CorrectedIntensity))
	margin := 0.05 * (yHi - yLo)
	if margin == 0 {
		margin = 1
	}
	p.Y.Min = yLo - margin
	p.Y.Max = yHi + margin

	sample, err := solidLine(fluor.Wavelengths, fluor.CorrectedIntensity,
		color.RGBA{B: 255, A: 255}, 1.5) // Blue
	if err != nil {
		return nil, fmt.Errorf("failed to create sample line: %v", err)
	}
	p.Add(sample)
	p.Legend.Add("Sample", sample)

	solv, err := solidLine(solvent.Wavelengths, solvent.CorrectedIntensity,
		color.RGBA{G: 150, A: 255}, 1.5) // Green
	if err != nil {
		return nil, fmt.Errorf("failed to create solvent line: %v", err)
	}
	p.Add(solv)
	p.Legend.Add("Solvent", solv)

	baselines := []struct {
		name   string
		axis   []float64
		values []float64
		color  color.Color
	}{
		{"Scatter baseline (sample)", fluor.Wavelengths, res.ScatterBaselineFluor,
			color.RGBA{R: 255, A: 255}}, // Red
		{"Scatter baseline (solvent)", solvent.Wavelengths, res.ScatterBaselineSolvent,
			color.RGBA{R: 255, G: 165, A: 255}}, // Orange
		{"Emission baseline", fluor.Wavelengths, res.EmissionBaseline,
			color.RGBA{R: 128, B: 128, A: 255}}, // Purple
	}
	for _, b := range baselines {
		if len(b.values) != len(b.axis) {
			continue
		}
		line, err := dashedLine(b.axis, b.values, b.color)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %v", b.name, err)
		}
		p.Add(line)
		p.Legend.Add(b.name, line)
	}

	for _, win := range []struct {
		window analysis.IndexWindow
		axis   []float64
	}{
		{res.ScatterFluor, fluor.Wavelengths},
		{res.EmissionFluor, fluor.Wavelengths},
	} {
		for _, idx := range []int{win.window.Start, win.window.End} {
			if idx < 0 || idx >= len(win.axis) {
				continue
			}
			marker, err := verticalMarker(win.axis[idx], p.Y.Min, p.Y.Max)
			if err != nil {
				return nil, fmt.Errorf("failed to create window marker: %v", err)
			}
			p.Add(marker)
		}
	}

	p.Legend.Top = true
	p.Legend.XOffs = vg.Points(10)

	return renderPNG(p)
}

func solidLine(xs, ys []float64, c color.Color, width float64) (*plotter.Line, error) {
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i] = plotter.XY{X: xs[i], Y: ys[i]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = c
	line.LineStyle.Width = vg.Points(width)
	return line, nil
}

func dashedLine(xs, ys []float64, c color.Color) (*plotter.Line, error) {
	line, err := solidLine(xs, ys, c, 1)
	if err != nil {
		return nil, err
	}
	line.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	return line, nil
}

func verticalMarker(x, yMin, yMax float64) (*plotter.Line, error) {
	line, err := plotter.NewLine(plotter.XYs{{X: x, Y: yMin}, {X: x, Y: yMax}})
	if err != nil {
		return nil, err
	}
	line.Color = color.Gray{Y: 128}
	line.LineStyle.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	return line, nil
}

// thinnedErrorBars samples at most limit error bars along the corrected view.
func thinnedErrorBars(spec *parser.Spectrum, limit int) valueErrors {
	stride := spec.Samples() / limit
	if stride < 1 {
		stride = 1
	}
	var v valueErrors
	for i := 0; i < spec.Samples(); i += stride {
		v.XYs = append(v.XYs, plotter.XY{X: spec.Wavelengths[i], Y: spec.CorrectedIntensity[i]})
		u := spec.CorrectedUncertainty[i]
		v.YErrors = append(v.YErrors, struct{ Low, High float64 }{Low: u, High: u})
	}
	return v
}

// wavelengthTicks spaces round-number ticks to suit the plotted span.
func wavelengthTicks(min, max float64) []plot.Tick {
	step := 50.0
	switch span := max - min; {
	case span <= 100:
		step = 20
	case span > 400:
		step = 100
	}
	var ticks []plot.Tick
	for v := math.Ceil(min/step) * step; v <= max; v += step {
		ticks = append(ticks, plot.Tick{Value: v, Label: fmt.Sprintf("%.0f", v)})
	}
	if len(ticks) == 0 {
		ticks = append(ticks, plot.Tick{Value: min, Label: fmt.Sprintf("%.0f", min)})
	}
	return ticks
}

func renderPNG(p *plot.Plot) ([]byte, error) {
	writer, err := p.WriterTo(vg.Points(800), vg.Points(400), "png")
	if err != nil {
		return nil, fmt.Errorf("failed to create plot writer: %v", err)
	}
	buf := new(bytes.Buffer)
	if _, err := writer.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to write plot to buffer: %v", err)
	}
	return buf.Bytes(), nil
}
