package parser

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
)

// RunType classifies what the wavelength axis of a measurement represents.
type RunType int

const (
	RunUnknown RunType = iota
	RunEmission
	RunExcitation
	RunSynchronous
)

func (r RunType) String() string {
	switch r {
	case RunEmission:
		return "Emission"
	case RunExcitation:
		return "Excitation"
	case RunSynchronous:
		return "Synchronous"
	default:
		return "Unknown"
	}
}

// Known reports whether r is one of the recognized scan classifications.
func (r RunType) Known() bool {
	switch r {
	case RunEmission, RunExcitation, RunSynchronous:
		return true
	default:
		return false
	}
}

// FileType identifies which PTI export layout produced a record.
type FileType int

const (
	FileUnknown FileType = iota
	FileSession
	FileTrace
	FileGroup
)

func (f FileType) String() string {
	switch f {
	case FileSession:
		return "Session"
	case FileTrace:
		return "Trace"
	case FileGroup:
		return "Group"
	default:
		return "Unknown"
	}
}

// Detector channel reported on the wavelength-range header line.
const (
	ModeDigital  = "Digital"
	ModeAnalogue = "Analogue"
)

// Range is a wavelength interval in nm. A monochromator held at a fixed
// wavelength reports Min == Max.
type Range struct {
	Min float64
	Max float64
}

// Swept reports whether the axis was scanned over an interval.
func (r Range) Swept() bool { return r.Max > r.Min }

func (r Range) String() string {
	if !r.Swept() {
		return fmt.Sprintf("%.2f nm", r.Min)
	}
	return fmt.Sprintf("%.2f-%.2f nm", r.Min, r.Max)
}

// Spectrum is one spectrometer measurement: a wavelength axis, the raw
// intensity layout of the file that produced it, the Poisson uncertainty
// derived from the raw counts, and the corrected view once a correction has
// been attached.
//
// Session files carry the raw counts column, the instrument's own corrected
// column and an excitation-correction trace; trace and group exports carry a
// single value column. FileType records which layout applies.
type Spectrum struct {
	SourcePath string
	FileType   FileType
	RunType    RunType

	AcqMode  string    // detector channel, ModeDigital or ModeAnalogue
	AcqStart time.Time // trace files carry no timestamp; file mtime is used

	ExRange Range
	EmRange Range

	Wavelengths []float64

	SpecRaw []float64 // session: raw counts
	Spec    []float64 // session: instrument-corrected counts
	ExCorr  []float64 // session: excitation correction photodiode trace
	Trace   []float64 // trace/group: the single value column

	RawUncertainty []float64

	// Populated by AttachCorrection, nil before that. The quantum yield
	// calculator refuses to read a spectrum until these are set.
	CorrectedIntensity   []float64
	CorrectedUncertainty []float64
}

// Samples returns the number of points on the wavelength axis.
func (s *Spectrum) Samples() int { return len(s.Wavelengths) }

// RawIntensity returns the column holding raw intensity for this file type.
func (s *Spectrum) RawIntensity() []float64 {
	if s.FileType == FileSession {
		return s.SpecRaw
	}
	return s.Trace
}

// IsCorrected reports whether a corrected view has been attached.
func (s *Spectrum) IsCorrected() bool {
	return s.Samples() > 0 && len(s.CorrectedIntensity) == s.Samples() &&
		len(s.CorrectedUncertainty) == s.Samples()
}

// AttachCorrection copies a corrected view onto the record. Attaching a
// second time overwrites the first. Both arrays must span the full
// wavelength axis; nothing is written on a length mismatch.
func (s *Spectrum) AttachCorrection(intensity, uncertainty []float64) error {
	if len(intensity) != s.Samples() || len(uncertainty) != s.Samples() {
		return fmt.Errorf("corrected arrays have %d/%d values for %d wavelengths",
			len(intensity), len(uncertainty), s.Samples())
	}
	s.CorrectedIntensity = append([]float64(nil), intensity...)
	s.CorrectedUncertainty = append([]float64(nil), uncertainty...)
	return nil
}

// NearestIndex returns the index of the wavelength sample closest to wl.
// At an exact midpoint the lower index wins.
func (s *Spectrum) NearestIndex(wl float64) int {
	return floats.NearestIdx(s.Wavelengths, wl)
}

// WavelengthStep returns the spacing of the first two axis samples, used for
// report annotations. Zero for spectra with fewer than two samples.
func (s *Spectrum) WavelengthStep() float64 {
	if s.Samples() < 2 {
		return 0
	}
	return s.Wavelengths[1] - s.Wavelengths[0]
}
