package parser

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrFileFormat wraps every malformed-input failure from the reader.
var ErrFileFormat = errors.New("unrecognized spectrometer file")

// Text layouts written by the PTI acquisition software. Line numbers are
// zero-based. Session exports: timestamp on line 1, sample count on line 5,
// wavelength-range line on line 6, data rows from line 8, then a separator
// block and the excitation-correction rows. Trace and group exports: sample
// count on line 1, range line on line 2, data rows from line 4.
const (
	sessionDateLine    = 1
	sessionSamplesLine = 5
	sessionRangeLine   = 6
	sessionDataStart   = 8
	sessionGapLines    = 7

	traceSamplesLine = 1
	traceRangeLine   = 2
	traceDataStart   = 4
)

const acqTimeLayout = "2006-01-02 15:04:05"

// ParseFile reads one PTI text export and returns its Spectrum record.
// The layout is dispatched on the first line: <Session> for full acquisition
// sessions, <Trace> for single-trace exports, <Group> for exported correction
// curves (same row layout as a trace).
func ParseFile(path string) (*Spectrum, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrFileFormat, path)
	}
	switch {
	case strings.Contains(lines[0], "<Session>"):
		return parseSession(path, lines)
	case strings.Contains(lines[0], "<Trace>"):
		return parseTraceLike(path, lines, FileTrace)
	case strings.Contains(lines[0], "<Group>"):
		return parseTraceLike(path, lines, FileGroup)
	default:
		return nil, fmt.Errorf("%w: %s does not start with <Session>, <Trace> or <Group>",
			ErrFileFormat, path)
	}
}

func parseSession(path string, lines []string) (*Spectrum, error) {
	if len(lines) <= sessionRangeLine {
		return nil, fmt.Errorf("%w: session header truncated in %s", ErrFileFormat, path)
	}
	spec := &Spectrum{SourcePath: path, FileType: FileSession}

	// The acquisition timestamp is the last two fields of line 1.
	fields := strings.Fields(lines[sessionDateLine])
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: no acquisition timestamp in %s", ErrFileFormat, path)
	}
	stamp := fields[len(fields)-2] + " " + fields[len(fields)-1]
	start, err := time.ParseInLocation(acqTimeLayout, stamp, time.Local)
	if err != nil {
		return nil, fmt.Errorf("%w: bad acquisition timestamp %q in %s", ErrFileFormat, stamp, path)
	}
	spec.AcqStart = start

	n, err := parseSampleCount(lines[sessionSamplesLine])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileFormat, path, err)
	}
	if err := readWLRangeLine(spec, lines[sessionRangeLine]); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if len(lines) < sessionDataStart+n {
		return nil, fmt.Errorf("%w: %s declares %d samples but the data block ends early",
			ErrFileFormat, path, n)
	}
	spec.Wavelengths = make([]float64, n)
	spec.SpecRaw = make([]float64, n)
	spec.Spec = make([]float64, n)
	for i := 0; i < n; i++ {
		row := sessionDataStart + i
		cols := strings.Fields(lines[row])
		if len(cols) < 4 {
			return nil, fmt.Errorf("%w: %s line %d has %d columns, want 4",
				ErrFileFormat, path, row+1, len(cols))
		}
		wl, err1 := strconv.ParseFloat(cols[0], 64)
		raw, err2 := strconv.ParseFloat(cols[1], 64)
		cor, err3 := strconv.ParseFloat(cols[3], 64)
		if err := errors.Join(err1, err2, err3); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrFileFormat, path, row+1, err)
		}
		spec.Wavelengths[i] = wl
		spec.SpecRaw[i] = raw
		spec.Spec[i] = cor
	}

	// The photodiode excitation-correction block follows a fixed separator
	// gap. Older exports omit it, so a short file is not an error here.
	exStart := sessionDataStart + n + sessionGapLines
	if len(lines) >= exStart+n {
		spec.ExCorr = make([]float64, n)
		for i := 0; i < n; i++ {
			row := exStart + i
			cols := strings.Fields(lines[row])
			if len(cols) < 2 {
				return nil, fmt.Errorf("%w: %s line %d has %d columns, want 2",
					ErrFileFormat, path, row+1, len(cols))
			}
			v, err := strconv.ParseFloat(cols[1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s line %d: %v", ErrFileFormat, path, row+1, err)
			}
			spec.ExCorr[i] = v
		}
	}

	if err := finishSpectrum(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

func parseTraceLike(path string, lines []string, ft FileType) (*Spectrum, error) {
	if len(lines) <= traceRangeLine {
		return nil, fmt.Errorf("%w: %s header truncated in %s",
			ErrFileFormat, strings.ToLower(ft.String()), path)
	}
	spec := &Spectrum{SourcePath: path, FileType: ft}

	// Trace exports carry no timestamp; the file mtime is the best estimate.
	if fi, err := os.Stat(path); err == nil {
		spec.AcqStart = fi.ModTime()
	}

	n, err := parseSampleCount(lines[traceSamplesLine])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileFormat, path, err)
	}
	if err := readWLRangeLine(spec, lines[traceRangeLine]); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if len(lines) < traceDataStart+n {
		return nil, fmt.Errorf("%w: %s declares %d samples but the data block ends early",
			ErrFileFormat, path, n)
	}
	spec.Wavelengths = make([]float64, n)
	spec.Trace = make([]float64, n)
	for i := 0; i < n; i++ {
		row := traceDataStart + i
		cols := strings.Fields(lines[row])
		if len(cols) < 2 {
			return nil, fmt.Errorf("%w: %s line %d has %d columns, want 2",
				ErrFileFormat, path, row+1, len(cols))
		}
		wl, err1 := strconv.ParseFloat(cols[0], 64)
		val, err2 := strconv.ParseFloat(cols[1], 64)
		if err := errors.Join(err1, err2); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrFileFormat, path, row+1, err)
		}
		spec.Wavelengths[i] = wl
		spec.Trace[i] = val
	}

	if err := finishSpectrum(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// readWLRangeLine decodes the header line that reports the detector mode and
// the excitation/emission sweep bounds, e.g. "Digital 350.00:380.00-650.00".
// A swept axis reads "lo-hi"; a fixed monochromator reads a single value.
// Both ranges swept means a synchronous scan.
func readWLRangeLine(s *Spectrum, line string) error {
	switch {
	case strings.HasPrefix(line, "D"):
		s.AcqMode = ModeDigital
	case strings.HasPrefix(line, "A"):
		s.AcqMode = ModeAnalogue
	default:
		return fmt.Errorf("%w: range line %q has no detector mode", ErrFileFormat, strings.TrimSpace(line))
	}

	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.Contains(fields[1], ":") {
		return fmt.Errorf("%w: range line %q lacks ex:em bounds", ErrFileFormat, strings.TrimSpace(line))
	}
	parts := strings.SplitN(fields[1], ":", 2)
	ex, err := parseRange(parts[0])
	if err != nil {
		return fmt.Errorf("%w: excitation bounds: %v", ErrFileFormat, err)
	}
	em, err := parseRange(parts[1])
	if err != nil {
		return fmt.Errorf("%w: emission bounds: %v", ErrFileFormat, err)
	}
	s.ExRange, s.EmRange = ex, em

	switch {
	case ex.Swept() && em.Swept():
		s.RunType = RunSynchronous
	case ex.Swept():
		s.RunType = RunExcitation
	case em.Swept():
		s.RunType = RunEmission
	default:
		s.RunType = RunUnknown
	}
	return nil
}

func parseRange(s string) (Range, error) {
	bounds := strings.Split(s, "-")
	switch len(bounds) {
	case 1:
		v, err := strconv.ParseFloat(bounds[0], 64)
		if err != nil {
			return Range{}, fmt.Errorf("bad bound %q", s)
		}
		return Range{Min: v, Max: v}, nil
	case 2:
		lo, err1 := strconv.ParseFloat(bounds[0], 64)
		hi, err2 := strconv.ParseFloat(bounds[1], 64)
		if errors.Join(err1, err2) != nil {
			return Range{}, fmt.Errorf("bad bounds %q", s)
		}
		return Range{Min: lo, Max: hi}, nil
	default:
		return Range{}, fmt.Errorf("bad range %q", s)
	}
}

func parseSampleCount(line string) (int, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, errors.New("missing sample count")
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("bad sample count %q", fields[0])
	}
	return n, nil
}

// finishSpectrum validates the axis and derives the Poisson uncertainty from
// the raw counts. Analogue traces can dip below zero, so the magnitude goes
// under the square root.
func finishSpectrum(s *Spectrum) error {
	for i := 1; i < len(s.Wavelengths); i++ {
		if s.Wavelengths[i] <= s.Wavelengths[i-1] {
			return fmt.Errorf("%w: wavelength axis not strictly increasing at %.2f nm in %s",
				ErrFileFormat, s.Wavelengths[i], s.SourcePath)
		}
	}
	if !s.RunType.Known() {
		return fmt.Errorf("%w: cannot classify run type of %s (ex %s, em %s)",
			ErrFileFormat, s.SourcePath, s.ExRange, s.EmRange)
	}
	raw := s.RawIntensity()
	s.RawUncertainty = make([]float64, len(raw))
	for i, v := range raw {
		s.RawUncertainty[i] = math.Sqrt(math.Abs(v))
	}
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spectrometer file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}
