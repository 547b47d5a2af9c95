// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package stim

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/OpenPSG/stim/edf"
)

// Annotation prefixes used to carry stimulation bookkeeping through EDF+ files.
const (
	annotationSeries = "stim_series"
	annotationRun    = "stim_run"
	annotationParams = "stim_params"
)

// SI prefixes, largest first, used to keep physical extremes readable in the 8 byte header fields.
var prefixes = []struct {
	prefix string
	scale  float64
}{
	{"", 1},
	{"m", 1e3},
	{"u", 1e6},
	{"n", 1e9},
}

var unitSymbols = map[Unit]string{
	UnitAmp:  "A",
	UnitVolt: "V",
}

// physicalDimension picks the prefixed unit in which the largest sample is at least 1.
func physicalDimension(unit Unit, maxAbs float64) (string, float64) {
	symbol := unitSymbols[unit]
	if maxAbs == 0 {
		return symbol, 1
	}
	for _, p := range prefixes {
		if maxAbs*p.scale >= 1 {
			return p.prefix + symbol, p.scale
		}
	}
	last := prefixes[len(prefixes)-1]
	return last.prefix + symbol, last.scale
}

// parseDimension maps an EDF physical dimension back to a unit and scale.
func parseDimension(dimension string) (Unit, float64, error) {
	for unit, symbol := range unitSymbols {
		for _, p := range prefixes {
			if dimension == p.prefix+symbol {
				return unit, p.scale, nil
			}
		}
	}
	return "", 0, fmt.Errorf("%w: unsupported physical dimension %q", ErrInvalidUnit, dimension)
}

// regularRate returns the sampling rate of s, which must be a whole number of Hz.
// Series with timestamps must be regularly sampled.
func regularRate(s *StimSeries) (float64, float64, error) {
	rate, start := s.rate, s.startingTime

	if s.timestamps != nil {
		n := len(s.timestamps)
		if n < 2 {
			return 0, 0, fmt.Errorf("%w: at least two timestamps are needed to infer the sampling rate", ErrInvalidTiming)
		}

		start = s.timestamps[0]
		step := (s.timestamps[n-1] - start) / float64(n-1)
		if step <= 0 {
			return 0, 0, fmt.Errorf("%w: timestamps do not advance", ErrInvalidTiming)
		}
		for i := 1; i < n; i++ {
			if math.Abs(s.timestamps[i]-s.timestamps[i-1]-step) > step*1e-3 {
				return 0, 0, fmt.Errorf("%w: timestamps are not regularly sampled at index %d", ErrInvalidTiming, i)
			}
		}
		rate = 1 / step
	}

	whole := math.Round(rate)
	if whole < 1 || math.Abs(rate-whole) > whole*1e-6 {
		return 0, 0, fmt.Errorf("%w: EDF export needs a whole sampling rate, got %g Hz", ErrInvalidTiming, rate)
	}
	return whole, start, nil
}

// WriteEDF writes a stimulation series to w as an EDF+ file, one signal per waveform.
// The runs of table, when not nil, and the JSON run metadata of the series are
// written as annotations.
func WriteEDF(w io.WriteSeeker, s *StimSeries, table *StimTable) error {
	data := s.Data()
	if data == nil || data.Len() == 0 {
		return fmt.Errorf("stimulation series %q has no data", s.Name())
	}

	rate, start, err := regularRate(s)
	if err != nil {
		return err
	}

	minVal, maxVal := data.Min(), data.Max()
	dimension, scale := physicalDimension(s.Unit(), math.Max(math.Abs(minVal), math.Abs(maxVal)))

	lo, hi := math.Min(minVal*scale, 0), math.Max(maxVal*scale, 0)
	if hi == lo {
		hi = lo + 1
	}
	pad := (hi - lo) * 0.01
	lo, hi = lo-pad, hi+pad

	samplesPerRecord := int(rate)
	records := (data.Len() + samplesPerRecord - 1) / samplesPerRecord

	annotations := []edf.Annotation{{
		Text: fmt.Sprintf("%s unit=%s samples=%d starting_time=%s name=%s",
			annotationSeries, s.Unit(), data.Len(), formatFloat(start), s.Name()),
	}}
	for _, id := range s.Runs().IDs() {
		params := s.Runs()[id]
		annotations = append(annotations, edf.Annotation{
			Text: fmt.Sprintf("%s %s %s", annotationParams, id, params),
		})
	}
	if table != nil {
		for _, r := range table.Runs() {
			annotations = append(annotations, edf.Annotation{
				Onset:    secondsToDuration(r.StartTime - start),
				Duration: secondsToDuration(r.StopTime - r.StartTime),
				Text:     formatRun(r),
			})
		}
	}

	// Size the annotation signal so that spreading the annotations over every
	// record always leaves room for all of them.
	total, largest := 0, 0
	for _, a := range annotations {
		size := edf.AnnotationSize(a)
		total += size
		largest = max(largest, size)
	}
	timekeeping := edf.AnnotationSize(edf.Annotation{Onset: time.Duration(records) * time.Second})
	annotationBytes := timekeeping + largest + (total+records-1)/records

	var labels []int
	if region := s.Electrodes(); region != nil {
		labels = region.Indices()
	}

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          "X X X X",
		RecordingID:        "Startdate X X X " + recordingIdentifier(s),
		StartTime:          recordingStart(s),
		DataRecordDuration: time.Second,
	}
	for c := 0; c < data.Channels(); c++ {
		label := fmt.Sprintf("STIM %d", c)
		if c < len(labels) {
			label = fmt.Sprintf("STIM E%d", labels[c])
		}
		hdr.Signals = append(hdr.Signals, edf.Signal{
			Label:             label,
			TransducerType:    "stimulator",
			PhysicalDimension: dimension,
			PhysicalMin:       lo,
			PhysicalMax:       hi,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  samplesPerRecord,
		})
	}
	hdr.Signals = append(hdr.Signals, edf.AnnotationSignal(annotationBytes))

	ew, err := edf.Create(w, hdr)
	if err != nil {
		return fmt.Errorf("error creating EDF file: %w", err)
	}

	for _, a := range annotations {
		if err := ew.Annotate(a); err != nil {
			return err
		}
	}

	channels := make([][]float64, data.Channels())
	for c := range channels {
		channels[c] = data.Channel(c)
	}

	record := make([][]float64, len(channels))
	for i := 0; i < records; i++ {
		for c, samples := range channels {
			buf := make([]float64, samplesPerRecord)
			for j := range buf {
				if t := i*samplesPerRecord + j; t < len(samples) {
					buf[j] = samples[t] * scale
				}
			}
			record[c] = buf
		}

		if err := ew.WriteRecord(record); err != nil {
			return fmt.Errorf("error writing data record %d: %w", i, err)
		}
	}

	return ew.Close()
}

// EDFSeries is a stimulation series read back from an EDF/EDF+ file.
type EDFSeries struct {
	Name         string
	Unit         Unit
	Rate         float64
	StartingTime float64
	Data         *Waveform
	Labels       []string    // Signal label of each waveform
	Metadata     RunMetadata // Run parameters from stim_params annotations
	Runs         []Run       // Runs from stim_run annotations
}

// ReadEDF reads the stimulation waveforms and annotations of an EDF/EDF+ file.
// Files not written by WriteEDF are accepted as long as every signal shares the
// same sampling rate and an ampere or volt physical dimension.
func ReadEDF(r io.ReadSeeker) (*EDFSeries, error) {
	er, err := edf.Open(r)
	if err != nil {
		return nil, err
	}
	hdr := er.Header()

	out := &EDFSeries{Name: hdr.RecordingID}

	var (
		indices          []int
		samplesPerRecord int
		dimension        string
	)
	for i, signal := range hdr.Signals {
		if signal.IsAnnotation() {
			continue
		}
		if len(indices) == 0 {
			samplesPerRecord, dimension = signal.SamplesPerRecord, signal.PhysicalDimension
		} else if signal.SamplesPerRecord != samplesPerRecord || signal.PhysicalDimension != dimension {
			return nil, fmt.Errorf("%w: signal %q differs in rate or dimension from the first signal", ErrInvalidTiming, signal.Label)
		}
		indices = append(indices, i)
		out.Labels = append(out.Labels, signal.Label)
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("EDF file has no waveform signals")
	}
	if hdr.DataRecordDuration <= 0 {
		return nil, fmt.Errorf("%w: data record duration must be positive", ErrInvalidTiming)
	}
	if samplesPerRecord <= 0 {
		return nil, fmt.Errorf("%w: signals must have at least one sample per data record", ErrInvalidTiming)
	}
	// -1 is written while recording and means the writer was never closed.
	if hdr.DataRecords < 0 {
		return nil, fmt.Errorf("EDF file has an unknown number of data records (%d)", hdr.DataRecords)
	}

	unit, scale, err := parseDimension(dimension)
	if err != nil {
		return nil, err
	}
	out.Unit = unit
	out.Rate = float64(samplesPerRecord) / hdr.DataRecordDuration.Seconds()

	samples := hdr.DataRecords * samplesPerRecord

	annotations, err := er.Annotations()
	if err != nil {
		return nil, err
	}
	for _, a := range annotations {
		kind, rest, _ := strings.Cut(a.Text, " ")
		switch kind {
		case annotationSeries:
			if err := out.parseSeries(rest, &samples); err != nil {
				return nil, err
			}
		case annotationParams:
			if err := out.parseParams(rest); err != nil {
				return nil, err
			}
		case annotationRun:
			run, err := parseRun(rest)
			if err != nil {
				return nil, err
			}
			out.Runs = append(out.Runs, run)
		}
	}

	channels := make([][]float64, len(indices))
	for c, signalIndex := range indices {
		sr, err := er.Signal(signalIndex)
		if err != nil {
			return nil, err
		}

		buf := make([]float64, samples)
		n, err := sr.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("error reading signal %q: %w", out.Labels[c], err)
		}
		if n < samples {
			return nil, fmt.Errorf("signal %q has %d samples, expected %d", out.Labels[c], n, samples)
		}
		for i := range buf {
			buf[i] /= scale
		}
		channels[c] = buf
	}

	if len(channels) == 1 {
		out.Data = NewWaveform(channels[0])
	} else {
		out.Data, err = NewWaveformFromChannels(channels)
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (s *EDFSeries) parseSeries(text string, samples *int) error {
	head, name, _ := strings.Cut(text, " name=")
	s.Name = name

	fields, err := parseFields(head)
	if err != nil {
		return err
	}

	if unit, ok := fields["unit"]; ok {
		if !Unit(unit).Valid() {
			return fmt.Errorf("%w: got %q", ErrInvalidUnit, unit)
		}
		s.Unit = Unit(unit)
	}
	if v, ok := fields["samples"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > *samples {
			return fmt.Errorf("invalid sample count %q", v)
		}
		*samples = n
	}
	if v, ok := fields["starting_time"]; ok {
		if s.StartingTime, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("invalid starting time %q: %w", v, err)
		}
	}
	return nil
}

func (s *EDFSeries) parseParams(text string) error {
	id, rest, _ := strings.Cut(text, " ")
	values, err := parseFloatFields(rest, requiredParameters)
	if err != nil {
		return fmt.Errorf("run %s: %w", id, err)
	}

	if s.Metadata == nil {
		s.Metadata = make(RunMetadata)
	}
	s.Metadata[id] = RunParameters{
		Amplitude:  values[ParamAmplitude],
		PulseWidth: values[ParamPulseWidth],
		Frequency:  values[ParamFrequency],
	}
	return nil
}

func formatRun(r Run) string {
	return fmt.Sprintf("%s %s=%s %s=%s %s=%s %s=%s %s=%s %s=%d", annotationRun,
		ColumnStartTime, formatFloat(r.StartTime),
		ColumnStopTime, formatFloat(r.StopTime),
		ColumnFrequency, formatFloat(r.Frequency),
		ColumnAmplitude, formatFloat(r.Amplitude),
		ColumnPulseWidth, formatFloat(r.PulseWidth),
		ColumnBipolarPair, r.BipolarPair)
}

func parseRun(text string) (Run, error) {
	values, err := parseFloatFields(text, requiredColumns)
	if err != nil {
		return Run{}, fmt.Errorf("%s: %w", annotationRun, err)
	}

	return Run{
		StartTime:   values[ColumnStartTime],
		StopTime:    values[ColumnStopTime],
		Frequency:   values[ColumnFrequency],
		Amplitude:   values[ColumnAmplitude],
		PulseWidth:  values[ColumnPulseWidth],
		BipolarPair: int(values[ColumnBipolarPair]),
	}, nil
}

func parseFields(text string) (map[string]string, error) {
	fields := make(map[string]string)
	for _, field := range strings.Fields(text) {
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			return nil, fmt.Errorf("malformed annotation field %q", field)
		}
		fields[k] = v
	}
	return fields, nil
}

func parseFloatFields(text string, required []string) (map[string]float64, error) {
	fields, err := parseFields(text)
	if err != nil {
		return nil, err
	}

	values := make(map[string]float64, len(required))
	for _, key := range required {
		v, ok := fields[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingParameter, key)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidParameter, key, err)
		}
		values[key] = f
	}
	return values, nil
}

// StimSeries builds a validated stimulation series from the file contents.
func (s *EDFSeries) StimSeries(electrodes *ElectrodeRegion) (*StimSeries, error) {
	var metadata string
	if s.Metadata != nil {
		var err error
		if metadata, err = s.Metadata.Encode(); err != nil {
			return nil, err
		}
	}

	return NewStimSeries(SeriesConfig{
		Name:         s.Name,
		Data:         s.Data,
		Unit:         s.Unit,
		Electrodes:   electrodes,
		Metadata:     metadata,
		StartingTime: s.StartingTime,
		Rate:         s.Rate,
	})
}

// StimTable builds a stimulation table holding the runs of the file.
func (s *EDFSeries) StimTable(cfg TableConfig) (*StimTable, error) {
	t := NewStimTable(cfg)
	for _, r := range s.Runs {
		if err := t.AddRun(r); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func recordingOf(c Container) *Recording {
	for p := c.Parent(); p != nil; p = p.Parent() {
		if rec, ok := p.(*Recording); ok {
			return rec
		}
	}
	return nil
}

func recordingIdentifier(s *StimSeries) string {
	if rec := recordingOf(s); rec != nil {
		return strings.ReplaceAll(rec.Identifier, " ", "_")
	}
	return "X"
}

func recordingStart(s *StimSeries) time.Time {
	if rec := recordingOf(s); rec != nil && !rec.SessionStartTime.IsZero() {
		return rec.SessionStartTime
	}
	return time.Now()
}
