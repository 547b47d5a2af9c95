// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// Writer writes EDF/EDF+ files.
type Writer struct {
	w           io.WriteSeeker
	hdr         *Header
	dataRecords int          // Number of data records written so far.
	pending     []Annotation // Annotations not yet written to a data record.
}

// Create creates a new EDF writer that writes to the given writer.
// If the header contains an annotation signal the file is written as EDF+.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	hdr.DataRecords = -1 // Unknown number of data records (at this time).
	hdr.SignalCount = len(hdr.Signals)

	if hdr.Reserved == "" {
		for _, signal := range hdr.Signals {
			if signal.IsAnnotation() {
				hdr.Reserved = ReservedContinuous
				break
			}
		}
	}

	recordBytes := 0
	for _, signal := range hdr.Signals {
		recordBytes += signal.SamplesPerRecord * 2
	}
	// As recommended by the EDF standard.
	if recordBytes > MaxRecordBytes {
		return nil, fmt.Errorf("data record too large: %d bytes, max is %d bytes", recordBytes, MaxRecordBytes)
	}

	ew := &Writer{w: w, hdr: &hdr}

	// Write the initial header
	if err := ew.writeHeader(); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	return ew, nil
}

// Annotate queues an annotation, it is written with the next data record that has room for it.
func (ew *Writer) Annotate(a Annotation) error {
	if ew.annotationSignal() < 0 {
		return fmt.Errorf("header has no %q signal", AnnotationsLabel)
	}

	ew.pending = append(ew.pending, a)
	return nil
}

// Close finalizes the EDF file by updating the header with the total number of data records.
func (ew *Writer) Close() error {
	if len(ew.pending) > 0 {
		return fmt.Errorf("%d annotations were not written to any data record", len(ew.pending))
	}

	// Finalize the header with the actual number of data records
	ew.hdr.DataRecords = ew.dataRecords
	if err := ew.writeHeader(); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	return nil
}

// WriteRecord writes a single data record to the EDF file.
// Signals holds the samples of every ordinary signal in header order, annotation
// signals are filled in by the writer.
func (ew *Writer) WriteRecord(signals [][]float64) error {
	ordinary := 0
	for _, signal := range ew.hdr.Signals {
		if !signal.IsAnnotation() {
			ordinary++
		}
	}
	if len(signals) != ordinary {
		return fmt.Errorf("expected %d signals, got %d", ordinary, len(signals))
	}

	writer := bufio.NewWriter(ew.w)

	// Write each signal's data
	next := 0
	for i := 0; i < ew.hdr.SignalCount; i++ {
		signal := ew.hdr.Signals[i]

		if signal.IsAnnotation() {
			b, err := ew.annotationBytes(signal.SamplesPerRecord * 2)
			if err != nil {
				return err
			}
			if _, err := writer.Write(b); err != nil {
				return err
			}
			continue
		}

		samples := signals[next]
		next++
		if len(samples) != signal.SamplesPerRecord {
			return fmt.Errorf("signal %q: expected %d samples, got %d", signal.Label, signal.SamplesPerRecord, len(samples))
		}

		for _, sample := range samples {
			digitalValue := convertPhysicalToDigital(sample, signal.PhysicalMin, signal.PhysicalMax, signal.DigitalMin, signal.DigitalMax)
			if err := binary.Write(writer, binary.LittleEndian, digitalValue); err != nil {
				return err
			}
		}
	}

	// Ensure all data is flushed to the underlying writer
	if err := writer.Flush(); err != nil {
		return err
	}

	ew.dataRecords++
	return nil
}

// annotationBytes builds the annotation signal bytes of the next data record:
// the time-keeping TAL followed by as many pending annotations as fit.
func (ew *Writer) annotationBytes(capacity int) ([]byte, error) {
	onset := time.Duration(ew.dataRecords) * ew.hdr.DataRecordDuration

	b := encodeTAL(onset, 0, "")
	if len(b) > capacity {
		return nil, fmt.Errorf("annotation signal too small: %d bytes, need %d bytes", capacity, len(b))
	}

	written := 0
	for _, a := range ew.pending {
		tal := encodeTAL(a.Onset, a.Duration, a.Text)
		if len(b)+len(tal) > capacity {
			if written == 0 && len(encodeTAL(onset, 0, ""))+len(tal) > capacity {
				return nil, fmt.Errorf("annotation %q does not fit in a data record", a.Text)
			}
			break
		}
		b = append(b, tal...)
		written++
	}
	ew.pending = ew.pending[written:]

	// Pad with zeros up to the signal size.
	padded := make([]byte, capacity)
	copy(padded, b)
	return padded, nil
}

func (ew *Writer) annotationSignal() int {
	for i, signal := range ew.hdr.Signals {
		if signal.IsAnnotation() {
			return i
		}
	}
	return -1
}

// WriteHeader writes an EDF header to the given writer.
func (ew *Writer) writeHeader() error {
	// Rewind to the beginning of the file.
	_, err := ew.w.Seek(0, io.SeekStart)
	if err != nil {
		return err
	}

	writer := bufio.NewWriter(ew.w)

	// Write version, patient and recording IDs
	_, err = writer.WriteString(fmt.Sprintf("%-8s", ew.hdr.Version))
	if err != nil {
		return err
	}
	_, err = writer.WriteString(fmt.Sprintf("%-80.80s", ew.hdr.PatientID))
	if err != nil {
		return err
	}
	_, err = writer.WriteString(fmt.Sprintf("%-80.80s", ew.hdr.RecordingID))
	if err != nil {
		return err
	}

	// Write start date and time
	dateStr := ew.hdr.StartTime.Format("02.01.06")
	timeStr := ew.hdr.StartTime.Format("15.04.05")
	_, err = writer.WriteString(fmt.Sprintf("%-8s", dateStr))
	if err != nil {
		return err
	}
	_, err = writer.WriteString(fmt.Sprintf("%-8s", timeStr))
	if err != nil {
		return err
	}

	// Write header bytes, data records, etc.
	ew.hdr.HeaderBytes = 256 + (ew.hdr.SignalCount * 256)
	_, err = writer.WriteString(fmt.Sprintf("%-8d", ew.hdr.HeaderBytes))
	if err != nil {
		return err
	}

	// Write the 44 reserved bytes (EDF+C / EDF+D marker).
	_, err = writer.WriteString(fmt.Sprintf("%-44.44s", ew.hdr.Reserved))
	if err != nil {
		return err
	}

	// Write the number of data records.
	_, err = writer.WriteString(fmt.Sprintf("%-8d", ew.hdr.DataRecords))
	if err != nil {
		return err
	}

	// Write data record duration
	_, err = writer.WriteString(fmt.Sprintf("%-8.8s", strconv.FormatFloat(ew.hdr.DataRecordDuration.Seconds(), 'f', -1, 64)))
	if err != nil {
		return err
	}

	// Write signal count
	_, err = writer.WriteString(fmt.Sprintf("%-4d", ew.hdr.SignalCount))
	if err != nil {
		return err
	}

	// Write signal details
	for _, signal := range ew.hdr.Signals {
		_, err = writer.WriteString(fmt.Sprintf("%-16.16s", signal.Label))
		if err != nil {
			return err
		}
	}

	for _, signal := range ew.hdr.Signals {
		_, err = writer.WriteString(fmt.Sprintf("%-80.80s", signal.TransducerType))
		if err != nil {
			return err
		}
	}

	for _, signal := range ew.hdr.Signals {
		_, err = writer.WriteString(fmt.Sprintf("%-8.8s", signal.PhysicalDimension))
		if err != nil {
			return err
		}
	}

	for _, signal := range ew.hdr.Signals {
		_, err = writer.WriteString(formatPhysicalValue(signal.PhysicalMin))
		if err != nil {
			return err
		}
	}

	for _, signal := range ew.hdr.Signals {
		_, err = writer.WriteString(formatPhysicalValue(signal.PhysicalMax))
		if err != nil {
			return err
		}
	}

	for _, signal := range ew.hdr.Signals {
		_, err = writer.WriteString(fmt.Sprintf("%-8d", signal.DigitalMin))
		if err != nil {
			return err
		}
	}

	for _, signal := range ew.hdr.Signals {
		_, err = writer.WriteString(fmt.Sprintf("%-8d", signal.DigitalMax))
		if err != nil {
			return err
		}
	}

	for _, signal := range ew.hdr.Signals {
		_, err = writer.WriteString(fmt.Sprintf("%-80.80s", signal.Prefiltering))
		if err != nil {
			return err
		}
	}

	for _, signal := range ew.hdr.Signals {
		_, err = writer.WriteString(fmt.Sprintf("%-8d", signal.SamplesPerRecord))
		if err != nil {
			return err
		}
	}

	// Reserved for future use
	for _, signal := range ew.hdr.Signals {
		_, err = writer.WriteString(fmt.Sprintf("%-32.32s", signal.Reserved))
		if err != nil {
			return err
		}
	}

	// Ensure all data is flushed to the underlying writer
	return writer.Flush()
}

// convertPhysicalToDigital converts a physical value to a digital value using the calibration factors.
// Values outside of the physical range are clipped.
func convertPhysicalToDigital(physical float64, pmin, pmax float64, dmin, dmax int) int16 {
	if pmax == pmin {
		return 0 // Avoid division by zero
	}
	physical = math.Max(pmin, math.Min(pmax, physical))
	digital := ((physical - pmin) * (float64(dmax - dmin)) / (pmax - pmin)) + float64(dmin)
	return int16(math.Round(digital))
}

// formatPhysicalValue fits a physical extreme into the 8 byte header field.
func formatPhysicalValue(val float64) string {
	for prec := 6; prec >= 0; prec-- {
		s := strconv.FormatFloat(val, 'f', prec, 64)
		if len(s) <= 8 {
			return fmt.Sprintf("%-8s", s)
		}
	}
	return fmt.Sprintf("%-8.8s", strconv.FormatFloat(val, 'g', 2, 64))
}
