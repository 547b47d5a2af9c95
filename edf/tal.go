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
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Time-stamped Annotation List separators.
const (
	talDuration = 0x15
	talText     = 0x14
	talEnd      = 0x00
)

// encodeTAL encodes a single Time-stamped Annotation List.
// An empty text produces the time-keeping TAL that starts every data record.
func encodeTAL(onset, duration time.Duration, text string) []byte {
	var buf bytes.Buffer

	buf.WriteString(formatOnset(onset))
	if duration > 0 {
		buf.WriteByte(talDuration)
		buf.WriteString(strconv.FormatFloat(duration.Seconds(), 'f', -1, 64))
	}
	buf.WriteByte(talText)
	buf.WriteString(text)
	buf.WriteByte(talText)
	buf.WriteByte(talEnd)

	return buf.Bytes()
}

func formatOnset(onset time.Duration) string {
	s := strconv.FormatFloat(onset.Seconds(), 'f', -1, 64)
	if onset >= 0 {
		return "+" + s
	}
	return s
}

// decodeTALs parses every TAL in the annotation bytes of a single data record.
// The time-keeping TAL is returned with an empty text.
func decodeTALs(b []byte) ([]Annotation, error) {
	var annotations []Annotation

	for len(b) > 0 {
		end := bytes.IndexByte(b, talEnd)
		if end < 0 {
			end = len(b)
		}
		tal := b[:end]
		if end < len(b) {
			b = b[end+1:]
		} else {
			b = nil
		}

		// Zero padding after the last TAL.
		if len(tal) == 0 {
			continue
		}

		fields := bytes.Split(tal, []byte{talText})
		if len(fields) < 2 {
			return nil, fmt.Errorf("malformed annotation list: %q", tal)
		}

		timing := fields[0]
		var onsetStr, durationStr []byte
		if i := bytes.IndexByte(timing, talDuration); i >= 0 {
			onsetStr, durationStr = timing[:i], timing[i+1:]
		} else {
			onsetStr = timing
		}

		onset, err := parseSeconds(onsetStr)
		if err != nil {
			return nil, fmt.Errorf("error parsing annotation onset: %w", err)
		}

		var duration time.Duration
		if len(durationStr) > 0 {
			duration, err = parseSeconds(durationStr)
			if err != nil {
				return nil, fmt.Errorf("error parsing annotation duration: %w", err)
			}
		}

		texts := fields[1 : len(fields)-1]
		if len(texts) == 0 || (len(texts) == 1 && len(texts[0]) == 0) {
			annotations = append(annotations, Annotation{Onset: onset, Duration: duration})
			continue
		}
		for _, text := range texts {
			annotations = append(annotations, Annotation{Onset: onset, Duration: duration, Text: string(text)})
		}
	}

	return annotations, nil
}

func parseSeconds(b []byte) (time.Duration, error) {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(f * float64(time.Second)), nil
}

// AnnotationSize returns the number of bytes the annotation takes up in an annotation signal.
// An annotation without text has the size of the time-keeping annotation at its onset.
func AnnotationSize(a Annotation) int {
	return len(encodeTAL(a.Onset, a.Duration, a.Text))
}
