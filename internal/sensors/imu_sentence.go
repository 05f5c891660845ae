// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/gaze_computer/internal/monitoring"
	"github.com/relabs-tech/gaze_computer/internal/motion"
)

// Sentence types sent by the IMU board, e.g. "$IMACC,0.12,-0.03,9.79*5A".
const (
	TypeACC = "ACC"
	TypeMAG = "MAG"
)

// MotionSentence is one accelerometer or magnetometer line.
type MotionSentence struct {
	nmea.BaseSentence
	X float64
	Y float64
	Z float64
}

// Reading converts the sentence to a motion reading.
func (s MotionSentence) Reading() motion.Reading {
	ch := motion.Accel
	if s.Type == TypeMAG {
		ch = motion.Mag
	}
	return motion.Reading{Channel: ch, X: s.X, Y: s.Y, Z: s.Z}
}

func parseMotion(s nmea.BaseSentence) (nmea.Sentence, error) {
	if len(s.Fields) != 3 {
		return nil, fmt.Errorf("nmea: %s expects 3 fields, got %d", s.Prefix(), len(s.Fields))
	}
	p := nmea.NewParser(s)
	m := MotionSentence{
		BaseSentence: s,
		X:            p.Float64(0, "x"),
		Y:            p.Float64(1, "y"),
		Z:            p.Float64(2, "z"),
	}
	return m, p.Err()
}

// NewSentenceParser returns a parser that understands the IMU sentences
// in addition to the standard NMEA set.
func NewSentenceParser() *nmea.SentenceParser {
	return &nmea.SentenceParser{
		CustomParsers: map[string]nmea.ParserFunc{
			TypeACC: parseMotion,
			TypeMAG: parseMotion,
		},
	}
}

// ErrNotMotion is returned by ParseLine for valid sentences that carry no motion sample.
var ErrNotMotion = errors.New("sensors: not a motion sentence")

// ParseLine parses one line into a motion reading.
func ParseLine(p *nmea.SentenceParser, line string) (motion.Reading, error) {
	sentence, err := p.Parse(strings.TrimSpace(line))
	if err != nil {
		return motion.Reading{}, err
	}
	m, ok := sentence.(MotionSentence)
	if !ok {
		return motion.Reading{}, ErrNotMotion
	}
	return m.Reading(), nil
}

// LineSource reads motion sentences from a byte stream, one per line.
// Blank lines, lines not starting with '$' and unparseable sentences are
// skipped.
type LineSource struct {
	reader *bufio.Reader
	parser *nmea.SentenceParser

	Skipped uint64
}

func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{
		reader: bufio.NewReader(r),
		parser: NewSentenceParser(),
	}
}

// NextReading returns the next motion reading, or the underlying read error
// (io.EOF at end of stream).
func (s *LineSource) NextReading() (motion.Reading, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "$") {
			r, perr := ParseLine(s.parser, line)
			if perr == nil {
				return r, nil
			}
			s.Skipped++
			if !errors.Is(perr, ErrNotMotion) {
				// partial sentences are normal right after the port opens
				monitoring.Logf("[serial] skipping %q: %v", line, perr)
			}
		}
		if err != nil {
			return motion.Reading{}, err
		}
	}
}
