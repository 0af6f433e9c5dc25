package logic

import (
	"strconv"
	"strings"
)

// ReadingKind classifies a parsed line.
type ReadingKind int

const (
	ReadingUnrecognized ReadingKind = iota
	ReadingSamples
	ReadingStop
)

func (k ReadingKind) String() string {
	switch k {
	case ReadingSamples:
		return "samples"
	case ReadingStop:
		return "stop"
	default:
		return "unrecognized"
	}
}

// Reading is the typed result of parsing one line from the sensor board.
// Samples is only meaningful when Kind is ReadingSamples.
type Reading struct {
	Kind    ReadingKind
	Samples Samples
}

// fieldPrefixes are the channel tags in wire order.
var fieldPrefixes = [NumChannels]string{"FL:", "FC:", "FR:"}

// ParseLine converts one line into a Reading.
//
// Accepted forms are "FL:<uint>,FC:<uint>,FR:<uint>" and a lone "s" or "S".
// Surrounding whitespace (including a trailing CR) is ignored. Everything
// else, including signed, non-decimal, or out-of-range numbers, is
// ReadingUnrecognized.
func ParseLine(line string) Reading {
	s := strings.TrimSpace(line)

	if strings.EqualFold(s, "s") {
		return Reading{Kind: ReadingStop}
	}

	fields := strings.Split(s, ",")
	if len(fields) != NumChannels {
		return Reading{Kind: ReadingUnrecognized}
	}

	var samples Samples
	for i, f := range fields {
		value, ok := strings.CutPrefix(f, fieldPrefixes[i])
		if !ok {
			return Reading{Kind: ReadingUnrecognized}
		}
		// ParseUint rejects signs, so "-1" and "+1" both land here.
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return Reading{Kind: ReadingUnrecognized}
		}
		samples[i] = uint32(n)
	}

	return Reading{Kind: ReadingSamples, Samples: samples}
}
