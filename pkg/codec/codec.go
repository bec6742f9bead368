// Package codec decodes the fixed-layout binary telemetry frame emitted by
// the simulation host and encodes the outbound control frame.
//
// The frame layout is described by a struct-style format string (for example
// "<28f": 28 little-endian float32 fields) together with a channel-name to
// field-index mapping, both supplied by configuration.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ControlFrameSize is the byte length of the outbound control frame:
// four little-endian float32 values (zero, motor, assist, k).
const ControlFrameSize = 16

var (
	ErrFrameLength   = errors.New("codec: frame length mismatch")
	ErrEmptyFormat   = errors.New("codec: empty format string")
	ErrBigEndian     = errors.New("codec: big-endian formats are not supported")
	ErrUnknownCode   = errors.New("codec: unknown format code")
	ErrIndexOutRange = errors.New("codec: signal index out of range")
)

// fieldWidths maps struct format codes to their byte widths.
var fieldWidths = map[byte]int{
	'f': 4, 'd': 8,
	'i': 4, 'I': 4,
	'h': 2, 'H': 2,
	'b': 1, 'B': 1,
}

type field struct {
	code  byte
	width int
}

// Layout is the parsed, immutable description of the inbound frame: the
// ordered scalar fields plus the name->index mapping for the signals the
// dashboard cares about.  Shared read-only by the ingest loops.
type Layout struct {
	fields  []field
	size    int
	signals map[string]int
}

// ParseLayout parses a struct-style format string.  An optional leading '<'
// or '=' selects little-endian, which is the only byte order the simulation
// host produces; '>' and '!' are rejected.  Digits repeat the following code.
func ParseLayout(format string, signals map[string]int) (*Layout, error) {
	if format == "" {
		return nil, ErrEmptyFormat
	}
	i := 0
	switch format[0] {
	case '<', '=':
		i = 1
	case '>', '!':
		return nil, ErrBigEndian
	}

	l := &Layout{signals: make(map[string]int, len(signals))}
	for i < len(format) {
		repeat := 0
		for i < len(format) && format[i] >= '0' && format[i] <= '9' {
			repeat = repeat*10 + int(format[i]-'0')
			i++
		}
		if repeat == 0 {
			repeat = 1
		}
		if i >= len(format) {
			return nil, fmt.Errorf("%w: trailing repeat count in %q", ErrUnknownCode, format)
		}
		code := format[i]
		i++
		width, ok := fieldWidths[code]
		if !ok {
			return nil, fmt.Errorf("%w: %q in %q", ErrUnknownCode, code, format)
		}
		for r := 0; r < repeat; r++ {
			l.fields = append(l.fields, field{code: code, width: width})
			l.size += width
		}
	}

	for name, idx := range signals {
		if idx < 0 || idx >= len(l.fields) {
			return nil, fmt.Errorf("%w: signal %q index %d (frame has %d fields)",
				ErrIndexOutRange, name, idx, len(l.fields))
		}
		l.signals[name] = idx
	}
	return l, nil
}

// Size returns the exact byte length a valid frame must have.
func (l *Layout) Size() int { return l.size }

// NumFields returns the number of scalar fields in the frame.
func (l *Layout) NumFields() int { return len(l.fields) }

// Decode unpacks data into one float64 per field.  Frames of the wrong
// length are rejected outright; no partial decode is ever returned.
func (l *Layout) Decode(data []byte) ([]float64, error) {
	if len(data) != l.size {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrFrameLength, len(data), l.size)
	}
	values := make([]float64, len(l.fields))
	off := 0
	for i, f := range l.fields {
		raw := data[off : off+f.width]
		switch f.code {
		case 'f':
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw)))
		case 'd':
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw))
		case 'i':
			values[i] = float64(int32(binary.LittleEndian.Uint32(raw)))
		case 'I':
			values[i] = float64(binary.LittleEndian.Uint32(raw))
		case 'h':
			values[i] = float64(int16(binary.LittleEndian.Uint16(raw)))
		case 'H':
			values[i] = float64(binary.LittleEndian.Uint16(raw))
		case 'b':
			values[i] = float64(int8(raw[0]))
		case 'B':
			values[i] = float64(raw[0])
		}
		off += f.width
	}
	return values, nil
}

// DecodeSignals decodes a frame and projects it through the signal mapping.
// Names mapped in the layout always appear in the result.
func (l *Layout) DecodeSignals(data []byte) (map[string]float64, error) {
	values, err := l.Decode(data)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(l.signals))
	for name, idx := range l.signals {
		out[name] = values[idx]
	}
	return out, nil
}

// EncodeControl packs the four control signals into the 16-byte wire frame
// consumed by the simulation host.  Field order is fixed: zero, motor,
// assist, k.
func EncodeControl(zero, motor, assist, k float32) []byte {
	buf := make([]byte, ControlFrameSize)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(zero))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(motor))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(assist))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(k))
	return buf
}

// DecodeControl is the inverse of EncodeControl.
func DecodeControl(data []byte) ([4]float32, error) {
	var out [4]float32
	if len(data) != ControlFrameSize {
		return out, fmt.Errorf("%w: got %d bytes, want %d", ErrFrameLength, len(data), ControlFrameSize)
	}
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}
