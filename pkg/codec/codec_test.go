package codec

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func mustLayout(t *testing.T, format string, signals map[string]int) *Layout {
	t.Helper()
	l, err := ParseLayout(format, signals)
	if err != nil {
		t.Fatalf("ParseLayout(%q): %v", format, err)
	}
	return l
}

// encodeFloats builds a frame of little-endian float32 fields, the shape the
// simulation host emits.
func encodeFloats(values []float64) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	return buf
}

func TestParseLayout_Size(t *testing.T) {
	cases := []struct {
		format string
		size   int
		fields int
	}{
		{"<28f", 112, 28},
		{"28f", 112, 28},
		{"<4f", 16, 4},
		{"<d2fI", 8 + 8 + 4, 4},
		{"<2h3Bf", 4 + 3 + 4, 6},
		{"=10f", 40, 10},
	}
	for _, c := range cases {
		l := mustLayout(t, c.format, nil)
		if l.Size() != c.size {
			t.Errorf("%q: size %d, want %d", c.format, l.Size(), c.size)
		}
		if l.NumFields() != c.fields {
			t.Errorf("%q: fields %d, want %d", c.format, l.NumFields(), c.fields)
		}
	}
}

func TestParseLayout_Rejects(t *testing.T) {
	cases := []struct {
		format string
		want   error
	}{
		{"", ErrEmptyFormat},
		{">4f", ErrBigEndian},
		{"!4f", ErrBigEndian},
		{"<4x", ErrUnknownCode},
		{"<12", ErrUnknownCode},
	}
	for _, c := range cases {
		if _, err := ParseLayout(c.format, nil); !errors.Is(err, c.want) {
			t.Errorf("ParseLayout(%q) = %v, want %v", c.format, err, c.want)
		}
	}
}

func TestParseLayout_SignalIndexOutOfRange(t *testing.T) {
	_, err := ParseLayout("<4f", map[string]int{"time": 4})
	if !errors.Is(err, ErrIndexOutRange) {
		t.Fatalf("expected ErrIndexOutRange, got %v", err)
	}
	_, err = ParseLayout("<4f", map[string]int{"time": -1})
	if !errors.Is(err, ErrIndexOutRange) {
		t.Fatalf("expected ErrIndexOutRange for negative index, got %v", err)
	}
}

func TestDecode_WrongLengthRejected(t *testing.T) {
	l := mustLayout(t, "<28f", nil)
	for _, n := range []int{0, 1, 111, 113, 224} {
		if _, err := l.Decode(make([]byte, n)); !errors.Is(err, ErrFrameLength) {
			t.Errorf("Decode(len=%d) = %v, want ErrFrameLength", n, err)
		}
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	signals := map[string]int{
		"time":        0,
		"ankle_angle": 1,
		"pressure_1":  2,
		"statusword":  3,
	}
	l := mustLayout(t, "<4f", signals)
	want := []float64{12.5, -43.25, 512.0, 1591.0}

	got, err := l.DecodeSignals(encodeFloats(want))
	if err != nil {
		t.Fatalf("DecodeSignals: %v", err)
	}
	for name, idx := range signals {
		if math.Abs(got[name]-want[idx]) > 1e-6 {
			t.Errorf("%s: got %v, want %v", name, got[name], want[idx])
		}
	}
}

func TestDecode_MixedFieldTypes(t *testing.T) {
	l := mustLayout(t, "<fdhHbBiI", nil)
	buf := make([]byte, l.Size())
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(1.5))
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(-2.25))
	off += 8
	binary.LittleEndian.PutUint16(buf[off:], uint16(0xFFFF)) // int16 -1
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], 65535)
	off += 2
	buf[off] = 0xFF // int8 -1
	off++
	buf[off] = 200
	off++
	binary.LittleEndian.PutUint32(buf[off:], uint32(0xFFFFFFFF)) // int32 -1
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], 4000000000)

	values, err := l.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []float64{1.5, -2.25, -1, 65535, -1, 200, -1, 4000000000}
	for i, w := range want {
		if values[i] != w {
			t.Errorf("field %d: got %v, want %v", i, values[i], w)
		}
	}
}

func TestControlFrame_RoundTrip(t *testing.T) {
	frame := EncodeControl(1, 0.5, -2.25, 1591)
	if len(frame) != ControlFrameSize {
		t.Fatalf("control frame is %d bytes, want %d", len(frame), ControlFrameSize)
	}
	got, err := DecodeControl(frame)
	if err != nil {
		t.Fatalf("DecodeControl: %v", err)
	}
	want := [4]float32{1, 0.5, -2.25, 1591}
	if got != want {
		t.Errorf("round trip: got %v, want %v", got, want)
	}
}

func TestControlFrame_WireOrder(t *testing.T) {
	// Field order on the wire is fixed: zero, motor, assist, k.
	frame := EncodeControl(1, 2, 3, 4)
	for i, want := range []float32{1, 2, 3, 4} {
		got := math.Float32frombits(binary.LittleEndian.Uint32(frame[i*4:]))
		if got != want {
			t.Errorf("field %d: got %v, want %v", i, got, want)
		}
	}
}

func TestDecodeControl_WrongLength(t *testing.T) {
	if _, err := DecodeControl(make([]byte, 15)); !errors.Is(err, ErrFrameLength) {
		t.Fatalf("expected ErrFrameLength, got %v", err)
	}
}
