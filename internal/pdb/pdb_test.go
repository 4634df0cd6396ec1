package pdb

import "testing"

func TestReadCompressedUint(t *testing.T) {
	cases := []struct {
		name  string
		bytes []byte
		want  uint32
	}{
		{"one-byte zero", []byte{0x00}, 0},
		{"one-byte max", []byte{0x7F}, 0x7F},
		{"two-byte min", []byte{0x80, 0x80}, 0x80},
		{"two-byte max", []byte{0xBF, 0xFF}, 0x3FFF},
		{"four-byte min", []byte{0xC0, 0x00, 0x40, 0x00}, 0x4000},
		{"four-byte max", []byte{0xDF, 0xFF, 0xFF, 0xFF}, 0x1FFFFFFF},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := newBlobReader(c.bytes)
			got, _, err := r.readCompressedUint()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Errorf("got %#x, want %#x", got, c.want)
			}
		})
	}
}

func TestReadCompressedInt(t *testing.T) {
	cases := []struct {
		name  string
		bytes []byte
		want  int32
	}{
		{"positive one-byte", []byte{0x06}, 3},
		{"negative one-byte", []byte{0x7B}, -3},
		{"zero", []byte{0x00}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := newBlobReader(c.bytes)
			got, err := r.readCompressedInt()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Errorf("got %d, want %d", got, c.want)
			}
		})
	}
}

func TestParseLocalName(t *testing.T) {
	cases := []struct {
		raw     string
		display string
		skip    bool
	}{
		{"counter", "counter", false},
		{"<counter>5__2", "counter", false},
		{"<>4__this", "", true},
		{"<>t__builder", "", true},
	}
	for _, c := range cases {
		display, skip := parseLocalName(c.raw)
		if skip != c.skip || (!skip && display != c.display) {
			t.Errorf("parseLocalName(%q) = (%q, %v), want (%q, %v)", c.raw, display, skip, c.display, c.skip)
		}
	}
}

func TestDecodeConstantInt(t *testing.T) {
	cases := []struct {
		name     string
		typeCode byte
		blob     []byte
		want     int64
	}{
		{"i4 positive", 0x08, []byte{0x01, 0x00, 0x00, 0x00}, 1},
		{"i4 negative", 0x08, []byte{0xFF, 0xFF, 0xFF, 0xFF}, -1},
		{"u1", 0x05, []byte{0xFF}, 255},
		{"i8", 0x0A, []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}, 1 << 32},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := decodeConstantInt(c.typeCode, c.blob)
			if !ok {
				t.Fatalf("decodeConstantInt returned ok=false")
			}
			if got != c.want {
				t.Errorf("got %d, want %d", got, c.want)
			}
		})
	}
}

func TestFormatEnumValue(t *testing.T) {
	members := map[int64]string{0: "Sunday", 1: "Monday"}

	if got := FormatEnumValue("DayOfWeek", members, 1); got != "DayOfWeek.Monday" {
		t.Errorf("got %q, want %q", got, "DayOfWeek.Monday")
	}
	if got := FormatEnumValue("DayOfWeek", members, 9); got != "DayOfWeek(9)" {
		t.Errorf("got %q, want %q", got, "DayOfWeek(9)")
	}
}

func TestDecodeSequencePoints(t *testing.T) {
	// local-signature=0, first record: ilOffset=0, deltaLines=1, deltaCols=4
	// (single-line span), startLine=17 (absolute), startCol=8 (absolute).
	blob := []byte{
		0x00,       // local signature
		0x00,       // il offset 0 (first record, absolute)
		0x01,       // delta lines = 1
		0x08,       // delta cols = 4 (compressed signed: (4<<1)|0 = 8)
		0x11,       // start line = 17
		0x08,       // start col = 8
	}
	points, err := decodeSequencePoints(blob, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("got %d points, want 1", len(points))
	}
	sp := points[0]
	if sp.StartLine != 17 || sp.ILOffset != 0 || sp.Hidden {
		t.Errorf("got %+v, want StartLine=17 ILOffset=0 Hidden=false", sp)
	}
}
