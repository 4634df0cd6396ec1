package value

import "testing"

func TestDisplayFieldName(t *testing.T) {
	cases := []struct {
		raw     string
		display string
		skip    bool
	}{
		{"_counter", "_counter", false},
		{"<Count>k__BackingField", "Count", false},
		{"<>4__this", "", true},
	}
	for _, c := range cases {
		display, skip := displayFieldName(c.raw)
		if skip != c.skip || (!skip && display != c.display) {
			t.Errorf("displayFieldName(%q) = (%q, %v), want (%q, %v)", c.raw, display, skip, c.display, c.skip)
		}
	}
}

func TestDecodeBoolBytes(t *testing.T) {
	cases := []struct {
		name string
		et   int
		raw  []byte
		want string
	}{
		{"bool true", 0, []byte{1}, "true"},
		{"bool false", 0, []byte{0}, "false"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := decodeBoolBytes(c.raw)
			want := c.want == "true"
			if got != want {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestDecodeIntBytes(t *testing.T) {
	if got := decodeIntBytes([]byte{0x01}); got != 1 {
		t.Errorf("got %d, want 1", got)
	}
	if got := decodeIntBytes([]byte{0xFF}); got != -1 {
		t.Errorf("got %d, want -1", got)
	}
}
