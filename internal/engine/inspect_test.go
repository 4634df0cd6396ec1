package engine

import (
	"reflect"
	"testing"
)

func TestSplitDotChain(t *testing.T) {
	cases := []struct {
		name string
		expr string
		want []string
	}{
		{"simple identifier", "foo", []string{"foo"}},
		{"dotted chain", "this.inner.value", []string{"this", "inner", "value"}},
		{"empty", "", nil},
		{"leading dot collapses", ".foo", []string{"foo"}},
		{"trailing dot collapses", "foo.", []string{"foo"}},
		{"repeated dots collapse", "foo..bar", []string{"foo", "bar"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := splitDotChain(c.expr)
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("splitDotChain(%q) = %#v, want %#v", c.expr, got, c.want)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	r := notFound("missingVar")
	if r.Success {
		t.Error("notFound result must have Success=false")
	}
	if r.Error == "" {
		t.Error("notFound result must carry an error message")
	}
}
