package builtin

import (
	"reflect"
	"testing"

	"cyberetl/internal/dataset"
)

/*
TestNormalizeApply_TableDriven verifies that Normalize.Apply replaces
no-break spaces, trims edge whitespace, leaves non-strings alone and mutates
records in place.
*/
func TestNormalizeApply_TableDriven(t *testing.T) {
	tests := []struct {
		name string
		norm Normalize
		in   []dataset.Record
		want []dataset.Record
	}{
		{
			name: "no_strings_no_change",
			in:   []dataset.Record{{"a": 1, "b": true, "c": nil}},
			want: []dataset.Record{{"a": 1, "b": true, "c": nil}},
		},
		{
			name: "simple_trim_spaces",
			in:   []dataset.Record{{"ticker": " aapl ", "company_name": "\tApple Inc.\n"}},
			want: []dataset.Record{{"ticker": "aapl", "company_name": "Apple Inc."}},
		},
		{
			name: "nbsp_replaced_and_trimmed",
			in:   []dataset.Record{{"a": " " + nbspace + "foo" + nbspace + " "}},
			want: []dataset.Record{{"a": "foo"}},
		},
		{
			name: "nbsp_internal_only",
			in:   []dataset.Record{{"a": "Apple" + nbspace + "Inc."}},
			want: []dataset.Record{{"a": "Apple Inc."}},
		},
		{
			name: "blank_kept_by_default",
			in:   []dataset.Record{{"sector": "   "}},
			want: []dataset.Record{{"sector": ""}},
		},
		{
			name: "blank_to_nil",
			norm: Normalize{BlankToNil: true},
			in:   []dataset.Record{{"sector": "   ", "x": "y"}},
			want: []dataset.Record{{"sector": nil, "x": "y"}},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			orig := reflect.ValueOf(tc.in[0]).Pointer()
			out := tc.norm.Apply(tc.in)
			if !reflect.DeepEqual(out, tc.want) {
				t.Fatalf("Normalize.Apply() mismatch:\n got: %#v\nwant: %#v", out, tc.want)
			}
			if reflect.ValueOf(out[0]).Pointer() != orig {
				t.Fatalf("record map identity changed; want in-place mutation")
			}
		})
	}
}

func TestNormalizeApply_EmptyInputs(t *testing.T) {
	if got := (Normalize{}).Apply(nil); got != nil {
		t.Fatalf("Normalize.Apply(nil) = %#v; want nil", got)
	}
}

func TestHasEdgeSpace(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"foo", false},
		{" foo", true},
		{"foo ", true},
		{"f oo", false},
		{"\tfoo", true},
		{"foo\n", true},
		{"\rfoo", true},
		{" ", true},
	}
	for _, tt := range tests {
		if got := HasEdgeSpace(tt.in); got != tt.want {
			t.Fatalf("HasEdgeSpace(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestUpper(t *testing.T) {
	in := []dataset.Record{{"ticker": "aapl", "n": 1}, {"ticker": nil}}
	out := Upper{Fields: []string{"ticker", "n"}}.Apply(in)
	if out[0]["ticker"] != "AAPL" || out[0]["n"] != 1 || out[1]["ticker"] != nil {
		t.Fatalf("Upper: %#v", out)
	}
}

/*
TestRequireApply_InPlace keeps a record only when every required field exists and
is non-nil and non-empty; filtering reslices the input in place.
*/
func TestRequireApply_InPlace(t *testing.T) {
	in := []dataset.Record{
		{"ticker": "AAPL"},
		{"company_name": "x"},
		{"ticker": ""},
		{"ticker": nil},
		{"ticker": "MSFT"},
	}
	first := &in[0]
	out := Require{Fields: []string{"ticker"}}.Apply(in)
	if len(out) != 2 || out[0]["ticker"] != "AAPL" || out[1]["ticker"] != "MSFT" {
		t.Fatalf("Require: %#v", out)
	}
	if &out[0] != first {
		t.Fatalf("Apply did not reslice in place")
	}
	if got := (Require{}).Apply([]dataset.Record{{}, {}}); len(got) != 2 {
		t.Fatalf("Require with no fields kept %d; want 2", len(got))
	}
}
