package mapper

import (
	"reflect"
	"testing"
)

func TestNumber_Coercion(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"empty string", "", 0},
		{"non-numeric", "abc", 0},
		{"comma formatted", "1,250.50", 1250.5},
		{"plain string", "42", 42},
		{"whitespace", "  7.5 ", 7.5},
		{"float64", 3.25, 3.25},
		{"int", 9, 9},
		{"nil", nil, 0},
		{"bool", true, 0},
		{"big comma number", "12,345,678", 12345678},
	}
	for _, tc := range cases {
		if got := Number(tc.in); got != tc.want {
			t.Errorf("%s: Number(%v) = %v; want %v", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestInteger_Truncates(t *testing.T) {
	if got := Integer("12.9"); got != 12 {
		t.Fatalf("Integer(\"12.9\") = %d; want 12", got)
	}
	if got := Integer(nil); got != 0 {
		t.Fatalf("Integer(nil) = %d; want 0", got)
	}
}

func TestImageURLs_Normalization(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want []string
	}{
		{"nil", nil, []string{}},
		{"dash placeholder", "-", []string{}},
		{"json array string", `["http://a/1.jpg","http://a/2.jpg"]`, []string{"http://a/1.jpg", "http://a/2.jpg"}},
		{"comma separated", "http://a/1.jpg, http://a/2.jpg", []string{"http://a/1.jpg", "http://a/2.jpg"}},
		{"single url", "http://a/1.jpg", []string{"http://a/1.jpg"}},
		{"structured array", []any{"http://a/1.jpg", "", "http://a/2.jpg"}, []string{"http://a/1.jpg", "http://a/2.jpg"}},
		{"string slice", []string{"x", " y "}, []string{"x", "y"}},
		{"number", 42.0, []string{}},
	}
	for _, tc := range cases {
		if got := ImageURLs(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: ImageURLs(%v) = %v; want %v", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestImageURLs_CapsAtFive(t *testing.T) {
	in := []any{"1", "2", "3", "4", "5", "6", "7"}
	if got := ImageURLs(in); len(got) != 5 {
		t.Fatalf("expected cap at 5 images, got %d", len(got))
	}
}

func TestPick_FirstPresentWins(t *testing.T) {
	row := Row{"Cost Price": "", "costPrice": "10", "Cost": "99"}
	if got := str(pick(row, "Cost Price", "costPrice", "Cost")); got != "10" {
		t.Fatalf("pick skipped empty but chose %q; want \"10\"", got)
	}
	if v := pick(Row{}, "missing"); v != nil {
		t.Fatalf("pick on empty row = %v; want nil", v)
	}
}

func TestNormalizeType(t *testing.T) {
	cases := map[string]string{
		"electronics": "Electronics",
		"ELECTRONICS": "Electronics",
		"home goods":  "Home Goods",
		"-":           "",
		"":            "",
	}
	for in, want := range cases {
		if got := NormalizeType(in); got != want {
			t.Errorf("NormalizeType(%q) = %q; want %q", in, got, want)
		}
	}
}
