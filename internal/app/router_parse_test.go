package app

import (
	"reflect"
	"testing"
)

func TestParseOrigins(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", []string{"*"}},
		{"*", []string{"*"}},
		{"https://a.example", []string{"https://a.example"}},
		{"https://a.example, https://b.example", []string{"https://a.example", "https://b.example"}},
		{" https://a.example ,", []string{"https://a.example"}},
		{",,", []string{"*"}},
	}
	for _, tc := range cases {
		got := ParseOrigins(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ParseOrigins(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
