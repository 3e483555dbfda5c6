package sqlutil

import "testing"

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"users", `"users"`},
		{"user_data", `"user_data"`},
		{"select", `"select"`},         // reserved word
		{"first name", `"first name"`}, // space in name
		{`user"data`, `"user""data"`},  // quote in name
		{`a"b"c`, `"a""b""c"`},         // multiple quotes
		{"", `""`},                     // empty string
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := QuoteIdentifier(tt.input)
			if result != tt.expected {
				t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestIsIdentifier(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"status", true},
		{"created_at", true},
		{"_private", true},
		{"col$1", true},
		{"1col", false},
		{"", false},
		{"a.b", false},
		{"name; drop table x", false},
		{"first name", false},
		{`quo"te`, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsIdentifier(tt.input); got != tt.want {
				t.Errorf("IsIdentifier(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsQualifiedName(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"widget", true},
		{"public.widget", true},
		{"public.", false},
		{".widget", false},
		{"", false},
		{"public.widget;", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsQualifiedName(tt.input); got != tt.want {
				t.Errorf("IsQualifiedName(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsTypeName(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"text", true},
		{"integer[]", true},
		{"double precision", true},
		{"uuid", true},
		{"text); drop table x; --", false},
		{"int[][]", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsTypeName(tt.input); got != tt.want {
				t.Errorf("IsTypeName(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
