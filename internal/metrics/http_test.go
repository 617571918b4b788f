package metrics

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "static path",
			input:    "/api/v1/companies",
			expected: "/api/v1/companies",
		},
		{
			name:     "single param",
			input:    "/api/v1/companies/{symbol}",
			expected: "/api/v1/companies/{param}",
		},
		{
			name:     "multiple params",
			input:    "/api/v1/companies/{symbol}/predictions/{id}",
			expected: "/api/v1/companies/{param}/predictions/{param}",
		},
		{
			name:     "param mid-path",
			input:    "/api/v1/companies/{symbol}/history",
			expected: "/api/v1/companies/{param}/history",
		},
		{
			name:     "empty path",
			input:    "",
			expected: "",
		},
		{
			name:     "non-path input",
			input:    "api/v1/companies/{symbol}",
			expected: "api/v1/companies/{symbol}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizePath(tt.input)
			if got != tt.expected {
				t.Fatalf("normalizePath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
