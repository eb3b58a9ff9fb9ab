package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"San Diego", "SAN DIEGO"},
		{"  san   diego ", "SAN DIEGO"},
		{"La Cañada Flintridge", "LA CAÑADA FLINTRIDGE"},
		{"SAN DIEGO", "SAN DIEGO"},
		{"\tEl Cajon\n", "EL CAJON"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), "input %q", tt.in)
	}
}
