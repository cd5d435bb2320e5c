package normalizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "SAL REFINADA X 500 GR", "sal refinada x 500 gr"},
		{"trims ends", "  maiz amarillo  ", "maiz amarillo"},
		{"collapses runs", "arroz   blanco \t premium", "arroz blanco premium"},
		{"empty input", "", ""},
		{"whitespace only", "   \t ", ""},
		{"already normalized", "frijol cargamanto", "frijol cargamanto"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

// Case and trailing-whitespace invariance: the properties every matching
// stage relies on.
func TestNormalizeInvariance(t *testing.T) {
	descriptions := []string{
		"SAL REFINADA X 500 GR",
		"Aceite Vegetal x 1 Litro",
		"azucar  blanca X 1000 gr",
	}

	for _, d := range descriptions {
		assert.Equal(t, Normalize(d), Normalize(strings.ToUpper(d)))
		assert.Equal(t, Normalize(d), Normalize(d+" "))
		assert.Equal(t, Normalize(d), Normalize(" "+d))
		// Idempotent.
		assert.Equal(t, Normalize(d), Normalize(Normalize(d)))
	}
}
