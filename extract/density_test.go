package extract

import "testing"

func TestDensity(t *testing.T) {
	quality := `This is a well-written article with multiple sentences. It contains
valuable information that users are looking for. The content is structured
properly with good grammar and punctuation. This type of content should
score highly on density metrics.`

	testCases := []struct {
		name string
		text string
		min  float64
		max  float64
	}{
		{"Empty", "", 0.0, 0.0},
		{"WhitespaceOnly", "  \t \n ", 0.0, 0.0},
		{"QualityProse", quality, 0.3, 1.0},
		{"SymbolSoup", "!@#$%^&*()_+-=[]{}|;':\"<>?,./`~", 0.0, 0.4},
		{"MixedContent", "Some text with @@@ symbols ### and numbers 12345 mixed in.", 0.01, 0.99},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := Density(tc.text)
			if d < tc.min || d > tc.max {
				t.Errorf("expected density in [%v, %v], got %v", tc.min, tc.max, d)
			}
		})
	}
}

func TestDensityBounded(t *testing.T) {
	for _, text := range []string{"short", "a b c d e", "One full sentence about anything at all."} {
		d := Density(text)
		if d < 0.0 || d > 1.0 {
			t.Errorf("density %v out of [0,1] for %q", d, text)
		}
	}
}
