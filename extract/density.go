package extract

import (
	"regexp"
	"strings"
	"unicode"
)

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// Density scores how much a block of text looks like prose rather than
// markup residue, symbol soup, or navigation chrome. The score is in
// [0,1]: empty input is 0, readable article text lands above 0.3, pure
// symbol noise stays below 0.4.
func Density(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0.0
	}

	alnum, visible := 0, 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		visible++
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			alnum++
		}
	}
	if visible == 0 {
		return 0.0
	}
	alnumRatio := float64(alnum) / float64(visible)

	words := strings.Fields(text)
	wordScore := 0.0
	if len(words) > 0 {
		total := 0
		for _, w := range words {
			total += len([]rune(w))
		}
		avg := float64(total) / float64(len(words))
		// Natural-language average word length sits in a narrow band;
		// runs of symbols or minified junk fall far outside it.
		if avg >= 3 && avg <= 12 {
			wordScore = 1.0
		} else if avg > 1 && avg < 20 {
			wordScore = 0.4
		}
	}

	sentences := 0
	for _, s := range sentenceEnd.Split(text, -1) {
		if len(strings.TrimSpace(s)) > 10 {
			sentences++
		}
	}
	sentenceScore := float64(sentences) / 3.0
	if sentenceScore > 1.0 {
		sentenceScore = 1.0
	}

	return 0.50*alnumRatio + 0.25*wordScore + 0.25*sentenceScore
}
