package toxicity

import (
	"context"
	"strings"
	"unicode"
)

// leetReplacer undoes the common character substitutions used to slip
// slurs past keyword filters ("b@dw0rd" -> "badword").
var leetReplacer = strings.NewReplacer(
	"@", "a",
	"4", "a",
	"3", "e",
	"1", "i",
	"!", "i",
	"0", "o",
	"$", "s",
	"5", "s",
	"7", "t",
)

// term pairs a word or phrase with the base score it contributes.
type term struct {
	text     string
	severity float64
	phrase   bool // multi-word terms match as substrings on word boundaries
}

// defaultTerms is the built-in term list. Severities are calibrated so a
// direct attack clears the default 0.7 threshold on its own while milder
// hostility needs a boost (shouting, flooding) to cross it.
var defaultTerms = []term{
	{text: "kill yourself", severity: 0.98, phrase: true},
	{text: "go die", severity: 0.95, phrase: true},
	{text: "nobody likes you", severity: 0.85, phrase: true},
	{text: "shut up", severity: 0.7, phrase: true},
	{text: "idiot", severity: 0.75},
	{text: "stupid", severity: 0.72},
	{text: "moron", severity: 0.75},
	{text: "loser", severity: 0.72},
	{text: "pathetic", severity: 0.7},
	{text: "worthless", severity: 0.8},
	{text: "trash", severity: 0.6},
	{text: "garbage", severity: 0.6},
	{text: "hate", severity: 0.5},
	{text: "ugly", severity: 0.6},
	{text: "dumb", severity: 0.65},
}

// Boosts added on top of the highest matching term severity. A message
// with no matching term always scores zero, boosts alone never flag.
const (
	boostShouting  = 0.08 // mostly upper-case message
	boostCharFlood = 0.05 // 5+ consecutive identical characters
	boostWordFlood = 0.05 // same word 3+ times in a row
)

// KeywordEngine is the on-device scoring engine: a normalized term lookup
// with aggression heuristics. It does no I/O and never returns an error,
// so the gate's fail-open path is exercised only by the remote engine.
type KeywordEngine struct {
	words   map[string]float64
	phrases []term
}

// NewKeywordEngine creates an engine with the built-in term list.
func NewKeywordEngine() *KeywordEngine {
	return NewKeywordEngineWithTerms(defaultTerms)
}

// NewKeywordEngineWithTerms creates an engine with a custom term list.
// Terms containing a space are treated as phrases regardless of the
// phrase flag.
func NewKeywordEngineWithTerms(terms []term) *KeywordEngine {
	e := &KeywordEngine{words: make(map[string]float64)}
	for _, t := range terms {
		text := strings.ToLower(t.text)
		if t.phrase || strings.ContainsRune(text, ' ') {
			e.phrases = append(e.phrases, term{text: text, severity: t.severity, phrase: true})
		} else {
			e.words[text] = t.severity
		}
	}
	return e
}

// Score implements Engine. The returned error is always nil.
//
// Terms are matched against both the lowercased text and its de-leeted
// form: the replacer is too eager to run unconditionally (it would turn a
// trailing "!" into an "i" and break plain matches), but skipping it would
// miss obfuscated terms.
func (e *KeywordEngine) Score(_ context.Context, text string) (float64, error) {
	lower := strings.ToLower(text)

	base := e.matchTerms(lower)
	if deleeted := leetReplacer.Replace(lower); deleeted != lower {
		if s := e.matchTerms(deleeted); s > base {
			base = s
		}
	}

	if base == 0 {
		return 0, nil
	}

	score := base
	if isShouting(text) {
		score += boostShouting
	}
	if hasCharFlood(lower) {
		score += boostCharFlood
	}
	if hasWordFlood(lower) {
		score += boostWordFlood
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}

// matchTerms returns the highest severity among matching words and
// phrases in text, or zero.
func (e *KeywordEngine) matchTerms(text string) float64 {
	base := 0.0

	// Whole-word matches ("badword" matches, "badwording" does not).
	words := fields(text)
	for _, w := range words {
		if sev, ok := e.words[w]; ok && sev > base {
			base = sev
		}
	}

	// Phrase matches on word boundaries.
	padded := " " + strings.Join(words, " ") + " "
	for _, p := range e.phrases {
		if strings.Contains(padded, " "+p.text+" ") && p.severity > base {
			base = p.severity
		}
	}
	return base
}

// normalize lowercases the text and undoes leetspeak substitutions.
func normalize(text string) string {
	return leetReplacer.Replace(strings.ToLower(text))
}

// fields splits text into words, stripping surrounding punctuation so
// "badword!" matches the bare term.
func fields(text string) []string {
	raw := strings.FieldsFunc(text, unicode.IsSpace)
	words := make([]string, 0, len(raw))
	for _, w := range raw {
		w = strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// isShouting returns true if at least 70% of the letters are upper-case
// and the message has enough letters for case to carry intent.
func isShouting(text string) bool {
	letters, upper := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters < 6 {
		return false
	}
	return float64(upper)/float64(letters) >= 0.7
}

// hasCharFlood returns true if text contains 5 or more consecutive
// identical characters. Go's regexp package (RE2) does not support
// backreferences, so this is implemented as a simple linear scan.
func hasCharFlood(text string) bool {
	const threshold = 5

	count := 1
	prev := rune(-1)
	for _, r := range text {
		if r == prev {
			count++
			if count >= threshold {
				return true
			}
		} else {
			count = 1
			prev = r
		}
	}
	return false
}

// hasWordFlood returns true if the same word appears 3 or more times
// consecutively (case-insensitive). Words are delimited by whitespace.
func hasWordFlood(text string) bool {
	const threshold = 3

	words := strings.FieldsFunc(text, unicode.IsSpace)
	if len(words) < threshold {
		return false
	}

	count := 1
	prev := ""
	for _, w := range words {
		lower := strings.ToLower(w)
		if lower == prev {
			count++
			if count >= threshold {
				return true
			}
		} else {
			count = 1
			prev = lower
		}
	}
	return false
}
