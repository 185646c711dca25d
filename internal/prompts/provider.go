// Package prompts supplies the localized reflection questions shown to an
// author while a session is pending. Rotation guarantees an author is not
// shown the same lead question twice until a locale's bank is exhausted.
package prompts

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
)

// SupportedLocales is the set of locales a guild may configure. Unknown
// locales fall back to "en".
var SupportedLocales = []string{
	"en", "vi", "es", "fr", "de", "it", "ja", "ko", "zh", "ru", "ar", "hi", "pt", "nl",
}

// defaultBanks holds the built-in question banks. Only English ships in
// the binary; other locales come from an external bank file.
var defaultBanks = map[string][]string{
	"en": {
		"Is this message accurate and fair to everyone involved?",
		"Could this message harm someone or escalate a conflict?",
		"Does this message reflect the person you want to be?",
		"Would you say this face to face, in front of people you respect?",
		"Will this message still feel right to you in an hour?",
		"Is there a calmer way to make the same point?",
	},
}

// fixedQuestions are appended after the rotating lead question, matching
// the three-part prompt the bot has always sent.
var fixedQuestions = []string{
	"Could this message harm someone or escalate conflict?",
	"Does this reflect the person you want to be?",
}

// Provider serves reflection questions per locale with non-repeating
// rotation. Safe for concurrent use.
type Provider struct {
	mu     sync.Mutex
	banks  map[string][]string
	order  map[string][]int // shuffled index cycle per locale
	cursor map[string]int
	rng    *rand.Rand
}

// NewProvider creates a provider with the built-in banks.
func NewProvider(seed int64) *Provider {
	banks := make(map[string][]string, len(defaultBanks))
	for loc, qs := range defaultBanks {
		banks[loc] = append([]string(nil), qs...)
	}
	return &Provider{
		banks:  banks,
		order:  make(map[string][]int),
		cursor: make(map[string]int),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// LoadBankFile merges locale banks from a JSON file mapping locale codes
// to question lists. Entries for unsupported locales are rejected.
func (p *Provider) LoadBankFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("prompts: read bank file: %w", err)
	}

	var banks map[string][]string
	if err := json.Unmarshal(data, &banks); err != nil {
		return fmt.Errorf("prompts: parse bank file: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for loc, qs := range banks {
		if !Supported(loc) {
			return fmt.Errorf("prompts: unsupported locale %q in bank file", loc)
		}
		if len(qs) == 0 {
			continue
		}
		p.banks[loc] = append([]string(nil), qs...)
		delete(p.order, loc)
		delete(p.cursor, loc)
	}
	return nil
}

// Supported reports whether locale is in the supported set.
func Supported(locale string) bool {
	locale = strings.ToLower(locale)
	for _, l := range SupportedLocales {
		if l == locale {
			return true
		}
	}
	return false
}

// QuestionsFor returns the ordered question sequence for one prompt: a
// rotating lead question from the locale's bank followed by the fixed
// follow-ups. Locales without a bank fall back to "en".
func (p *Provider) QuestionsFor(locale string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	locale = strings.ToLower(locale)
	if _, ok := p.banks[locale]; !ok {
		locale = "en"
	}
	bank := p.banks[locale]

	lead := bank[p.nextIndex(locale, len(bank))]

	out := make([]string, 0, 1+len(fixedQuestions))
	out = append(out, lead)
	out = append(out, fixedQuestions...)
	return out
}

// nextIndex advances the shuffled cycle for a locale, reshuffling once the
// bank is exhausted so no question repeats within a cycle.
func (p *Provider) nextIndex(locale string, n int) int {
	order, ok := p.order[locale]
	if !ok || p.cursor[locale] >= len(order) || len(order) != n {
		order = p.rng.Perm(n)
		p.order[locale] = order
		p.cursor[locale] = 0
	}
	i := order[p.cursor[locale]]
	p.cursor[locale]++
	return i
}
