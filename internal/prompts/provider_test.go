package prompts

import (
	"os"
	"path/filepath"
	"testing"
)

func TestQuestionsFor_Shape(t *testing.T) {
	p := NewProvider(1)

	qs := p.QuestionsFor("en")
	if len(qs) != 1+len(fixedQuestions) {
		t.Fatalf("got %d questions, want %d", len(qs), 1+len(fixedQuestions))
	}
	for i, fixed := range fixedQuestions {
		if qs[1+i] != fixed {
			t.Errorf("question %d = %q, want fixed follow-up %q", 1+i, qs[1+i], fixed)
		}
	}
}

func TestQuestionsFor_NoRepeatWithinCycle(t *testing.T) {
	p := NewProvider(42)

	n := len(defaultBanks["en"])
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		lead := p.QuestionsFor("en")[0]
		if seen[lead] {
			t.Fatalf("lead question %q repeated within one cycle", lead)
		}
		seen[lead] = true
	}
	if len(seen) != n {
		t.Fatalf("cycle covered %d questions, want %d", len(seen), n)
	}

	// Next cycle starts over and may repeat freely.
	if lead := p.QuestionsFor("en")[0]; !seen[lead] {
		t.Fatalf("second cycle produced unknown question %q", lead)
	}
}

func TestQuestionsFor_FallbackLocale(t *testing.T) {
	p := NewProvider(1)

	for _, locale := range []string{"vi", "xx", "EN", ""} {
		qs := p.QuestionsFor(locale)
		if len(qs) == 0 {
			t.Fatalf("locale %q returned no questions", locale)
		}
	}
}

func TestLoadBankFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "banks.json")
	content := `{"vi": ["Câu hỏi một?", "Câu hỏi hai?"], "es": ["¿Pregunta?"]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewProvider(1)
	if err := p.LoadBankFile(path); err != nil {
		t.Fatalf("LoadBankFile: %v", err)
	}

	lead := p.QuestionsFor("vi")[0]
	if lead != "Câu hỏi một?" && lead != "Câu hỏi hai?" {
		t.Errorf("vi lead = %q, want a question from the loaded bank", lead)
	}
	if lead := p.QuestionsFor("es")[0]; lead != "¿Pregunta?" {
		t.Errorf("es lead = %q, want the single loaded question", lead)
	}
}

func TestLoadBankFile_Errors(t *testing.T) {
	p := NewProvider(1)

	if err := p.LoadBankFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(bad, []byte(`{"klingon": ["nuqneH?"]}`), 0o644)
	if err := p.LoadBankFile(bad); err == nil {
		t.Error("expected error for unsupported locale")
	}
}

func TestSupported(t *testing.T) {
	tests := []struct {
		locale string
		want   bool
	}{
		{"en", true},
		{"EN", true},
		{"vi", true},
		{"xx", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Supported(tt.locale); got != tt.want {
			t.Errorf("Supported(%q) = %v, want %v", tt.locale, got, tt.want)
		}
	}
}
