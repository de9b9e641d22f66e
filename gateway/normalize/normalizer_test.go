// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package normalize

import (
	"strings"
	"testing"
)

func TestStripCitations(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"assistant source marker", "Frutas são saudáveis【4:0†source】.", "Frutas são saudáveis."},
		{"numeric tag", "Comprovado em estudos[12] recentes.", "Comprovado em estudos recentes."},
		{"compound tag", "Veja[3:1] aqui.", "Veja aqui."},
		{"no markers", "Texto limpo.", "Texto limpo."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCitations(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripLinks(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare url removed", "Veja https://example.com/artigo para mais.", "Veja  para mais."},
		{"handle keeps name drops url", "Siga @nutri.ana (https://instagram.com/nutri.ana) hoje!", "Siga @nutri.ana hoje!"},
		{"plain handle untouched", "Fale com @nutri.ana hoje.", "Fale com @nutri.ana hoje."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripLinks(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripEmphasis(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bold", "Coma **frutas** todos os dias.", "Coma frutas todos os dias."},
		{"italic star", "Prefira *integrais* sempre.", "Prefira integrais sempre."},
		{"underscore bold", "Muito __importante__ mesmo.", "Muito importante mesmo."},
		{"unpaired bold marker dropped", "Fim do texto**", "Fim do texto"},
		{"malformed markdown tolerated", "**abre *mistura_ tudo", "abre *mistura_ tudo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripEmphasis(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateTokens(t *testing.T) {
	long := strings.Repeat("palavra ", 500)
	got := truncateTokens(long, 300)
	if n := len(strings.Fields(got)); n != 300 {
		t.Errorf("expected 300 tokens, got %d", n)
	}

	short := "só três palavras"
	if got := truncateTokens(short, 300); got != short {
		t.Errorf("short input must be unchanged, got %q", got)
	}
}

func TestReflowBulletsAndSentences(t *testing.T) {
	n := New(Config{})

	got := n.Normalize("Dicas: 1. Coma frutas. 2. Beba água. Isso ajuda muito. Obrigado!")
	if !strings.Contains(got, "\n- Coma frutas.") {
		t.Errorf("expected first bullet on its own line, got %q", got)
	}
	if !strings.Contains(got, "\n- Beba água.") {
		t.Errorf("expected second bullet on its own line, got %q", got)
	}
	if !strings.Contains(got, "muito.\n\nObrigado!") {
		t.Errorf("expected paragraph break after sentence, got %q", got)
	}
}

func TestReflowAbbreviationsDoNotSplit(t *testing.T) {
	n := New(Config{})

	got := n.Normalize("Converse com a Dra. Ana sobre sua dieta. Ela pode ajudar.")
	if strings.Contains(got, "Dra.\n\n") {
		t.Errorf("honorific must not force a paragraph break, got %q", got)
	}
	if !strings.Contains(got, "dieta.\n\nEla") {
		t.Errorf("real sentence boundary must break, got %q", got)
	}
}

func TestCollapseEmptyBullets(t *testing.T) {
	got := collapseEmptyBullets("- \n- primeira\n-\n- segunda\n")
	if strings.Contains(got, "-\n") || strings.Contains(got, "- \n") {
		t.Errorf("empty bullets must be removed, got %q", got)
	}
	if !strings.Contains(got, "- primeira") || !strings.Contains(got, "- segunda") {
		t.Errorf("non-empty bullets must survive, got %q", got)
	}
}

// Rules 1-4 are idempotent: running them again over their own output changes
// nothing. Re-flow (rule 5) is not strictly idempotent by design, because a
// second pass re-collapses the whitespace it introduced.
func TestStripRulesIdempotent(t *testing.T) {
	input := "Coma **frutas**【1†x】 e veja https://x.com [3] sempre. " + strings.Repeat("mais ", 400)

	once := truncateTokens(stripEmphasis(stripLinks(stripCitations(input))), 300)
	twice := truncateTokens(stripEmphasis(stripLinks(stripCitations(once))), 300)
	if once != twice {
		t.Errorf("rules 1-4 must be idempotent:\nonce:  %q\ntwice: %q", once, twice)
	}
}

func TestNormalizeNeverExceedsTokenCap(t *testing.T) {
	n := New(Config{MaxTokens: 300})

	inputs := []string{
		strings.Repeat("palavra ", 2000),
		strings.Repeat("1. item muito longo. ", 500),
		strings.Repeat("**negrito** https://a.b ", 400),
	}
	for _, input := range inputs {
		out := n.Normalize(input)
		if got := len(strings.Fields(out)); got > 300 {
			t.Errorf("output has %d tokens, cap is 300", got)
		}
	}
}

func TestNormalizeTotalOverHostileInput(t *testing.T) {
	n := New(Config{})

	// Must never panic, whatever the input
	inputs := []string{
		"",
		"   ",
		"【【【",
		"*** ___ ** _",
		"(((https://",
		strings.Repeat("【", 10000),
		"\x00\xff\xfe invalid bytes",
	}
	for _, input := range inputs {
		_ = n.Normalize(input)
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	n := New(Config{})
	if got := n.Normalize(""); got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
}
