package corpus

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"simple", "Bonjour le monde", []string{"bonjour", "le", "monde"}},
		{"punctuation", "Hello, world!", []string{"hello", ",", "world", "!"}},
		{"apostrophe", "L'homme mange.", []string{"l'homme", "mange", "."}},
		{"hyphen", "Peut-être demain", []string{"peut-être", "demain"}},
		{"trailing apostrophe", "dogs' ", []string{"dogs", "'"}},
		{"digits", "Room 101", []string{"room", "101"}},
		{"empty", "   ", nil},
		{"accents", "ÉTÉ", []string{"été"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestAlign(t *testing.T) {
	fr := [][]string{{"le", "chat"}, {"bonjour"}}
	en := [][]string{{"the", "cat"}, {"hello"}}

	pairs, err := Align(fr, en, false)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].Source[1] != "chat" || pairs[0].Target[1] != "cat" {
		t.Errorf("unexpected forward pair: %+v", pairs[0])
	}

	rev, err := Align(fr, en, true)
	if err != nil {
		t.Fatalf("Align reverse failed: %v", err)
	}
	if rev[1].Source[0] != "hello" || rev[1].Target[0] != "bonjour" {
		t.Errorf("unexpected reverse pair: %+v", rev[1])
	}
}

func TestAlign_Mismatch(t *testing.T) {
	_, err := Align([][]string{{"a"}}, [][]string{{"b"}, {"c"}}, false)
	if !errors.Is(err, ErrInput) {
		t.Errorf("expected ErrInput, got %v", err)
	}
}

func TestAlign_EmptySides(t *testing.T) {
	pairs, err := Align([][]string{{}}, [][]string{{"x"}}, false)
	if err != nil {
		t.Fatalf("empty side should be accepted: %v", err)
	}
	if len(pairs[0].Source) != 0 {
		t.Errorf("expected empty source, got %v", pairs[0].Source)
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"fr_to_en", Direction{"fr", "en"}, false},
		{"EN-FR", Direction{"en", "fr"}, false},
		{"fr", Direction{}, true},
		{"fr_to_fr", Direction{}, true},
		{"", Direction{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDirection(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDirection(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDirection(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}

	d := Direction{From: "fr", To: "en"}
	if d.String() != "fr_to_en" || d.Reverse().String() != "en_to_fr" {
		t.Errorf("unexpected rendering: %s / %s", d, d.Reverse())
	}
}

const sampleTMX = `<?xml version="1.0" encoding="UTF-8"?>
<tmx version="1.4">
  <header srclang="fr" datatype="plaintext"/>
  <body>
    <tu>
      <tuv xml:lang="fr"><seg>Bonjour le monde</seg></tuv>
      <tuv xml:lang="en"><seg>Hello world</seg></tuv>
    </tu>
    <tu>
      <tuv xml:lang="fr-FR"><seg>Le chat dort.</seg></tuv>
      <tuv xml:lang="EN-GB"><seg>The cat sleeps.</seg></tuv>
    </tu>
    <tu>
      <tuv xml:lang="fr"><seg>Seulement français</seg></tuv>
    </tu>
    <tu>
      <tuv xml:lang="fr"><seg>   </seg></tuv>
      <tuv xml:lang="en"><seg>Empty source</seg></tuv>
    </tu>
  </body>
</tmx>`

func TestLoadTMX(t *testing.T) {
	src, tgt, stats, err := LoadTMX(strings.NewReader(sampleTMX), "fr", "en", TMXOptions{})
	if err != nil {
		t.Fatalf("LoadTMX failed: %v", err)
	}

	if stats.Units != 4 || stats.Kept != 2 || stats.Skipped != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if len(src) != 2 || len(tgt) != 2 {
		t.Fatalf("expected 2 segments per side, got %d/%d", len(src), len(tgt))
	}
	if !reflect.DeepEqual(src[1], []string{"le", "chat", "dort", "."}) {
		t.Errorf("unexpected source tokens: %q", src[1])
	}
	if !reflect.DeepEqual(tgt[0], []string{"hello", "world"}) {
		t.Errorf("unexpected target tokens: %q", tgt[0])
	}
}

func TestLoadTMX_Limit(t *testing.T) {
	src, _, stats, err := LoadTMX(strings.NewReader(sampleTMX), "fr", "en", TMXOptions{Limit: 1})
	if err != nil {
		t.Fatalf("LoadTMX failed: %v", err)
	}
	if len(src) != 1 || stats.Kept != 1 {
		t.Errorf("expected 1 kept unit, got %d (%+v)", len(src), stats)
	}
}

type rejectVerifier struct{ reject string }

func (v rejectVerifier) Matches(text, iso string) bool {
	return !strings.Contains(strings.ToLower(text), v.reject)
}

func TestLoadTMX_Verifier(t *testing.T) {
	_, _, stats, err := LoadTMX(strings.NewReader(sampleTMX), "fr", "en",
		TMXOptions{Verifier: rejectVerifier{reject: "chat"}})
	if err != nil {
		t.Fatalf("LoadTMX failed: %v", err)
	}
	if stats.Kept != 1 {
		t.Errorf("expected verifier to drop one unit, got %+v", stats)
	}
}

func TestLoadTMX_Malformed(t *testing.T) {
	_, _, _, err := LoadTMX(strings.NewReader("<tmx><body><tu><tuv>"), "fr", "en", TMXOptions{})
	if !errors.Is(err, ErrInput) {
		t.Errorf("expected ErrInput for malformed TMX, got %v", err)
	}
}

func TestLoadParallel(t *testing.T) {
	src, tgt, err := LoadParallel(
		strings.NewReader("le chat\nbonjour\n"),
		strings.NewReader("the cat\nhello\n"),
	)
	if err != nil {
		t.Fatalf("LoadParallel failed: %v", err)
	}
	if len(src) != 2 || len(tgt) != 2 {
		t.Fatalf("expected 2 lines per side, got %d/%d", len(src), len(tgt))
	}

	_, _, err = LoadParallel(strings.NewReader("a\nb\n"), strings.NewReader("c\n"))
	if !errors.Is(err, ErrInput) {
		t.Errorf("expected ErrInput for line mismatch, got %v", err)
	}
}

func TestVocabulary(t *testing.T) {
	pairs := []SentencePair{
		{Source: []string{"le", "chat"}, Target: []string{"the", "cat"}},
		{Source: []string{"le", "chien"}, Target: []string{"the", "dog"}},
	}
	s, tg := Vocabulary(pairs)
	if s != 3 || tg != 3 {
		t.Errorf("Vocabulary = %d/%d, want 3/3", s, tg)
	}
}
