// Package detector identifies the language of corpus segments so that
// mislabelled translation units can be dropped before training.
package detector

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// minDetectLength is the rune count below which detection is unreliable;
// shorter texts are accepted without a check.
const minDetectLength = 20

type Detector struct {
	detector lingua.LanguageDetector
}

// New builds a detector restricted to the given ISO 639-1 codes. With fewer
// than two known codes it considers every language. Building is expensive;
// reuse the instance.
func New(isoCodes ...string) *Detector {
	var langs []lingua.Language
	for _, lang := range lingua.AllLanguages() {
		for _, code := range isoCodes {
			if strings.EqualFold(lang.IsoCode639_1().String(), code) {
				langs = append(langs, lang)
				break
			}
		}
	}

	builder := lingua.NewLanguageDetectorBuilder()
	var detector lingua.LanguageDetector
	if len(langs) >= 2 {
		detector = builder.FromLanguages(langs...).Build()
	} else {
		detector = builder.FromAllLanguages().Build()
	}

	return &Detector{detector: detector}
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if text == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return lang.IsoCode639_1().String(), true
}

// Matches reports whether text appears to be written in the language iso.
// Short texts and texts whose language cannot be determined pass.
func (d *Detector) Matches(text, iso string) bool {
	if iso == "" {
		return true
	}
	text = strings.TrimSpace(text)
	if len([]rune(text)) < minDetectLength {
		return true
	}

	detected, ok := d.DetectISO(text)
	if !ok {
		return true
	}
	return strings.EqualFold(detected, iso)
}
