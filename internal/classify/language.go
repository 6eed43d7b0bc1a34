package classify

import (
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// isChinese reports whether text is predominantly Chinese. Text needs a
// couple of Han characters before the detector is consulted.
func isChinese(text string) bool {
	han := 0
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			han++
		}
	}
	if han < 2 {
		return false
	}

	language, exists := getDetector().DetectLanguageOf(text)
	return exists && language == lingua.Chinese
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(lingua.English, lingua.Chinese, lingua.Spanish).
			Build()
	})
	return detector
}
