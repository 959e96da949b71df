package i18n

import (
	"strings"

	"github.com/cloudfoundry/jibber_jabber"
	"github.com/imdario/mergo"
	"github.com/sirupsen/logrus"
)

// NewTranslationSet creates a translation set for the detected language,
// falling back to English for any string a translation doesn't cover.
func NewTranslationSet(log *logrus.Entry) *TranslationSet {
	language := detectLanguage(jibber_jabber.DetectLanguage)
	log.Info("language: " + language)

	baseSet := englishSet()
	for languageCode, translationSet := range translationSets() {
		if strings.HasPrefix(language, languageCode) {
			_ = mergo.Merge(&translationSet, baseSet)
			return &translationSet
		}
	}
	return &baseSet
}

// translationSets returns the non-English translation sets. Currently empty:
// the strings are compiled in, so adding a language is a new file in this
// package plus an entry here.
func translationSets() map[string]TranslationSet {
	return map[string]TranslationSet{}
}

// EnglishTranslationSet is the fallback set, for components constructed
// without one.
func EnglishTranslationSet() *TranslationSet {
	set := englishSet()
	return &set
}

// detectLanguage extracts user language from environment
func detectLanguage(langDetector func() (string, error)) string {
	if userLang, err := langDetector(); err == nil {
		return userLang
	}
	return "C"
}
