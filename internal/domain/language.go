package domain

import (
	"strings"

	"golang.org/x/text/language"
)

// Language is the content language of a game.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageFrench  Language = "fr"
)

// DefaultLanguage is used for new games unless configured otherwise.
const DefaultLanguage = LanguageEnglish

// Languages lists every language the content library ships.
var Languages = []Language{LanguageEnglish, LanguageFrench}

var supportedTags = []language.Tag{
	language.English,
	language.French,
}

// ParseLanguage normalizes a BCP 47 tag ("fr-CA", "EN") to a supported Language.
func ParseLanguage(raw string) (Language, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrUnsupportedLanguage
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return "", ErrUnsupportedLanguage
	}
	base, conf := tag.Base()
	if conf != language.Exact {
		return "", ErrUnsupportedLanguage
	}
	for _, supported := range supportedTags {
		if b, _ := supported.Base(); b == base {
			return Language(b.String()), nil
		}
	}
	return "", ErrUnsupportedLanguage
}
