// Package i18n resolves the learner's language and exposes localized
// printers backed by the embedded message catalogs.
package i18n

import (
	"strings"

	"github.com/louisbranch/reverify/internal/platform/i18n/catalog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Localizer formats catalog keys. *message.Printer satisfies it.
type Localizer interface {
	Sprintf(key message.Reference, a ...any) string
}

var (
	supportedTags = []language.Tag{
		language.MustParse("en-US"),
		language.MustParse("pt-BR"),
	}
	matcher = language.NewMatcher(supportedTags)
)

func init() {
	// Registers catalog strings with x/text before any printer is built.
	_ = catalog.Default()
}

// SupportedTags returns the languages with a catalog, default first.
func SupportedTags() []language.Tag {
	out := make([]language.Tag, len(supportedTags))
	copy(out, supportedTags)
	return out
}

// DefaultTag returns the fallback language.
func DefaultTag() language.Tag {
	return supportedTags[0]
}

// MatchTags picks the closest supported language for the preference list.
func MatchTags(tags []language.Tag) language.Tag {
	if len(tags) == 0 {
		return DefaultTag()
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return DefaultTag()
	}
	return supportedTags[index]
}

// ParseTag parses value and maps it onto a supported language.
func ParseTag(value string) (language.Tag, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return language.Und, false
	}
	tag, err := language.Parse(value)
	if err != nil {
		return language.Und, false
	}
	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return language.Und, false
	}
	return supportedTags[index], true
}

// Printer returns a message printer for tag.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}

// Text localizes key, returning fallback when the catalog has no entry.
func Text(loc Localizer, key string, fallback string) string {
	if loc == nil {
		return fallback
	}
	localized := strings.TrimSpace(loc.Sprintf(key))
	if localized == "" || localized == key {
		return fallback
	}
	return localized
}
