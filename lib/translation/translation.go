package translation

import (
	"strings"

	"github.com/leonelquinteros/gotext"
)

const defaultLanguage = "en"

// Configure loads the message catalog for lang from localesDir.
// Missing catalogs are fine: messages then fall back to their English ids.
func Configure(localesDir, lang string) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = defaultLanguage
	}
	gotext.Configure(localesDir, lang, "default")
}

// GetLanguage reports the catalog language in use, "en" when none was set.
func GetLanguage() string {
	switch lang := gotext.GetLanguage(); lang {
	case "", "und":
		return defaultLanguage
	default:
		return lang
	}
}

func Translate(msgID string, vars ...interface{}) string {
	return gotext.Get(msgID, vars...)
}
