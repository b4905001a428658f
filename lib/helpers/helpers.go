package helpers

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var markdownEscaper = func() *strings.Replacer {
	charactersToEscape := []string{"\\", ".", "-", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "=", "|", "{", "}", "!"}

	pairs := make([]string, 0, len(charactersToEscape)*2)
	for _, char := range charactersToEscape {
		pairs = append(pairs, char, "\\"+char)
	}
	return strings.NewReplacer(pairs...)
}()

func EscapeMarkdownV2(text string) string {
	return markdownEscaper.Replace(text)
}

// FormatPriceUS prints a price with US thousand separators and a precision
// that keeps sub-dollar instruments readable.
func FormatPriceUS(price decimal.Decimal) string {
	decimals := 2

	abs := price.Abs()
	if abs.IsPositive() && abs.LessThan(decimal.NewFromFloat(0.01)) {
		decimals = 8
	} else if abs.IsPositive() && abs.LessThan(decimal.NewFromInt(1)) {
		decimals = 4
	}

	p := message.NewPrinter(language.English)
	return p.Sprintf("%.*f", decimals, price.Round(int32(decimals)).InexactFloat64())
}

// FormatAge renders how long ago t was, e.g. "3 hours ago".
func FormatAge(t time.Time) string {
	return humanize.Time(t)
}
