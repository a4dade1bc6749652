package flow

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ZapDesk/ZapDesk/internal/models"
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// dateLayouts lists the accepted date formats, day-first layouts before
// ISO ones so that ambiguous inputs resolve the Brazilian way.
var dateLayouts = []string{
	"02/01/2006",
	"02/01/06",
	"02-01-2006",
	"2006-01-02",
	"02/01/2006 15:04",
	"2006-01-02 15:04",
}

// ValidateInput reports whether a reply satisfies the given validation
// kind. Blank input never passes a non-empty kind.
func ValidateInput(text string, kind models.ValidationKind) bool {
	trimmed := strings.TrimSpace(text)

	switch kind {
	case models.ValidationNone, "":
		return true
	case models.ValidationEmail:
		return emailPattern.MatchString(trimmed)
	case models.ValidationPhone:
		return validPhone(trimmed)
	case models.ValidationNumber:
		return validNumber(trimmed)
	case models.ValidationDate:
		return validDate(trimmed)
	default:
		return true
	}
}

func validPhone(text string) bool {
	digits := 0
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 8
}

func validNumber(text string) bool {
	normalized := strings.ReplaceAll(text, ",", ".")
	f, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return false
	}
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

func validDate(text string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, text); err == nil {
			return true
		}
	}
	return false
}
