package bidding

import (
	"regexp"
	"strings"

	"github.com/abrezinsky/autobid/internal/models"
)

var clashPattern = regexp.MustCompile(`(?is)time.*clashed`)

// ClassifyReply maps the portal's reply text to an outcome kind.
// No reply at all counts as success; the portal only raises an alert on errors.
func ClassifyReply(text string) models.OutcomeKind {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.OutcomeSuccess
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "valid class combination"):
		return models.OutcomeInvalidCombination
	case clashPattern.MatchString(text):
		return models.OutcomeScheduleClash
	case strings.Contains(lower, "exceeded the maximum number of credit hours"):
		return models.OutcomeCreditHourCapExceeded
	}
	return models.OutcomeAmbiguousServerReply
}
