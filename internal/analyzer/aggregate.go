package analyzer

import (
	"fmt"
	"strings"

	"lettercast/internal/prompts"
	"lettercast/internal/services"
	"lettercast/internal/services/gemini"
)

// aggregate folds the prompt responses into the structured result. Required
// responses must be present and well formed; optional ones degrade into
// MissingFields entries.
func (a *Analyzer) aggregate(result *Result, responses map[string]string) error {
	takeaways := parseBullets(responses[prompts.StepTakeaways])
	if len(takeaways) == 0 {
		return services.Wrap(services.ErrAggregation, string(StateAggregating), "parse takeaways",
			"response contains no bullet items", nil)
	}
	result.Takeaways = takeaways

	body := cleanNewsletterBody(responses[prompts.StepNewsletter])
	if body == "" {
		return services.Wrap(services.ErrAggregation, string(StateAggregating), "validate newsletter",
			"empty newsletter body", nil)
	}
	if missing := prompts.MissingSections(body); len(missing) > 0 {
		return services.Wrap(services.ErrAggregation, string(StateAggregating), "validate newsletter",
			fmt.Sprintf("missing required sections: %s", strings.Join(missing, ", ")), nil)
	}
	result.Newsletter = body

	if teaserRaw, ok := responses[prompts.StepTeaser]; ok {
		var parsed struct {
			Subject string `json:"subject"`
			Teaser  string `json:"teaser"`
		}
		if err := gemini.DecodeModelJSON(teaserRaw, &parsed); err != nil || strings.TrimSpace(parsed.Subject) == "" {
			result.MissingFields = append(result.MissingFields, "subject", "teaser")
		} else {
			result.Subject = strings.TrimSpace(parsed.Subject)
			result.Teaser = strings.TrimSpace(parsed.Teaser)
		}
	}

	return nil
}

// parseBullets extracts bullet items from a model response, tolerating the
// usual marker variations.
func parseBullets(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, marker := range []string{"- ", "* ", "• "} {
			if strings.HasPrefix(trimmed, marker) {
				if item := strings.TrimSpace(trimmed[len(marker):]); item != "" {
					items = append(items, item)
				}
				break
			}
		}
	}
	return items
}

// cleanNewsletterBody strips code fences and wrapper tags some responses
// arrive in.
func cleanNewsletterBody(text string) string {
	body := strings.TrimSpace(text)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```markdown")
		body = strings.TrimPrefix(body, "```")
		if idx := strings.LastIndex(body, "```"); idx >= 0 {
			body = body[:idx]
		}
	}
	for _, tag := range []string{"<NEWSLETTER>", "</NEWSLETTER>"} {
		body = strings.ReplaceAll(body, tag, "")
	}
	return strings.TrimSpace(body)
}
