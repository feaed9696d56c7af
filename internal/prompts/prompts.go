package prompts

import (
	"fmt"
	"strings"
	"text/template"

	"lettercast/internal/services"
)

// Step identifiers, also used as keys when feeding one step's response into
// a later step's template.
const (
	StepTakeaways  = "takeaways"
	StepNewsletter = "newsletter"
	StepTeaser     = "teaser"
)

// Shape declares how a step's response should be interpreted downstream.
type Shape int

const (
	// ShapeText is free-form prose.
	ShapeText Shape = iota
	// ShapeJSON must decode as a JSON object.
	ShapeJSON
)

// Step is one entry in the fixed prompt sequence. DependsOn names earlier
// steps whose responses the template consumes; a step never depends on a
// later one.
type Step struct {
	ID         string
	Required   bool
	DependsOn  []string
	WantsAudio bool
	Shape      Shape
	template   *template.Template
}

// Input carries episode metadata and prior step responses into a template.
type Input struct {
	Title       string
	Description string
	Prior       map[string]string
}

// RequiredSections are the headings every assembled newsletter body must
// contain, in order of appearance.
var RequiredSections = []string{
	"TLDR",
	"BIG PICTURE",
	"HIGHLIGHTS",
	"QUOTED",
	"WORTH YOUR TIME IF",
}

// Sequence returns the ordered prompt steps for one episode run. The slice is
// freshly allocated; callers may not mutate shared state through it.
func Sequence() []Step {
	return []Step{
		{
			ID:         StepTakeaways,
			Required:   true,
			WantsAudio: true,
			Shape:      ShapeText,
			template:   takeawaysTemplate,
		},
		{
			ID:         StepNewsletter,
			Required:   true,
			DependsOn:  []string{StepTakeaways},
			WantsAudio: true,
			Shape:      ShapeText,
			template:   newsletterTemplate,
		},
		{
			ID:        StepTeaser,
			Required:  false,
			DependsOn: []string{StepNewsletter},
			Shape:     ShapeJSON,
			template:  teaserTemplate,
		},
	}
}

// Render produces the prompt text for this step. Missing dependencies are a
// validation error: the sequence runner must supply every response the step
// declared it needs.
func (s Step) Render(in Input) (string, error) {
	for _, dep := range s.DependsOn {
		if strings.TrimSpace(in.Prior[dep]) == "" {
			return "", services.Wrap(services.ErrValidation, "prompting", "render "+s.ID,
				fmt.Sprintf("missing response for dependency %q", dep), nil)
		}
	}
	var sb strings.Builder
	if err := s.template.Execute(&sb, in); err != nil {
		return "", services.Wrap(services.ErrValidation, "prompting", "render "+s.ID, "execute template", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// MissingSections reports which required newsletter headings are absent from
// the body, preserving RequiredSections order.
func MissingSections(body string) []string {
	upper := strings.ToUpper(body)
	var missing []string
	for _, section := range RequiredSections {
		if !strings.Contains(upper, section) {
			missing = append(missing, section)
		}
	}
	return missing
}
