package prompts

import "text/template"

var takeawaysTemplate = template.Must(template.New(StepTakeaways).Parse(`You are an expert podcast analyst. Listen carefully to the attached audio of the episode "{{.Title}}".
{{- if .Description}}

Episode description:
{{.Description}}
{{- end}}

Extract the key takeaways as a bulleted list. For each takeaway:
- Lead with the core claim or insight in one sentence.
- Note who said it when the speaker is identifiable.
- Prefer concrete facts, numbers, and recommendations over vague themes.

List between five and twelve takeaways. Use a "- " bullet per takeaway and no other formatting.`))

var newsletterTemplate = template.Must(template.New(StepNewsletter).Parse(`Using the attached episode audio and the takeaways below, write a newsletter issue about "{{.Title}}".

Takeaways:
{{index .Prior "takeaways"}}

The newsletter body must contain exactly these sections, in this order, each as a heading:

TLDR - two or three sentences capturing the episode.
BIG PICTURE - why this conversation matters now.
HIGHLIGHTS - the strongest moments, one short paragraph each.
QUOTED - one or two verbatim quotes worth repeating, with attribution.
WORTH YOUR TIME IF - who should listen, as a short list.

Write in a direct, conversational voice. Do not invent content that is not in the audio. Return only the newsletter body.`))

var teaserTemplate = template.Must(template.New(StepTeaser).Parse(`Based on the newsletter below, write an email subject line and a one-sentence teaser.

Newsletter:
{{index .Prior "newsletter"}}

Respond with a JSON object of exactly this shape and nothing else:
{"subject": "...", "teaser": "..."}`))
