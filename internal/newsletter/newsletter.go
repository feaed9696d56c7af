package newsletter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"lettercast/internal/analyzer"
	"lettercast/internal/services"
)

const stageName = "aggregating"

var titleCaser = cases.Title(language.English)

// Issue is a fully assembled newsletter ready to persist.
type Issue struct {
	Subject string
	Teaser  string
	Body    string
}

// Assemble renders the final newsletter markdown for a completed run.
func Assemble(result *analyzer.Result, date time.Time) Issue {
	var sb strings.Builder
	sb.WriteString("# Lettercast\n\n")
	sb.WriteString(fmt.Sprintf("#### %s\n\n", date.Format("January 2, 2006")))
	if result.Metadata.PodcastTitle != "" {
		sb.WriteString(fmt.Sprintf("*%s*\n\n", result.Metadata.PodcastTitle))
	}
	sb.WriteString(fmt.Sprintf("## %s\n\n", headingTitle(result.Metadata.Title)))
	if result.Teaser != "" {
		sb.WriteString(fmt.Sprintf("> %s\n\n", result.Teaser))
	}
	sb.WriteString(strings.TrimSpace(result.Newsletter))
	sb.WriteString("\n")

	return Issue{
		Subject: result.Subject,
		Teaser:  result.Teaser,
		Body:    sb.String(),
	}
}

// Write persists the issue under outputDir and returns the file path.
// Filenames embed the date and a slug of the episode title so repeated runs
// for different episodes on the same day never collide.
func Write(issue Issue, outputDir, episodeTitle string, date time.Time) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "write newsletter", outputDir, err)
	}
	path := filepath.Join(outputDir, Filename(date, episodeTitle))
	if err := os.WriteFile(path, []byte(issue.Body), 0o644); err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "write newsletter", path, err)
	}
	return path, nil
}

// Filename builds the canonical newsletter file name:
// lettercast_YYYYMMDD_<slug>.md.
func Filename(date time.Time, episodeTitle string) string {
	slug := Slugify(episodeTitle)
	if slug == "" {
		slug = "episode"
	}
	return fmt.Sprintf("lettercast_%s_%s.md", date.Format("20060102"), slug)
}

// Slugify lowercases the title and collapses everything that is not a letter
// or digit into single hyphens. Long slugs are cut at 60 characters.
func Slugify(title string) string {
	var sb strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				sb.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.Trim(sb.String(), "-")
	if len(slug) > 60 {
		slug = strings.Trim(slug[:60], "-")
	}
	return slug
}

// headingTitle normalizes shouting or all-lowercase titles for the issue
// heading; mixed-case titles pass through untouched.
func headingTitle(title string) string {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "Untitled Episode"
	}
	if trimmed == strings.ToUpper(trimmed) || trimmed == strings.ToLower(trimmed) {
		return titleCaser.String(strings.ToLower(trimmed))
	}
	return trimmed
}
