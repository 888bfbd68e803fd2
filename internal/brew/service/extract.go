package service

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcPolicy   = bluemonday.UGCPolicy()
	stripPolicy = bluemonday.StripTagsPolicy()
	htmlMarker  = regexp.MustCompile(`(?i)<(html|body|article|div|p|h[1-6]|ul|ol|section)[\s>]`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)
	spaceRuns   = regexp.MustCompile(`[ \t\r\f\v]+`)
	baseURL, _  = url.Parse("http://localhost/")
)

type extracted struct {
	Title string
	Text  string
}

func looksLikeHTML(s string) bool {
	return htmlMarker.MatchString(s)
}

// extractHTML sanitizes raw HTML and pulls out the main readable text. When
// readability finds no article the tag-stripped document is used instead.
func extractHTML(raw string) (extracted, error) {
	cleaned := ugcPolicy.Sanitize(raw)
	if strings.TrimSpace(cleaned) == "" {
		return extracted{}, fmt.Errorf("no content left after sanitizing")
	}
	article, err := readability.FromReader(strings.NewReader(cleaned), baseURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return extracted{Title: strings.TrimSpace(article.Title), Text: tidyText(article.TextContent)}, nil
	}
	return extracted{Text: tidyText(html.UnescapeString(stripPolicy.Sanitize(cleaned)))}, nil
}

func tidyText(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRuns.ReplaceAllString(l, " "))
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
