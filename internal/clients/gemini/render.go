package gemini

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/bobmcallan/tickzen/internal/models"
)

const maxExcerptRunes = 280

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
)

// renderArticle splits the title from the body, converts the body to HTML
// and counts its visible words.
func renderArticle(ticker, md string) (*models.Article, int, error) {
	md = stripFence(strings.TrimSpace(md))
	title, body := splitTitle(md)
	if title == "" {
		title = fmt.Sprintf("%s Stock Analysis", ticker)
	}

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return nil, 0, fmt.Errorf("failed to render markdown: %w", err)
	}
	html := buf.String()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse rendered article: %w", err)
	}
	words := len(strings.Fields(doc.Text()))

	excerpt := strings.TrimSpace(doc.Find("p").First().Text())
	if r := []rune(excerpt); len(r) > maxExcerptRunes {
		excerpt = strings.TrimSpace(string(r[:maxExcerptRunes-3])) + "..."
	}

	return &models.Article{Title: title, HTML: html, Excerpt: excerpt}, words, nil
}

// splitTitle takes the first level-one heading as the title.
func splitTitle(md string) (string, string) {
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "# ") {
			title := strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			return title, strings.Join(lines[i+1:], "\n")
		}
		break
	}
	return "", md
}

// stripFence removes a ```markdown wrapper some responses arrive in.
func stripFence(md string) string {
	if !strings.HasPrefix(md, "```") {
		return md
	}
	if nl := strings.Index(md, "\n"); nl >= 0 {
		md = md[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(md), "```"))
}
