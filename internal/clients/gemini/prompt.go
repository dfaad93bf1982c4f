package gemini

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/tickzen/internal/models"
)

type promptInput struct {
	Request   models.ContentRequest
	Bars      []models.PriceBar
	Headlines []models.Headline
}

// variationAngles rotate the framing of a republished article.
var variationAngles = []string{
	"lead with the risks before the opportunities",
	"frame the piece around what a long-term holder should watch",
	"open with the most recent headline and work back to the price action",
	"compare the recent move with the longer trend",
}

func buildPrompt(in promptInput) string {
	req := in.Request
	var sb strings.Builder

	switch req.ContentType {
	case models.ContentEarnings:
		fmt.Fprintf(&sb, "Write an earnings preview blog post about %s.\n", req.Ticker)
		sb.WriteString("Cover what the market expects, recent results, and what could move the stock after the report.\n")
	default:
		fmt.Fprintf(&sb, "Write a stock analysis blog post about %s.\n", req.Ticker)
		sb.WriteString("Cover recent price action, the trend, notable news, and key risks.\n")
	}

	sb.WriteString("Respond in Markdown. The first line must be a level-one heading with the post title. ")
	sb.WriteString("Use short sections with level-two headings. Do not give personal financial advice.\n")

	if req.Variation > 0 {
		angle := variationAngles[(req.Variation-1)%len(variationAngles)]
		fmt.Fprintf(&sb, "\nThis is rewrite #%d of an article already published on this site. "+
			"Use the same facts but a different title, structure and wording; %s.\n", req.Variation, angle)
	}

	if req.InternalLinking && req.SiteURL != "" {
		fmt.Fprintf(&sb, "\nWhere natural, link to related coverage on %s using relative links.\n", strings.TrimRight(req.SiteURL, "/"))
	}

	if summary := priceSummary(in.Bars); summary != "" {
		sb.WriteString("\nPrice data:\n")
		sb.WriteString(summary)
	}

	if len(in.Headlines) > 0 {
		sb.WriteString("\nRecent headlines:\n")
		for _, h := range in.Headlines {
			date := ""
			if !h.PublishedAt.IsZero() {
				date = h.PublishedAt.Format("2006-01-02") + " "
			}
			fmt.Fprintf(&sb, "- %s%s (%s sentiment)\n", date, h.Title, h.Sentiment)
		}
	}

	return sb.String()
}

func priceSummary(bars []models.PriceBar) string {
	if len(bars) < 2 {
		return ""
	}
	first, last := bars[0], bars[len(bars)-1]
	high, low := last.High, last.Low
	for _, b := range bars {
		high = max(high, b.High)
		low = min(low, b.Low)
	}
	change := 0.0
	if first.Close != 0 {
		change = (last.Close - first.Close) / first.Close * 100
	}
	return fmt.Sprintf("- Last close (%s): $%.2f\n- Change since %s: %.1f%%\n- Range: $%.2f to $%.2f\n",
		last.Date.Format("2006-01-02"), last.Close,
		first.Date.Format("2006-01-02"), change,
		low, high)
}
