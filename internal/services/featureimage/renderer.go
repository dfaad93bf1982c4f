// Package featureimage renders price chart images used as post feature media.
package featureimage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/tickzen/internal/interfaces"
	"github.com/bobmcallan/tickzen/internal/models"
)

const (
	defaultDays   = 180
	movingAverage = 20
	maxTitleRunes = 70
)

// Renderer draws a close price chart for a ticker.
type Renderer struct {
	market interfaces.MarketDataClient
	days   int
	logger arbor.ILogger
}

var _ interfaces.ImageGenerator = (*Renderer)(nil)

// NewRenderer creates a Renderer over the given price source.
func NewRenderer(market interfaces.MarketDataClient, logger arbor.ILogger) *Renderer {
	return &Renderer{market: market, days: defaultDays, logger: logger}
}

// RenderFeatureImage returns a PNG chart of the ticker's recent closes.
func (r *Renderer) RenderFeatureImage(ctx context.Context, ticker, title string) ([]byte, error) {
	bars, err := r.market.GetPriceHistory(ctx, ticker, r.days)
	if err != nil {
		return nil, fmt.Errorf("failed to get price history for %s: %w", ticker, err)
	}
	png, err := RenderPriceChart(ticker, title, bars)
	if err != nil {
		return nil, err
	}
	r.logger.Debug().Str("ticker", ticker).Int("bars", len(bars)).Int("bytes", len(png)).Msg("Feature image rendered")
	return png, nil
}

// RenderPriceChart renders closes plus a 20-day moving average as a 1200x628 PNG.
func RenderPriceChart(ticker, title string, bars []models.PriceBar) ([]byte, error) {
	if len(bars) < 2 {
		return nil, fmt.Errorf("need at least 2 price bars for %s, got %d", ticker, len(bars))
	}

	xValues := make([]time.Time, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		xValues[i] = b.Date
		closes[i] = b.Close
	}

	closeSeries := chart.TimeSeries{
		Name: ticker,
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"),
			StrokeWidth: 3,
			FillColor:   drawing.ColorFromHex("2563eb").WithAlpha(32),
		},
		XValues: xValues,
		YValues: closes,
	}

	series := []chart.Series{closeSeries}
	if len(bars) >= movingAverage {
		series = append(series, &chart.SMASeries{
			Name: fmt.Sprintf("%d-day average", movingAverage),
			Style: chart.Style{
				StrokeColor:     drawing.ColorFromHex("f59e0b"),
				StrokeWidth:     2,
				StrokeDashArray: []float64{6.0, 3.0},
			},
			InnerSeries: closeSeries,
			Period:      movingAverage,
		})
	}

	graph := chart.Chart{
		Title:  chartTitle(ticker, title),
		Width:  1200,
		Height: 628,
		Background: chart.Style{
			Padding: chart.Box{Top: 60, Left: 20, Right: 30, Bottom: 20},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.2f", f)
				}
				return ""
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

func chartTitle(ticker, title string) string {
	if title == "" {
		return ticker
	}
	runes := []rune(title)
	if len(runes) > maxTitleRunes {
		title = string(runes[:maxTitleRunes-3]) + "..."
	}
	return title
}
