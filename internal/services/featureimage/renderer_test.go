package featureimage

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tickzen/internal/common"
	"github.com/bobmcallan/tickzen/internal/models"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

type mockMarket struct {
	bars []models.PriceBar
	err  error
	days int
}

func (m *mockMarket) GetPriceHistory(_ context.Context, _ string, days int) ([]models.PriceBar, error) {
	m.days = days
	return m.bars, m.err
}

func (m *mockMarket) GetHeadlines(_ context.Context, _ string, _ int) ([]models.Headline, error) {
	return nil, nil
}

func makeBars(n int) []models.PriceBar {
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, n)
	for i := range bars {
		c := 100 + float64(i%7) - float64(i)/10
		bars[i] = models.PriceBar{Date: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return bars
}

func TestRenderPriceChart_PNG(t *testing.T) {
	data, err := RenderPriceChart("AAPL", "Apple earnings preview", makeBars(60))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}

func TestRenderPriceChart_ShortHistoryWithoutAverage(t *testing.T) {
	data, err := RenderPriceChart("AAPL", "", makeBars(5))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}

func TestRenderPriceChart_TooFewBars(t *testing.T) {
	_, err := RenderPriceChart("AAPL", "", makeBars(1))
	assert.Error(t, err)
}

func TestRenderer_UsesMarketData(t *testing.T) {
	market := &mockMarket{bars: makeBars(30)}
	r := NewRenderer(market, common.NewSilentLogger())

	data, err := r.RenderFeatureImage(context.Background(), "MSFT", "Microsoft")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
	assert.Equal(t, defaultDays, market.days)
}

func TestRenderer_MarketError(t *testing.T) {
	r := NewRenderer(&mockMarket{err: errors.New("quota exceeded")}, common.NewSilentLogger())
	_, err := r.RenderFeatureImage(context.Background(), "MSFT", "")
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestChartTitle(t *testing.T) {
	assert.Equal(t, "AAPL", chartTitle("AAPL", ""))
	long := strings.Repeat("x", 100)
	got := chartTitle("AAPL", long)
	assert.Len(t, []rune(got), maxTitleRunes)
	assert.True(t, strings.HasSuffix(got, "..."))
}
