package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tickzen/internal/common"
	"github.com/bobmcallan/tickzen/internal/models"
	"github.com/bobmcallan/tickzen/internal/services/schedule"
	"github.com/bobmcallan/tickzen/internal/services/tickers"
)

const (
	testUser = "u1"
	testDay  = "2026-03-02"
)

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type harness struct {
	state     *memState
	content   *mockContent
	images    *mockImages
	uploader  *mockUploader
	publisher *mockPublisher
	statuses  *mockStatuses
	history   *mockHistory
	progress  *mockProgress
	lease     *mockLease
	files     *mockFileStore
	config    Config
}

func newHarness() *harness {
	return &harness{
		state:     newMemState(testDay),
		content:   &mockContent{},
		images:    &mockImages{},
		uploader:  &mockUploader{},
		publisher: &mockPublisher{},
		statuses:  newMockStatuses(),
		history:   &mockHistory{},
		progress:  &mockProgress{},
		lease:     newMockLease(),
		files:     &mockFileStore{files: map[string][]byte{}},
		config: Config{
			MaxPostsPerDay: 20,
			PostStatus:     "future",
			ContentTimeout: time.Second,
			ImageTimeout:   time.Second,
			UploadTimeout:  time.Second,
			PublishTimeout: time.Second,
			LeaseTTL:       time.Hour,
		},
	}
}

func (h *harness) service() *Service {
	clock := func() time.Time { return testNow }
	logger := common.NewSilentLogger()
	return NewService(Dependencies{
		State:     h.state,
		Tickers:   tickers.NewResolver(h.files, nil, logger),
		Content:   h.content,
		Images:    h.images,
		Uploader:  h.uploader,
		Publisher: h.publisher,
		Progress:  h.progress,
		Statuses:  h.statuses,
		History:   h.history,
		Lease:     h.lease,
		Schedule:  schedule.NewCalculator(schedule.WithClock(clock), schedule.WithSeed(42)),
	}, h.config, logger, WithClock(clock))
}

func testProfile(id string, authors ...string) models.ProfileConfig {
	p := models.ProfileConfig{
		ProfileID:     id,
		Name:          "Profile " + id,
		SiteURL:       "https://" + id + ".example.com",
		MinGapMinutes: 45,
		MaxGapMinutes: 68,
		CategoryID:    3,
	}
	for i, a := range authors {
		p.Authors = append(p.Authors, models.Author{Username: a, UserID: i + 1, AppPassword: "secret"})
	}
	return p
}

func manualRun(profile models.ProfileConfig, requested int, tickerList ...string) models.RunRequest {
	return models.RunRequest{
		RunID:           "run-1",
		UserID:          testUser,
		Profiles:        []models.ProfileConfig{profile},
		RequestedCounts: map[string]int{profile.ProfileID: requested},
		Overrides:       map[string]models.TickerOverride{profile.ProfileID: {Manual: tickerList}},
	}
}

func statuses(r *models.RunResult) []string {
	out := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out = append(out, o.Ticker+"="+o.Status)
	}
	return out
}

// --- worked example ---

func TestRun_TwoAuthorsRunCapOfTwo(t *testing.T) {
	h := newHarness()
	profile := testProfile("p", "A", "B")

	results, err := h.service().Run(context.Background(), manualRun(profile, 2, "AAPL", "MSFT", "TSLA"), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	r := results[0]

	assert.Equal(t, models.StatusCapped, r.Status)
	assert.True(t, r.Capped)
	assert.Equal(t, 2, r.Published)
	assert.Equal(t, []string{"AAPL=Scheduled", "MSFT=Scheduled"}, statuses(r))
	assert.Equal(t, []string{"AAPL", "MSFT"}, h.content.tickers())

	require.Len(t, h.publisher.requests, 2)
	first, second := h.publisher.requests[0], h.publisher.requests[1]
	assert.Equal(t, "A", first.Author.Username)
	assert.Equal(t, "B", second.Author.Username)
	assert.Equal(t, "future", first.Status)
	assert.Equal(t, 3, first.CategoryID)

	assert.False(t, first.ScheduledAt.Before(testNow.Add(time.Minute)))
	assert.False(t, first.ScheduledAt.After(testNow.Add(3*time.Minute)))
	gap := second.ScheduledAt.Sub(first.ScheduledAt)
	assert.GreaterOrEqual(t, gap, 45*time.Minute)
	assert.LessOrEqual(t, gap, 68*time.Minute)

	st := h.state.get("p")
	require.NotNil(t, st)
	assert.Equal(t, 2, st.PostsToday)
	assert.Equal(t, []string{"AAPL", "MSFT"}, st.PublishedTickersLog.Sorted())
	assert.Equal(t, 1, st.LastAuthorIndex)
	require.NotNil(t, st.LastSuccessfulScheduleTime)
	assert.True(t, st.LastSuccessfulScheduleTime.Equal(second.ScheduledAt))
	assert.Len(t, st.ProcessedToday, 2)
}

func TestRun_ScheduledOutcomeCarriesPostDetails(t *testing.T) {
	h := newHarness()
	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 1, "AAPL"), nil)
	require.NoError(t, err)

	out := results[0].Outcomes[0]
	assert.Equal(t, "A", out.Writer)
	assert.Equal(t, 1001, out.PostID)
	assert.NotEmpty(t, out.PostURL)
	require.NotNil(t, out.GeneratedAt)
	require.NotNil(t, out.PublishedAt)
	require.NotNil(t, out.ScheduledFor)
	assert.Equal(t, 101, h.publisher.requests[0].MediaID)
}

// --- no duplicate publish ---

func TestRun_AlreadyPublishedIsSkippedWithoutGeneration(t *testing.T) {
	h := newHarness()
	st := models.NewProfileState(testDay)
	st.PublishedTickersLog.Add("AAPL")
	st.PendingTickers = []string{"AAPL"}
	h.state.put("p", st)

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 5, "AAPL", "MSFT"), nil)
	require.NoError(t, err)
	r := results[0]

	assert.Equal(t, []string{"AAPL=" + models.StatusSkippedPublished, "MSFT=Scheduled"}, statuses(r))
	assert.Equal(t, []string{"MSFT"}, h.content.tickers())
	assert.Equal(t, 1, h.publisher.count())
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, models.StatusCompleted, r.Status)

	saved := h.state.get("p")
	assert.Equal(t, 0, saved.LastAuthorIndex, "skip must not consume an author")
	assert.NotContains(t, saved.PendingTickers, "AAPL")
}

func TestRun_PublishedTickerNeverRepublishedAcrossRuns(t *testing.T) {
	h := newHarness()
	svc := h.service()
	profile := testProfile("p", "A", "B")

	_, err := svc.Run(context.Background(), manualRun(profile, 5, "AAPL"), nil)
	require.NoError(t, err)
	results, err := svc.Run(context.Background(), manualRun(profile, 5, "AAPL"), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL"}, h.content.tickers())
	assert.Equal(t, 1, h.publisher.count())
	assert.Equal(t, []string{"AAPL=" + models.StatusSkippedPublished}, statuses(results[0]))
}

func TestRun_RepublishRequestsVariation(t *testing.T) {
	h := newHarness()
	st := models.NewProfileState(testDay)
	st.PublishedTickersLog.Add("AAPL")
	st.PublishedTickersLog.Add("MSFT")
	st.TickerPublishCount["MSFT"] = 2
	h.state.put("p", st)

	req := manualRun(testProfile("p", "A"), 5, "AAPL", "MSFT", "NVDA")
	req.Overrides["p"] = models.TickerOverride{Manual: []string{"AAPL", "MSFT", "NVDA"}, Republish: true}

	results, err := h.service().Run(context.Background(), req, nil)
	require.NoError(t, err)

	require.Len(t, h.content.requests, 3)
	assert.Equal(t, 1, h.content.requests[0].Variation)
	assert.Equal(t, 2, h.content.requests[1].Variation)
	assert.Equal(t, 0, h.content.requests[2].Variation)
	assert.Equal(t, 3, results[0].Published)

	saved := h.state.get("p")
	assert.Equal(t, 3, saved.TickerPublishCount["MSFT"])
}

// --- caps ---

func TestRun_DailyCapBoundsPostsToday(t *testing.T) {
	h := newHarness()
	h.config.MaxPostsPerDay = 3
	st := models.NewProfileState(testDay)
	st.PostsToday = 1
	h.state.put("p", st)

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 100, "A1", "A2", "A3", "A4", "A5"), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, results[0].Published)
	assert.Equal(t, 3, h.state.get("p").PostsToday)
	assert.True(t, results[0].Capped)
}

func TestRun_CapAlreadyReachedSkipsProfile(t *testing.T) {
	h := newHarness()
	h.config.MaxPostsPerDay = 2
	st := models.NewProfileState(testDay)
	st.PostsToday = 2
	h.state.put("p", st)

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 5, "AAPL"), nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusSkippedLimit, results[0].Status)
	assert.Empty(t, h.content.requests)
}

func TestRun_ZeroRequestedSkipsProfile(t *testing.T) {
	h := newHarness()
	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 0, "AAPL"), nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSkippedLimit, results[0].Status)
}

func TestRun_DailyTargetUsedWhenNoRequestedCount(t *testing.T) {
	h := newHarness()
	profile := testProfile("p", "A")
	profile.DailyTarget = 1
	req := manualRun(profile, 0, "AAPL", "MSFT")
	req.RequestedCounts = nil

	results, err := h.service().Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].Published)
	assert.Equal(t, models.StatusCapped, results[0].Status)
}

func TestRun_YesterdaysCountDoesNotBlockToday(t *testing.T) {
	h := newHarness()
	h.config.MaxPostsPerDay = 2
	st := models.NewProfileState("2026-03-01")
	st.PostsToday = 2
	h.state.put("p", st)

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 1, "AAPL"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].Published)
	assert.Equal(t, 1, h.state.get("p").PostsToday)
}

// --- halts ---

func TestRun_StopBeforeStartMakesNoCalls(t *testing.T) {
	h := newHarness()
	stop := stopFunc(func(string) bool { return true })

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 3, "AAPL", "MSFT"), stop)
	require.NoError(t, err)

	r := results[0]
	assert.Equal(t, models.StatusHalted, r.Status)
	assert.True(t, r.Halted)
	assert.Empty(t, r.Outcomes)
	assert.Empty(t, h.content.requests)
	assert.Zero(t, h.publisher.count())
}

func TestRun_StopBetweenTickers(t *testing.T) {
	h := newHarness()
	var stopped atomic.Bool
	h.publisher.fn = func(req models.PostRequest) (*models.PostResult, error) {
		stopped.Store(true)
		return &models.PostResult{PostID: 1, PostURL: "u"}, nil
	}
	stop := stopFunc(func(string) bool { return stopped.Load() })

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 3, "AAPL", "MSFT"), stop)
	require.NoError(t, err)

	r := results[0]
	assert.Equal(t, []string{"AAPL=Scheduled", "MSFT=" + models.StatusHalted}, statuses(r))
	assert.Equal(t, models.StatusHalted, r.Status)
	assert.Equal(t, 1, h.state.get("p").PostsToday)
}

func TestRun_StopAfterGeneration(t *testing.T) {
	h := newHarness()
	var stopped atomic.Bool
	h.content.fn = func(req models.ContentRequest) (*models.Article, error) {
		stopped.Store(true)
		return &models.Article{Title: "t", HTML: "<p>x</p>"}, nil
	}
	stop := stopFunc(func(string) bool { return stopped.Load() })

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 3, "AAPL", "MSFT"), stop)
	require.NoError(t, err)

	r := results[0]
	assert.Equal(t, []string{"AAPL=" + models.StatusHaltedAfterGen}, statuses(r))
	assert.True(t, r.Halted)
	assert.Zero(t, h.images.calls)
	assert.Zero(t, h.publisher.count())

	st := h.state.get("p")
	assert.Zero(t, st.PostsToday)
	assert.Empty(t, st.FailedTickers)
	assert.Equal(t, 0, st.LastAuthorIndex, "rotation is kept even when halted")
}

func TestRun_StopAfterImage(t *testing.T) {
	h := newHarness()
	var stopped atomic.Bool
	h.uploader.fn = func(filename string) (*models.MediaHandle, error) {
		stopped.Store(true)
		return &models.MediaHandle{ID: 7}, nil
	}
	stop := stopFunc(func(string) bool { return stopped.Load() })

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 3, "AAPL"), stop)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL=" + models.StatusHaltedAfterImage}, statuses(results[0]))
	assert.Zero(t, h.publisher.count())
}

func TestRun_CancelledContextHalts(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := h.service().Run(ctx, manualRun(testProfile("p", "A"), 3, "AAPL"), nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusHalted, results[0].Status)
	assert.Empty(t, h.content.requests)
}

func TestRun_StopIsPerProfile(t *testing.T) {
	h := newHarness()
	p1, p2 := testProfile("p1", "A"), testProfile("p2", "B")
	req := models.RunRequest{
		RunID:           "run-1",
		UserID:          testUser,
		Profiles:        []models.ProfileConfig{p1, p2},
		RequestedCounts: map[string]int{"p1": 1, "p2": 1},
		Overrides: map[string]models.TickerOverride{
			"p1": {Manual: []string{"AAPL"}},
			"p2": {Manual: []string{"MSFT"}},
		},
	}
	stop := stopFunc(func(id string) bool { return id == "p1" })

	results, err := h.service().Run(context.Background(), req, stop)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.StatusHalted, results[0].Status)
	assert.Equal(t, models.StatusCompleted, results[1].Status)
	assert.Equal(t, []string{"MSFT"}, h.content.tickers())
}

// --- failures ---

func TestRun_ContentFailureContinuesWithNextTicker(t *testing.T) {
	h := newHarness()
	h.content.fn = func(req models.ContentRequest) (*models.Article, error) {
		if req.Ticker == "AAPL" {
			return nil, errors.New("model overloaded")
		}
		return &models.Article{Title: req.Ticker, HTML: "<p>ok</p>"}, nil
	}

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A", "B"), 2, "AAPL", "MSFT"), nil)
	require.NoError(t, err)
	r := results[0]

	assert.Equal(t, []string{"AAPL=" + models.StatusFailedContent, "MSFT=Scheduled"}, statuses(r))
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, "B", h.publisher.requests[0].Author.Username, "failed ticker still advanced rotation")

	st := h.state.get("p")
	assert.Equal(t, []string{"AAPL"}, st.FailedTickers)
	assert.Equal(t, 1, st.PostsToday)
}

func TestRun_EmptyArticleIsContentFailure(t *testing.T) {
	h := newHarness()
	h.content.fn = func(models.ContentRequest) (*models.Article, error) {
		return &models.Article{Title: "t", HTML: "   "}, nil
	}

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 1, "AAPL"), nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailedContent, results[0].Outcomes[0].Status)
	assert.Zero(t, h.publisher.count())
}

func TestRun_PublishFailureQueuesRetry(t *testing.T) {
	h := newHarness()
	h.publisher.fn = func(req models.PostRequest) (*models.PostResult, error) {
		return nil, errors.New("401 unauthorized")
	}

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 2, "AAPL", "MSFT"), nil)
	require.NoError(t, err)
	r := results[0]

	assert.Equal(t, []string{"AAPL=" + models.StatusFailedPost, "MSFT=" + models.StatusFailedPost}, statuses(r))
	assert.Equal(t, models.StatusCompleted, r.Status)

	st := h.state.get("p")
	assert.Equal(t, []string{"AAPL", "MSFT"}, st.FailedTickers)
	assert.Zero(t, st.PostsToday)
	assert.Nil(t, st.LastSuccessfulScheduleTime)
}

func TestRun_ImageFailureIsNotFatal(t *testing.T) {
	h := newHarness()
	h.images.err = errors.New("no price data")

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 1, "AAPL"), nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusScheduled, results[0].Outcomes[0].Status)
	assert.Zero(t, h.publisher.requests[0].MediaID)
	assert.Zero(t, h.uploader.calls)
}

func TestRun_UploadFailureIsNotFatal(t *testing.T) {
	h := newHarness()
	h.uploader.fn = func(string) (*models.MediaHandle, error) { return nil, errors.New("413") }

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 1, "AAPL"), nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduled, results[0].Outcomes[0].Status)
	assert.Zero(t, h.publisher.requests[0].MediaID)
}

func TestRun_PanicInTickerIsIsolated(t *testing.T) {
	h := newHarness()
	h.content.fn = func(req models.ContentRequest) (*models.Article, error) {
		if req.Ticker == "AAPL" {
			panic("nil map")
		}
		return &models.Article{Title: req.Ticker, HTML: "<p>ok</p>"}, nil
	}

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 2, "AAPL", "MSFT"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL=" + models.StatusFailedInternal, "MSFT=Scheduled"}, statuses(results[0]))
	assert.Contains(t, h.state.get("p").FailedTickers, "AAPL")
}

// --- profile-level skips ---

func TestRun_NoAuthorsSkipsOnlyThatProfile(t *testing.T) {
	h := newHarness()
	req := models.RunRequest{
		UserID:          testUser,
		Profiles:        []models.ProfileConfig{testProfile("empty"), testProfile("p", "A")},
		RequestedCounts: map[string]int{"empty": 1, "p": 1},
		Overrides: map[string]models.TickerOverride{
			"empty": {Manual: []string{"AAPL"}},
			"p":     {Manual: []string{"MSFT"}},
		},
	}

	results, err := h.service().Run(context.Background(), req, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.StatusSkippedNoAuthors, results[0].Status)
	assert.Equal(t, 1, results[1].Published)
	assert.NotEmpty(t, results[0].RunID)
	assert.Equal(t, results[0].RunID, results[1].RunID)
}

func TestRun_InvalidProfileSkipped(t *testing.T) {
	h := newHarness()
	profile := testProfile("p", "A")
	profile.SiteURL = "not a url"

	results, err := h.service().Run(context.Background(), manualRun(profile, 1, "AAPL"), nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSkippedInvalid, results[0].Status)
	assert.Empty(t, h.content.requests)
}

func TestRun_NoTickersSkipped(t *testing.T) {
	h := newHarness()
	req := manualRun(testProfile("p", "A"), 1)
	req.Overrides = nil

	results, err := h.service().Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSkippedNoTickers, results[0].Status)
	assert.Equal(t, models.SourceSpreadsheet, results[0].Source)
}

func TestRun_AuthorIndexClampedToShrunkenList(t *testing.T) {
	h := newHarness()
	st := models.NewProfileState(testDay)
	st.LastAuthorIndex = 5
	h.state.put("p", st)

	req := manualRun(testProfile("p", "A", "B"), 1)
	req.Overrides = nil

	results, err := h.service().Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSkippedNoTickers, results[0].Status)
	assert.Equal(t, 1, h.state.get("p").LastAuthorIndex)
}

func TestRun_LeaseHeldByOtherRun(t *testing.T) {
	h := newHarness()
	h.lease.held[testUser+"/p"] = "other-run"

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 1, "AAPL"), nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSkippedInProgress, results[0].Status)
	assert.Empty(t, h.content.requests)
}

func TestRun_LeaseReleasedAfterProfile(t *testing.T) {
	h := newHarness()
	_, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 1, "AAPL"), nil)
	require.NoError(t, err)

	assert.Empty(t, h.lease.held)
	assert.Equal(t, []string{testUser + "/p"}, h.lease.released)
}

func TestRun_LeaseErrorProceedsWithWarning(t *testing.T) {
	h := newHarness()
	h.lease.err = errors.New("connection refused")

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 1, "AAPL"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].Published)
	assert.NotEmpty(t, results[0].Warnings)
}

// --- observability ---

func TestRun_EveryTerminalOutcomeRecordedExactlyOnce(t *testing.T) {
	h := newHarness()
	st := models.NewProfileState(testDay)
	st.PublishedTickersLog.Add("DONE")
	h.state.put("p", st)
	h.content.fn = func(req models.ContentRequest) (*models.Article, error) {
		if req.Ticker == "BAD" {
			return nil, errors.New("boom")
		}
		return &models.Article{Title: req.Ticker, HTML: "<p>ok</p>"}, nil
	}

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 5, "DONE", "BAD", "GOOD"), nil)
	require.NoError(t, err)
	require.Len(t, results[0].Outcomes, 3)

	for _, ticker := range []string{"DONE", "BAD", "GOOD"} {
		recs := h.statuses.records["p/"+ticker]
		require.Len(t, recs, 1, ticker)
		assert.Equal(t, "run-1", recs[0].RunID)
	}
	assert.Len(t, h.progress.terminal(), 3)
}

func TestRun_StatusRecorderErrorDoesNotAbort(t *testing.T) {
	h := newHarness()
	h.statuses.err = errors.New("write conflict")

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 2, "AAPL", "MSFT"), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, results[0].Published)
}

func TestRun_HistoryAppendedPerProfile(t *testing.T) {
	h := newHarness()
	_, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 2, "AAPL", "MSFT"), nil)
	require.NoError(t, err)

	require.Len(t, h.history.entries, 1)
	e := h.history.entries[0]
	assert.Equal(t, "p", e.ProfileID)
	assert.Equal(t, models.StatusCompleted, e.Status)
	assert.Len(t, e.Outcomes, 2)
}

func TestRun_NilProgressSinkFallsBackToLog(t *testing.T) {
	h := newHarness()
	svc := h.service()
	svc.deps.Progress = nil

	results, err := svc.Run(context.Background(), manualRun(testProfile("p", "A"), 1, "AAPL"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].Published)
}

// --- persistence ---

func TestRun_SaveFailureSurfacesWarning(t *testing.T) {
	h := newHarness()
	h.state.saveErr = errors.New("primary and fallback unavailable")

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 2, "AAPL", "MSFT"), nil)
	require.NoError(t, err)

	r := results[0]
	assert.Equal(t, 2, r.Published)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "state persistence degraded")
}

func TestRun_LoadFailureIsRunError(t *testing.T) {
	h := newHarness()
	h.state.loadErr = errors.New("all stores down")

	results, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A"), 1, "AAPL"), nil)
	assert.Error(t, err)
	assert.Nil(t, results)
}

func TestRun_AuthorIndexSavedBeforeGeneration(t *testing.T) {
	h := newHarness()
	h.content.fn = func(models.ContentRequest) (*models.Article, error) {
		st := h.state.get("p")
		assert.Equal(t, 0, st.LastAuthorIndex)
		return &models.Article{Title: "t", HTML: "<p>x</p>"}, nil
	}

	_, err := h.service().Run(context.Background(), manualRun(testProfile("p", "A", "B"), 1, "AAPL"), nil)
	require.NoError(t, err)
}

// --- resumable file source ---

func TestRun_UploadedFileResumesAfterLastIndex(t *testing.T) {
	h := newHarness()
	h.files.files[models.FileCategoryTickers+"/f1"] = []byte("Ticker\nAAPL\nMSFT\nTSLA\nNVDA\n")
	svc := h.service()
	profile := testProfile("p", "A")

	req := models.RunRequest{
		UserID:          testUser,
		Profiles:        []models.ProfileConfig{profile},
		RequestedCounts: map[string]int{"p": 2},
		Overrides: map[string]models.TickerOverride{
			"p": {UploadedFile: &models.FileRef{Key: "f1", Name: "list.csv"}},
		},
	}
	results, err := svc.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SourceUploadedFile, results[0].Source)
	assert.Equal(t, 1, h.state.get("p").LastProcessedTickerIndex)

	req.Overrides = nil
	results, err = svc.Run(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA", "NVDA"}, h.content.tickers())
	assert.Equal(t, []string{"TSLA=Scheduled", "NVDA=Scheduled"}, statuses(results[0]))
	assert.Equal(t, 3, h.state.get("p").LastProcessedTickerIndex)
}

func TestRun_UploadedFileIndexNotAdvancedOnHalt(t *testing.T) {
	h := newHarness()
	h.files.files[models.FileCategoryTickers+"/f1"] = []byte("Ticker\nAAPL\nMSFT\n")
	var stopped atomic.Bool
	h.content.fn = func(req models.ContentRequest) (*models.Article, error) {
		if req.Ticker == "MSFT" {
			stopped.Store(true)
		}
		return &models.Article{Title: req.Ticker, HTML: "<p>x</p>"}, nil
	}
	stop := stopFunc(func(string) bool { return stopped.Load() })

	req := models.RunRequest{
		UserID:          testUser,
		Profiles:        []models.ProfileConfig{testProfile("p", "A")},
		RequestedCounts: map[string]int{"p": 5},
		Overrides: map[string]models.TickerOverride{
			"p": {UploadedFile: &models.FileRef{Key: "f1", Name: "list.csv"}},
		},
	}
	_, err := h.service().Run(context.Background(), req, stop)
	require.NoError(t, err)
	assert.Equal(t, 0, h.state.get("p").LastProcessedTickerIndex)
}

func TestRun_UploadedFileFailureStillAdvancesIndex(t *testing.T) {
	h := newHarness()
	h.files.files[models.FileCategoryTickers+"/f1"] = []byte("Ticker\nAAPL\nMSFT\n")
	h.publisher.fn = func(models.PostRequest) (*models.PostResult, error) { return nil, errors.New("500") }

	req := models.RunRequest{
		UserID:          testUser,
		Profiles:        []models.ProfileConfig{testProfile("p", "A")},
		RequestedCounts: map[string]int{"p": 5},
		Overrides: map[string]models.TickerOverride{
			"p": {UploadedFile: &models.FileRef{Key: "f1", Name: "list.csv"}},
		},
	}
	_, err := h.service().Run(context.Background(), req, nil)
	require.NoError(t, err)

	st := h.state.get("p")
	assert.Equal(t, 1, st.LastProcessedTickerIndex)
	assert.Equal(t, []string{"AAPL", "MSFT"}, st.FailedTickers)
}

// --- queue source ---

func TestRun_QueueSourceRetriesFailedTickers(t *testing.T) {
	h := newHarness()
	st := models.NewProfileState(testDay)
	st.FailedTickers = []string{"TSLA"}
	st.PendingTickers = []string{"AMZN"}
	h.state.put("p", st)

	req := manualRun(testProfile("p", "A"), 1)
	req.Overrides = nil

	results, err := h.service().Run(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"TSLA=Scheduled"}, statuses(results[0]))
	saved := h.state.get("p")
	assert.Equal(t, []string{"AMZN"}, saved.PendingTickers)
	assert.Empty(t, saved.FailedTickers)
}
