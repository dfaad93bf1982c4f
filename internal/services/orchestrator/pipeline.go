package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bobmcallan/tickzen/internal/models"
	"github.com/bobmcallan/tickzen/internal/services/schedule"
)

var (
	errInsufficientContent = errors.New("content generator returned no usable article")
	errNoPost              = errors.New("publisher returned no post")
)

// processTickerSafe records a panic in the pipeline as an internal failure of the ticker.
func (s *Service) processTickerSafe(ctx context.Context, pr *profileRun, ticker string) (out models.TickerOutcome, halted bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("profile", pr.profileID()).
				Str("ticker", ticker).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Ticker pipeline panicked")
			pr.state.RecordFailed(ticker)
			out = s.outcome(ticker, models.StatusFailedInternal, fmt.Sprintf("internal error: %v", r))
			halted = false
		}
	}()
	return s.processTicker(ctx, pr, ticker)
}

// processTicker runs one ticker through generation, image, scheduling and
// publishing. halted reports that a stop was observed mid-pipeline.
func (s *Service) processTicker(ctx context.Context, pr *profileRun, ticker string) (models.TickerOutcome, bool) {
	st := pr.state
	profile := pr.profile

	alreadyPublished := st.PublishedTickersLog.Has(ticker)
	if alreadyPublished && !pr.republish {
		st.DropPending(ticker)
		return s.outcome(ticker, models.StatusSkippedPublished, "Already published on this site"), false
	}
	variation := 0
	if alreadyPublished {
		variation = max(st.TickerPublishCount[ticker], 1)
	}

	author, _ := schedule.NextAuthor(st, profile.Authors)
	s.save(pr, "author rotation")

	s.emit(pr, ticker, models.PhaseTicker, models.StageContent, fmt.Sprintf("Generating content as %s", author.Username), "")
	genCtx, cancel := s.callContext(pr, s.config.ContentTimeout)
	article, err := s.deps.Content.Generate(genCtx, models.ContentRequest{
		Ticker:          ticker,
		Variation:       variation,
		ContentType:     profile.ContentType,
		SiteURL:         profile.SiteURL,
		InternalLinking: profile.InternalLinking,
	})
	cancel()
	if err == nil && !usable(article) {
		err = errInsufficientContent
	}
	if err != nil {
		s.logger.Warn().Str("profile", profile.ProfileID).Str("ticker", ticker).Err(err).Msg("Content generation failed")
		st.RecordFailed(ticker)
		out := s.outcome(ticker, models.StatusFailedContent, err.Error())
		out.Writer = author.Username
		out.Variation = variation
		return out, false
	}
	generatedAt := s.now()

	if stopRequested(ctx, pr.stop, profile.ProfileID) {
		s.logger.Info().Str("profile", profile.ProfileID).Str("ticker", ticker).Str("title", article.Title).
			Msg("Stop requested, discarding generated article")
		out := s.outcome(ticker, models.StatusHaltedAfterGen, models.HaltedMessage)
		out.Writer = author.Username
		out.GeneratedAt = &generatedAt
		return out, true
	}

	mediaID := s.featureImage(pr, ticker, article.Title, author)

	if stopRequested(ctx, pr.stop, profile.ProfileID) {
		s.logger.Info().Str("profile", profile.ProfileID).Str("ticker", ticker).Int("media_id", mediaID).
			Msg("Stop requested, discarding article after image upload")
		out := s.outcome(ticker, models.StatusHaltedAfterImage, models.HaltedMessage)
		out.Writer = author.Username
		out.GeneratedAt = &generatedAt
		return out, true
	}

	scheduledAt := s.deps.Schedule.Next(st.LastSuccessfulScheduleTime, profile.MinGapMinutes, profile.MaxGapMinutes)

	s.emit(pr, ticker, models.PhaseTicker, models.StagePublish, fmt.Sprintf("Publishing for %s", scheduledAt.UTC().Format(time.RFC3339)), "")
	pubCtx, cancel := s.callContext(pr, s.config.PublishTimeout)
	post, err := s.deps.Publisher.CreatePost(pubCtx, models.PostRequest{
		SiteURL:     profile.SiteURL,
		Author:      author,
		Title:       article.Title,
		Content:     article.HTML,
		Excerpt:     article.Excerpt,
		ScheduledAt: scheduledAt,
		CategoryID:  profile.CategoryID,
		MediaID:     mediaID,
		Status:      s.config.PostStatus,
	})
	cancel()
	if err == nil && post == nil {
		err = errNoPost
	}
	if err != nil {
		s.logger.Warn().Str("profile", profile.ProfileID).Str("ticker", ticker).Err(err).Msg("Post creation failed")
		st.RecordFailed(ticker)
		out := s.outcome(ticker, models.StatusFailedPost, err.Error())
		out.Writer = author.Username
		out.Variation = variation
		out.GeneratedAt = &generatedAt
		return out, false
	}

	st.RecordPublished(ticker, scheduledAt)
	publishedAt := s.now()

	out := s.outcome(ticker, models.StatusScheduled, fmt.Sprintf("Scheduled for %s", scheduledAt.UTC().Format(time.RFC3339)))
	out.Writer = author.Username
	out.Variation = variation
	out.GeneratedAt = &generatedAt
	out.PublishedAt = &publishedAt
	out.ScheduledFor = &scheduledAt
	out.PostID = post.PostID
	out.PostURL = post.PostURL
	return out, false
}

// featureImage renders and uploads the post image. Failures leave the post
// without media.
func (s *Service) featureImage(pr *profileRun, ticker, title string, author models.Author) int {
	if s.deps.Images == nil || s.deps.Uploader == nil {
		return 0
	}
	s.emit(pr, ticker, models.PhaseTicker, models.StageImage, "Rendering feature image", "")

	imgCtx, cancel := s.callContext(pr, s.config.ImageTimeout)
	data, err := s.deps.Images.RenderFeatureImage(imgCtx, ticker, title)
	cancel()
	if err != nil || len(data) == 0 {
		s.logger.Warn().Str("profile", pr.profileID()).Str("ticker", ticker).Err(err).Msg("Feature image unavailable, publishing without media")
		return 0
	}

	upCtx, cancel := s.callContext(pr, s.config.UploadTimeout)
	filename := strings.ToLower(ticker) + "-feature.png"
	media, err := s.deps.Uploader.UploadMedia(upCtx, pr.profile.SiteURL, author, filename, data)
	cancel()
	if err != nil || media == nil {
		s.logger.Warn().Str("profile", pr.profileID()).Str("ticker", ticker).Err(err).Msg("Feature image upload failed, publishing without media")
		return 0
	}
	return media.ID
}

// callContext bounds one collaborator call. Calls are detached from run
// cancellation so an in-flight request is never cut short by a stop.
func (s *Service) callContext(pr *profileRun, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(pr.detached)
	}
	return context.WithTimeout(pr.detached, timeout)
}

func usable(a *models.Article) bool {
	return a != nil && strings.TrimSpace(a.Title) != "" && strings.TrimSpace(a.HTML) != ""
}
