package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"learned/internal/backend"
	"learned/internal/config"
	"learned/internal/extract"
	"learned/internal/logger"
	"learned/internal/models"
	"learned/internal/prompts"
	"learned/internal/results"
)

const (
	MinQuizCount = 1
	MaxQuizCount = 20

	DefaultQuizCount       = 5
	DefaultSessionDuration = "1 hour"
	DefaultMaxInputChars   = 60000
	DefaultRequestTimeout  = 2 * time.Minute
)

var (
	ErrEmptyText       = errors.New("text is empty")
	ErrInvalidCount    = fmt.Errorf("count must be between %d and %d", MinQuizCount, MaxQuizCount)
	ErrInvalidDuration = errors.New("session duration is required")
	// ErrTimeout wraps backend failures caused by the request timeout.
	ErrTimeout = errors.New("backend request timed out")
)

// StudyOptions tunes a StudyService; zero values take the defaults.
type StudyOptions struct {
	Profiles       config.Profiles
	MaxInputChars  int
	RequestTimeout time.Duration
}

// StudyService runs the study actions: prompt, generate, extract, then store the result.
type StudyService struct {
	gen      backend.Generator
	store    results.Store
	history  *GenerationLog
	log      *logger.Logger
	profiles config.Profiles
	maxChars int
	timeout  time.Duration
}

// NewStudyService wires the collaborators. history and log may be nil.
func NewStudyService(gen backend.Generator, store results.Store, history *GenerationLog, log *logger.Logger, opts StudyOptions) *StudyService {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Profiles == nil {
		opts.Profiles = config.DefaultProfiles()
	}
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = DefaultMaxInputChars
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	return &StudyService{
		gen:      gen,
		store:    store,
		history:  history,
		log:      log.With("service", "StudyService", "provider", gen.Provider(), "model", gen.Model()),
		profiles: opts.Profiles,
		maxChars: opts.MaxInputChars,
		timeout:  opts.RequestTimeout,
	}
}

func (s *StudyService) Summarize(ctx context.Context, session, text string, style prompts.SummaryStyle) (string, error) {
	text, err := s.prepare(text)
	if err != nil {
		return "", err
	}
	var summary string
	err = s.execute(ctx, session, models.ActionSummarize, prompts.Summary(text, style),
		func(raw string, snap *results.Snapshot, _ *models.Generation) {
			summary = raw
			snap.Summary = raw
		})
	return summary, err
}

func (s *StudyService) Simplify(ctx context.Context, session, text string, level prompts.Level) (string, error) {
	text, err := s.prepare(text)
	if err != nil {
		return "", err
	}
	var explanation string
	err = s.execute(ctx, session, models.ActionSimplify, prompts.Simplify(text, level),
		func(raw string, snap *results.Snapshot, _ *models.Generation) {
			explanation = raw
			snap.Explanation = raw
		})
	return explanation, err
}

// Quiz generates count MCQs and flashcards. A response that cannot be parsed at all
// yields an empty result, not an error.
func (s *StudyService) Quiz(ctx context.Context, session, text string, count int) (models.ExtractionResult, error) {
	if count < MinQuizCount || count > MaxQuizCount {
		return models.ExtractionResult{}, ErrInvalidCount
	}
	text, err := s.prepare(text)
	if err != nil {
		return models.ExtractionResult{}, err
	}
	var res models.ExtractionResult
	err = s.execute(ctx, session, models.ActionQuiz, prompts.Quiz(text, count),
		func(raw string, snap *results.Snapshot, rec *models.Generation) {
			var stage extract.Stage
			res, stage = extract.QuizWithStage(raw)
			snap.MCQs = res.MCQs
			snap.Flashcards = res.Flashcards
			rec.Stage = stage.String()
			rec.MCQCount = len(res.MCQs)
			rec.FlashcardCount = len(res.Flashcards)
			if stage != extract.StageWholeObject {
				rec.RawOutput = raw
			}
		})
	return res, err
}

// Plan builds a study session schedule for duration, e.g. "1.5 hours".
func (s *StudyService) Plan(ctx context.Context, session, text, duration string) ([]models.StudyPlanBlock, error) {
	duration = strings.TrimSpace(duration)
	if duration == "" {
		return nil, ErrInvalidDuration
	}
	text, err := s.prepare(text)
	if err != nil {
		return nil, err
	}
	var blocks []models.StudyPlanBlock
	err = s.execute(ctx, session, models.ActionPlan, prompts.Plan(text, duration),
		func(raw string, snap *results.Snapshot, rec *models.Generation) {
			blocks = extract.Plan(raw)
			snap.Plan = blocks
			rec.BlockCount = len(blocks)
			if len(blocks) == 0 {
				rec.Stage = extract.StageNone.String()
				rec.RawOutput = raw
			} else {
				rec.Stage = "whole_array"
			}
		})
	return blocks, err
}

func (s *StudyService) Results(ctx context.Context, session string) (results.Snapshot, bool, error) {
	return s.store.Get(ctx, session)
}

func (s *StudyService) ClearResults(ctx context.Context, session string) error {
	return s.store.Clear(ctx, session)
}

// Generations lists recent backend calls; empty when no history is configured.
func (s *StudyService) Generations(ctx context.Context, limit int) ([]models.Generation, error) {
	if s.history == nil {
		return []models.Generation{}, nil
	}
	return s.history.List(ctx, limit)
}

// prepare rejects blank input and truncates it to the configured number of characters.
func (s *StudyService) prepare(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	return truncateRunes(text, s.maxChars), nil
}

type digestFunc func(raw string, snap *results.Snapshot, rec *models.Generation)

func (s *StudyService) execute(ctx context.Context, session string, action models.Action, msgs []models.Message, digest digestFunc) error {
	if err := s.store.Begin(ctx, session, action); err != nil {
		return err
	}
	defer func() {
		if err := s.store.Finish(context.WithoutCancel(ctx), session, action); err != nil {
			s.log.Warn("release action failed", "session_id", session, "action", action, "error", err)
		}
	}()

	rec := models.Generation{
		SessionID:   session,
		Action:      action,
		Provider:    s.gen.Provider(),
		Model:       s.gen.Model(),
		PromptChars: promptChars(msgs),
	}
	opts := s.profiles.For(action)

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	raw, err := s.gen.Generate(callCtx, msgs, opts)
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	cancel()
	rec.DurationMS = time.Since(start).Milliseconds()

	if err != nil {
		if timedOut {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		rec.Error = err.Error()
		s.record(ctx, rec)
		s.log.Warn("generation failed", "session_id", session, "action", action, "duration_ms", rec.DurationMS, "error", err)
		return fmt.Errorf("%s: %w", action, err)
	}

	rec.OutputChars = utf8.RuneCountInString(raw)
	snap := results.Snapshot{LastAction: action}
	digest(raw, &snap, &rec)
	s.record(ctx, rec)

	if err := s.store.Put(ctx, session, snap); err != nil {
		return fmt.Errorf("store %s results: %w", action, err)
	}
	s.log.Info("generation complete",
		"session_id", session,
		"action", action,
		"max_output_tokens", opts.MaxOutputTokens,
		"output_chars", rec.OutputChars,
		"stage", rec.Stage,
		"mcqs", rec.MCQCount,
		"flashcards", rec.FlashcardCount,
		"blocks", rec.BlockCount,
		"duration_ms", rec.DurationMS,
	)
	return nil
}

func (s *StudyService) record(ctx context.Context, rec models.Generation) {
	if s.history == nil {
		return
	}
	if _, err := s.history.Record(context.WithoutCancel(ctx), rec); err != nil {
		s.log.Warn("record generation failed", "action", rec.Action, "error", err)
	}
}

func promptChars(msgs []models.Message) int {
	n := 0
	for _, m := range msgs {
		n += utf8.RuneCountInString(m.Content)
	}
	return n
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
