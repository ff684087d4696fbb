package services

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learned/internal/backend"
	"learned/internal/config"
	"learned/internal/db"
	"learned/internal/models"
	"learned/internal/prompts"
	"learned/internal/results"
)

type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   chan struct{}
	calls   int
	lastMsg []models.Message
	lastOpt backend.Options
}

func (f *fakeGenerator) Generate(ctx context.Context, msgs []models.Message, opts backend.Options) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastMsg = msgs
	f.lastOpt = opts
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", &backend.BackendError{Provider: "fake", Err: ctx.Err()}
		}
	}
	return f.reply, f.err
}

func (f *fakeGenerator) Provider() string { return "fake" }
func (f *fakeGenerator) Model() string    { return "fake-1" }

type fixture struct {
	svc     *StudyService
	gen     *fakeGenerator
	store   *results.MemoryStore
	history *GenerationLog
}

func newFixture(t *testing.T, opts StudyOptions) *fixture {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "learned.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	gen := &fakeGenerator{}
	store := results.NewMemoryStore(time.Hour)
	history := NewGenerationLog(conn)
	return &fixture{
		svc:     NewStudyService(gen, store, history, nil, opts),
		gen:     gen,
		store:   store,
		history: history,
	}
}

func (f *fixture) generations(t *testing.T) []models.Generation {
	t.Helper()
	gens, err := f.svc.Generations(context.Background(), 10)
	require.NoError(t, err)
	return gens
}

const material = "The mitochondria is the powerhouse of the cell."

func TestSummarizeStoresSnapshot(t *testing.T) {
	f := newFixture(t, StudyOptions{})
	f.gen.reply = "Cells have mitochondria."

	summary, err := f.svc.Summarize(context.Background(), "s1", material, prompts.StyleShort)

	require.NoError(t, err)
	assert.Equal(t, "Cells have mitochondria.", summary)
	assert.Equal(t, backend.DefaultOptions(), f.gen.lastOpt)
	assert.Contains(t, f.gen.lastMsg[1].Content, material)

	snap, ok, err := f.svc.Results(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.ActionSummarize, snap.LastAction)
	assert.Equal(t, "Cells have mitochondria.", snap.Summary)
	assert.Empty(t, snap.Running)

	gens := f.generations(t)
	require.Len(t, gens, 1)
	assert.Equal(t, models.ActionSummarize, gens[0].Action)
	assert.Equal(t, "fake", gens[0].Provider)
	assert.Equal(t, "fake-1", gens[0].Model)
	assert.Empty(t, gens[0].RawOutput)
}

func TestQuizExtractsAndLogsStage(t *testing.T) {
	f := newFixture(t, StudyOptions{})
	f.gen.reply = "```json\n" + `{"mcqs":[{"question":"2+2?","options":["3","4","5","6"],"answer":"4"}],"flashcards":[{"question":"Cap` + "\n```"

	res, err := f.svc.Quiz(context.Background(), "s1", material, 3)

	require.NoError(t, err)
	require.Len(t, res.MCQs, 1)
	assert.Empty(t, res.Flashcards)
	assert.Contains(t, f.gen.lastMsg[1].Content, "exactly 3 multiple-choice questions")

	gens := f.generations(t)
	require.Len(t, gens, 1)
	assert.Equal(t, "field_salvage", gens[0].Stage)
	assert.Equal(t, 1, gens[0].MCQCount)
	assert.Equal(t, f.gen.reply, gens[0].RawOutput)
}

func TestQuizUnparseableIsNotAnError(t *testing.T) {
	f := newFixture(t, StudyOptions{})
	f.gen.reply = "Sorry, I cannot help with that."

	res, err := f.svc.Quiz(context.Background(), "s1", material, 5)

	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Equal(t, "none", f.generations(t)[0].Stage)
}

func TestPlanExtractsBlocks(t *testing.T) {
	profiles := config.DefaultProfiles()
	profiles[models.ActionPlan] = backend.Options{MaxOutputTokens: 2048, Temperature: 0.1}
	f := newFixture(t, StudyOptions{Profiles: profiles})
	f.gen.reply = `[{"block_type":"study","title":"Cells","description":"Read.","duration":45},{"block_type":"break","duration":5}]`

	blocks, err := f.svc.Plan(context.Background(), "s1", material, "1 hour")

	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, 50, models.TotalMinutes(blocks))
	assert.Equal(t, 2048, f.gen.lastOpt.MaxOutputTokens)
	assert.Contains(t, f.gen.lastMsg[1].Content, "a session of 1 hour")

	snap, _, err := f.svc.Results(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, blocks, snap.Plan)
	assert.Equal(t, 2, f.generations(t)[0].BlockCount)
}

func TestNewActionReplacesPreviousResults(t *testing.T) {
	f := newFixture(t, StudyOptions{})
	ctx := context.Background()

	f.gen.reply = `{"mcqs":[{"question":"Q","options":["a","b","c","d"],"answer":"a"}],"flashcards":[]}`
	_, err := f.svc.Quiz(ctx, "s1", material, 1)
	require.NoError(t, err)

	f.gen.reply = "Simple words."
	_, err = f.svc.Simplify(ctx, "s1", material, prompts.LevelBeginner)
	require.NoError(t, err)

	snap, _, err := f.svc.Results(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.ActionSimplify, snap.LastAction)
	assert.Equal(t, "Simple words.", snap.Explanation)
	assert.Empty(t, snap.MCQs)
}

func TestValidation(t *testing.T) {
	f := newFixture(t, StudyOptions{})
	ctx := context.Background()

	_, err := f.svc.Summarize(ctx, "s1", "   \n", prompts.StyleShort)
	assert.ErrorIs(t, err, ErrEmptyText)

	for _, n := range []int{0, -1, MaxQuizCount + 1} {
		_, err = f.svc.Quiz(ctx, "s1", material, n)
		assert.ErrorIs(t, err, ErrInvalidCount)
	}

	_, err = f.svc.Plan(ctx, "s1", material, " ")
	assert.ErrorIs(t, err, ErrInvalidDuration)

	assert.Equal(t, 0, f.gen.calls)
	assert.Empty(t, f.generations(t))
}

func TestInputTruncation(t *testing.T) {
	f := newFixture(t, StudyOptions{MaxInputChars: 10})
	f.gen.reply = "ok"

	_, err := f.svc.Summarize(context.Background(), "s1", "ééééééééééTAIL", prompts.StyleShort)

	require.NoError(t, err)
	user := f.gen.lastMsg[1].Content
	assert.Contains(t, user, "\"\"\"\néééééééééé\n\"\"\"")
	assert.NotContains(t, user, "TAIL")
}

func TestBackendErrorReleasesSlot(t *testing.T) {
	f := newFixture(t, StudyOptions{})
	f.gen.err = &backend.BackendError{Provider: "fake", Reason: "SAFETY", Err: backend.ErrNoContent}

	_, err := f.svc.Summarize(context.Background(), "s1", material, prompts.StyleShort)

	require.Error(t, err)
	assert.True(t, backend.IsBackendError(err))
	assert.True(t, strings.HasPrefix(err.Error(), "summarize: "))

	gens := f.generations(t)
	require.Len(t, gens, 1)
	assert.Contains(t, gens[0].Error, "SAFETY")

	f.gen.err = nil
	f.gen.reply = "second try"
	_, err = f.svc.Summarize(context.Background(), "s1", material, prompts.StyleShort)
	assert.NoError(t, err)
}

func TestTimeoutIsReported(t *testing.T) {
	f := newFixture(t, StudyOptions{RequestTimeout: 20 * time.Millisecond})
	f.gen.block = make(chan struct{})

	_, err := f.svc.Plan(context.Background(), "s1", material, "30 minutes")

	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, backend.IsBackendError(err))
}

func TestOverlappingActionRejected(t *testing.T) {
	f := newFixture(t, StudyOptions{})
	f.gen.block = make(chan struct{})
	f.gen.reply = "done"

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Summarize(context.Background(), "s1", material, prompts.StyleShort)
		done <- err
	}()

	require.Eventually(t, func() bool {
		snap, ok, _ := f.store.Get(context.Background(), "s1")
		return ok && len(snap.Running) == 1
	}, time.Second, 5*time.Millisecond)

	_, err := f.svc.Summarize(context.Background(), "s1", material, prompts.StyleShort)
	assert.ErrorIs(t, err, results.ErrActionInProgress)

	close(f.gen.block)
	require.NoError(t, <-done)
}

func TestGenerationsWithoutHistory(t *testing.T) {
	svc := NewStudyService(&fakeGenerator{}, results.NewMemoryStore(0), nil, nil, StudyOptions{})
	gens, err := svc.Generations(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, gens)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, "日本", truncateRunes("日本語", 2))
	assert.Equal(t, "abc", truncateRunes("abc", 0))
}
