// Package prompts builds the message sequences sent to the generation backend.
//
// Builders never fail and never modify the source text. The user message embeds the
// text verbatim between """ delimiters.
package prompts

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/tyler-sommer/stick"

	"learned/internal/models"
)

//go:embed templates/*.twig
var templateFS embed.FS

var (
	ErrUnknownStyle = errors.New("unknown summary style")
	ErrUnknownLevel = errors.New("unknown explanation level")
)

type SummaryStyle string

const (
	StyleShort    SummaryStyle = "short"
	StyleBulleted SummaryStyle = "bulleted"
	StyleDetailed SummaryStyle = "detailed"
)

// ParseSummaryStyle accepts the canonical names plus the spellings offered by the UI.
// An empty value selects StyleShort.
func ParseSummaryStyle(raw string) (SummaryStyle, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "short":
		return StyleShort, nil
	case "bulleted", "bullet", "bullets", "bullet points":
		return StyleBulleted, nil
	case "detailed":
		return StyleDetailed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStyle, raw)
}

type Level string

const (
	LevelBeginner Level = "beginner"
	LevelAdvanced Level = "advanced"
)

// ParseLevel accepts beginner/advanced and the UI spellings easy, simple and college-level.
// An empty value selects LevelBeginner.
func ParseLevel(raw string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "beginner", "easy", "simple":
		return LevelBeginner, nil
	case "advanced", "college", "college-level":
		return LevelAdvanced, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLevel, raw)
}

const (
	summarySystem  = "You are a helpful assistant that summarizes academic content accurately."
	simplifySystem = "You are a helpful teacher who explains technical topics in simple language."
	quizSystem     = "You are an assistant that creates educational MCQs and flashcards accurately."
	planSystem     = "You are a study coach who builds realistic, well-paced study session schedules."
)

var summaryInstructions = map[SummaryStyle]string{
	StyleShort:    "Summarize the following text in 3-5 concise sentences.",
	StyleBulleted: "Summarize the following text into 6-12 bullet points highlighting key concepts and definitions.",
	StyleDetailed: "Provide a detailed summary (approximately 200-300 words) of the following text, keeping technical accuracy.",
}

var simplifyInstructions = map[Level]string{
	LevelBeginner: "Explain the following text in very simple language as if explaining to a 12-year-old. Use analogies and short sentences.",
	LevelAdvanced: "Explain the following text in clear, concise college-level language suitable for first-year undergraduates.",
}

// Summary builds the summarize prompt. Unknown styles fall back to the detailed instruction.
func Summary(text string, style SummaryStyle) []models.Message {
	instr, ok := summaryInstructions[style]
	if !ok {
		instr = summaryInstructions[StyleDetailed]
	}
	return defaultRenderer.passage(summarySystem, instr, text)
}

// Simplify builds the explanation prompt. Unknown levels fall back to the advanced instruction.
func Simplify(text string, level Level) []models.Message {
	instr, ok := simplifyInstructions[level]
	if !ok {
		instr = simplifyInstructions[LevelAdvanced]
	}
	return defaultRenderer.passage(simplifySystem, instr, text)
}

// Quiz asks for count MCQs with four options each and count flashcards as one JSON object.
func Quiz(text string, count int) []models.Message {
	return defaultRenderer.quiz(text, count)
}

// Plan asks for a JSON array of schedule blocks covering sessionDuration, e.g. "1 hour".
func Plan(text string, sessionDuration string) []models.Message {
	return defaultRenderer.plan(text, sessionDuration)
}

type renderer struct {
	env       *stick.Env
	templates map[string]string
}

var defaultRenderer = mustLoadRenderer(templateFS, "templates")

func mustLoadRenderer(fsys fs.FS, dir string) *renderer {
	r, err := loadRenderer(fsys, dir)
	if err != nil {
		panic(err)
	}
	return r
}

func loadRenderer(fsys fs.FS, dir string) (*renderer, error) {
	r := &renderer{env: stick.New(nil), templates: make(map[string]string)}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".twig") {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		r.templates[strings.TrimSuffix(e.Name(), ".twig")] = string(content)
	}
	return r, nil
}

func (r *renderer) render(tag string, vars map[string]stick.Value) (string, error) {
	tpl, ok := r.templates[tag]
	if !ok {
		return "", fmt.Errorf("template %q not found", tag)
	}
	var out strings.Builder
	if err := r.env.Execute(tpl, &out, vars); err != nil {
		return "", fmt.Errorf("execute %q: %w", tag, err)
	}
	return strings.TrimSpace(out.String()), nil
}

func (r *renderer) passage(system, instruction, text string) []models.Message {
	user, err := r.render("passage", map[string]stick.Value{
		"instruction": instruction,
		"text":        text,
	})
	if err != nil {
		user = instruction + delimited(text)
	}
	return pair(system, user)
}

func (r *renderer) quiz(text string, count int) []models.Message {
	n := strconv.Itoa(count)
	user, err := r.render("quiz", map[string]stick.Value{
		"count": n,
		"text":  text,
	})
	if err != nil {
		user = "Generate exactly " + n + " multiple-choice questions with 4 options each and " + n +
			" flashcards from the following text." + delimited(text) + "\n\n" + quizFormat
	}
	return pair(quizSystem, user)
}

func (r *renderer) plan(text, duration string) []models.Message {
	user, err := r.render("plan", map[string]stick.Value{
		"duration": duration,
		"text":     text,
	})
	if err != nil {
		user = "Create a study plan for a session of " + duration +
			" with a 5-minute break roughly every 45 minutes of study." + delimited(text) + "\n\n" + planFormat
	}
	return pair(planSystem, user)
}

const (
	quizFormat = `Return only a JSON object like {"mcqs":[{"question":"...","options":["...","...","...","..."],"answer":"..."}],"flashcards":[{"question":"...","answer":"..."}]}`
	planFormat = `Return only a JSON array like [{"block_type":"study","title":"...","description":"...","duration":45}]`
)

func delimited(text string) string {
	return "\n\nText:\n\"\"\"\n" + text + "\n\"\"\""
}

func pair(system, user string) []models.Message {
	return []models.Message{
		{Role: models.RoleSystem, Content: system},
		{Role: models.RoleUser, Content: user},
	}
}
