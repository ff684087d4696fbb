package models

import (
	"encoding/json"
	"strings"
)

// Action identifies one of the study actions a user can trigger.
type Action string

const (
	ActionSummarize Action = "summarize"
	ActionSimplify  Action = "simplify"
	ActionQuiz      Action = "quiz"
	ActionPlan      Action = "plan"
)

// Actions lists every action in display order.
var Actions = []Action{ActionSummarize, ActionSimplify, ActionQuiz, ActionPlan}

func (a Action) Valid() bool {
	switch a {
	case ActionSummarize, ActionSimplify, ActionQuiz, ActionPlan:
		return true
	}
	return false
}

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one entry of the prompt sequence sent to a backend.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// MCQ is a multiple-choice question. Options is empty when it was mined from broken output.
type MCQ struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ExtractionResult is the best-effort output of the quiz extractor.
type ExtractionResult struct {
	MCQs       []MCQ       `json:"mcqs"`
	Flashcards []Flashcard `json:"flashcards"`
}

// Empty reports whether nothing at all was recovered.
func (r ExtractionResult) Empty() bool {
	return len(r.MCQs) == 0 && len(r.Flashcards) == 0
}

// MarshalJSON keeps empty collections as [] for clients.
func (r ExtractionResult) MarshalJSON() ([]byte, error) {
	type plain ExtractionResult
	out := plain(r)
	out.MCQs = make([]MCQ, len(r.MCQs))
	for i, m := range r.MCQs {
		if m.Options == nil {
			m.Options = []string{}
		}
		out.MCQs[i] = m
	}
	if out.Flashcards == nil {
		out.Flashcards = []Flashcard{}
	}
	return json.Marshal(out)
}

type BlockType string

const (
	BlockStudy    BlockType = "study"
	BlockRevision BlockType = "revision"
	BlockBreak    BlockType = "break"
	BlockOther    BlockType = "other"
)

// ParseBlockType maps a backend-provided label onto one of the four block types.
func ParseBlockType(raw string) BlockType {
	switch BlockType(strings.ToLower(strings.TrimSpace(raw))) {
	case BlockStudy:
		return BlockStudy
	case BlockRevision:
		return BlockRevision
	case BlockBreak:
		return BlockBreak
	default:
		return BlockOther
	}
}

func (b BlockType) Icon() string {
	switch b {
	case BlockStudy:
		return "📚"
	case BlockRevision:
		return "🔄"
	case BlockBreak:
		return "☕"
	default:
		return "✏️"
	}
}

// StudyPlanBlock is one entry of a generated study session schedule.
type StudyPlanBlock struct {
	BlockType       BlockType `json:"blockType"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DurationMinutes int       `json:"durationMinutes"`
}

// TotalMinutes sums block durations, ignoring negative values.
func TotalMinutes(blocks []StudyPlanBlock) int {
	total := 0
	for _, b := range blocks {
		if b.DurationMinutes > 0 {
			total += b.DurationMinutes
		}
	}
	return total
}
