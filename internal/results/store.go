// Package results keeps the latest generated study material of each session.
//
// Starting an action clears whatever the session held before, so a session only ever
// shows the output of its most recent action.
package results

import (
	"context"
	"errors"
	"time"

	"learned/internal/models"
)

var (
	// ErrActionInProgress is returned by Begin while the same action is still running.
	ErrActionInProgress = errors.New("action already in progress for this session")
	// ErrNoSession is returned when an operation needs a session id and got none.
	ErrNoSession = errors.New("session id is required")
)

// Snapshot is what a session currently shows.
type Snapshot struct {
	SessionID   string                  `json:"sessionId"`
	LastAction  models.Action           `json:"lastAction,omitempty"`
	Summary     string                  `json:"summary,omitempty"`
	Explanation string                  `json:"explanation,omitempty"`
	MCQs        []models.MCQ            `json:"mcqs,omitempty"`
	Flashcards  []models.Flashcard      `json:"flashcards,omitempty"`
	Plan        []models.StudyPlanBlock `json:"plan,omitempty"`
	Running     []models.Action         `json:"running,omitempty"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

// Store holds one Snapshot per session.
type Store interface {
	// Begin marks action as running and clears the session's results.
	Begin(ctx context.Context, session string, action models.Action) error
	// Finish releases the action slot taken by Begin.
	Finish(ctx context.Context, session string, action models.Action) error
	Put(ctx context.Context, session string, snap Snapshot) error
	// Get reports found when results were stored since the last Begin or Clear, or when
	// an action is still running.
	Get(ctx context.Context, session string) (Snapshot, bool, error)
	Clear(ctx context.Context, session string) error
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.MCQs != nil {
		out.MCQs = make([]models.MCQ, len(s.MCQs))
		for i, m := range s.MCQs {
			out.MCQs[i] = m
			if m.Options != nil {
				out.MCQs[i].Options = append([]string(nil), m.Options...)
			}
		}
	}
	if s.Flashcards != nil {
		out.Flashcards = append([]models.Flashcard(nil), s.Flashcards...)
	}
	if s.Plan != nil {
		out.Plan = append([]models.StudyPlanBlock(nil), s.Plan...)
	}
	if s.Running != nil {
		out.Running = append([]models.Action(nil), s.Running...)
	}
	return out
}
