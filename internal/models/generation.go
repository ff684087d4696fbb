package models

import "time"

// Generation is the diagnostic record of one backend call.
type Generation struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"sessionId"`
	Action         Action    `json:"action"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	PromptChars    int       `json:"promptChars"`
	OutputChars    int       `json:"outputChars"`
	Stage          string    `json:"stage,omitempty"`
	MCQCount       int       `json:"mcqCount"`
	FlashcardCount int       `json:"flashcardCount"`
	BlockCount     int       `json:"blockCount"`
	Error          string    `json:"error,omitempty"`
	RawOutput      string    `json:"rawOutput,omitempty"`
	DurationMS     int64     `json:"durationMs"`
	CreatedAt      time.Time `json:"createdAt"`
}
