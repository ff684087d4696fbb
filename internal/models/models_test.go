package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlockType(t *testing.T) {
	cases := map[string]BlockType{
		"study":     BlockStudy,
		" Study ":   BlockStudy,
		"REVISION":  BlockRevision,
		"break":     BlockBreak,
		"lunch":     BlockOther,
		"":          BlockOther,
		"revisions": BlockOther,
	}
	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			assert.Equal(t, want, ParseBlockType(raw))
		})
	}
}

func TestTotalMinutes(t *testing.T) {
	blocks := []StudyPlanBlock{
		{BlockType: BlockStudy, DurationMinutes: 45},
		{BlockType: BlockBreak, DurationMinutes: 5},
		{BlockType: BlockRevision, DurationMinutes: 10},
		{BlockType: BlockOther, DurationMinutes: -3},
	}
	assert.Equal(t, 60, TotalMinutes(blocks))
	assert.Equal(t, 0, TotalMinutes(nil))
}

func TestExtractionResultJSONUsesEmptyArrays(t *testing.T) {
	res := ExtractionResult{MCQs: []MCQ{{Question: "q", Answer: "a"}}}

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mcqs":[{"question":"q","options":[],"answer":"a"}],"flashcards":[]}`, string(raw))
	assert.Nil(t, res.MCQs[0].Options, "marshal must not mutate the receiver")

	raw, err = json.Marshal(ExtractionResult{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mcqs":[],"flashcards":[]}`, string(raw))
}

func TestBlockTypeIcon(t *testing.T) {
	assert.Equal(t, "☕", BlockBreak.Icon())
	assert.Equal(t, "✏️", BlockType("nap").Icon())
}
