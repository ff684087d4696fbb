package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learned/internal/models"
)

const fullQuiz = `{"mcqs":[{"question":"2+2?","options":["3","4","5","6"],"answer":"4"}],"flashcards":[{"question":"Capital of France?","answer":"Paris"}]}`

var (
	wantMCQ  = models.MCQ{Question: "2+2?", Options: []string{"3", "4", "5", "6"}, Answer: "4"}
	wantCard = models.Flashcard{Question: "Capital of France?", Answer: "Paris"}
)

func TestQuizWholeObject(t *testing.T) {
	res, stage := QuizWithStage(fullQuiz)

	assert.Equal(t, StageWholeObject, stage)
	assert.Equal(t, []models.MCQ{wantMCQ}, res.MCQs)
	assert.Equal(t, []models.Flashcard{wantCard}, res.Flashcards)
}

func TestQuizTruncatedFlashcards(t *testing.T) {
	raw := `{"mcqs":[{"question":"2+2?","options":["3","4","5","6"],"answer":"4"}],"flashcards":[{"question":"Cap`

	res, stage := QuizWithStage(raw)

	assert.Equal(t, StageFieldSalvage, stage)
	assert.Equal(t, []models.MCQ{wantMCQ}, res.MCQs)
	assert.Empty(t, res.Flashcards)
}

func TestQuizTruncatedAfterCompleteFlashcardElement(t *testing.T) {
	raw := `Here you go:
{"mcqs":[
  {"question":"Largest planet?","options":["Mars","Jupiter","Venus","Earth"],"answer":"Jupiter"},
  {"question":"Closest star?","options":["Sirius","Vega","Sun","Rigel"],"answer":"Sun"}
],
"flashcards":[{"question":"H2O is?","answer":"Water"},{"question":"NaCl is?","ans`

	res := Quiz(raw)

	require.Len(t, res.MCQs, 2)
	assert.Equal(t, "Largest planet?", res.MCQs[0].Question)
	assert.Equal(t, []string{"Sirius", "Vega", "Sun", "Rigel"}, res.MCQs[1].Options)
	assert.Empty(t, res.Flashcards)
}

func TestQuizNoJSON(t *testing.T) {
	for _, raw := range []string{
		"Sorry, I cannot help with that.",
		"",
		"   \n\t",
		"}{ ][ ",
		"\x00\xff\xfe garbage {{{ [[[",
		"Error calling Gemini API: No content returned. Finish reason: SAFETY",
	} {
		t.Run(raw, func(t *testing.T) {
			res, stage := QuizWithStage(raw)
			assert.Equal(t, StageNone, stage)
			assert.Empty(t, res.MCQs)
			assert.Empty(t, res.Flashcards)
		})
	}
}

func TestQuizCodeFence(t *testing.T) {
	plain := Quiz(fullQuiz)

	for name, raw := range map[string]string{
		"json fence":    "```json\n" + fullQuiz + "\n```",
		"bare fence":    "```\n" + fullQuiz + "\n```",
		"prose + fence": "Sure! Here is your quiz:\n```json\n" + fullQuiz + "\n```\nGood luck.",
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, plain, Quiz(raw))
		})
	}
}

func TestQuizTextMining(t *testing.T) {
	raw := `The model rambled: "question": "What is Go?" and then some noise, "answer": "A language".
Unrelated text in between... "question": "Who created it?" more words "answer": "Google" end.`

	res, stage := QuizWithStage(raw)

	assert.Equal(t, StageTextMining, stage)
	assert.Equal(t, []models.MCQ{
		{Question: "What is Go?", Options: []string{}, Answer: "A language"},
		{Question: "Who created it?", Options: []string{}, Answer: "Google"},
	}, res.MCQs)
	assert.Empty(t, res.Flashcards)
}

func TestQuizTextMiningTruncatedMCQArray(t *testing.T) {
	raw := `{"mcqs":[{"question":"First?","options":["a","b"],"answer":"a"},{"question":"Second \"quoted\"?","options":["c","d"],"answer":"d"},{"question":"Thi`

	res, stage := QuizWithStage(raw)

	assert.Equal(t, StageTextMining, stage)
	require.Len(t, res.MCQs, 2)
	assert.Equal(t, `Second "quoted"?`, res.MCQs[1].Question)
	assert.Equal(t, "d", res.MCQs[1].Answer)
	assert.Empty(t, res.MCQs[0].Options)
}

func TestQuizSalvageKeysIndependently(t *testing.T) {
	// Whole-object parse fails on the trailing garbage; both arrays are still complete.
	raw := `{"mcqs":[{"question":"Q1","options":["x","y","z","w"],"answer":"x"}], "flashcards":[{"q":"F1","a":"A1"}] } trailing {oops}`

	res, stage := QuizWithStage(raw)

	assert.Equal(t, StageFieldSalvage, stage)
	require.Len(t, res.MCQs, 1)
	assert.Equal(t, []models.Flashcard{{Question: "F1", Answer: "A1"}}, res.Flashcards)
}

func TestQuizBracketsInsideStrings(t *testing.T) {
	raw := `{"mcqs":[{"question":"Which is a slice literal: [1] or ]x[?","options":["[1]","]x["],"answer":"[1]"}],"flashcards":[{"question":"Cut`

	res := Quiz(raw)

	require.Len(t, res.MCQs, 1)
	assert.Equal(t, []string{"[1]", "]x["}, res.MCQs[0].Options)
}

func TestQuizFlashcardKeySets(t *testing.T) {
	raw := `{"mcqs":[{"question":"Q","options":["a","b","c","d"],"answer":"a"}],
"flashcards":[{"q":"short q","a":"short a"},{"Question":"Cap Q","Answer":"Cap A"},{"front":"F","back":"B"},{"unrelated":1}]}`

	res := Quiz(raw)

	assert.Equal(t, []models.Flashcard{
		{Question: "short q", Answer: "short a"},
		{Question: "Cap Q", Answer: "Cap A"},
		{Question: "F", Answer: "B"},
	}, res.Flashcards)
}

func TestQuizLenientFields(t *testing.T) {
	raw := `{"mcqs":[{"question":"Pick","options":[1,2,true,null],"answer":2}, "not an object", {"question":"No options","answer":"x"}]}`

	res := Quiz(raw)

	require.Len(t, res.MCQs, 2)
	assert.Equal(t, []string{"1", "2", "true", ""}, res.MCQs[0].Options)
	assert.Equal(t, "2", res.MCQs[0].Answer)
	assert.Equal(t, []string{}, res.MCQs[1].Options)
}

func TestQuizMissingKeysDefaultEmpty(t *testing.T) {
	res, stage := QuizWithStage(`{"flashcards":[{"question":"only","answer":"cards"}]}`)

	assert.Equal(t, StageWholeObject, stage)
	assert.Empty(t, res.MCQs)
	assert.Len(t, res.Flashcards, 1)

	res, stage = QuizWithStage(`{"mcqs":"not a list","flashcards":[]}`)
	assert.Equal(t, StageNone, stage)
	assert.True(t, res.Empty())
}

func TestQuizParsedObjectWithoutMCQsFallsThrough(t *testing.T) {
	res, stage := QuizWithStage(`{"questions":[{"question":"Q","options":["a","b"],"answer":"a"}]}`)

	assert.Equal(t, StageTextMining, stage)
	assert.Equal(t, []models.MCQ{{Question: "Q", Options: []string{}, Answer: "a"}}, res.MCQs)
	assert.Empty(t, res.Flashcards)
}

func TestQuizOutermostSpanWithProse(t *testing.T) {
	raw := "Note {see below}. " + fullQuiz
	// The outermost span includes the prose braces, so stage 1 fails and salvage takes over.
	res, stage := QuizWithStage(raw)

	assert.Equal(t, StageFieldSalvage, stage)
	assert.Equal(t, []models.MCQ{wantMCQ}, res.MCQs)
	assert.Equal(t, []models.Flashcard{wantCard}, res.Flashcards)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "whole_object", StageWholeObject.String())
	assert.Equal(t, "field_salvage", StageFieldSalvage.String())
	assert.Equal(t, "text_mining", StageTextMining.String())
	assert.Equal(t, "none", StageNone.String())
}
