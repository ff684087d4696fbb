// Package extract recovers structured study records from free-form backend output.
//
// Backend responses are untrusted: they may wrap JSON in markdown fences, surround it
// with prose, or stop mid-object when the generation hits its length limit. The
// extractors never fail; they return whatever could be recovered, possibly nothing.
package extract

import (
	"encoding/json"
	"regexp"

	"learned/internal/models"
)

// Stage names the fallback step that produced a quiz result.
type Stage int

const (
	StageNone Stage = iota
	StageWholeObject
	StageFieldSalvage
	StageTextMining
)

func (s Stage) String() string {
	switch s {
	case StageWholeObject:
		return "whole_object"
	case StageFieldSalvage:
		return "field_salvage"
	case StageTextMining:
		return "text_mining"
	default:
		return "none"
	}
}

var (
	mcqsKey       = keyArrayPattern("mcqs")
	flashcardsKey = keyArrayPattern("flashcards")

	// questionAnswerPattern finds "question": "..." followed, non-greedily, by "answer": "...".
	questionAnswerPattern = regexp.MustCompile(`"question"\s*:\s*"((?:[^"\\]|\\.)+)"[\s\S]*?"answer"\s*:\s*"((?:[^"\\]|\\.)+)"`)
)

// Quiz extracts MCQs and flashcards from raw backend output.
func Quiz(raw string) models.ExtractionResult {
	res, _ := QuizWithStage(raw)
	return res
}

// QuizWithStage is Quiz that also reports which stage supplied the MCQs.
//
// Stages run in a fixed order and stop at the first one yielding MCQs:
// whole-object parse of the outermost {...} span, then independent salvage of the
// "mcqs" and "flashcards" arrays, then regex mining of question/answer pairs.
// A parsed object with flashcards but no MCQs is final; one with neither falls through.
// Flashcards come from the first two stages only.
func QuizWithStage(raw string) (models.ExtractionResult, Stage) {
	cleaned := stripFences(raw)

	if mcqs, cards, ok := parseWholeObject(cleaned); ok && (len(mcqs) > 0 || len(cards) > 0) {
		return models.ExtractionResult{MCQs: mcqs, Flashcards: cards}, StageWholeObject
	}

	mcqs, cards := salvageFields(cleaned)
	if len(mcqs) > 0 {
		return models.ExtractionResult{MCQs: mcqs, Flashcards: cards}, StageFieldSalvage
	}

	mined := mineMCQs(raw)
	if len(mined) > 0 {
		return models.ExtractionResult{MCQs: mined, Flashcards: cards}, StageTextMining
	}
	if len(cards) > 0 {
		return models.ExtractionResult{Flashcards: cards}, StageFieldSalvage
	}
	return models.ExtractionResult{}, StageNone
}

func parseWholeObject(content string) ([]models.MCQ, []models.Flashcard, bool) {
	span, ok := outerSpan(content, '{', '}')
	if !ok {
		return nil, nil, false
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(span), &doc); err != nil {
		return nil, nil, false
	}
	return decodeMCQs(doc["mcqs"]), decodeFlashcards(doc["flashcards"]), true
}

func salvageFields(content string) ([]models.MCQ, []models.Flashcard) {
	var (
		mcqs  []models.MCQ
		cards []models.Flashcard
	)
	if arr, ok := arrayAfterKey(content, mcqsKey); ok {
		mcqs = decodeMCQs(json.RawMessage(arr))
	}
	if arr, ok := arrayAfterKey(content, flashcardsKey); ok {
		cards = decodeFlashcards(json.RawMessage(arr))
	}
	return mcqs, cards
}

func mineMCQs(raw string) []models.MCQ {
	matches := questionAnswerPattern.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]models.MCQ, 0, len(matches))
	for _, m := range matches {
		out = append(out, models.MCQ{
			Question: unquoteCapture(m[1]),
			Options:  []string{},
			Answer:   unquoteCapture(m[2]),
		})
	}
	return out
}

// decodeMCQs decodes an array of MCQ objects. Elements that are not objects, or carry
// no question, answer or options, are dropped; malformed arrays yield nil.
func decodeMCQs(raw json.RawMessage) []models.MCQ {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]models.MCQ, 0, len(items))
	for _, item := range items {
		fields, ok := objectFields(item)
		if !ok {
			continue
		}
		mcq := models.MCQ{Options: []string{}}
		if v, ok := lookup(fields, "question", "q"); ok {
			mcq.Question = scalarString(v)
		}
		if v, ok := lookup(fields, "options", "choices"); ok {
			if opts := stringList(v); opts != nil {
				mcq.Options = opts
			}
		}
		if v, ok := lookup(fields, "answer", "a", "correct_answer"); ok {
			mcq.Answer = scalarString(v)
		}
		if mcq.Question == "" && mcq.Answer == "" && len(mcq.Options) == 0 {
			continue
		}
		out = append(out, mcq)
	}
	return out
}

// decodeFlashcards accepts question/answer, q/a and front/back key sets.
func decodeFlashcards(raw json.RawMessage) []models.Flashcard {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]models.Flashcard, 0, len(items))
	for _, item := range items {
		fields, ok := objectFields(item)
		if !ok {
			continue
		}
		var card models.Flashcard
		if v, ok := lookup(fields, "question", "q", "front"); ok {
			card.Question = scalarString(v)
		}
		if v, ok := lookup(fields, "answer", "a", "back"); ok {
			card.Answer = scalarString(v)
		}
		if card.Question == "" && card.Answer == "" {
			continue
		}
		out = append(out, card)
	}
	return out
}
