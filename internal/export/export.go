// Package export renders session results as downloadable files.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"learned/internal/models"
)

const (
	SummaryFile     = "summary.txt"
	ExplanationFile = "explanation.txt"
	FlashcardsFile  = "flashcards.csv"

	TextContentType = "text/plain; charset=utf-8"
	CSVContentType  = "text/csv; charset=utf-8"
)

// WriteFlashcardsCSV writes a question,answer header followed by one row per card.
func WriteFlashcardsCSV(w io.Writer, cards []models.Flashcard) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"question", "answer"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range cards {
		if err := cw.Write([]string{c.Question, c.Answer}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// FlashcardsCSV is WriteFlashcardsCSV into memory.
func FlashcardsCSV(cards []models.Flashcard) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteFlashcardsCSV(&buf, cards); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PlainText returns the text with a single trailing newline.
func PlainText(text string) []byte {
	return []byte(strings.TrimRight(text, "\r\n") + "\n")
}

// ContentDisposition builds an attachment header value for name.
func ContentDisposition(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}
