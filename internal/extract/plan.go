package extract

import (
	"encoding/json"
	"strings"

	"learned/internal/models"
)

const (
	DefaultBlockTitle       = "Untitled"
	DefaultBlockDescription = "No description."
)

// Plan extracts study plan blocks from the outermost [...] span of raw backend output.
// Missing fields take defaults; anything unparseable yields an empty plan.
func Plan(raw string) []models.StudyPlanBlock {
	blocks := []models.StudyPlanBlock{}

	span, ok := outerSpan(stripFences(raw), '[', ']')
	if !ok {
		return blocks
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(span), &items); err != nil {
		return blocks
	}

	for _, item := range items {
		fields, ok := objectFields(item)
		if !ok {
			continue
		}
		blocks = append(blocks, decodeBlock(fields))
	}
	return blocks
}

func decodeBlock(fields map[string]json.RawMessage) models.StudyPlanBlock {
	block := models.StudyPlanBlock{
		BlockType:   models.BlockStudy,
		Title:       DefaultBlockTitle,
		Description: DefaultBlockDescription,
	}
	if v, ok := lookup(fields, "block_type", "blocktype", "type"); ok {
		if label := scalarString(v); strings.TrimSpace(label) != "" {
			block.BlockType = models.ParseBlockType(label)
		}
	}
	if v, ok := lookup(fields, "title"); ok {
		if title := strings.TrimSpace(scalarString(v)); title != "" {
			block.Title = title
		}
	}
	if v, ok := lookup(fields, "description"); ok {
		if desc := strings.TrimSpace(scalarString(v)); desc != "" {
			block.Description = desc
		}
	}
	if v, ok := lookup(fields, "duration", "durationminutes", "duration_minutes", "minutes"); ok {
		if minutes, ok := leadingInt(v); ok {
			block.DurationMinutes = minutes
		}
	}
	return block
}
