package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"learned/internal/export"
	"learned/internal/ingest"
	"learned/internal/models"
	"learned/internal/prompts"
	"learned/internal/results"
	"learned/internal/services"
)

type summarizeRequest struct {
	Text  string `json:"text"`
	Style string `json:"style"`
}

type simplifyRequest struct {
	Text  string `json:"text"`
	Level string `json:"level"`
}

type quizRequest struct {
	Text  string `json:"text"`
	Count *int   `json:"count"`
}

type planRequest struct {
	Text     string `json:"text"`
	Duration string `json:"duration"`
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleUploadDocuments(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, http.StatusRequestEntityTooLarge, "upload is too large")
			return
		}
		writeError(c, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		writeError(c, http.StatusBadRequest, "no files uploaded")
		return
	}

	files := make([]ingest.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readUpload(fh)
		if err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		files = append(files, ingest.File{Name: fh.Filename, Data: data})
	}

	docs, err := ingest.ExtractFiles(c.Request.Context(), files)
	if err != nil {
		if ingest.IsUnsupported(err) {
			s.fail(c, err)
			return
		}
		writeError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	text := ingest.JoinText(docs)
	if text == "" {
		writeError(c, http.StatusUnprocessableEntity,
			"could not extract text from the uploaded files; they might be image-based or corrupted")
		return
	}

	chars := utf8.RuneCountInString(text)
	preview := text
	if chars > previewChars {
		preview = string([]rune(text)[:previewChars])
	}
	s.log.Info("documents extracted", "session_id", sessionID(c), "files", len(docs), "chars", chars)
	writeJSON(c, http.StatusOK, gin.H{
		"documents": docs,
		"text":      text,
		"chars":     chars,
		"preview":   preview,
		"truncated": chars > previewChars,
	})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return data, nil
}

func (s *Server) handleSummarize(c *gin.Context) {
	var req summarizeRequest
	if !bindJSON(c, &req) {
		return
	}
	style, err := prompts.ParseSummaryStyle(req.Style)
	if err != nil {
		s.fail(c, err)
		return
	}
	summary, err := s.study.Summarize(c.Request.Context(), sessionID(c), req.Text, style)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"summary": summary})
}

func (s *Server) handleSimplify(c *gin.Context) {
	var req simplifyRequest
	if !bindJSON(c, &req) {
		return
	}
	level, err := prompts.ParseLevel(req.Level)
	if err != nil {
		s.fail(c, err)
		return
	}
	explanation, err := s.study.Simplify(c.Request.Context(), sessionID(c), req.Text, level)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"explanation": explanation})
}

func (s *Server) handleQuiz(c *gin.Context) {
	var req quizRequest
	if !bindJSON(c, &req) {
		return
	}
	count := services.DefaultQuizCount
	if req.Count != nil {
		count = *req.Count
	}
	res, err := s.study.Quiz(c.Request.Context(), sessionID(c), req.Text, count)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (s *Server) handlePlan(c *gin.Context) {
	var req planRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Duration == "" {
		req.Duration = services.DefaultSessionDuration
	}
	blocks, err := s.study.Plan(c.Request.Context(), sessionID(c), req.Text, req.Duration)
	if err != nil {
		s.fail(c, err)
		return
	}
	if blocks == nil {
		blocks = []models.StudyPlanBlock{}
	}
	writeJSON(c, http.StatusOK, gin.H{
		"plan":         blocks,
		"totalMinutes": models.TotalMinutes(blocks),
	})
}

func (s *Server) handleGetSession(c *gin.Context) {
	id := sessionID(c)
	snap, _, err := s.study.Results(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	snap.SessionID = id
	writeJSON(c, http.StatusOK, snap)
}

func (s *Server) handleClearSession(c *gin.Context) {
	if err := s.study.ClearResults(c.Request.Context(), sessionID(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDownloadSummary(c *gin.Context) {
	s.downloadText(c, export.SummaryFile, func(snap results.Snapshot) string { return snap.Summary })
}

func (s *Server) handleDownloadExplanation(c *gin.Context) {
	s.downloadText(c, export.ExplanationFile, func(snap results.Snapshot) string { return snap.Explanation })
}

func (s *Server) downloadText(c *gin.Context, name string, pick func(results.Snapshot) string) {
	snap, _, err := s.study.Results(c.Request.Context(), sessionID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	text := pick(snap)
	if text == "" {
		writeError(c, http.StatusNotFound, "nothing to download for "+name)
		return
	}
	c.Header("Content-Disposition", export.ContentDisposition(name))
	c.Data(http.StatusOK, export.TextContentType, export.PlainText(text))
}

func (s *Server) handleDownloadFlashcards(c *gin.Context) {
	snap, _, err := s.study.Results(c.Request.Context(), sessionID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	if len(snap.Flashcards) == 0 {
		writeError(c, http.StatusNotFound, "nothing to download for "+export.FlashcardsFile)
		return
	}
	body, err := export.FlashcardsCSV(snap.Flashcards)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", export.ContentDisposition(export.FlashcardsFile))
	c.Data(http.StatusOK, export.CSVContentType, body)
}

func (s *Server) handleListGenerations(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	gens, err := s.study.Generations(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if gens == nil {
		gens = []models.Generation{}
	}
	writeJSON(c, http.StatusOK, gin.H{"generations": gens})
}
