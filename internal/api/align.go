package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"subalign/internal/alignment"
	"subalign/internal/language"
	"subalign/internal/logging"
	"subalign/internal/services"
	"subalign/internal/staging"
	"subalign/internal/subtitles"
	"subalign/internal/textutil"
	"subalign/internal/workflow"
)

// multipartMemory is how much of a form is buffered before spilling to temp
// files.
const multipartMemory = 32 << 20

// alignParams are the validated form fields of a submission.
type alignParams struct {
	Language  string
	ModelSize string
	BatchID   string
	Output    subtitles.Options
}

// requestError carries an HTTP status for validation failures.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

func (s *Server) handleAlign(w http.ResponseWriter, r *http.Request) {
	logger := logging.WithContext(r.Context(), s.logger)
	if r.ContentLength > s.opts.MaxUploadBytes {
		s.respondTooLarge(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondTooLarge(w)
			return
		}
		writeError(w, http.StatusBadRequest, "request must be multipart/form-data")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	audio, audioHeader, err := formFile(r, "audio")
	if err != nil {
		s.respondRequestError(w, err)
		return
	}
	defer audio.Close()
	text, textHeader, err := formFile(r, "text")
	if err != nil {
		s.respondRequestError(w, err)
		return
	}
	defer text.Close()

	params, err := s.parseParams(r)
	if err != nil {
		s.respondRequestError(w, err)
		return
	}

	taskID := uuid.NewString()
	ctx := services.WithTaskID(r.Context(), taskID)
	audioPath, textPath, err := s.stage(taskID, audioHeader.Filename, audio, textHeader.Filename, text)
	if err != nil {
		s.respondRequestError(w, err)
		return
	}
	staged := []string{audioPath, textPath}
	discard := func() {
		if err := staging.Remove(staged...); err != nil {
			logger.Warn("failed to remove rejected upload", logging.Error(err))
		}
	}

	transcript, err := staging.ReadText(textPath)
	if err != nil {
		discard()
		if errors.Is(err, staging.ErrNotText) {
			writeError(w, http.StatusBadRequest, "transcript must be UTF-8 or UTF-16 text")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read transcript")
		return
	}
	if transcript == "" {
		discard()
		writeError(w, http.StatusBadRequest, "transcript is empty")
		return
	}

	job := alignment.Job{
		TaskID:      taskID,
		AudioPath:   audioPath,
		AudioName:   audioHeader.Filename,
		Text:        transcript,
		Language:    params.Language,
		ModelSize:   params.ModelSize,
		BatchID:     params.BatchID,
		Output:      params.Output,
		StagedFiles: staged,
	}
	if _, err := s.opts.Queue.Enqueue(ctx, job); err != nil {
		discard()
		switch {
		case errors.Is(err, workflow.ErrQueueFull):
			writeError(w, http.StatusServiceUnavailable, "server is busy, retry later")
		case errors.Is(err, workflow.ErrNotRunning):
			writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		default:
			logging.ErrorWithContext(logging.WithContext(ctx, s.logger), "failed to enqueue task", "enqueue_failed", logging.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, AlignResponse{TaskID: taskID})
}

func (s *Server) respondTooLarge(w http.ResponseWriter) {
	writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d MB", s.opts.MaxUploadBytes>>20))
}

func formFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, badRequest("audio and text files are required")
	}
	if strings.TrimSpace(header.Filename) == "" {
		file.Close()
		return nil, nil, badRequest("file names must not be empty")
	}
	return file, header, nil
}

func (s *Server) parseParams(r *http.Request) (alignParams, error) {
	var p alignParams

	lang := strings.TrimSpace(r.FormValue("language"))
	if lang == "" {
		lang = s.opts.DefaultLanguage
	}
	normalized, err := language.Normalize(lang)
	if err != nil {
		return p, badRequest("invalid language %q", lang)
	}
	p.Language = normalized

	p.ModelSize = strings.ToLower(strings.TrimSpace(r.FormValue("model_size")))
	if p.ModelSize == "" {
		p.ModelSize = s.opts.DefaultModel
	}

	format := r.FormValue("output_format")
	if strings.TrimSpace(format) == "" {
		format = string(subtitles.FormatSRT)
	}
	if p.Output.Format, err = subtitles.ParseFormat(format); err != nil {
		return p, badRequest("%v", err)
	}

	mode := r.FormValue("subtitle_mode")
	if strings.TrimSpace(mode) == "" {
		mode = string(subtitles.ModeSegment)
	}
	if p.Output.Mode, err = subtitles.ParseMode(mode); err != nil {
		return p, badRequest("%v", err)
	}

	color := strings.TrimSpace(r.FormValue("highlight_color"))
	if color == "" {
		color = subtitles.DefaultHighlightColor
	}
	p.Output.Style = subtitles.Style{
		Color:     color,
		Bold:      r.FormValue("style_bold") == "true",
		Italic:    r.FormValue("style_italic") == "true",
		Underline: r.FormValue("style_underline") == "true",
	}

	p.BatchID = strings.TrimSpace(r.FormValue("batch_id"))
	if p.BatchID != "" && !textutil.IsSafePathElement(p.BatchID) {
		return p, badRequest("invalid batch_id %q", p.BatchID)
	}
	return p, nil
}

func (s *Server) stage(taskID, audioName string, audio io.Reader, textName string, text io.Reader) (string, string, error) {
	audioPath, err := s.opts.Staging.Save(taskID, audioName, audio)
	if err != nil {
		return "", "", stageError(err)
	}
	textPath, err := s.opts.Staging.Save(taskID, textName, text)
	if err != nil {
		_ = staging.Remove(audioPath)
		return "", "", stageError(err)
	}
	return audioPath, textPath, nil
}

func stageError(err error) error {
	if errors.Is(err, staging.ErrEmptyName) {
		return badRequest("file names must not be empty")
	}
	return err
}

func (s *Server) respondRequestError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeError(w, reqErr.status, reqErr.message)
		return
	}
	s.logger.Error("failed to stage upload", logging.Error(err))
	writeError(w, http.StatusInternalServerError, "failed to store upload")
}
