package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"pharmabot/internal/ocr"
	"pharmabot/internal/prescription"
	"pharmabot/internal/render"
)

// UploadField is the multipart field holding the prescription image.
const UploadField = "prescription"

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

type pageData struct {
	Image    template.URL
	Warning  string
	Error    string
	Result   *pageResult
	Question string
	Answer   string
}

type pageResult struct {
	PatientHeader    []string
	PatientRow       []string
	MedicationHeader []string
	MedicationRows   [][]string
	ExtractedText    string
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type askRequest struct {
	Question string `json:"question" form:"question"`
}

type askResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (s *Server) handleIndex(c echo.Context) error {
	return c.Render(http.StatusOK, "index.html", pageData{})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(c echo.Context) error {
	data, mime, err := readUpload(c)
	if err != nil {
		return c.Render(http.StatusBadRequest, "index.html", pageData{Error: err.Error()})
	}

	page := pageData{
		Image: template.URL("data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)),
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	analysis, err := s.analyzer.Analyze(ctx, bytes.NewReader(data))
	switch {
	case errors.Is(err, prescription.ErrNoTextExtracted):
		page.Warning = prescription.NoTextWarning
		return c.Render(http.StatusOK, "index.html", page)
	case prescription.StageOf(err) == prescription.StageOCR:
		page.Error = fmt.Sprintf("Error during text extraction: %v", err)
		return c.Render(statusFor(err), "index.html", page)
	case prescription.StageOf(err) == prescription.StageCompletion:
		page.Error = fmt.Sprintf("Error getting structured data from the model: %v", err)
		return c.Render(statusFor(err), "index.html", page)
	case err != nil:
		return err
	}

	patientHeader, patientRow := render.PatientRow(analysis.Record.Patient)
	medicationHeader, medicationRows := render.MedicationRows(analysis.Record.Medications)
	page.Result = &pageResult{
		PatientHeader:    patientHeader,
		PatientRow:       patientRow,
		MedicationHeader: medicationHeader,
		MedicationRows:   medicationRows,
		ExtractedText:    analysis.ExtractedText,
	}
	return c.Render(http.StatusOK, "index.html", page)
}

func (s *Server) handleAsk(c echo.Context) error {
	question := c.FormValue("question")
	if strings.TrimSpace(question) == "" {
		return c.Render(http.StatusOK, "index.html", pageData{})
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	answer, err := s.analyzer.Ask(ctx, question)
	if err != nil {
		answer = prescription.ChatFallbackReply
	}
	return c.Render(http.StatusOK, "index.html", pageData{Question: question, Answer: answer})
}

func (s *Server) handleAPIPrescriptions(c echo.Context) error {
	data, _, err := readUpload(c)
	if err != nil {
		return s.jsonError(c, http.StatusBadRequest, err)
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	analysis, err := s.analyzer.Analyze(ctx, bytes.NewReader(data))
	if err != nil {
		return s.jsonError(c, statusFor(err), err)
	}

	if c.QueryParam("format") == render.FormatXLSX {
		workbook, err := render.WorkbookXLSX(analysis.Record)
		if err != nil {
			return err
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="prescription.xlsx"`)
		return c.Blob(http.StatusOK, render.XLSXContentType, workbook)
	}
	return c.JSON(http.StatusOK, analysis)
}

func (s *Server) handleAPIParse(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return s.jsonError(c, http.StatusBadRequest, err)
	}
	return c.JSON(http.StatusOK, prescription.Parse(string(body)))
}

func (s *Server) handleAPIAsk(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return s.jsonError(c, http.StatusBadRequest, err)
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	answer, err := s.analyzer.Ask(ctx, req.Question)
	if err != nil {
		return s.jsonError(c, statusFor(err), err)
	}
	return c.JSON(http.StatusOK, askResponse{Question: req.Question, Answer: answer})
}

func (s *Server) requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), s.opts.RequestTimeout)
}

func (s *Server) jsonError(c echo.Context, status int, err error) error {
	rid, _ := c.Get("request_id").(string)
	message := err.Error()
	switch {
	case errors.Is(err, prescription.ErrNoTextExtracted):
		message = prescription.NoTextWarning
	case prescription.StageOf(err) == prescription.StageChat:
		message = prescription.ChatFallbackReply
	}
	return c.JSON(status, errorResponse{Error: message, RequestID: rid})
}

// readUpload returns the uploaded image bytes and their media type.
func readUpload(c echo.Context) ([]byte, string, error) {
	header, err := c.FormFile(UploadField)
	if err != nil {
		return nil, "", fmt.Errorf("missing %q upload: %w", UploadField, err)
	}

	mime, ok := allowedExtensions[strings.ToLower(filepath.Ext(header.Filename))]
	if !ok {
		return nil, "", fmt.Errorf("unsupported file type %q: upload a jpg, jpeg or png image", filepath.Ext(header.Filename))
	}

	file, err := header.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, ocr.MaxImageSizeBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > ocr.MaxImageSizeBytes {
		return nil, "", ocr.ErrImageTooLarge
	}
	return data, mime, nil
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, prescription.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, prescription.ErrNoTextExtracted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ocr.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, ocr.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ocr.ErrContextCanceled):
		return http.StatusGatewayTimeout
	case prescription.StageOf(err) != "":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
