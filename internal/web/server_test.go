package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"pharmabot/internal/ocr"
	"pharmabot/internal/prescription"
	"pharmabot/internal/render"
)

const reply = `Patient Information:
- Patient's Full Name: Jane Doe
Medications:
- Medication Name: Amoxicillin
  Dosage: 500mg
`

type fakeAnalyzer struct {
	analyzeErr error
	askErr     error
	answer     string
	questions  []string
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, image io.Reader) (*prescription.Analysis, error) {
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	data, _ := io.ReadAll(image)
	return &prescription.Analysis{
		ID:            "a-1",
		ExtractedText: "read " + string(data),
		Completion:    reply,
		Record:        prescription.Parse(reply),
	}, nil
}

func (f *fakeAnalyzer) AnalyzeText(ctx context.Context, text string) (*prescription.Analysis, error) {
	return f.Analyze(ctx, strings.NewReader(text))
}

func (f *fakeAnalyzer) Ask(ctx context.Context, question string) (string, error) {
	f.questions = append(f.questions, question)
	if strings.TrimSpace(question) == "" {
		return "", prescription.ErrEmptyQuestion
	}
	return f.answer, f.askErr
}

func uploadRequest(t *testing.T, target, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(UploadField, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(content)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndex(t *testing.T) {
	s := NewServer(&fakeAnalyzer{}, Options{})
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	for _, want := range []string{"Upload a Prescription Image", "Ask Pharmabot a Question", `name="prescription"`} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("page missing %q", want)
		}
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestAnalyzePage(t *testing.T) {
	s := NewServer(&fakeAnalyzer{}, Options{})
	rec := serve(s, uploadRequest(t, "/analyze", "rx.PNG", []byte("pixels")))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{"<th>Patient&#39;s Full Name</th>", "<td>Jane Doe</td>", "<td>Amoxicillin</td>", "data:image/png;base64,"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestAnalyzePageNoText(t *testing.T) {
	s := NewServer(&fakeAnalyzer{analyzeErr: prescription.ErrNoTextExtracted}, Options{})
	rec := serve(s, uploadRequest(t, "/analyze", "rx.jpg", []byte("pixels")))

	if !strings.Contains(rec.Body.String(), prescription.NoTextWarning) {
		t.Errorf("warning not shown: %s", rec.Body.String())
	}
}

func TestAnalyzePageCompletionFailure(t *testing.T) {
	err := &prescription.AnalysisError{Stage: prescription.StageCompletion, Err: errors.New("quota")}
	s := NewServer(&fakeAnalyzer{analyzeErr: err}, Options{})
	rec := serve(s, uploadRequest(t, "/analyze", "rx.jpg", []byte("pixels")))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("got status %d, want 502", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "No Medicine Information Found") {
		t.Error("tables rendered for a failed completion")
	}
}

func TestAnalyzePageRejectsFileType(t *testing.T) {
	s := NewServer(&fakeAnalyzer{}, Options{})
	rec := serve(s, uploadRequest(t, "/analyze", "rx.pdf", []byte("%PDF")))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want 400", rec.Code)
	}
}

func TestAskPage(t *testing.T) {
	analyzer := &fakeAnalyzer{answer: "Take with water."}
	s := NewServer(analyzer, Options{})

	form := url.Values{"question": {"How do I take it?"}}
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(s, req)

	body := rec.Body.String()
	if !strings.Contains(body, "<strong>You:</strong> How do I take it?") {
		t.Errorf("question not echoed: %s", body)
	}
	if !strings.Contains(body, "<strong>Pharmabot:</strong> Take with water.") {
		t.Errorf("answer not shown: %s", body)
	}
}

func TestAskPageFailure(t *testing.T) {
	s := NewServer(&fakeAnalyzer{askErr: errors.New("offline")}, Options{})

	form := url.Values{"question": {"hello"}}
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(s, req)

	if !strings.Contains(rec.Body.String(), "Sorry, I couldn&#39;t process that question.") {
		t.Errorf("fallback reply not shown: %s", rec.Body.String())
	}
}

func TestAskPageBlankQuestion(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	s := NewServer(analyzer, Options{})

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader("question=+"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(s, req)

	if rec.Code != http.StatusOK {
		t.Errorf("got status %d, want 200", rec.Code)
	}
	if len(analyzer.questions) != 0 {
		t.Error("blank question forwarded to the model")
	}
}

func TestAPIPrescriptions(t *testing.T) {
	s := NewServer(&fakeAnalyzer{}, Options{})
	rec := serve(s, uploadRequest(t, "/api/v1/prescriptions", "rx.jpeg", []byte("pixels")))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var got struct {
		ExtractedText string `json:"extracted_text"`
		Completion    string `json:"completion"`
		Record        struct {
			Patient     map[string]string   `json:"patient_information"`
			Medications []map[string]string `json:"medications"`
		} `json:"record"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ExtractedText != "read pixels" {
		t.Errorf("got extracted text %q", got.ExtractedText)
	}
	if got.Record.Patient["Patient's Full Name"] != "Jane Doe" {
		t.Errorf("unexpected patient: %v", got.Record.Patient)
	}
	if len(got.Record.Medications) != 1 || got.Record.Medications[0]["Dosage"] != "500mg" {
		t.Errorf("unexpected medications: %v", got.Record.Medications)
	}
}

func TestAPIPrescriptionsXLSX(t *testing.T) {
	s := NewServer(&fakeAnalyzer{}, Options{})
	rec := serve(s, uploadRequest(t, "/api/v1/prescriptions?format=xlsx", "rx.png", []byte("pixels")))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != render.XLSXContentType {
		t.Errorf("got content type %q", ct)
	}
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	if v, _ := f.GetCellValue(render.MedicationsTitle, "A2"); v != "Amoxicillin" {
		t.Errorf("got %q, want Amoxicillin", v)
	}
}

func TestAPIPrescriptionsErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"no text", prescription.ErrNoTextExtracted, http.StatusUnprocessableEntity},
		{"bad image", &prescription.AnalysisError{Stage: prescription.StageOCR, Err: ocr.ErrInvalidImage}, http.StatusBadRequest},
		{"model down", &prescription.AnalysisError{Stage: prescription.StageCompletion, Err: errors.New("503")}, http.StatusBadGateway},
		{"timeout", &prescription.AnalysisError{Stage: prescription.StageCompletion, Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(&fakeAnalyzer{analyzeErr: tt.err}, Options{})
			rec := serve(s, uploadRequest(t, "/api/v1/prescriptions", "rx.png", []byte("x")))
			if rec.Code != tt.status {
				t.Errorf("got status %d, want %d", rec.Code, tt.status)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Error == "" {
				t.Errorf("expected error body, got %q", rec.Body.String())
			}
		})
	}
}

func TestAPIParse(t *testing.T) {
	s := NewServer(&fakeAnalyzer{}, Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/parse", strings.NewReader(reply))
	req.Header.Set("Content-Type", "text/plain")
	rec := serve(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	want := `{"patient_information":{"Patient's Full Name":"Jane Doe"},"medications":[{"Medication Name":"Amoxicillin","Dosage":"500mg"}]}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestAPIAsk(t *testing.T) {
	s := NewServer(&fakeAnalyzer{answer: "Yes."}, Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(`{"question":"Is it safe?"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	var resp askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "Yes." {
		t.Errorf("got %q, want %q", resp.Answer, "Yes.")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(`{"question":""}`))
	req.Header.Set("Content-Type", "application/json")
	if rec := serve(s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("got status %d for empty question, want 400", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s := NewServer(&fakeAnalyzer{}, Options{})
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("got status %d, want 200", rec.Code)
	}
}
