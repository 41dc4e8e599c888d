package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supportdesk/go-kb-backend/internal/domain"
	"github.com/supportdesk/go-kb-backend/internal/ingest"
	"github.com/supportdesk/go-kb-backend/internal/services"
)

// ---------- flexible service stubs ----------

type stubDocSvc struct {
	upload    func(context.Context, int, string, string, string, []byte) (*domain.Document, error)
	reprocess func(context.Context, string) error
	del       func(context.Context, string) error
	get       func(context.Context, string) (*domain.Document, ingest.JobState, error)
	listPage  func(context.Context, int, int, int) ([]domain.Document, int64, error)
	download  func(context.Context, string) (string, error)
}

func (s stubDocSvc) Upload(ctx context.Context, sid int, title, fn, ct string, data []byte) (*domain.Document, error) {
	if s.upload != nil {
		return s.upload(ctx, sid, title, fn, ct, data)
	}
	return &domain.Document{ID: uuid.NewString(), ServiceID: sid, Title: title, Status: domain.StatusPending}, nil
}

func (s stubDocSvc) Reprocess(ctx context.Context, id string) error {
	if s.reprocess != nil {
		return s.reprocess(ctx, id)
	}
	return nil
}

func (s stubDocSvc) Delete(ctx context.Context, id string) error {
	if s.del != nil {
		return s.del(ctx, id)
	}
	return nil
}

func (s stubDocSvc) Get(ctx context.Context, id string) (*domain.Document, ingest.JobState, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return &domain.Document{ID: id, Status: domain.StatusReady}, ingest.JobDone, nil
}

func (s stubDocSvc) ListPage(ctx context.Context, sid, p, ps int) ([]domain.Document, int64, error) {
	if s.listPage != nil {
		return s.listPage(ctx, sid, p, ps)
	}
	return nil, 0, nil
}

func (s stubDocSvc) DownloadURL(ctx context.Context, id string) (string, error) {
	if s.download != nil {
		return s.download(ctx, id)
	}
	return "https://store.local/documents/" + id, nil
}

type stubAskSvc struct {
	ask func(context.Context, string, int, string) (*services.Answer, error)
}

func (s stubAskSvc) Ask(ctx context.Context, u string, sid int, q string) (*services.Answer, error) {
	if s.ask != nil {
		return s.ask(ctx, u, sid, q)
	}
	return &services.Answer{Text: "ok", Grounded: true, ChunkIDs: []string{}}, nil
}

type stubStatsSvc struct {
	dashboard func(context.Context) (*services.Dashboard, error)
}

func (s stubStatsSvc) Dashboard(ctx context.Context) (*services.Dashboard, error) {
	if s.dashboard != nil {
		return s.dashboard(ctx)
	}
	return &services.Dashboard{}, nil
}

// ---------- helpers ----------

func multipartPDF(t *testing.T, serviceID, title, filename string, body []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if serviceID != "" {
		if err := mw.WriteField("service_id", serviceID); err != nil {
			t.Fatal(err)
		}
	}
	if title != "" {
		if err := mw.WriteField("title", title); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(body); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func newDocRouter(docSvc DocumentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(docSvc, stubAskSvc{}, stubStatsSvc{})
	r := gin.New()
	r.POST("/documents", h.UploadDocument)
	r.GET("/documents", h.ListDocuments)
	r.GET("/documents/:id", h.GetDocument)
	r.POST("/documents/:id/reprocess", h.ReprocessDocument)
	r.GET("/documents/:id/download", h.DownloadDocument)
	r.DELETE("/documents/:id", h.DeleteDocument)
	return r
}

// ---------- UploadDocument ----------

func TestUploadDocument_AcceptedAndValidation(t *testing.T) {
	// Success -> 202 with PENDING doc and queued job state
	{
		var got struct {
			sid   int
			title string
			fn    string
		}
		r := newDocRouter(stubDocSvc{
			upload: func(_ context.Context, sid int, title, fn, _ string, _ []byte) (*domain.Document, error) {
				got.sid, got.title, got.fn = sid, title, fn
				return &domain.Document{ID: uuid.NewString(), ServiceID: sid, Title: title, Status: domain.StatusPending}, nil
			},
		})

		buf, ct := multipartPDF(t, "3", "Install Guide", "guide.pdf", []byte("%PDF"))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/documents", buf)
		req.Header.Set("Content-Type", ct)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusAccepted {
			t.Fatalf("upload -> %d body=%s", w.Code, w.Body.String())
		}
		if got.sid != 3 || got.title != "Install Guide" || got.fn != "guide.pdf" {
			t.Fatalf("service args mismatch: %+v", got)
		}
		var out DocumentResponse
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.Status != domain.StatusPending || out.JobState != "queued" {
			t.Fatalf("unexpected response: %+v", out)
		}
	}

	// Missing service_id -> 400
	{
		r := newDocRouter(stubDocSvc{})
		buf, ct := multipartPDF(t, "", "", "guide.pdf", []byte("%PDF"))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/documents", buf)
		req.Header.Set("Content-Type", ct)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("missing service_id -> %d", w.Code)
		}
	}

	// Missing file -> 400
	{
		r := newDocRouter(stubDocSvc{})
		buf, ct := multipartPDF(t, "3", "", "", nil)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/documents", buf)
		req.Header.Set("Content-Type", ct)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("missing file -> %d", w.Code)
		}
	}
}

func TestUploadDocument_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
		code string
	}{
		{services.ErrNotPDF, http.StatusUnsupportedMediaType, ErrCodeUnsupportedFile},
		{services.ErrFileTooLarge, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge},
		{services.ErrDuplicateDocument, http.StatusConflict, ErrCodeConflict},
		{services.ErrIngestionBusy, http.StatusServiceUnavailable, ErrCodeUnavailable},
		{services.ErrServiceNotFound, http.StatusNotFound, ErrCodeNotFound},
		{gorm.ErrInvalidField, http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		r := newDocRouter(stubDocSvc{
			upload: func(context.Context, int, string, string, string, []byte) (*domain.Document, error) {
				return nil, tc.err
			},
		})
		buf, ct := multipartPDF(t, "1", "", "a.pdf", []byte("x"))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/documents", buf)
		req.Header.Set("Content-Type", ct)
		r.ServeHTTP(w, req)

		if w.Code != tc.want {
			t.Fatalf("%v -> %d, want %d", tc.err, w.Code, tc.want)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("json: %v", err)
		}
		if resp.Code != tc.code {
			t.Fatalf("%v -> code %q, want %q", tc.err, resp.Code, tc.code)
		}
	}
}

// ---------- GetDocument ----------

func TestGetDocument_JobStateAndErrors(t *testing.T) {
	id := uuid.NewString()
	r := newDocRouter(stubDocSvc{
		get: func(_ context.Context, got string) (*domain.Document, ingest.JobState, error) {
			if got != id {
				t.Fatalf("id = %q", got)
			}
			return &domain.Document{ID: id, Status: domain.StatusProcessing}, ingest.JobRunning, nil
		},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get -> %d", w.Code)
	}
	var out DocumentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Status != domain.StatusProcessing || out.JobState != "running" {
		t.Fatalf("unexpected response: %+v", out)
	}

	// bad UUID -> 400
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/not-a-uuid", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad uuid -> %d", w.Code)
	}

	// not found -> 404
	r = newDocRouter(stubDocSvc{
		get: func(context.Context, string) (*domain.Document, ingest.JobState, error) {
			return nil, "", services.ErrDocumentNotFound
		},
	})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/"+uuid.NewString(), nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("not found -> %d", w.Code)
	}
}

// ---------- ReprocessDocument ----------

func TestReprocessDocument_AcceptedAndConflict(t *testing.T) {
	id := uuid.NewString()

	r := newDocRouter(stubDocSvc{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/documents/"+id+"/reprocess", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("reprocess -> %d", w.Code)
	}

	r = newDocRouter(stubDocSvc{
		reprocess: func(context.Context, string) error { return services.ErrInvalidState },
	})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/documents/"+id+"/reprocess", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("invalid state -> %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Code != ErrCodeInvalidState {
		t.Fatalf("code = %q", resp.Code)
	}
}

// ---------- ListDocuments ----------

func TestListDocuments_PaginationAndFilter(t *testing.T) {
	var gotSID, gotPage, gotPS int
	r := newDocRouter(stubDocSvc{
		listPage: func(_ context.Context, sid, p, ps int) ([]domain.Document, int64, error) {
			gotSID, gotPage, gotPS = sid, p, ps
			return []domain.Document{{ID: uuid.NewString()}}, 3, nil
		},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents?service_id=7&page=2&page_size=1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d", w.Code)
	}
	if gotSID != 7 || gotPage != 2 || gotPS != 1 {
		t.Fatalf("args = sid=%d page=%d ps=%d", gotSID, gotPage, gotPS)
	}
	var out ListDocumentsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Pagination.Total != 3 || out.Pagination.TotalPages != 3 || !out.Pagination.HasNext {
		t.Fatalf("pagination mismatch: %#v", out.Pagination)
	}
}

// ---------- DownloadDocument / DeleteDocument ----------

func TestDownloadAndDelete(t *testing.T) {
	id := uuid.NewString()

	r := newDocRouter(stubDocSvc{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/"+id+"/download", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("download -> %d", w.Code)
	}
	var dl DownloadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &dl); err != nil {
		t.Fatalf("json: %v", err)
	}
	if dl.URL == "" {
		t.Fatal("empty download url")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete -> %d", w.Code)
	}

	r = newDocRouter(stubDocSvc{
		del: func(context.Context, string) error { return services.ErrDocumentNotFound },
	})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("delete missing -> %d", w.Code)
	}
}
