package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mgreene/runlab/internal/config"
	"github.com/mgreene/runlab/internal/ocr"
	"github.com/mgreene/runlab/internal/sandbox"
	"github.com/mgreene/runlab/internal/storage"
	"github.com/mgreene/runlab/internal/storage/sqlite"
)

func testStoreServer(t *testing.T, engine ocr.Engine) (storage.Store, *Server) {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("opening memory db: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, New(&config.Config{}, store, &fakeRunner{}, engine)
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
}

func TestCompileCode_ReturnsOutput(t *testing.T) {
	runner := &fakeRunner{
		once: func(ctx context.Context, language, code string) (*sandbox.Result, error) {
			return &sandbox.Result{Output: "hello\n", Errors: ""}, nil
		},
	}
	s := testServer(t, runner)

	w := doJSON(t, s, http.MethodPost, "/compile-code", `{"code": "print('hello')"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	decodeBody(t, w, &resp)
	if resp["output"] != "hello\n" || resp["errors"] != "" {
		t.Errorf("got %v", resp)
	}

	// The run is recorded.
	runs, err := s.store.ListRuns(context.Background(), storage.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Output != "hello\n" || runs[0].Language != "python" {
		t.Errorf("got runs %+v", runs)
	}
}

func TestCompileCode_EmptyCode(t *testing.T) {
	runner := &fakeRunner{
		once: func(ctx context.Context, language, code string) (*sandbox.Result, error) {
			return nil, sandbox.ErrEmptyCode
		},
	}
	s := testServer(t, runner)

	w := doJSON(t, s, http.MethodPost, "/compile-code", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}

	var resp map[string]string
	decodeBody(t, w, &resp)
	if resp["error"] != "No code provided" {
		t.Errorf("got %v", resp)
	}
}

func TestCompileCode_Timeout(t *testing.T) {
	runner := &fakeRunner{
		once: func(ctx context.Context, language, code string) (*sandbox.Result, error) {
			return nil, sandbox.ErrTimeout
		},
	}
	s := testServer(t, runner)

	w := doJSON(t, s, http.MethodPost, "/compile-code", `{"code": "while True: pass"}`)
	if w.Code != http.StatusRequestTimeout {
		t.Fatalf("status %d, want 408", w.Code)
	}

	var resp map[string]string
	decodeBody(t, w, &resp)
	if resp["error"] != "Code execution timed out" {
		t.Errorf("got %v", resp)
	}
}

func multipartUpload(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := mw.CreateFormFile("images", name)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(data)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadImage_StoresAndExtracts(t *testing.T) {
	store, s := testStoreServer(t, &fakeOCR{text: "recognized text"})

	body, contentType := multipartUpload(t, map[string][]byte{
		"a.png": []byte("png-bytes-a"),
		"b.png": []byte("png-bytes-b"),
	})
	req := httptest.NewRequest(http.MethodPost, "/upload-image", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Message  string            `json:"message"`
		Files    []string          `json:"files"`
		OCRTexts map[string]string `json:"ocr_texts"`
	}
	decodeBody(t, w, &resp)

	if resp.Message != "2 images uploaded successfully" {
		t.Errorf("message = %q", resp.Message)
	}
	if len(resp.Files) != 2 {
		t.Errorf("files = %v", resp.Files)
	}
	if resp.OCRTexts["a.png"] != "recognized text" {
		t.Errorf("ocr_texts = %v", resp.OCRTexts)
	}

	// Documents are persisted with base64 data.
	images, err := store.ListImages(context.Background(), storage.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(images) != 2 {
		t.Fatalf("got %d stored images, want 2", len(images))
	}
	full, err := store.GetImage(context.Background(), images[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := base64.StdEncoding.DecodeString(full.Data); err != nil {
		t.Errorf("stored data is not base64: %v", err)
	}
}

func TestUploadImage_NoFiles(t *testing.T) {
	_, s := testStoreServer(t, &fakeOCR{})

	body, contentType := multipartUpload(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/upload-image", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}

	var resp map[string]string
	decodeBody(t, w, &resp)
	if resp["error"] != "No image files provided" {
		t.Errorf("got %v", resp)
	}
}

func TestGetImage_NotFound(t *testing.T) {
	_, s := testStoreServer(t, &fakeOCR{})

	w := doJSON(t, s, http.MethodGet, "/api/images/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", w.Code)
	}
}

func TestListRuns_EmptyIsArray(t *testing.T) {
	_, s := testStoreServer(t, &fakeOCR{})

	w := doJSON(t, s, http.MethodGet, "/api/runs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", w.Code)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}
