package uploads_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"portfolio-backend/internal/bootstrap"
	"portfolio-backend/internal/shared/config"
)

func newTestApp(t *testing.T) *bootstrap.App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	app, err := bootstrap.Build(config.Config{
		Port:            "0",
		Env:             "dev",
		CORSAllowOrigin: []string{"http://localhost:3000"},
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		SessionStore:    "memory",
		LLMProvider:     "mock",
		Dispatcher:      "local",
	})
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app
}

func multipartBody(t *testing.T, fileName string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileName != "" {
		fw, err := writer.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func TestUploadReturnsUploadID(t *testing.T) {
	app := newTestApp(t)

	body, contentType := multipartBody(t, "holdings.pdf", []byte("%PDF-1.4\n%%EOF\n"), map[string]string{"phoneNumber": "+919876543210"})
	req := httptest.NewRequest(http.MethodPost, "/api/review/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var out struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		UploadID string `json:"uploadId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Success || out.UploadID == "" || out.Message != "File uploaded successfully" {
		t.Fatalf("unexpected response: %+v", out)
	}

	sess, err := app.Sessions.Get(context.Background(), out.UploadID)
	if err != nil {
		t.Fatalf("session not created: %v", err)
	}
	if sess.PhoneNumber != "+919876543210" {
		t.Fatalf("phone number = %q", sess.PhoneNumber)
	}
}

func TestUploadValidation(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name     string
		fileName string
		content  []byte
		wantCode string
	}{
		{name: "missing file", wantCode: "validation_error"},
		{name: "not a pdf", fileName: "notes.txt", content: []byte("just some notes"), wantCode: "invalid_file"},
		{name: "empty file", fileName: "empty.pdf", content: nil, wantCode: "invalid_file"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tc.fileName, tc.content, map[string]string{"phoneNumber": "1"})
			req := httptest.NewRequest(http.MethodPost, "/api/review/upload", body)
			req.Header.Set("Content-Type", contentType)
			resp := httptest.NewRecorder()
			app.Router.ServeHTTP(resp, req)

			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
			}
			var out errorBody
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Success || out.Code != tc.wantCode {
				t.Fatalf("unexpected error body: %+v", out)
			}
		})
	}
}

func TestFileURLEndpoint(t *testing.T) {
	app := newTestApp(t)

	body, contentType := multipartBody(t, "holdings.pdf", []byte("%PDF-1.4\n%%EOF\n"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/review/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	var created struct {
		UploadID string `json:"uploadId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil || created.UploadID == "" {
		t.Fatalf("upload failed: %d %v", resp.Code, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/review/file-url?id="+created.UploadID, nil)
	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var out struct {
		Success bool `json:"success"`
		Data    struct {
			URL              string `json:"url"`
			ExpiresInSeconds int64  `json:"expiresInSeconds"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Success || out.Data.URL == "" || out.Data.ExpiresInSeconds != 86400 {
		t.Fatalf("unexpected response: %+v", out)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/review/file-url?id=missing", nil)
	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/review/file-url", nil)
	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
