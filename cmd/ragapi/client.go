package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/ragapi/internal/models"
)

// apiClient talks to a running ragapi server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// Ingest uploads files as one multipart request.
func (c *apiClient) Ingest(ctx context.Context, paths []string) ([]*models.IngestResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range paths {
		if err := addFilePart(mw, p); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	var out []*models.IngestResult
	err := c.do(ctx, http.MethodPost, "/ingest", mw.FormDataContentType(), &buf, http.StatusOK, &out)
	return out, err
}

func addFilePart(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	part, err := mw.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

func (c *apiClient) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	var out models.QueryResponse
	if err := c.doJSON(ctx, http.MethodPost, "/query", req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Delete(ctx context.Context, docID string) (*models.DeleteResponse, error) {
	var out models.DeleteResponse
	if err := c.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(docID), "", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Status(ctx context.Context) (*models.StatusResponse, error) {
	var out models.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/status", "", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) WatchList(ctx context.Context) ([]string, error) {
	var out struct {
		Directories []string `json:"directories"`
	}
	err := c.do(ctx, http.MethodGet, "/watch/directories", "", nil, http.StatusOK, &out)
	return out.Directories, err
}

func (c *apiClient) WatchAdd(ctx context.Context, path string) error {
	sync := true
	return c.doJSON(ctx, http.MethodPost, "/watch/directories", models.WatchDirectoryRequest{Path: path, Sync: &sync}, http.StatusCreated, nil)
}

func (c *apiClient) WatchRemove(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, "/watch/directories?path="+url.QueryEscape(path), "", nil, http.StatusOK, nil)
}

func (c *apiClient) doJSON(ctx context.Context, method, path string, in interface{}, want int, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, "application/json", bytes.NewReader(body), want, out)
}

func (c *apiClient) do(ctx context.Context, method, path, contentType string, body io.Reader, want int, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
