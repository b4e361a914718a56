package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"livechat/backend/internal/models"
)

var errGone = errors.New("session no longer exists")

type apiClient struct {
	base string
	http *http.Client
}

func newAPI(base string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (a *apiClient) wsURL(path string) string {
	switch {
	case strings.HasPrefix(a.base, "https://"):
		return "wss://" + strings.TrimPrefix(a.base, "https://") + path
	case strings.HasPrefix(a.base, "http://"):
		return "ws://" + strings.TrimPrefix(a.base, "http://") + path
	}
	return a.base + path
}

func (a *apiClient) do(req *http.Request, out any) error {
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", errGone, body.Error)
		}
		if body.Error == "" {
			body.Error = resp.Status
		}
		return errors.New(body.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *apiClient) createSession(ctx context.Context, name string) (*models.Session, string, error) {
	payload, _ := json.Marshal(map[string]string{"name": name})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/api/sessions", bytes.NewReader(payload))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp struct {
		Session models.Session `json:"session"`
		Token   string         `json:"token"`
	}
	if err := a.do(req, &resp); err != nil {
		return nil, "", fmt.Errorf("create chat: %w", err)
	}
	return &resp.Session, resp.Token, nil
}

func (a *apiClient) session(ctx context.Context, token string) (*models.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.base+"/api/session", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var s models.Session
	if err := a.do(req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// upload streams a file as multipart without buffering it in memory.
func (a *apiClient) upload(ctx context.Context, token, path string) (*models.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/api/uploads", pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	var msg models.Message
	if err := a.do(req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
