package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOpenAIDescribeScene(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "  A misty valley at sunrise.  "}},
			},
		})
	}))
	defer server.Close()

	c := &openAIClient{apiKey: "sk-test", baseURL: server.URL, httpClient: &http.Client{Timeout: time.Second}}
	scene, err := c.DescribeScene(context.Background(), "Article body")
	if err != nil {
		t.Fatalf("DescribeScene: %v", err)
	}
	if scene != "A misty valley at sunrise." {
		t.Errorf("scene = %q", scene)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", gotBody["model"])
	}
}

func TestOpenAIDescribeSceneTruncatesContent(t *testing.T) {
	var gotBody struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "scene"}}},
		})
	}))
	defer server.Close()

	c := &openAIClient{apiKey: "k", baseURL: server.URL, httpClient: &http.Client{Timeout: time.Second}}
	if _, err := c.DescribeScene(context.Background(), strings.Repeat("x", 5000)); err != nil {
		t.Fatal(err)
	}
	if len(gotBody.Messages) != 2 {
		t.Fatalf("messages = %d", len(gotBody.Messages))
	}
	if len(gotBody.Messages[1].Content) > maxSceneInput+100 {
		t.Errorf("content not truncated: %d bytes", len(gotBody.Messages[1].Content))
	}
}

func TestOpenAIDescribeSceneEmptyResponseFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []map[string]any{}})
	}))
	defer server.Close()

	c := &openAIClient{apiKey: "k", baseURL: server.URL, httpClient: &http.Client{Timeout: time.Second}}
	scene, err := c.DescribeScene(context.Background(), "body")
	if err != nil {
		t.Fatal(err)
	}
	if scene != fallbackScene {
		t.Errorf("scene = %q, want fallback", scene)
	}
}

func TestOpenAIGenerateImageBase64(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString([]byte("image"))}},
		})
	}))
	defer server.Close()

	c := &openAIClient{apiKey: "k", baseURL: server.URL, httpClient: &http.Client{Timeout: time.Second}}
	payload, err := c.GenerateImage(context.Background(), "prompt", "16:9")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(payload.Bytes) != "image" {
		t.Errorf("bytes = %q", payload.Bytes)
	}
	if gotBody["size"] != "1792x1024" {
		t.Errorf("size = %v, want wide for 16:9", gotBody["size"])
	}
	if gotBody["model"] != "dall-e-3" {
		t.Errorf("model = %v", gotBody["model"])
	}
}

func TestOpenAIGenerateImageDownloadsURL(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/images/generations", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"url": server.URL + "/generated.png"}},
		})
	})
	mux.HandleFunc("/generated.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("downloaded image"))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	c := &openAIClient{apiKey: "k", baseURL: server.URL, httpClient: &http.Client{Timeout: time.Second}}
	payload, err := c.GenerateImage(context.Background(), "prompt", "16:9")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(payload.Bytes) != "downloaded image" {
		t.Errorf("bytes = %q", payload.Bytes)
	}
}

func TestOpenAIErrorsAreTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "billing hard limit reached"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := &openAIClient{apiKey: "k", baseURL: server.URL, httpClient: &http.Client{Timeout: time.Second}}
	_, err := c.DescribeScene(context.Background(), "body")
	if err == nil {
		t.Fatal("expected error")
	}
	var aerr *AIError
	if !errors.As(err, &aerr) {
		t.Fatalf("err = %T, want *AIError", err)
	}
	if aerr.Provider != providerOpenAI {
		t.Errorf("provider = %q", aerr.Provider)
	}
	if !strings.Contains(err.Error(), "billing hard limit") {
		t.Errorf("error lost response detail: %v", err)
	}
}

func TestGeminiDescribeScene(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.5-flash:generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotKey = r.URL.Query().Get("key")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": "A quiet library."}}}},
			},
		})
	}))
	defer server.Close()

	c := &geminiClient{apiKey: "gem-key", baseURL: server.URL, httpClient: &http.Client{Timeout: time.Second}}
	scene, err := c.DescribeScene(context.Background(), "body")
	if err != nil {
		t.Fatalf("DescribeScene: %v", err)
	}
	if scene != "A quiet library." {
		t.Errorf("scene = %q", scene)
	}
	if gotKey != "gem-key" {
		t.Errorf("key = %q, want it in the query string", gotKey)
	}
}

func TestGeminiGenerateImage(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "imagen-4.0-generate-001:predict") {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"predictions": []map[string]string{{"bytesBase64Encoded": base64.StdEncoding.EncodeToString([]byte("imagen"))}},
		})
	}))
	defer server.Close()

	c := &geminiClient{apiKey: "k", baseURL: server.URL, httpClient: &http.Client{Timeout: time.Second}}
	payload, err := c.GenerateImage(context.Background(), "prompt", "16:9")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(payload.Bytes) != "imagen" {
		t.Errorf("bytes = %q", payload.Bytes)
	}
	params, _ := gotBody["parameters"].(map[string]any)
	if params["aspectRatio"] != "16:9" {
		t.Errorf("aspectRatio = %v", params["aspectRatio"])
	}
}

func TestNewAIClientSelection(t *testing.T) {
	tests := []struct {
		name     string
		cfg      RuntimeConfig
		wantNil  bool
		wantType string
	}{
		{"unconfigured", RuntimeConfig{}, true, ""},
		{"provider without key", RuntimeConfig{Provider: providerOpenAI}, true, ""},
		{"openai", RuntimeConfig{Provider: providerOpenAI, APIKey: "k"}, false, "*main.openAIClient"},
		{"gemini", RuntimeConfig{Provider: providerGemini, APIKey: "k"}, false, "*main.geminiClient"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newAIClient(&tt.cfg)
			if tt.wantNil {
				if client != nil {
					t.Errorf("client = %T, want nil", client)
				}
				return
			}
			if got := typeName(client); got != tt.wantType {
				t.Errorf("client = %s, want %s", got, tt.wantType)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *openAIClient:
		return "*main.openAIClient"
	case *geminiClient:
		return "*main.geminiClient"
	default:
		return "unknown"
	}
}
