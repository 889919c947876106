package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SceneDescriber turns article content into a short visual scene
// description suitable for an image prompt.
type SceneDescriber interface {
	DescribeScene(ctx context.Context, content string) (string, error)
}

// ImageGenerator produces image bytes from a text prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, aspectRatio string) (*ImagePayload, error)
}

// AIClient combines the two cover generation capabilities.
type AIClient interface {
	SceneDescriber
	ImageGenerator
}

// ImagePayload holds decoded image bytes from a provider, whether the
// provider returned them directly, base64-encoded, or behind a URL.
type ImagePayload struct {
	Bytes []byte
}

// Ext returns the file extension matching the payload's format, sniffed
// from the magic bytes.
func (p *ImagePayload) Ext() string {
	if len(p.Bytes) >= 3 && p.Bytes[0] == 0xff && p.Bytes[1] == 0xd8 && p.Bytes[2] == 0xff {
		return ".jpg"
	}
	return ".png"
}

// scene description request shared by both providers
const scenePrompt = "Generate a 2-sentence visual scene description in English for a cover image based on the article content."

// fallbackScene is used when a provider answers with empty text.
const fallbackScene = "A serene landscape with rolling hills under a soft, dreamy sky filled with gentle clouds."

const maxSceneInput = 2000

func truncateContent(content string) string {
	if len(content) > maxSceneInput {
		return content[:maxSceneInput]
	}
	return content
}

// newAIClient builds the provider adapter for the resolved configuration,
// or nil when cover generation is disabled.
func newAIClient(cfg *RuntimeConfig) AIClient {
	if !cfg.AIConfigured() {
		return nil
	}
	client := &http.Client{Timeout: 120 * time.Second}
	switch cfg.Provider {
	case providerOpenAI:
		base := cfg.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		return &openAIClient{apiKey: cfg.APIKey, baseURL: base, httpClient: client}
	case providerGemini:
		base := cfg.BaseURL
		if base == "" {
			base = "https://generativelanguage.googleapis.com/v1beta/models"
		}
		return &geminiClient{apiKey: cfg.APIKey, baseURL: base, httpClient: client}
	}
	return nil
}

// postJSON sends a JSON request and decodes the JSON response, returning
// the raw body text on non-2xx status for error messages.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("HTTP %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// openAIClient calls the OpenAI chat and image APIs.
type openAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func (c *openAIClient) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}

func (c *openAIClient) DescribeScene(ctx context.Context, content string) (string, error) {
	payload := map[string]any{
		"model": "gpt-4o-mini",
		"messages": []map[string]string{
			{"role": "system", "content": scenePrompt},
			{"role": "user", "content": "Article content:\n\n" + truncateContent(content) + "\n\nScene description:"},
		},
		"temperature": 0.7,
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/chat/completions", c.headers(), payload, &result); err != nil {
		return "", &AIError{Provider: providerOpenAI, Op: "describe scene", Err: err}
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return fallbackScene, nil
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func (c *openAIClient) GenerateImage(ctx context.Context, prompt, aspectRatio string) (*ImagePayload, error) {
	size := "1024x1024"
	if aspectRatio == "16:9" {
		size = "1792x1024"
	}
	payload := map[string]any{
		"model":  "dall-e-3",
		"prompt": prompt,
		"size":   size,
		"n":      1,
	}

	var result struct {
		Data []struct {
			URL     string `json:"url"`
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/images/generations", c.headers(), payload, &result); err != nil {
		return nil, &AIError{Provider: providerOpenAI, Op: "generate image", Err: err}
	}
	if len(result.Data) == 0 {
		return nil, &AIError{Provider: providerOpenAI, Op: "generate image", Err: fmt.Errorf("empty response data")}
	}

	if b64 := result.Data[0].B64JSON; b64 != "" {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, &AIError{Provider: providerOpenAI, Op: "decode image", Err: err}
		}
		return &ImagePayload{Bytes: raw}, nil
	}

	raw, err := c.download(ctx, result.Data[0].URL)
	if err != nil {
		return nil, &AIError{Provider: providerOpenAI, Op: "download image", Err: err}
	}
	return &ImagePayload{Bytes: raw}, nil
}

func (c *openAIClient) download(ctx context.Context, imageURL string) ([]byte, error) {
	if imageURL == "" {
		return nil, fmt.Errorf("response has neither url nor b64_json")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// geminiClient calls the Gemini text and Imagen image APIs. The API key
// travels in the query string, not a header.
type geminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func (c *geminiClient) endpoint(model, op string) string {
	return c.baseURL + "/" + model + ":" + op + "?key=" + url.QueryEscape(c.apiKey)
}

func (c *geminiClient) DescribeScene(ctx context.Context, content string) (string, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{
				{"text": scenePrompt + "\n\nArticle content:\n\n" + truncateContent(content) + "\n\nScene description:"},
			}},
		},
		"generationConfig": map[string]any{"temperature": 0.7},
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := postJSON(ctx, c.httpClient, c.endpoint("gemini-2.5-flash", "generateContent"), nil, payload, &result); err != nil {
		return "", &AIError{Provider: providerGemini, Op: "describe scene", Err: err}
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return fallbackScene, nil
	}
	text := strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return fallbackScene, nil
	}
	return text, nil
}

func (c *geminiClient) GenerateImage(ctx context.Context, prompt, aspectRatio string) (*ImagePayload, error) {
	payload := map[string]any{
		"instances": []map[string]string{{"prompt": prompt}},
		"parameters": map[string]any{
			"sampleCount": 1,
			"aspectRatio": aspectRatio,
		},
	}

	var result struct {
		Predictions []struct {
			BytesBase64Encoded string `json:"bytesBase64Encoded"`
		} `json:"predictions"`
	}
	if err := postJSON(ctx, c.httpClient, c.endpoint("imagen-4.0-generate-001", "predict"), nil, payload, &result); err != nil {
		return nil, &AIError{Provider: providerGemini, Op: "generate image", Err: err}
	}
	if len(result.Predictions) == 0 || result.Predictions[0].BytesBase64Encoded == "" {
		return nil, &AIError{Provider: providerGemini, Op: "generate image", Err: fmt.Errorf("no predictions in response")}
	}

	raw, err := base64.StdEncoding.DecodeString(result.Predictions[0].BytesBase64Encoded)
	if err != nil {
		return nil, &AIError{Provider: providerGemini, Op: "decode image", Err: err}
	}
	return &ImagePayload{Bytes: raw}, nil
}
