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
	"sync"
	"time"
)

// Draft is the content handed to the publishing capability.
type Draft struct {
	Title           string
	Content         string
	Author          string
	Digest          string
	Theme           string
	CodeHighlighter string
	CoverPath       string // resolved path of the cover image, "" for none
}

// Publisher submits a draft under the given account credentials and
// returns the remote draft id. Retries, rate limiting, and token refresh
// policy belong to the implementation, not the pipeline.
type Publisher interface {
	Submit(ctx context.Context, account Account, draft *Draft) (string, error)
}

// apiError is a non-zero errcode in a WeChat API response body.
type apiError struct {
	Code    int    `json:"errcode"`
	Message string `json:"errmsg"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("wechat API error %d: %s", e.Code, e.Message)
}

type cachedToken struct {
	token  string
	expiry time.Time
}

// WeChatClient talks to the WeChat Official Account draft API. Access
// tokens are cached per app id until shortly before expiry; the mutex
// guards the cache across concurrent document pipelines.
type WeChatClient struct {
	baseURL    string
	httpClient *http.Client

	mu     sync.Mutex
	tokens map[string]cachedToken
}

func newWeChatClient() *WeChatClient {
	return &WeChatClient{
		baseURL:    "https://api.weixin.qq.com",
		httpClient: &http.Client{Timeout: 60 * time.Second},
		tokens:     map[string]cachedToken{},
	}
}

// RefreshToken drops the cached token for the account and fetches a new
// one immediately.
func (c *WeChatClient) RefreshToken(ctx context.Context, account Account) error {
	c.mu.Lock()
	delete(c.tokens, account.AppID)
	c.mu.Unlock()
	_, err := c.accessToken(ctx, account)
	return err
}

// accessToken returns a valid token for the account, fetching one when
// the cache is empty or within the expiry safety margin.
func (c *WeChatClient) accessToken(ctx context.Context, account Account) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.tokens[account.AppID]; ok && time.Now().Before(cached.expiry) {
		return cached.token, nil
	}

	q := url.Values{}
	q.Set("grant_type", "client_credential")
	q.Set("appid", account.AppID)
	q.Set("secret", account.AppSecret)

	var result struct {
		apiError
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := c.getJSON(ctx, "/cgi-bin/token?"+q.Encode(), &result); err != nil {
		return "", fmt.Errorf("fetching access token: %w", err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("fetching access token: %w", &result.apiError)
	}

	// renew one minute before WeChat expires the token
	expiry := time.Now().Add(time.Duration(result.ExpiresIn)*time.Second - time.Minute)
	c.tokens[account.AppID] = cachedToken{token: result.AccessToken, expiry: expiry}
	return result.AccessToken, nil
}

// Submit uploads the cover as permanent material when present, then
// creates the draft. The returned media id identifies the draft.
func (c *WeChatClient) Submit(ctx context.Context, account Account, draft *Draft) (string, error) {
	token, err := c.accessToken(ctx, account)
	if err != nil {
		return "", err
	}

	var thumbMediaID string
	if draft.CoverPath != "" {
		thumbMediaID, err = c.uploadMaterial(ctx, token, draft.CoverPath)
		if err != nil {
			return "", fmt.Errorf("uploading cover %s: %w", draft.CoverPath, err)
		}
	}

	article := map[string]any{
		"title":   draft.Title,
		"author":  draft.Author,
		"digest":  draft.Digest,
		"content": draft.Content,
	}
	if thumbMediaID != "" {
		article["thumb_media_id"] = thumbMediaID
	}

	var result struct {
		apiError
		MediaID string `json:"media_id"`
	}
	if err := c.postJSON(ctx, "/cgi-bin/draft/add?access_token="+url.QueryEscape(token),
		map[string]any{"articles": []map[string]any{article}}, &result); err != nil {
		return "", fmt.Errorf("creating draft: %w", err)
	}
	if result.MediaID == "" {
		return "", fmt.Errorf("creating draft: %w", &result.apiError)
	}
	return result.MediaID, nil
}

// uploadMaterial uploads an image as permanent material and returns its
// media id for use as a draft thumbnail.
func (c *WeChatClient) uploadMaterial(ctx context.Context, token, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	endpoint := c.baseURL + "/cgi-bin/material/add_material?access_token=" + url.QueryEscape(token) + "&type=image"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result struct {
		apiError
		MediaID string `json:"media_id"`
	}
	if err := c.do(req, &result); err != nil {
		return "", err
	}
	if result.MediaID == "" {
		return "", &result.apiError
	}
	return result.MediaID, nil
}

func (c *WeChatClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *WeChatClient) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *WeChatClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("HTTP %s: %s", resp.Status, bytes.TrimSpace(detail))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
