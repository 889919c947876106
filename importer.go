package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

// metadataSchema is the structured output contract for the drafting
// model: a title and a one-sentence digest for the imported page.
const metadataSchema = `{
  "name": "article_metadata",
  "description": "Title and digest for an imported article",
  "schema": {
    "type": "object",
    "properties": {
      "title": {
        "type": "string",
        "description": "Concise article title, max 64 characters"
      },
      "description": {
        "type": "string",
        "description": "One-sentence summary suitable as a digest"
      }
    },
    "required": ["title", "description"],
    "additionalProperties": false
  }
}`

const metadataSystemPrompt = "You extract publication metadata from articles. " +
	"Given article content, produce a concise title and a one-sentence digest in the article's language."

// maxMetadataInput bounds how much of the article the drafting model sees.
const maxMetadataInput = 8000

// Importer fetches a web page, converts it to markdown, and writes it as
// an unpublished document ready for upload. When an Anthropic key is
// available the title and digest are drafted by a model; otherwise they
// fall back to the page's first heading.
type Importer struct {
	httpClient   *http.Client
	converter    *md.Converter
	anthropicKey string
	logger       *slog.Logger
}

func newImporter(logger *slog.Logger) *Importer {
	return &Importer{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		converter:    md.NewConverter("", true, nil),
		anthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
		logger:       logger,
	}
}

// Import fetches pageURL and writes <outDir>/<slug>.md. Returns the
// written path. Existing files are never overwritten.
func (im *Importer) Import(ctx context.Context, pageURL, outDir string) (string, error) {
	html, err := im.fetch(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}

	markdown, err := im.converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("converting %s to markdown: %w", pageURL, err)
	}
	markdown = strings.TrimSpace(markdown) + "\n"

	title, description := im.draftMetadata(markdown)
	if title == "" {
		title = firstHeading(markdown)
	}

	path := filepath.Join(outDir, slugify(title)+".md")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", path)
	}

	fm := &Frontmatter{}
	fm.Set("title", title)
	if description != "" {
		fm.Set("description", description)
	}
	fm.Set("source_url", pageURL)

	if err := writeDocument(path, fm, markdown); err != nil {
		return "", err
	}
	return path, nil
}

func (im *Importer) fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "wx-uploader/1.0")

	resp, err := im.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// draftMetadata asks the model for a title and digest. Any failure falls
// back to heading extraction; importing never depends on the model.
func (im *Importer) draftMetadata(markdown string) (title, description string) {
	if im.anthropicKey == "" {
		return "", ""
	}

	content := markdown
	if len(content) > maxMetadataInput {
		content = content[:maxMetadataInput]
	}
	userPrompt := "Article content:\n\n" + content

	settings := types.RequestSettings{
		Model:       "claude-3-5-haiku-latest",
		MaxTokens:   500,
		Temperature: 0,
	}
	response, err := anthropic.PromptWithSettings(metadataSystemPrompt, userPrompt, metadataSchema, im.anthropicKey, settings)
	if err != nil {
		im.logger.Warn("metadata drafting failed, falling back to heading", "error", err)
		return "", ""
	}
	if len(response.Content) == 0 {
		return "", ""
	}

	var meta struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(response.Content[0].Text), &meta); err != nil {
		im.logger.Warn("metadata drafting returned malformed JSON", "error", err)
		return "", ""
	}
	return strings.TrimSpace(meta.Title), strings.TrimSpace(meta.Description)
}

// firstHeading returns the first "# " heading, or "imported-article".
func firstHeading(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(trimmed, "# "); ok {
			return strings.TrimSpace(after)
		}
	}
	return "imported-article"
}

var (
	slugNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	slugHyphens  = regexp.MustCompile(`-+`)
)

// slugify turns a title into a filesystem-safe filename stem.
func slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugNonAlnum.ReplaceAllString(slug, "-")
	slug = slugHyphens.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if len(slug) > 50 {
		slug = strings.Trim(slug[:50], "-")
	}
	if slug == "" {
		return "article"
	}
	return slug
}
