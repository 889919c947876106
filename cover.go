package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// coverState names each step of the cover generation state machine, so
// every failure transition is explicit rather than a side effect of
// control flow.
type coverState string

const (
	coverNotNeeded coverState = "not-needed"
	coverNeeded    coverState = "needed"
	coverDescribed coverState = "description-generated"
	coverGenerated coverState = "image-generated"
	coverSaved     coverState = "saved"
	coverFailed    coverState = "failed"
)

// CoverOrchestrator decides whether a document needs a generated cover
// illustration and drives the AI capabilities to produce one. Every
// failure degrades to "no cover": image generation must never block
// publication.
type CoverOrchestrator struct {
	ai     AIClient // nil when no provider is configured
	logger *slog.Logger
}

func newCoverOrchestrator(ai AIClient, logger *slog.Logger) *CoverOrchestrator {
	return &CoverOrchestrator{ai: ai, logger: logger}
}

// imagePrompt wraps the scene description for the image model.
func imagePrompt(scene string) string {
	return "Create a wide, Ghibli-style image to represent this scene: " + scene
}

// resolveCoverPath resolves a cover filename relative to the document's
// directory (absolute paths pass through) and reports whether it exists.
func resolveCoverPath(docPath, coverFilename string) (string, bool) {
	coverPath := coverFilename
	if !filepath.IsAbs(coverFilename) {
		coverPath = filepath.Join(filepath.Dir(docPath), coverFilename)
	}
	_, err := os.Stat(coverPath)
	return coverPath, err == nil
}

// EnsureCover returns the cover filename the caller should record in
// frontmatter, or "" when the pipeline proceeds without a cover. The
// terminal state is Saved (filename returned), NotNeeded, or Failed (both
// empty).
func (o *CoverOrchestrator) EnsureCover(ctx context.Context, docPath string, fm *Frontmatter, body string) string {
	state, target := o.decide(docPath, fm)
	if state == coverNotNeeded {
		return ""
	}

	log := o.logger.With("path", docPath)

	scene, err := o.ai.DescribeScene(ctx, body)
	if err != nil {
		log.Warn("cover generation failed, continuing without cover", "state", coverNeeded, "error", err)
		return ""
	}
	state = coverDescribed
	log.Debug("scene description generated", "state", state, "scene", scene)

	payload, err := o.ai.GenerateImage(ctx, imagePrompt(scene), "16:9")
	if err != nil {
		log.Warn("cover generation failed, continuing without cover", "state", state, "error", err)
		return ""
	}
	state = coverGenerated
	log.Debug("cover image generated", "state", state, "bytes", len(payload.Bytes))

	filename := target
	if filename == "" {
		stem := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
		filename = fmt.Sprintf("%s_cover_%s%s", stem, strings.ReplaceAll(uuid.NewString(), "-", ""), payload.Ext())
	}
	coverPath := filename
	if !filepath.IsAbs(coverPath) {
		coverPath = filepath.Join(filepath.Dir(docPath), filename)
	}
	if err := os.WriteFile(coverPath, payload.Bytes, 0644); err != nil {
		log.Warn("cover generation failed, continuing without cover", "state", state, "error", err)
		return ""
	}

	log.Debug("cover image saved", "state", coverSaved, "cover", filename)
	return filename
}

// decide maps the document's cover field and the configured provider to
// the initial state. When frontmatter names a missing cover file, the
// image is generated into that name so the field stays stable.
func (o *CoverOrchestrator) decide(docPath string, fm *Frontmatter) (coverState, string) {
	if cover := fm.Cover(); cover != "" {
		if _, exists := resolveCoverPath(docPath, cover); exists {
			return coverNotNeeded, ""
		}
		if o.ai == nil {
			o.logger.Warn("cover file missing and no AI provider configured, upload may lack a cover",
				"path", docPath, "cover", cover)
			return coverNotNeeded, ""
		}
		return coverNeeded, cover
	}
	if o.ai == nil {
		return coverNotNeeded, ""
	}
	return coverNeeded, ""
}
