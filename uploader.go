package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"
)

// lockFilename guards a document tree against concurrent invocations.
const lockFilename = ".wx-uploader.lock"

// Uploader coordinates the per-document pipeline: read, gate, cover,
// submit, persist. One instance serves the whole batch; the config,
// account, and clients it holds are read-only during the run.
type Uploader struct {
	cfg       *RuntimeConfig
	publisher Publisher
	cover     *CoverOrchestrator
	reporter  *Reporter
	logger    *slog.Logger
}

func newUploader(cfg *RuntimeConfig, publisher Publisher, cover *CoverOrchestrator, reporter *Reporter, logger *slog.Logger) *Uploader {
	return &Uploader{
		cfg:       cfg,
		publisher: publisher,
		cover:     cover,
		reporter:  reporter,
		logger:    logger,
	}
}

// ProcessPath runs the batch for a directory root or a single explicit
// file. Directory scans skip published documents; an explicit file is
// always uploaded.
func (u *Uploader) ProcessPath(ctx context.Context, path string) (*BatchResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("inspecting %s: %w", path, err)
	}

	if info.IsDir() {
		return u.processDirectory(ctx, path)
	}

	unlock, err := u.lockTree(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	defer unlock()

	batch := u.processBatch(ctx, []string{path}, ModeSingleFile)
	return batch, nil
}

func (u *Uploader) processDirectory(ctx context.Context, root string) (*BatchResult, error) {
	unlock, err := u.lockTree(root)
	if err != nil {
		return nil, err
	}
	defer unlock()

	paths, scanErrs := scanMarkdown(root)
	for _, se := range scanErrs {
		u.logger.Warn("skipping unreadable path", "path", se.Path, "error", se.Err)
	}
	if len(paths) == 0 {
		u.logger.Info("no markdown files found", "root", root)
	}

	batch := u.processBatch(ctx, paths, ModeDirectory)
	batch.ScanErrors = scanErrs
	return batch, nil
}

// lockTree takes an advisory lock in dir so two invocations cannot
// interleave frontmatter writes on the same tree.
func (u *Uploader) lockTree(dir string) (func(), error) {
	fl := flock.New(filepath.Join(dir, lockFilename))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("another wx-uploader invocation is already running in %s", dir)
	}
	return func() {
		fl.Unlock()
		os.Remove(fl.Path())
	}, nil
}

// processBatch runs the scanned paths through bounded workers. Each path
// is handled by exactly one worker; results land at the path's scan
// index so the report keeps scan order regardless of completion order.
// Cancellation stops scheduling new documents while in-flight pipelines
// run to a consistent state.
func (u *Uploader) processBatch(ctx context.Context, paths []string, mode UploadMode) *BatchResult {
	results := make([]DocumentResult, len(paths))

	var g errgroup.Group
	g.SetLimit(u.cfg.Concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = DocumentResult{Path: path, Outcome: OutcomeSkipped, Reason: SkipCanceled}
			} else {
				results[i] = u.uploadDocument(ctx, path, mode)
			}
			u.reporter.DocumentLine(results[i])
			return nil
		})
	}
	g.Wait()

	return &BatchResult{Results: results}
}

// uploadDocument is the strictly sequential per-document pipeline. The
// first failure short-circuits the remaining steps for this document
// only; the rest of the batch is unaffected.
func (u *Uploader) uploadDocument(ctx context.Context, path string, mode UploadMode) DocumentResult {
	fm, body, err := readDocument(path)
	if err != nil {
		return DocumentResult{Path: path, Outcome: OutcomeFailed, Err: err}
	}

	if ok, reason := shouldUpload(fm.Published(), mode); !ok {
		return DocumentResult{Path: path, Outcome: OutcomeSkipped, Reason: reason}
	}

	// Best effort: a failed generation leaves generatedCover empty and
	// the upload proceeds without one.
	generatedCover := u.cover.EnsureCover(ctx, path, fm, body)

	draft := &Draft{
		Title:           documentTitle(fm, path, body),
		Content:         body,
		Author:          fm.Author(),
		Digest:          fm.Description(),
		Theme:           fm.Theme(),
		CodeHighlighter: fm.CodeHighlighter(),
		CoverPath:       submissionCoverPath(path, fm, generatedCover),
	}

	draftID, err := u.publisher.Submit(ctx, u.cfg.Account, draft)
	if err != nil {
		// frontmatter untouched: retrying this document is safe
		return DocumentResult{Path: path, Outcome: OutcomeFailed, Err: &PublishError{Path: path, Err: err}}
	}

	fm.SetPublished("draft")
	if generatedCover != "" {
		fm.SetCover(generatedCover)
	}
	if err := writeDocument(path, fm, body); err != nil {
		// the draft already exists remotely; report this distinctly so
		// the operator does not retry and duplicate it
		return DocumentResult{Path: path, Outcome: OutcomeFailed, Err: &PersistError{Path: path, DraftID: draftID, Err: err}}
	}

	return DocumentResult{Path: path, Outcome: OutcomeUploaded, DraftID: draftID, Cover: generatedCover}
}

// documentTitle prefers the frontmatter title, then the first markdown
// heading, then the filename stem.
func documentTitle(fm *Frontmatter, path, body string) string {
	if title := fm.Title(); title != "" {
		return title
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(trimmed, "# "); ok {
			return strings.TrimSpace(after)
		}
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// submissionCoverPath resolves the cover to send with the draft: the
// freshly generated file if any, else an existing frontmatter cover.
func submissionCoverPath(docPath string, fm *Frontmatter, generated string) string {
	name := generated
	if name == "" {
		name = fm.Cover()
	}
	if name == "" {
		return ""
	}
	resolved, exists := resolveCoverPath(docPath, name)
	if !exists {
		return ""
	}
	return resolved
}
