package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseFrontmatter(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantTitle string
		wantBody  string
		wantErr   bool
	}{
		{
			name:      "basic document",
			content:   "---\ntitle: Hello\n---\nBody text\n",
			wantTitle: "Hello",
			wantBody:  "Body text\n",
		},
		{
			name:     "no frontmatter",
			content:  "# Just a heading\n\nBody.\n",
			wantBody: "# Just a heading\n\nBody.\n",
		},
		{
			name:      "crlf line endings",
			content:   "---\r\ntitle: Windows\r\n---\r\nBody\r\n",
			wantTitle: "Windows",
			wantBody:  "Body\r\n",
		},
		{
			name:    "malformed yaml",
			content: "---\ntitle: [unclosed\n---\nBody\n",
			wantErr: true,
		},
		{
			name:    "frontmatter is a list not a mapping",
			content: "---\n- a\n- b\n---\nBody\n",
			wantErr: true,
		},
		{
			name:    "invalid theme",
			content: "---\ntheme: neon\n---\nBody\n",
			wantErr: true,
		},
		{
			name:    "invalid code highlighter",
			content: "---\ncode: notepad\n---\nBody\n",
			wantErr: true,
		},
		{
			name:      "valid theme and highlighter",
			content:   "---\ntitle: T\ntheme: lapis\ncode: dracula\n---\nBody\n",
			wantTitle: "T",
			wantBody:  "Body\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, body, err := parseFrontmatter(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := fm.Title(); got != tt.wantTitle {
				t.Errorf("title = %q, want %q", got, tt.wantTitle)
			}
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestPublishedStates(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    PublishState
	}{
		{"absent", "---\ntitle: T\n---\nBody\n", PublishUnset},
		{"bool true", "---\npublished: true\n---\nBody\n", PublishPublished},
		{"bool false", "---\npublished: false\n---\nBody\n", PublishDraft},
		{"string true", "---\npublished: \"true\"\n---\nBody\n", PublishPublished},
		{"string draft", "---\npublished: draft\n---\nBody\n", PublishDraft},
		{"string false", "---\npublished: \"false\"\n---\nBody\n", PublishDraft},
		{"arbitrary string", "---\npublished: pending\n---\nBody\n", PublishDraft},
		{"no frontmatter at all", "Body only\n", PublishUnset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, _, err := parseFrontmatter(tt.content)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := fm.Published(); got != tt.want {
				t.Errorf("Published() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoundTripPreservesUnknownFieldsAndOrder(t *testing.T) {
	content := `---
title: My Article
custom_field: custom value
tags:
  - go
  - wechat
author: Jane
---
Body text here.
`
	fm, body, err := parseFrontmatter(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	fm.SetPublished("draft")
	out, err := formatDocument(fm, body)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	got := string(out)

	for _, want := range []string{"custom_field: custom value", "- go", "- wechat", "author: Jane", "published: draft"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	// key order must survive, with the new key appended last
	idxTitle := strings.Index(got, "title:")
	idxCustom := strings.Index(got, "custom_field:")
	idxAuthor := strings.Index(got, "author:")
	idxPublished := strings.Index(got, "published:")
	if !(idxTitle < idxCustom && idxCustom < idxAuthor && idxAuthor < idxPublished) {
		t.Errorf("key order not preserved:\n%s", got)
	}
	if !strings.HasSuffix(got, "---\nBody text here.\n") {
		t.Errorf("body altered:\n%s", got)
	}
}

func TestRoundTripIsIdempotent(t *testing.T) {
	content := "---\ntitle: T\npublished: draft\nextra: kept\n---\nBody\n"
	fm, body, err := parseFrontmatter(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fm.SetPublished("draft")
	out, err := formatDocument(fm, body)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if string(out) != content {
		t.Errorf("second write changed the document:\ngot:\n%s\nwant:\n%s", out, content)
	}
}

func TestSetRewritesValueInPlace(t *testing.T) {
	fm, _, err := parseFrontmatter("---\ncover: old.png\ntitle: T\n---\nBody\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fm.SetCover("new.png")
	out, err := formatDocument(fm, "Body\n")
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	got := string(out)
	if strings.Index(got, "cover:") > strings.Index(got, "title:") {
		t.Errorf("cover key moved:\n%s", got)
	}
	if !strings.Contains(got, "cover: new.png") {
		t.Errorf("cover not rewritten:\n%s", got)
	}
}

func TestFormatDocumentBodyOnly(t *testing.T) {
	fm, body, err := parseFrontmatter("No frontmatter here.\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out, err := formatDocument(fm, body)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if string(out) != "No frontmatter here.\n" {
		t.Errorf("body-only document gained frontmatter:\n%s", out)
	}
}

func TestWriteDocumentAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	if err := os.WriteFile(path, []byte("---\ntitle: T\n---\nOld\n"), 0644); err != nil {
		t.Fatal(err)
	}

	fm, _, err := readDocument(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	fm.SetPublished("draft")
	if err := writeDocument(path, fm, "New\n"); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "published: draft") || !strings.HasSuffix(string(data), "New\n") {
		t.Errorf("unexpected content:\n%s", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestReadDocumentParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.md")
	if err := os.WriteFile(path, []byte("---\ntitle: [oops\n---\nBody\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, _, err := readDocument(path)
	if err == nil {
		t.Fatal("expected error")
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if perr.Path != path {
		t.Errorf("path = %q, want %q", perr.Path, path)
	}
}
