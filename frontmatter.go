package main

import (
	"bytes"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// frontmatterRegex splits a leading "---" delimited YAML block from the
// markdown body. (?s) makes . match newlines.
var frontmatterRegex = regexp.MustCompile(`(?s)^---\r?\n(.*?)\r?\n---\r?\n(.*)$`)

// PublishState is the normalized publication status of a document.
type PublishState int

const (
	// PublishUnset means the document has never been uploaded.
	PublishUnset PublishState = iota
	// PublishDraft means the document was uploaded as a WeChat draft.
	PublishDraft
	// PublishPublished means the document went live and directory scans
	// must skip it.
	PublishPublished
)

func (s PublishState) String() string {
	switch s {
	case PublishDraft:
		return "draft"
	case PublishPublished:
		return "published"
	default:
		return "unset"
	}
}

// validThemes are the WeChat article themes accepted in frontmatter.
var validThemes = []string{
	"default", "lapis", "maize", "orangeheart", "phycat", "pie", "purple", "rainbow",
}

// validCodeHighlighters are the syntax highlighters accepted in frontmatter.
var validCodeHighlighters = []string{
	"github", "github-dark", "vscode", "atom-one-light", "atom-one-dark",
	"solarized-light", "solarized-dark", "monokai", "dracula", "xcode",
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

// Frontmatter is the YAML metadata block of a document. It keeps the
// underlying yaml.Node mapping so that unknown keys, their order, and
// their scalar styles survive a read-modify-write cycle untouched. Only
// keys explicitly set through the setters change.
type Frontmatter struct {
	doc *yaml.Node // mapping node, nil until a field is set
}

// parseFrontmatter splits content into frontmatter and body. Content
// without a leading "---" block yields an empty Frontmatter and the full
// content as body.
func parseFrontmatter(content string) (*Frontmatter, string, error) {
	m := frontmatterRegex.FindStringSubmatch(content)
	if m == nil {
		return &Frontmatter{}, content, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal([]byte(m[1]), &node); err != nil {
		return nil, "", fmt.Errorf("invalid YAML frontmatter: %w", err)
	}

	fm := &Frontmatter{}
	if len(node.Content) > 0 {
		mapping := node.Content[0]
		if mapping.Kind != yaml.MappingNode {
			return nil, "", fmt.Errorf("frontmatter must be a YAML mapping, got %s", mapping.Tag)
		}
		fm.doc = mapping
	}

	if err := fm.validate(); err != nil {
		return nil, "", err
	}

	return fm, m[2], nil
}

// validate checks the enumerated fields against their allowed sets.
// Invalid values are an error, never a silent default.
func (fm *Frontmatter) validate() error {
	if theme := fm.Theme(); theme != "" && !contains(validThemes, theme) {
		return fmt.Errorf("invalid theme %q (valid: %v)", theme, validThemes)
	}
	if code := fm.CodeHighlighter(); code != "" && !contains(validCodeHighlighters, code) {
		return fmt.Errorf("invalid code highlighter %q (valid: %v)", code, validCodeHighlighters)
	}
	return nil
}

func (fm *Frontmatter) lookup(key string) *yaml.Node {
	if fm.doc == nil {
		return nil
	}
	for i := 0; i+1 < len(fm.doc.Content); i += 2 {
		if fm.doc.Content[i].Value == key {
			return fm.doc.Content[i+1]
		}
	}
	return nil
}

// Get returns the scalar value of key, or "" when absent or non-scalar.
func (fm *Frontmatter) Get(key string) string {
	n := fm.lookup(key)
	if n == nil || n.Kind != yaml.ScalarNode {
		return ""
	}
	return n.Value
}

// Set writes a string value for key. An existing value node is rewritten
// in place so the key keeps its position; a new key is appended after all
// existing ones.
func (fm *Frontmatter) Set(key, value string) {
	if fm.doc == nil {
		fm.doc = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	for i := 0; i+1 < len(fm.doc.Content); i += 2 {
		if fm.doc.Content[i].Value == key {
			v := fm.doc.Content[i+1]
			v.Kind = yaml.ScalarNode
			v.Tag = "!!str"
			v.Value = value
			v.Content = nil
			if v.Style != yaml.DoubleQuotedStyle && v.Style != yaml.SingleQuotedStyle {
				v.Style = 0
			}
			return
		}
	}
	fm.doc.Content = append(fm.doc.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
	)
}

func (fm *Frontmatter) Title() string           { return fm.Get("title") }
func (fm *Frontmatter) Description() string     { return fm.Get("description") }
func (fm *Frontmatter) Author() string          { return fm.Get("author") }
func (fm *Frontmatter) Cover() string           { return fm.Get("cover") }
func (fm *Frontmatter) Theme() string           { return fm.Get("theme") }
func (fm *Frontmatter) CodeHighlighter() string { return fm.Get("code") }

func (fm *Frontmatter) SetPublished(status string) { fm.Set("published", status) }
func (fm *Frontmatter) SetCover(filename string)   { fm.Set("cover", filename) }

// Published normalizes the published field. Accepted representations:
// absent, bool true/false, string "true"/"draft". Any other string (for
// example "false") is treated as draft rather than rejected; the upstream
// format never pinned those down, so the permissive reading keeps old
// documents eligible instead of failing the batch.
func (fm *Frontmatter) Published() PublishState {
	n := fm.lookup("published")
	if n == nil || n.Kind != yaml.ScalarNode {
		return PublishUnset
	}
	switch n.Tag {
	case "!!bool":
		if n.Value == "true" {
			return PublishPublished
		}
		return PublishDraft
	default:
		switch n.Value {
		case "true":
			return PublishPublished
		case "":
			return PublishUnset
		default:
			return PublishDraft
		}
	}
}

// encode serializes the frontmatter mapping with 2-space indent.
func (fm *Frontmatter) encode() ([]byte, error) {
	if fm.doc == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm.doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// formatDocument reassembles frontmatter and body into file content. A
// document that never had fields and gained none stays body-only.
func formatDocument(fm *Frontmatter, body string) ([]byte, error) {
	encoded, err := fm.encode()
	if err != nil {
		return nil, fmt.Errorf("serializing frontmatter: %w", err)
	}
	if encoded == nil {
		return []byte(body), nil
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(encoded)
	buf.WriteString("---\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// readDocument reads and parses a markdown document from disk.
func readDocument(path string) (*Frontmatter, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}
	fm, body, err := parseFrontmatter(string(data))
	if err != nil {
		return nil, "", &ParseError{Path: path, Reason: "malformed frontmatter", Err: err}
	}
	return fm, body, nil
}

// writeDocument persists a document atomically: the full content goes to
// a temporary file in the same directory, then a rename replaces the
// original. No partial file is ever observable.
func writeDocument(path string, fm *Frontmatter, body string) error {
	data, err := formatDocument(fm, body)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
