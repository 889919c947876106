package main

import (
	"fmt"
	"strings"
)

// ConfigError reports bad or ambiguous configuration. It is fatal and
// aborts the invocation before any document is touched.
type ConfigError struct {
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// AccountNotFoundError reports that no account could be resolved for the
// invocation, either because the registry is empty, the requested name is
// unknown, or multiple accounts exist with no default. Fatal, same stage
// as ConfigError.
type AccountNotFoundError struct {
	Name      string
	Available []string
}

func (e *AccountNotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("account %q not found (available: %s)", e.Name, strings.Join(e.Available, ", "))
	}
	if len(e.Available) == 0 {
		return "no accounts configured: set WECHAT_APP_ID and WECHAT_APP_SECRET or add accounts to the config file"
	}
	return fmt.Sprintf("multiple accounts configured (%s) but no default and no --account flag", strings.Join(e.Available, ", "))
}

// ParseError reports a document whose frontmatter block is malformed or
// fails structural validation. Per-document: the batch continues.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("parsing %s: %s", e.Path, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PublishError reports a failed submission to WeChat. The document's
// frontmatter is left untouched so a retry is safe.
type PublishError struct {
	Path string
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publishing %s: %v", e.Path, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// PersistError reports a failed frontmatter write after a submission that
// already succeeded remotely. Kept distinct from PublishError so an
// operator does not retry and create a duplicate draft.
type PersistError struct {
	Path    string
	DraftID string
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("updating %s after upload (draft %s already created, do not re-run blindly): %v", e.Path, e.DraftID, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// AIError reports a failed AI capability call. Never fatal: cover
// generation degrades gracefully and the upload proceeds without a cover.
type AIError struct {
	Provider string
	Op       string
	Err      error
}

func (e *AIError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *AIError) Unwrap() error { return e.Err }
