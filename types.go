package main

// Outcome classifies the result of processing a single document.
type Outcome string

const (
	OutcomeUploaded Outcome = "uploaded"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// SkipReason explains why a document was skipped.
type SkipReason string

const (
	SkipAlreadyPublished SkipReason = "already published"
	SkipCanceled         SkipReason = "canceled"
)

// DocumentResult tracks the outcome of processing one document.
type DocumentResult struct {
	Path    string
	Outcome Outcome
	Reason  SkipReason // set when Outcome == OutcomeSkipped
	DraftID string     // set when the remote submission succeeded
	Cover   string     // cover filename written to frontmatter, if any
	Err     error      // set when Outcome == OutcomeFailed
}

// BatchResult holds per-document outcomes in scan order plus any
// directory-walk errors recorded along the way. It is constructed once
// per invocation and never mutated afterwards.
type BatchResult struct {
	Results    []DocumentResult
	ScanErrors []ScanError
}

// Counts returns the number of uploaded, skipped, and failed documents.
func (b *BatchResult) Counts() (uploaded, skipped, failed int) {
	for _, r := range b.Results {
		switch r.Outcome {
		case OutcomeUploaded:
			uploaded++
		case OutcomeSkipped:
			skipped++
		case OutcomeFailed:
			failed++
		}
	}
	return
}

// Failed reports whether any document in the batch failed.
func (b *BatchResult) Failed() bool {
	_, _, failed := b.Counts()
	return failed > 0
}
