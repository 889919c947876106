package main

// UploadMode distinguishes how the invocation selected its documents.
type UploadMode int

const (
	// ModeDirectory means the document came from a recursive scan;
	// already published documents are skipped.
	ModeDirectory UploadMode = iota
	// ModeSingleFile means the operator named the file explicitly;
	// it is always uploaded regardless of published state.
	ModeSingleFile
)

// shouldUpload is the publish gate: given the normalized published state
// and the invocation mode, it decides eligibility. Pure, no I/O.
func shouldUpload(state PublishState, mode UploadMode) (bool, SkipReason) {
	if mode == ModeSingleFile {
		return true, ""
	}
	if state == PublishPublished {
		return false, SkipAlreadyPublished
	}
	return true, ""
}
