package onboarding

import "merchant-onboarding/internal/common/config"

// FencingPolicy decides which completion wins when a category is re-uploaded
// before its previous attempt completes.
type FencingPolicy string

const (
	// LastCompletionWins applies whichever completion arrives last.
	LastCompletionWins FencingPolicy = config.FencingLastCompletionWins
	// LatestAttemptOnly discards completions for superseded attempts.
	LatestAttemptOnly FencingPolicy = config.FencingLatestAttempt
)

// Tracker runs the per-category upload state machine:
// Idle -> Uploading -> Processed | Failed, with re-selection restarting at
// Uploading. Categories never affect each other.
type Tracker struct {
	Policy FencingPolicy
}

// Begin moves category to Uploading under a new attempt, discarding any
// previous extraction or error.
func (t Tracker) Begin(docs Documents, category DocumentCategory, file FileRef, attempt uint64) {
	docs[category] = DocumentRecord{
		Category: category,
		File:     file,
		Status:   DocumentUploading,
		Attempt:  attempt,
	}
}

// Complete records a successful extraction for the request's category.
func (t Tracker) Complete(docs Documents, category DocumentCategory, attempt uint64, ext Extraction) error {
	rec, err := t.admit(docs, "CompleteUpload", category, attempt)
	if err != nil {
		return err
	}
	ext = ext.clone()
	rec.Status = DocumentProcessed
	rec.Extraction = &ext
	rec.Err = ""
	docs[category] = rec
	return nil
}

// Fail records a processing failure for the request's category.
func (t Tracker) Fail(docs Documents, category DocumentCategory, attempt uint64, reason string) error {
	rec, err := t.admit(docs, "FailUpload", category, attempt)
	if err != nil {
		return err
	}
	rec.Status = DocumentFailed
	rec.Extraction = nil
	rec.Err = reason
	docs[category] = rec
	return nil
}

// admit applies fencing. Attempt 0 means "the current attempt".
func (t Tracker) admit(docs Documents, command string, category DocumentCategory, attempt uint64) (DocumentRecord, error) {
	rec, ok := docs[category]
	if !ok {
		return DocumentRecord{}, staleCompletion(command, "no upload started for %s", category)
	}
	if t.Policy == LatestAttemptOnly && attempt != 0 && attempt != rec.Attempt {
		return DocumentRecord{}, staleCompletion(command, "%s attempt %d superseded by %d", category, attempt, rec.Attempt)
	}
	return rec, nil
}

// ProcessedDocuments returns the extraction of every Processed category.
func ProcessedDocuments(app Application) map[DocumentCategory]Extraction {
	out := make(map[DocumentCategory]Extraction)
	for cat, rec := range app.Documents {
		if rec.Status == DocumentProcessed && rec.Extraction != nil {
			out[cat] = rec.Extraction.clone()
		}
	}
	return out
}

// AnyUploading reports whether any category is still being processed.
func AnyUploading(app Application) bool {
	for _, rec := range app.Documents {
		if rec.Status == DocumentUploading {
			return true
		}
	}
	return false
}
