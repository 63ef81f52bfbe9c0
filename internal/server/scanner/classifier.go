// Package scanner talks to the external malware classifier. The rest of
// the server only sees the Classifier interface, so triage never depends
// on a concrete client and tests substitute a deterministic fake.
package scanner

import (
	"context"
	"errors"
)

// ErrUnavailable means the classifier could not produce a verdict:
// unreachable, timed out, non-2xx, or malformed response. Callers must
// treat this as "no verdict", never as clean or malicious.
var ErrUnavailable = errors.New("malware classifier unavailable")

// Verdict is the classifier's answer for one file.
type Verdict struct {
	IsMalware     bool    `json:"is_malware"`
	Label         string  `json:"label"` // "malware" or "benign"
	Confidence    float64 `json:"confidence"`
	Prediction    int     `json:"prediction"`
	Probabilities struct {
		Benign  float64 `json:"benign"`
		Malware float64 `json:"malware"`
	} `json:"probabilities"`
}

// FileInfo identifies an already-stored file for metadata-based scans.
type FileInfo struct {
	Hash     string `json:"file_hash"`
	Name     string `json:"file_name"`
	Size     int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
}

// Classifier produces malware verdicts. ScanBytes is the upload-time
// path (raw content); ScanFileInfo is the on-demand path for files
// already in storage.
type Classifier interface {
	ScanBytes(ctx context.Context, filename string, data []byte) (*Verdict, error)
	ScanFileInfo(ctx context.Context, info FileInfo) (*Verdict, error)
}

// validate rejects verdicts that deviate from the expected schema.
// A classifier speaking the wrong dialect is indistinguishable from a
// broken one.
func validate(v *Verdict) error {
	if v.Label != "malware" && v.Label != "benign" {
		return ErrUnavailable
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return ErrUnavailable
	}
	return nil
}
