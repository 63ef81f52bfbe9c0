package scanner

import (
	"bytes"
	"context"
	"fmt"

	clamd "github.com/dutchcoders/go-clamd"
)

// ClamdClassifier is an alternative backend that streams content to a
// ClamAV daemon. Signature matches are reported at full confidence;
// clamd gives a binary answer, not a probability.
type ClamdClassifier struct {
	client *clamd.Clamd
}

// NewClamdClassifier connects to a clamd instance, e.g. "tcp://localhost:3310".
func NewClamdClassifier(addr string) (*ClamdClassifier, error) {
	c := clamd.NewClamd(addr)
	if err := c.Ping(); err != nil {
		return nil, fmt.Errorf("%w: clamd ping failed: %v", ErrUnavailable, err)
	}
	return &ClamdClassifier{client: c}, nil
}

// ScanBytes streams the content through clamd's INSTREAM command.
func (c *ClamdClassifier) ScanBytes(ctx context.Context, filename string, data []byte) (*Verdict, error) {
	abort := make(chan bool)
	defer close(abort)

	results, err := c.client.ScanStream(bytes.NewReader(data), abort)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	v := &Verdict{Label: "benign", Confidence: 1}
	v.Probabilities.Benign = 1
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case res, ok := <-results:
			if !ok {
				return v, nil
			}
			switch res.Status {
			case clamd.RES_FOUND:
				v.IsMalware = true
				v.Label = "malware"
				v.Confidence = 1
				v.Prediction = 1
				v.Probabilities.Benign = 0
				v.Probabilities.Malware = 1
			case clamd.RES_ERROR, clamd.RES_PARSE_ERROR:
				return nil, fmt.Errorf("%w: clamd: %s", ErrUnavailable, res.Description)
			}
		}
	}
}

// ScanFileInfo is unsupported: clamd needs the actual bytes.
func (c *ClamdClassifier) ScanFileInfo(ctx context.Context, info FileInfo) (*Verdict, error) {
	return nil, fmt.Errorf("%w: clamd backend requires file content", ErrUnavailable)
}
