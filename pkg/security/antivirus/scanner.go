package antivirus

import (
	"context"
	"errors"
	"io"
)

// ErrInfected is returned when a scanner reports a threat in a CV.
var ErrInfected = errors.New("file rejected by malware scan")

// ScanResult contains the result of a malware scan
type ScanResult struct {
	Infected   bool   // True if malware was detected
	ThreatName string // Name of detected threat (empty if clean)
}

// Scanner checks uploaded CV content before it is stored.
// Any returned error must be treated as a rejection.
type Scanner interface {
	Scan(ctx context.Context, data io.Reader) (ScanResult, error)

	// Name returns the scanner implementation name (for logging)
	Name() string
}
