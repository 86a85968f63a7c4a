package health

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStatus is returned when a status name cannot be parsed.
var ErrUnknownStatus = errors.New("unknown status")

// Status is the quality classification of a build. Higher values are worse.
type Status int

// Statuses in increasing order of badness.
const (
	StatusSuccess Status = iota
	StatusUnstable
	StatusFailure
)

var statusNames = [...]string{
	StatusSuccess:  "SUCCESS",
	StatusUnstable: "UNSTABLE",
	StatusFailure:  "FAILURE",
}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if strings.EqualFold(strings.TrimSpace(name), n) {
			return Status(s), nil
		}
	}

	return StatusSuccess, fmt.Errorf("%w: %q", ErrUnknownStatus, name)
}

// String returns the upper-case status name.
func (s Status) String() string {
	if s < StatusSuccess || s > StatusFailure {
		return fmt.Sprintf("Status(%d)", int(s))
	}

	return statusNames[s]
}

// Worse returns the worse of s and other.
func (s Status) Worse(other Status) Status {
	return max(s, other)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if s < StatusSuccess || s > StatusFailure {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStatus, int(s))
	}

	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}
