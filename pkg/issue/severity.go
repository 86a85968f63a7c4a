package issue

import (
	"errors"
	"fmt"
	"strings"
)

// Severity is the ordered importance of a finding. Higher values are more severe.
type Severity int

// Severity levels, ordered from least to most severe.
const (
	SeverityLow Severity = iota + 1
	SeverityNormal
	SeverityHigh
	SeverityError
)

// ErrUnknownSeverity is returned when a severity name cannot be parsed.
var ErrUnknownSeverity = errors.New("unknown severity")

var severityNames = map[Severity]string{
	SeverityLow:    "LOW",
	SeverityNormal: "NORMAL",
	SeverityHigh:   "HIGH",
	SeverityError:  "ERROR",
}

// Severities lists all severities from most to least severe.
func Severities() []Severity {
	return []Severity{SeverityError, SeverityHigh, SeverityNormal, SeverityLow}
}

// ParseSeverity parses a case-insensitive severity name.
func ParseSeverity(name string) (Severity, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))

	for sev, sevName := range severityNames {
		if sevName == upper {
			return sev, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownSeverity, name)
}

// Valid reports whether s is one of the defined severities.
func (s Severity) Valid() bool {
	_, ok := severityNames[s]

	return ok
}

// AtLeast reports whether s is as severe as or more severe than other.
func (s Severity) AtLeast(other Severity) bool {
	return s >= other
}

// String returns the canonical upper-case name.
func (s Severity) String() string {
	name, ok := severityNames[s]
	if !ok {
		return fmt.Sprintf("Severity(%d)", int(s))
	}

	return name
}

// MarshalText implements encoding.TextMarshaler. Undefined severities, as
// kept on rejected issues, encode as the empty string.
func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return []byte{}, nil
	}

	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text decodes to
// the zero severity.
func (s *Severity) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*s = 0

		return nil
	}

	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}
