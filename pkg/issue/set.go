package issue

// Set is an insertion-ordered collection of issues keyed by fingerprint.
// Adding an issue whose fingerprint is already present merges it into the
// first occurrence and increments its Occurrences count.
type Set struct {
	index  map[Fingerprint]int
	issues []Issue
}

// NewSet creates an empty set with room for n issues.
func NewSet(n int) *Set {
	return &Set{
		index:  make(map[Fingerprint]int, n),
		issues: make([]Issue, 0, n),
	}
}

// Add inserts the issue. It returns false when the fingerprint was already
// present and the issue was merged.
func (s *Set) Add(i Issue) bool {
	count := i.Occurrences
	if count < 1 {
		count = 1
	}

	if pos, ok := s.index[i.Fingerprint]; ok {
		s.issues[pos].Occurrences += count

		return false
	}

	i.Occurrences = count
	s.index[i.Fingerprint] = len(s.issues)
	s.issues = append(s.issues, i)

	return true
}

// Get returns the issue with the given fingerprint.
func (s *Set) Get(fp Fingerprint) (Issue, bool) {
	pos, ok := s.index[fp]
	if !ok {
		return Issue{}, false
	}

	return s.issues[pos], true
}

// Has reports whether the fingerprint is present.
func (s *Set) Has(fp Fingerprint) bool {
	_, ok := s.index[fp]

	return ok
}

// Len returns the number of distinct issues.
func (s *Set) Len() int {
	return len(s.issues)
}

// Issues returns a copy of the issues in insertion order.
func (s *Set) Issues() []Issue {
	out := make([]Issue, len(s.issues))
	copy(out, s.issues)

	return out
}

// Fingerprints returns the fingerprints in insertion order.
func (s *Set) Fingerprints() []Fingerprint {
	out := make([]Fingerprint, len(s.issues))
	for idx, i := range s.issues {
		out[idx] = i.Fingerprint
	}

	return out
}

// Index builds a fingerprint lookup over a slice of issues. Later duplicates
// do not replace earlier ones.
func Index(issues []Issue) map[Fingerprint]Issue {
	out := make(map[Fingerprint]Issue, len(issues))

	for _, i := range issues {
		if _, ok := out[i.Fingerprint]; !ok {
			out[i.Fingerprint] = i
		}
	}

	return out
}
