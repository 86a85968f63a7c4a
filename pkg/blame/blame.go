// Package blame attributes issues to the committers of their origin lines.
//
// Attribution itself is a pure lookup over a precomputed Table. Building the
// table is delegated to an Oracle, queried once per distinct file.
package blame

import (
	"sort"

	"github.com/Sumatoshi-tech/issuetrend/pkg/issue"
)

// Info is the committer identity of one source line.
type Info struct {
	Author   string `json:"author"            yaml:"author"`
	Email    string `json:"email,omitempty"   yaml:"email,omitempty"`
	CommitID string `json:"commit,omitempty"  yaml:"commit,omitempty"`
}

// Table maps file to line to blame info. Absent entries are tolerated.
type Table map[string]map[int]Info

// Lookup returns the blame of file:line.
func (t Table) Lookup(file string, line int) (Info, bool) {
	lines, ok := t[file]
	if !ok {
		return Info{}, false
	}

	info, ok := lines[line]

	return info, ok
}

// Attribution is the result of Attach.
type Attribution struct {
	ByFingerprint map[issue.Fingerprint]Info `json:"by_fingerprint"`
	// Files is the number of distinct files with at least one attributed issue.
	Files int `json:"files"`
	// Missing counts line-level issues left without blame.
	Missing int `json:"missing"`
}

// Attach attributes each line-level issue via table[file][lineStart]. Issues
// without a table entry are left unattributed. The table is only read.
func Attach(issues []issue.Issue, table Table) Attribution {
	out := Attribution{ByFingerprint: make(map[issue.Fingerprint]Info)}
	files := make(map[string]struct{})

	for _, i := range issues {
		if i.FileLevel() {
			continue
		}

		info, ok := table.Lookup(i.File, i.LineStart)
		if !ok {
			out.Missing++

			continue
		}

		out.ByFingerprint[i.Fingerprint] = info
		files[i.File] = struct{}{}
	}

	out.Files = len(files)

	return out
}

// Request asks the oracle for the blame of some lines of one file.
type Request struct {
	File  string `json:"file"`
	Lines []int  `json:"lines"`
}

// Requests groups the line-level issues into one request per distinct file.
// Files are sorted, lines sorted and deduplicated.
func Requests(issues []issue.Issue) []Request {
	byFile := make(map[string]map[int]struct{})

	for _, i := range issues {
		if i.FileLevel() {
			continue
		}

		lines, ok := byFile[i.File]
		if !ok {
			lines = make(map[int]struct{})
			byFile[i.File] = lines
		}

		lines[i.LineStart] = struct{}{}
	}

	requests := make([]Request, 0, len(byFile))

	for file, set := range byFile {
		lines := make([]int, 0, len(set))
		for line := range set {
			lines = append(lines, line)
		}

		sort.Ints(lines)

		requests = append(requests, Request{File: file, Lines: lines})
	}

	sort.Slice(requests, func(a, b int) bool { return requests[a].File < requests[b].File })

	return requests
}
