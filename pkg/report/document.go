// Package report renders build results and trends for people and machines.
package report

import (
	"path"
	"sort"

	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/issuetrend/pkg/blame"
	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
	"github.com/Sumatoshi-tech/issuetrend/pkg/differ"
	"github.com/Sumatoshi-tech/issuetrend/pkg/issue"
)

// unknownLanguage groups files enry cannot classify.
const unknownLanguage = "Other"

// Counts are the partition sizes of a build.
type Counts struct {
	Total       int `json:"total"       yaml:"total"`
	New         int `json:"new"         yaml:"new"`
	Fixed       int `json:"fixed"       yaml:"fixed"`
	Outstanding int `json:"outstanding" yaml:"outstanding"`
}

// Entry is one issue as shown in reports.
type Entry struct {
	Fingerprint issue.Fingerprint `json:"fingerprint"        yaml:"fingerprint"`
	Location    string            `json:"location"           yaml:"location"`
	Severity    string            `json:"severity"           yaml:"severity"`
	Type        string            `json:"type,omitempty"     yaml:"type,omitempty"`
	Message     string            `json:"message,omitempty"  yaml:"message,omitempty"`
	Author      string            `json:"author,omitempty"   yaml:"author,omitempty"`
	Commit      string            `json:"commit,omitempty"   yaml:"commit,omitempty"`
	Occurrences int               `json:"occurrences"        yaml:"occurrences"`
}

// ChangedEntry is an outstanding issue whose message or severity changed.
type ChangedEntry struct {
	Entry    `yaml:",inline"`
	Previous string `json:"previous_severity"  yaml:"previous_severity"`
	Diff     string `json:"message_diff"       yaml:"message_diff"`
}

// Document is the rendered view of one build.
type Document struct {
	BuildID   build.ID       `json:"build_id"            yaml:"build_id"`
	Reference *build.ID      `json:"reference,omitempty" yaml:"reference,omitempty"`
	Outcome   string         `json:"outcome"             yaml:"outcome"`
	Status    string         `json:"status"              yaml:"status"`
	Health    *int           `json:"health,omitempty"    yaml:"health,omitempty"`
	Gate      string         `json:"gate,omitempty"      yaml:"gate,omitempty"`
	Counts    Counts         `json:"counts"              yaml:"counts"`
	Languages map[string]int `json:"languages"           yaml:"languages"`
	Authors   map[string]int `json:"authors,omitempty"   yaml:"authors,omitempty"`
	New       []Entry        `json:"new"                 yaml:"new"`
	Fixed     []Entry        `json:"fixed"               yaml:"fixed"`
	Changed   []ChangedEntry `json:"changed,omitempty"   yaml:"changed,omitempty"`
	Info      []string       `json:"info,omitempty"      yaml:"info,omitempty"`
	Errors    []string       `json:"errors,omitempty"    yaml:"errors,omitempty"`
}

// NewDocument builds the view of r. reference is the result r was classified
// against; when given, changed outstanding issues are listed with message diffs.
func NewDocument(r, reference *build.Result) *Document {
	doc := &Document{
		BuildID:   r.BuildID,
		Reference: r.Reference,
		Outcome:   string(r.Outcome),
		Status:    r.Status.String(),
		Health:    r.Health,
		Counts: Counts{
			Total:       len(r.Issues),
			New:         len(r.New),
			Fixed:       len(r.Fixed),
			Outstanding: len(r.Outstanding),
		},
		Languages: Languages(r.Issues),
		Authors:   authors(r.Blame),
		New:       entries(r.NewIssues(), r.Blame),
		Fixed:     entries(r.Fixed, nil),
		Info:      r.InfoMessages,
		Errors:    r.ErrorMessages,
	}

	if r.Gate != nil {
		doc.Gate = r.Gate.String()
	}

	if reference != nil {
		cls := differ.Classification{Outstanding: r.OutstandingIssues()}

		for _, ch := range cls.Changed(reference.Issues) {
			doc.Changed = append(doc.Changed, ChangedEntry{
				Entry:    entry(ch.Current, r.Blame),
				Previous: ch.Previous.Severity.String(),
				Diff:     MessageDiff(ch.Previous.Message, ch.Current.Message),
			})
		}
	}

	return doc
}

func entries(issues []issue.Issue, attribution map[issue.Fingerprint]blame.Info) []Entry {
	out := make([]Entry, 0, len(issues))
	for _, i := range issues {
		out = append(out, entry(i, attribution))
	}

	return out
}

func entry(i issue.Issue, attribution map[issue.Fingerprint]blame.Info) Entry {
	e := Entry{
		Fingerprint: i.Fingerprint,
		Location:    i.Location(),
		Severity:    i.Severity.String(),
		Type:        i.Type,
		Message:     i.Message,
		Occurrences: i.Occurrences,
	}

	if info, ok := attribution[i.Fingerprint]; ok {
		e.Author = info.Author
		e.Commit = info.CommitID
	}

	return e
}

func authors(attribution map[issue.Fingerprint]blame.Info) map[string]int {
	if len(attribution) == 0 {
		return nil
	}

	out := make(map[string]int)
	for _, info := range attribution {
		out[info.Author]++
	}

	return out
}

// Languages counts issues per programming language of their file.
func Languages(issues []issue.Issue) map[string]int {
	out := make(map[string]int)

	for _, i := range issues {
		lang := enry.GetLanguage(path.Base(i.File), nil)
		if lang == "" {
			lang = unknownLanguage
		}

		out[lang]++
	}

	return out
}

// sortedKeys returns the keys of m by descending count, then name.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(a, b int) bool {
		if m[keys[a]] != m[keys[b]] {
			return m[keys[a]] > m[keys[b]]
		}

		return keys[a] < keys[b]
	})

	return keys
}
