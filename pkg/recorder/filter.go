package recorder

import (
	"path"

	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/issuetrend/pkg/issue"
)

// Filter drops findings in paths that should not count against a build.
type Filter struct {
	// Vendored skips third-party paths recognized by enry (vendor/, node_modules/, ...).
	Vendored bool
	// Exclude holds path.Match patterns tested against the full path and the base name.
	Exclude []string
}

// Skip reports whether the issue is filtered out.
func (f Filter) Skip(i issue.Issue) bool {
	if f.Vendored && enry.IsVendor(i.File) {
		return true
	}

	base := path.Base(i.File)

	for _, pattern := range f.Exclude {
		if ok, _ := path.Match(pattern, i.File); ok {
			return true
		}

		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}

	return false
}

// Validate checks that every exclude pattern is well formed.
func (f Filter) Validate() error {
	for _, pattern := range f.Exclude {
		if _, err := path.Match(pattern, ""); err != nil {
			return err
		}
	}

	return nil
}
