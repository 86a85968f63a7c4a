package report

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// MessageDiff renders a word-level diff of two messages, marking removed text
// as [-text-] and inserted text as {+text+}.
func MessageDiff(before, after string) string {
	if before == after {
		return after
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))

	var sb strings.Builder

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			sb.WriteString(d.Text)
		case diffmatchpatch.DiffDelete:
			sb.WriteString("[-" + d.Text + "-]")
		case diffmatchpatch.DiffInsert:
			sb.WriteString("{+" + d.Text + "+}")
		}
	}

	return sb.String()
}
