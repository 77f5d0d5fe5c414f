package session

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/agentdeck/agentdeck/pkg/types"
)

// File-editing tools that get diff metadata attached to their parts.
const (
	editToolName  = "Edit"
	writeToolName = "Write"
)

// enrichToolPart attaches diff metadata to recognized file-editing tool
// invocations. Other tools pass through untouched.
func enrichToolPart(part *types.ToolPart) {
	switch part.ToolName {
	case editToolName:
		path, _ := part.Input["file_path"].(string)
		before, _ := part.Input["old_string"].(string)
		after, _ := part.Input["new_string"].(string)
		part.Diff = computeDiff(path, before, after)
	case writeToolName:
		path, _ := part.Input["file_path"].(string)
		after, _ := part.Input["content"].(string)
		part.Diff = computeDiff(path, "", after)
	}
}

// computeDiff builds a line-oriented patch with add/delete counts. Returns
// nil when there is no change. The patch text keeps raw line content; it is
// never URL-encoded.
func computeDiff(path, before, after string) *types.FileDiff {
	if before == after {
		return nil
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	additions, deletions := 0, 0
	var patch strings.Builder
	if path != "" {
		patch.WriteString(fmt.Sprintf("--- %s\n", path))
		patch.WriteString(fmt.Sprintf("+++ %s\n", path))
	}
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
			additions += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			prefix = "-"
			deletions += countLines(d.Text)
		default:
			prefix = " "
		}
		for _, line := range splitLines(d.Text) {
			patch.WriteString(prefix)
			patch.WriteString(line)
			patch.WriteString("\n")
		}
	}

	return &types.FileDiff{
		Path:      path,
		Before:    before,
		After:     after,
		Patch:     patch.String(),
		Additions: additions,
		Deletions: deletions,
	}
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	lines := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		lines++
	}
	return lines
}
