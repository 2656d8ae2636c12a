package filesystem

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// NoChangesMessage is returned by UnifiedDiff when both inputs are equal after line ending
// normalization.
const NoChangesMessage = "No changes detected."

const (
	diffContextLines = 3
	noNewlineMarker  = "\\ No newline at end of file\n"
)

// UnifiedDiff renders the difference between oldContent and newContent as a unified diff with
// three lines of context, headed by a/label and b/label. Line endings are normalized first.
func UnifiedDiff(oldContent, newContent, label string) string {
	oldContent = normalizeLineEndings(oldContent)
	newContent = normalizeLineEndings(newContent)
	if oldContent == newContent {
		return NoChangesMessage
	}

	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        diffLines(oldContent),
		B:        diffLines(newContent),
		FromFile: "a/" + label,
		ToFile:   "b/" + label,
		Context:  diffContextLines,
	})
	if err != nil {
		// Rendering into a strings.Builder does not fail.
		return fmt.Sprintf("--- a/%s\n+++ b/%s\n", label, label)
	}
	return out
}

// diffLines splits text into newline-terminated lines. A last line without a newline carries the
// conventional marker, so content that differs only in its final newline still diffs.
func diffLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		return lines[:len(lines)-1]
	}
	lines[len(lines)-1] += "\n" + noNewlineMarker
	return lines
}

// diffStats counts the lines added and removed between two texts, from the same line matching
// that UnifiedDiff renders.
func diffStats(oldContent, newContent string) (added, removed int) {
	m := difflib.NewMatcher(diffLines(normalizeLineEndings(oldContent)), diffLines(normalizeLineEndings(newContent)))
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'r':
			removed += op.I2 - op.I1
			added += op.J2 - op.J1
		case 'd':
			removed += op.I2 - op.I1
		case 'i':
			added += op.J2 - op.J1
		}
	}
	return added, removed
}

// closestLine finds the line of content most similar to the first non-blank line of text,
// ignoring surrounding whitespace. It returns the 1-based line number and the trimmed line, or
// 0 when no line is within a third of the needle's length in edit distance.
func closestLine(content, text string) (int, string) {
	var needle string
	for _, line := range strings.Split(text, "\n") {
		if needle = strings.TrimSpace(line); needle != "" {
			break
		}
	}
	maxDistance := utf8.RuneCountInString(needle) / 3
	if maxDistance == 0 {
		return 0, ""
	}

	dmp := diffmatchpatch.New()
	best, bestLine, bestText := maxDistance+1, 0, ""
	for i, line := range strings.Split(content, "\n") {
		candidate := strings.TrimSpace(line)
		// Edit distance is at least the difference in length.
		if d := utf8.RuneCountInString(candidate) - utf8.RuneCountInString(needle); d > maxDistance || -d > maxDistance {
			continue
		}
		if dist := dmp.DiffLevenshtein(dmp.DiffMain(needle, candidate, false)); dist < best {
			best, bestLine, bestText = dist, i+1, candidate
		}
	}
	return bestLine, bestText
}

// dominantLineEnding reports the most frequent line terminator in text, "\n" when it has none.
func dominantLineEnding(text string) string {
	crlf := strings.Count(text, "\r\n")
	cr := strings.Count(text, "\r") - crlf
	lf := strings.Count(text, "\n") - crlf
	switch {
	case crlf > lf && crlf >= cr:
		return "\r\n"
	case cr > lf && cr > crlf:
		return "\r"
	default:
		return "\n"
	}
}

// rawOffset maps a byte offset in normalizeLineEndings(raw) back to the offset in raw.
func rawOffset(raw string, offset int) int {
	i := 0
	for n := 0; n < offset && i < len(raw); n++ {
		if raw[i] == '\r' && i+1 < len(raw) && raw[i+1] == '\n' {
			i += 2
		} else {
			i++
		}
	}
	return i
}

func normalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// formatDiffOutput fences diff with enough backticks that the diff cannot close the fence.
func formatDiffOutput(diff string) string {
	numBackticks := 3
	for strings.Contains(diff, strings.Repeat("`", numBackticks)) {
		numBackticks++
	}
	fence := strings.Repeat("`", numBackticks)
	return fmt.Sprintf("%sdiff\n%s%s\n\n", fence, diff, fence)
}
