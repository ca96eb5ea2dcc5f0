// Package review orchestrates the code review pipeline: diff retrieval,
// line-number annotation, the model call, and posting the resulting review.
package review

import (
	"fmt"
	"strconv"
	"strings"
)

// AnnotateDiffWithLineNumbers prefixes each content line of a unified diff
// with its line number in the new version of the file. Deleted lines, which
// have no position in the new file, are prefixed with "-:" instead.
//
// The model only ever anchors comments to the RIGHT side; pre-computing the
// true post-change line number removes the hunk arithmetic the model would
// otherwise have to infer.
//
// The transform is pure and line-oriented:
//
//	@@ -10,5 +10,6 @@ def example():   ->  @@ -10,5 +10,6 @@ def example():
//	 def hello():                      ->  10:  def hello():
//	-    print("old")                  ->  -: -    print("old")
//	+    print("new")                  ->  11: +    print("new")
//	+    return True                   ->  12: +    return True
func AnnotateDiffWithLineNumbers(diff string) string {
	lines := strings.Split(diff, "\n")
	annotated := make([]string, 0, len(lines))
	rightLine := 0

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "@@"):
			// Hunk header resets the counter to the new-file start line.
			if start, ok := parseHunkRightStart(line); ok {
				rightLine = start
			}
			annotated = append(annotated, line)
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			annotated = append(annotated, line)
		case strings.HasPrefix(line, "diff --git"), strings.HasPrefix(line, "index "):
			annotated = append(annotated, line)
		case strings.HasPrefix(line, "-"):
			annotated = append(annotated, "-: "+line)
		case strings.HasPrefix(line, "+"):
			annotated = append(annotated, fmt.Sprintf("%d: %s", rightLine, line))
			rightLine++
		case strings.HasPrefix(line, " "):
			annotated = append(annotated, fmt.Sprintf("%d: %s", rightLine, line))
			rightLine++
		default:
			// Unclassified lines inside a hunk count as context.
			if rightLine > 0 {
				annotated = append(annotated, fmt.Sprintf("%d: %s", rightLine, line))
				rightLine++
			} else {
				annotated = append(annotated, line)
			}
		}
	}

	return strings.Join(annotated, "\n")
}

// parseHunkRightStart extracts the new-file starting line number from a hunk
// header of the form "@@ -a,b +c,d @@".
func parseHunkRightStart(header string) (int, bool) {
	for _, part := range strings.Fields(header) {
		if !strings.HasPrefix(part, "+") {
			continue
		}
		numText, _, _ := strings.Cut(strings.TrimPrefix(part, "+"), ",")
		start, err := strconv.Atoi(numText)
		if err != nil {
			return 0, false
		}
		return start, true
	}
	return 0, false
}
