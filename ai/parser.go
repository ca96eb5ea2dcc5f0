package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/reviewloop/reviewloop/github"
)

// rawComment mirrors one element of the model's response array. Line is a
// pointer so a missing field is distinguishable from line zero.
type rawComment struct {
	Path    string `json:"path"`
	Line    *int   `json:"line"`
	Comment string `json:"comment"`
}

// ParseComments recovers review comments from the model's response text.
//
// The response is expected to be a JSON array of {path, line, comment}
// objects, possibly wrapped in a markdown code fence. Elements missing any of
// the three fields are dropped while well-formed siblings are kept. A response
// that cannot be parsed as an array at all is an error; callers treat that as
// zero comments rather than a failed run.
func ParseComments(response string) ([]github.ReviewComment, error) {
	cleaned := stripFences(response)

	var raw []rawComment
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		// Second chance: models frequently emit almost-JSON (trailing
		// commas, unescaped quotes, truncated arrays).
		repaired, repairErr := jsonrepair.JSONRepair(cleaned)
		if repairErr != nil {
			return nil, fmt.Errorf("failed to parse model response as JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse repaired model response: %w", err)
		}
	}

	comments := make([]github.ReviewComment, 0, len(raw))
	for _, rc := range raw {
		if rc.Path == "" || rc.Line == nil || *rc.Line <= 0 || rc.Comment == "" {
			continue
		}
		comments = append(comments, github.ReviewComment{
			Path: rc.Path,
			Body: rc.Comment,
			Line: *rc.Line,
			Side: "RIGHT",
		})
	}

	return comments, nil
}

// stripFences removes a leading/trailing markdown code fence if present.
func stripFences(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}

	response = strings.TrimSuffix(response, "```")

	return strings.TrimSpace(response)
}
