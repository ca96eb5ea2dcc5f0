package ai

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an expert code reviewer. Analyze the provided code diffs and provide constructive feedback.

Focus on:
- Potential bugs or errors
- Security vulnerabilities
- Performance issues
- Code quality and maintainability concerns

Do NOT comment on:
- Minor style preferences (indentation, spacing, etc.)
- Formatting issues (assume automated formatters handle this)
- Trivial issues that don't affect functionality

For each issue found, respond with the file path, the line number, and a clear
description with a suggested improvement.

Format your response as a JSON array of objects with fields:
- path: the file path exactly as it appears after the FILE marker
- line: the line number in the new version of the file
- comment: the review comment

IMPORTANT: Each diff line inside a hunk is prefixed with its new-file line
number followed by a colon (e.g. "42: +code here"). Deleted lines are prefixed
with "-:" and cannot be commented on. Always use the number shown at the start
of the line — never calculate line numbers from hunk headers yourself.

Only report significant issues. If the code looks good, return an empty array.
Return ONLY valid JSON, no markdown code blocks or other text.`

// SystemPrompt returns the reviewer system instruction, optionally extended
// with repository-specific guidance.
func SystemPrompt(instructions string) string {
	result := systemPrompt

	if instructions != "" {
		result += "\n\n## Repository-Specific Instructions\n\n" + instructions
	}

	return result
}

// BuildPrompt concatenates every file's name and annotated diff into one user
// message, separated by explicit file markers, so cross-file concerns are
// visible to the model in a single pass.
func BuildPrompt(files []FileDiff, contextNote string) string {
	var builder strings.Builder

	builder.WriteString("Please review the following code changes.\n")
	if contextNote != "" {
		builder.WriteString("\nContext: ")
		builder.WriteString(contextNote)
		builder.WriteString("\n")
	}

	for _, f := range files {
		builder.WriteString(fmt.Sprintf("\n--- FILE: %s ---\n", f.Name))
		builder.WriteString("```\n")
		builder.WriteString(f.Diff)
		if !strings.HasSuffix(f.Diff, "\n") {
			builder.WriteString("\n")
		}
		builder.WriteString("```\n")
	}

	builder.WriteString("\nProvide your review as a JSON array.")
	return builder.String()
}
