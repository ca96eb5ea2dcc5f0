package ai

import (
	"testing"
)

func TestParseComments(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     int
		wantErr  bool
	}{
		{
			name:     "plain array",
			response: `[{"path": "main.go", "line": 12, "comment": "possible nil dereference"}]`,
			want:     1,
		},
		{
			name:     "empty array",
			response: `[]`,
			want:     0,
		},
		{
			name: "json fence",
			response: "```json\n" +
				`[{"path": "main.go", "line": 3, "comment": "unused variable"}]` +
				"\n```",
			want: 1,
		},
		{
			name: "bare fence",
			response: "```\n" +
				`[{"path": "a.go", "line": 1, "comment": "x"}]` +
				"\n```",
			want: 1,
		},
		{
			name:     "surrounding whitespace",
			response: "  \n[{\"path\": \"a.go\", \"line\": 1, \"comment\": \"x\"}]\n  ",
			want:     1,
		},
		{
			name: "malformed element dropped, siblings kept",
			response: `[
				{"path": "a.go", "line": 1, "comment": "keep"},
				{"path": "", "line": 2, "comment": "no path"},
				{"path": "b.go", "comment": "no line"},
				{"path": "c.go", "line": 0, "comment": "zero line"},
				{"path": "d.go", "line": -3, "comment": "negative line"},
				{"path": "e.go", "line": 5, "comment": ""},
				{"path": "f.go", "line": 9, "comment": "also keep"}
			]`,
			want: 2,
		},
		{
			name:     "trailing comma repaired",
			response: `[{"path": "a.go", "line": 1, "comment": "x"},]`,
			want:     1,
		},
		{
			name:     "not json at all",
			response: "The code looks fine to me!",
			wantErr:  true,
		},
		{
			name:     "object instead of array",
			response: `{"path": "a.go", "line": 1, "comment": "x"}`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comments, err := ParseComments(tt.response)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseComments() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(comments) != tt.want {
				t.Errorf("got %d comments, want %d", len(comments), tt.want)
			}
		})
	}
}

func TestParseCommentsFields(t *testing.T) {
	comments, err := ParseComments(`[{"path": "pkg/server.go", "line": 88, "comment": "unbounded goroutine"}]`)
	if err != nil {
		t.Fatalf("ParseComments() error = %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("got %d comments, want 1", len(comments))
	}

	c := comments[0]
	if c.Path != "pkg/server.go" {
		t.Errorf("Path = %q", c.Path)
	}
	if c.Line != 88 {
		t.Errorf("Line = %d", c.Line)
	}
	if c.Body != "unbounded goroutine" {
		t.Errorf("Body = %q", c.Body)
	}
	if c.Side != "RIGHT" {
		t.Errorf("Side = %q, want RIGHT", c.Side)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no fence", `[1]`, `[1]`},
		{"json fence", "```json\n[1]\n```", `[1]`},
		{"bare fence", "```\n[1]\n```", `[1]`},
		{"leading whitespace", "\n\n```json\n[1]\n```\n", `[1]`},
		{"unterminated fence", "```json\n[1]", `[1]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFences(tt.input); got != tt.want {
				t.Errorf("stripFences(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
