package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTreeDiff(t *testing.T) {
	base := Tree{
		"main.go":       []byte("package main\n"),
		"lib/util.go":   []byte("package lib\n"),
		"docs/NOTES.md": []byte("notes\n"),
	}

	tests := []struct {
		name  string
		other Tree
		want  []string
	}{
		{
			name: "identical",
			other: Tree{
				"main.go":       []byte("package main\n"),
				"lib/util.go":   []byte("package lib\n"),
				"docs/NOTES.md": []byte("notes\n"),
			},
			want: nil,
		},
		{
			name: "modified content",
			other: Tree{
				"main.go":       []byte("package main // changed\n"),
				"lib/util.go":   []byte("package lib\n"),
				"docs/NOTES.md": []byte("notes\n"),
			},
			want: []string{"main.go"},
		},
		{
			name: "added and removed",
			other: Tree{
				"main.go":     []byte("package main\n"),
				"lib/util.go": []byte("package lib\n"),
				"extra.go":    []byte("package main\n"),
			},
			want: []string{"docs/NOTES.md", "extra.go"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Diff(tt.other))
			assert.Equal(t, len(tt.want) == 0, base.Equal(tt.other))
		})
	}
}

func TestTreePaths(t *testing.T) {
	tree := Tree{"b.go": nil, "a.go": nil, "c/d.go": nil}
	assert.Equal(t, []string{"a.go", "b.go", "c/d.go"}, tree.Paths())
}
