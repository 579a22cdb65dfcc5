// Package utils provides helpers shared by the CLI and the TUI.
package utils

import (
	"bytes"
	"os"
	"regexp"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/mitchellh/go-homedir"
)

var frontmatterBoundaries = regexp.MustCompile(`(?m)^---\r?\n`)

// RemoveFrontmatter strips a leading YAML frontmatter block.
func RemoveFrontmatter(content []byte) []byte {
	if !bytes.HasPrefix(content, []byte("---")) {
		return content
	}
	bounds := frontmatterBoundaries.FindAllIndex(content, 2)
	if len(bounds) < 2 || bounds[0][0] != 0 {
		return content
	}
	return content[bounds[1][1]:]
}

// ExpandPath expands tilde and all environment variables from the given path.
func ExpandPath(path string) string {
	s, err := homedir.Expand(path)
	if err == nil {
		return os.ExpandEnv(s)
	}
	return os.ExpandEnv(path)
}

// GlamourStyle returns a glamour.TermRendererOption based on the given style.
// "auto" picks the dark or light style from the terminal background; any
// other name that is not a built-in style is treated as a JSON style path.
func GlamourStyle(style string) glamour.TermRendererOption {
	if style == styles.AutoStyle {
		return glamour.WithAutoStyle()
	}
	if _, ok := styles.DefaultStyles[style]; ok {
		return glamour.WithStandardStyle(style)
	}
	return glamour.WithStylesFromJSONFile(ExpandPath(style))
}
