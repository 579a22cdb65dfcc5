// Package textinput gathers the text to speak from arguments, files or
// standard input, turning Markdown into plain prose.
package textinput

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/dgnsrekt/koko/utils"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MaxInputSize bounds how much text is read from a file or stdin.
const MaxInputSize = 1 << 20

// ErrNoText is returned when no input was given.
var ErrNoText = errors.New("no text given")

var markdownExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".mdown":    true,
	".mkd":      true,
}

// Source describes where the text comes from.
type Source struct {
	// Args are positional arguments; a single "-" means stdin.
	Args []string

	// File is a path to a text or Markdown file.
	File string

	// Stdin is read when Args is "-".
	Stdin io.Reader

	// Markdown forces Markdown stripping regardless of the file extension.
	Markdown bool
}

// Read resolves the source into plain text.
func Read(src Source) (string, error) {
	var (
		data     []byte
		markdown = src.Markdown
		err      error
	)

	switch {
	case src.File != "":
		data, err = readLimited(src.File)
		if err != nil {
			return "", err
		}
		markdown = markdown || IsMarkdownFile(src.File)

	case len(src.Args) == 1 && src.Args[0] == "-":
		if src.Stdin == nil {
			return "", ErrNoText
		}
		data, err = io.ReadAll(io.LimitReader(src.Stdin, MaxInputSize+1))
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		if len(data) > MaxInputSize {
			return "", fmt.Errorf("input larger than %d bytes", MaxInputSize)
		}

	case len(src.Args) > 0:
		data = []byte(strings.Join(src.Args, " "))

	default:
		return "", ErrNoText
	}

	out := string(data)
	if markdown {
		out = StripMarkdown(data)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrNoText
	}
	return out, nil
}

// IsMarkdownFile reports whether path has a Markdown extension.
func IsMarkdownFile(path string) bool {
	return markdownExtensions[strings.ToLower(filepath.Ext(path))]
}

func readLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxInputSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > MaxInputSize {
		return nil, fmt.Errorf("%s is larger than %d bytes", path, MaxInputSize)
	}
	return data, nil
}

// StripMarkdown renders Markdown as speakable prose: one paragraph per
// block, headings terminated with a full stop, code blocks and raw HTML
// dropped, links and images reduced to their text. Frontmatter is skipped.
func StripMarkdown(source []byte) string {
	source = utils.RemoveFrontmatter(source)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.ThematicBreak:
			return ast.WalkSkipChildren, nil

		case *ast.Heading:
			if s := inlineText(n, source); s != "" {
				blocks = append(blocks, terminate(s))
			}
			return ast.WalkSkipChildren, nil

		case *ast.Paragraph, *ast.TextBlock:
			if s := inlineText(n, source); s != "" {
				blocks = append(blocks, s)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(blocks, "\n\n")
}

func inlineText(n ast.Node, source []byte) string {
	var b bytes.Buffer
	writeInline(&b, n, source)
	return strings.Join(strings.Fields(b.String()), " ")
}

func writeInline(b *bytes.Buffer, n ast.Node, source []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.AutoLink:
			b.Write(t.Label(source))
		case *ast.RawHTML:
			// dropped
		default:
			writeInline(b, c, source)
		}
	}
}

// terminate appends a full stop unless s already ends in punctuation, so
// headings get a pause when spoken.
func terminate(s string) string {
	r := []rune(s)
	if unicode.IsPunct(r[len(r)-1]) {
		return s
	}
	return s + "."
}
