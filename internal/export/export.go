// Package export renders approved chapters into downloadable books.
package export

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatDOCX     Format = "docx"
)

// Formats lists every supported format.
var Formats = []Format{FormatText, FormatMarkdown, FormatDOCX}

// ErrUnsupportedFormat is returned for formats not in Formats.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ErrEmptyBook is returned when a book has no chapters.
var ErrEmptyBook = errors.New("book has no chapters")

// ParseFormat maps a query value to a Format. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatMarkdown, FormatDOCX:
		return f, nil
	case "markdown":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Chapter is one approved chapter in reading order.
type Chapter struct {
	Number  int
	Title   string
	Content string
}

// Book is everything needed to render an export.
type Book struct {
	Title    string
	Subtitle string
	Chapters []Chapter
}

// Artifact is a rendered book.
type Artifact struct {
	Data     []byte
	MimeType string
	Filename string
}

// RenderBook renders book in the given format.
func RenderBook(format Format, book Book) (Artifact, error) {
	if len(book.Chapters) == 0 {
		return Artifact{}, ErrEmptyBook
	}
	base := slugify(book.Title)
	if base == "" {
		base = "memoir"
	}

	switch format {
	case FormatText:
		return Artifact{
			Data:     []byte(renderText(book)),
			MimeType: "text/plain; charset=utf-8",
			Filename: base + ".txt",
		}, nil
	case FormatMarkdown:
		return Artifact{
			Data:     []byte(renderMarkdown(book)),
			MimeType: "text/markdown; charset=utf-8",
			Filename: base + ".md",
		}, nil
	case FormatDOCX:
		data, err := renderDOCX(book)
		if err != nil {
			return Artifact{}, err
		}
		return Artifact{
			Data:     data,
			MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			Filename: base + ".docx",
		}, nil
	}
	return Artifact{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func chapterHeading(ch Chapter) string {
	if ch.Title == "" {
		return fmt.Sprintf("Chapter %d", ch.Number)
	}
	return fmt.Sprintf("Chapter %d: %s", ch.Number, ch.Title)
}

// paragraphs splits prose on blank lines.
func paragraphs(content string) []string {
	var out []string
	for _, block := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		out = append(out, strings.Join(strings.Fields(block), " "))
	}
	return out
}

func renderText(book Book) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(book.Title))
	b.WriteString("\n")
	if book.Subtitle != "" {
		b.WriteString(book.Subtitle)
		b.WriteString("\n")
	}
	for _, ch := range book.Chapters {
		heading := chapterHeading(ch)
		b.WriteString("\n\n")
		b.WriteString(heading)
		b.WriteString("\n")
		b.WriteString(strings.Repeat("=", len([]rune(heading))))
		b.WriteString("\n")
		for _, p := range paragraphs(ch.Content) {
			b.WriteString("\n")
			b.WriteString(p)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderMarkdown(book Book) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", book.Title)
	if book.Subtitle != "" {
		fmt.Fprintf(&b, "\n_%s_\n", book.Subtitle)
	}
	for _, ch := range book.Chapters {
		fmt.Fprintf(&b, "\n## %s\n", chapterHeading(ch))
		for _, p := range paragraphs(ch.Content) {
			fmt.Fprintf(&b, "\n%s\n", p)
		}
	}
	return b.String()
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
