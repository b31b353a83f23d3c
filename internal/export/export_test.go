package export

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func sampleBook() Book {
	return Book{
		Title:    "Rose's Story",
		Subtitle: "As told to Ada",
		Chapters: []Chapter{
			{Number: 1, Title: "Early Childhood", Content: "I was born by the sea.\n\nWe had a red door & a garden."},
			{Number: 2, Title: "Family & Home", Content: "My mother sang."},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"TXT", FormatText, false},
		{"md", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"docx", FormatDOCX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q): err=%v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("ParseFormat(%q): got %v, want ErrUnsupportedFormat", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderText(t *testing.T) {
	a, err := RenderBook(FormatText, sampleBook())
	if err != nil {
		t.Fatalf("RenderBook failed: %v", err)
	}
	if a.Filename != "rose-s-story.txt" || !strings.HasPrefix(a.MimeType, "text/plain") {
		t.Errorf("got filename %q mime %q", a.Filename, a.MimeType)
	}
	out := string(a.Data)
	for _, want := range []string{"ROSE'S STORY", "Chapter 1: Early Childhood", "We had a red door & a garden.", "Chapter 2: Family & Home"} {
		if !strings.Contains(out, want) {
			t.Errorf("text missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Chapter 1") > strings.Index(out, "Chapter 2") {
		t.Error("chapters out of order")
	}
}

func TestRenderMarkdown(t *testing.T) {
	a, err := RenderBook(FormatMarkdown, sampleBook())
	if err != nil {
		t.Fatalf("RenderBook failed: %v", err)
	}
	out := string(a.Data)
	if !strings.HasPrefix(out, "# Rose's Story\n") {
		t.Errorf("missing title heading:\n%s", out)
	}
	if !strings.Contains(out, "## Chapter 2: Family & Home") {
		t.Errorf("missing chapter heading:\n%s", out)
	}
	if a.Filename != "rose-s-story.md" {
		t.Errorf("filename: got %q", a.Filename)
	}
}

func TestRenderDOCX(t *testing.T) {
	a, err := RenderBook(FormatDOCX, sampleBook())
	if err != nil {
		t.Fatalf("RenderBook failed: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(a.Data), int64(len(a.Data)))
	if err != nil {
		t.Fatalf("not a zip: %v", err)
	}
	parts := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		parts[f.Name] = string(data)
	}
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml"} {
		if _, ok := parts[name]; !ok {
			t.Errorf("missing part %s", name)
		}
	}
	doc := parts["word/document.xml"]
	if !strings.Contains(doc, "red door &amp; a garden") {
		t.Errorf("text should be XML-escaped:\n%s", doc)
	}
	if strings.Count(doc, `w:type="page"`) != 2 {
		t.Errorf("want one page break per chapter")
	}
}

func TestRenderEmptyBook(t *testing.T) {
	if _, err := RenderBook(FormatText, Book{Title: "Empty"}); !errors.Is(err, ErrEmptyBook) {
		t.Errorf("got %v, want ErrEmptyBook", err)
	}
}
