package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/supportchat/supportchat/internal/log"
)

// buildZip assembles an in-memory archive from name/content pairs in order.
func buildZip(t *testing.T, entries map[string]string, order []string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range order {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create entry %q: %v", name, err)
		}
		if _, err := f.Write([]byte(entries[name])); err != nil {
			t.Fatalf("write entry %q: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func docNames(r Result) []string {
	names := make([]string, 0, len(r.Documents))
	for _, d := range r.Documents {
		names = append(names, d.Name)
	}
	return names
}

func TestNormalizePlainFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		file     File
		wantDoc  bool
		wantType string
	}{
		{
			name:     "recognized extension",
			file:     File{Name: "guide.md", Data: []byte("# Setup")},
			wantDoc:  true,
			wantType: "text/markdown; charset=utf-8",
		},
		{
			name:     "declared text media type with unknown extension",
			file:     File{Name: "notes.custom", MediaType: "text/plain", Data: []byte("hello")},
			wantDoc:  true,
			wantType: "text/plain",
		},
		{
			name:    "unknown extension with binary content",
			file:    File{Name: "blob.bin", Data: []byte("abc\x00def")},
			wantDoc: false,
		},
		{
			name:    "unknown extension with plain content",
			file:    File{Name: "readme.nfo", Data: []byte("plain enough")},
			wantDoc: true,
		},
		{
			name:    "invalid utf-8 rejected even when recognized",
			file:    File{Name: "broken.txt", Data: []byte{0xff, 0xfe, 'a'}},
			wantDoc: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := Normalize(context.Background(), []File{tt.file}, log.NewNop())

			if tt.wantDoc {
				if len(res.Documents) != 1 {
					t.Fatalf("got %d documents, want 1 (skipped: %v)", len(res.Documents), res.Skipped)
				}
				doc := res.Documents[0]
				if doc.Name != tt.file.Name {
					t.Errorf("Name = %q, want %q", doc.Name, tt.file.Name)
				}
				if doc.Content != string(tt.file.Data) {
					t.Errorf("Content = %q, want %q", doc.Content, string(tt.file.Data))
				}
				if doc.Size != len(tt.file.Data) {
					t.Errorf("Size = %d, want %d", doc.Size, len(tt.file.Data))
				}
				if doc.ID == "" {
					t.Error("document ID is empty")
				}
				if tt.wantType != "" && doc.MediaType != tt.wantType {
					t.Errorf("MediaType = %q, want %q", doc.MediaType, tt.wantType)
				}
				return
			}

			if len(res.Documents) != 0 {
				t.Fatalf("got %d documents, want 0", len(res.Documents))
			}
			if len(res.Skipped) != 1 {
				t.Fatalf("got %d skipped, want 1", len(res.Skipped))
			}
		})
	}
}

func TestNormalizeArchive(t *testing.T) {
	t.Parallel()

	order := []string{
		"docs/",
		"docs/install.md",
		"__MACOSX/docs/._install.md",
		"docs/.hidden",
		"docs/logo.png",
		"docs/faq.txt",
		"src/main.go",
	}
	entries := map[string]string{
		"docs/install.md":            "installation steps",
		"__MACOSX/docs/._install.md": "resource fork",
		"docs/.hidden":               "hidden",
		"docs/logo.png":              "\x89PNG",
		"docs/faq.txt":               "frequently asked",
		"src/main.go":                "package main",
	}

	data := buildZip(t, entries, order)
	res := Normalize(context.Background(), []File{{Name: "kb.zip", Data: data}}, log.NewNop())

	want := []string{"docs/install.md", "docs/faq.txt", "src/main.go"}
	if diff := cmp.Diff(want, docNames(res)); diff != "" {
		t.Errorf("document names mismatch (-want +got):\n%s", diff)
	}
	if len(res.Skipped) != 0 {
		t.Errorf("got skipped %v, want none", res.Skipped)
	}
	for _, doc := range res.Documents {
		if doc.Content != entries[doc.Name] {
			t.Errorf("Content for %q = %q, want %q", doc.Name, doc.Content, entries[doc.Name])
		}
	}
}

func TestNormalizeArchiveOrderIsDeterministic(t *testing.T) {
	t.Parallel()

	// Enough entries that concurrent decode would scramble the output if
	// ordering were completion-based.
	var order []string
	entries := map[string]string{}
	for _, name := range []string{
		"a.txt", "b.txt", "c.txt", "d.txt", "e.txt", "f.txt", "g.txt",
		"h.txt", "i.txt", "j.txt", "k.txt", "l.txt", "m.txt", "n.txt",
	} {
		order = append(order, name)
		entries[name] = "content of " + name
	}

	data := buildZip(t, entries, order)
	res := Normalize(context.Background(), []File{{Name: "many.zip", Data: data}}, log.NewNop())

	if diff := cmp.Diff(order, docNames(res)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeUnreadableArchive(t *testing.T) {
	t.Parallel()

	res := Normalize(context.Background(), []File{
		{Name: "broken.zip", Data: []byte("this is not a zip file")},
		{Name: "after.txt", Data: []byte("still processed")},
	}, log.NewNop())

	if len(res.Skipped) != 1 || res.Skipped[0].Name != "broken.zip" {
		t.Fatalf("skipped = %v, want broken.zip only", res.Skipped)
	}
	if len(res.Documents) != 1 || res.Documents[0].Name != "after.txt" {
		t.Fatalf("documents = %v, want after.txt only", docNames(res))
	}
}

func TestNormalizeMixedBatchKeepsInputOrder(t *testing.T) {
	t.Parallel()

	archive := buildZip(t, map[string]string{
		"one.md": "first",
		"two.md": "second",
	}, []string{"one.md", "two.md"})

	res := Normalize(context.Background(), []File{
		{Name: "intro.txt", Data: []byte("intro")},
		{Name: "bundle.zip", Data: archive},
		{Name: "outro.txt", Data: []byte("outro")},
	}, log.NewNop())

	want := []string{"intro.txt", "one.md", "two.md", "outro.txt"}
	if diff := cmp.Diff(want, docNames(res)); diff != "" {
		t.Errorf("document names mismatch (-want +got):\n%s", diff)
	}
}
