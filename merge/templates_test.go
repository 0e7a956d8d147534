package merge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/beevik/etree"

	"dtbm/dtb"
	"dtbm/ncc"
)

func TestExpandTitle(t *testing.T) {
	values := Values{
		Title:     "One",
		Titles:    []string{"One", "Two"},
		Books:     2,
		TotalTime: "00:00:04",
	}
	tests := []struct {
		name    string
		field   string
		want    string
		wantErr bool
	}{
		{"plain", "Collected", "Collected", false},
		{"first title", "{{ .Title }} and more", "One and more", false},
		{"sprig join", `{{ join " / " .Titles }}`, "One / Two", false},
		{"sprig upper", `{{ .Title | upper }} ({{ .Books }})`, "ONE (2)", false},
		{"trimmed", "  {{ .TotalTime }}\n", "00:00:04", false},
		{"parse error", "{{ .Title", "", true},
		{"unknown field", "{{ .Author }}", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandTitle(tt.field, values)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expandTitle() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("expandTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRetitle(t *testing.T) {
	ctx, env := testEnv(t)
	root := t.TempDir()
	first := writePart(t, filepath.Join(root, "one"), "One")
	second := writePart(t, filepath.Join(root, "two"), "Two")

	books, err := ncc.DiscoverAll(ctx, []string{first, second}, root, env.Log)
	if err != nil {
		t.Fatal(err)
	}
	units, err := ncc.NewLoader(fixedProber, env.Log).Load(ctx, books...)
	if err != nil {
		t.Fatal(err)
	}
	book, err := dtb.NewBuilder(units, env.Log).Build()
	if err != nil {
		t.Fatal(err)
	}

	values := buildValues(book, units)
	if values.Books != 2 || len(values.Titles) != 2 || values.Titles[1] != "Two" {
		t.Errorf("buildValues() = %+v", values)
	}

	title, err := retitle(book, units, `{{ join " + " .Titles }}`)
	if err != nil {
		t.Fatalf("retitle() error = %v", err)
	}
	if title != "One + Two" {
		t.Errorf("retitle() = %q", title)
	}
	if got := dtb.Head(book.Navigation).SelectElement("title").Text(); got != "One + Two" {
		t.Errorf("navigation title = %q", got)
	}
}

func TestProcessTitle(t *testing.T) {
	ctx, env := testEnv(t)
	env.Cfg.Builder.Title = "{{ .Title }}: complete"
	root := t.TempDir()
	src := writePart(t, filepath.Join(root, "one"), "One")
	dst := filepath.Join(root, "out")

	if err := process(ctx, env, []string{src}, dst, fixedProber, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dst, "ncc.html"))
	if err != nil {
		t.Fatal(err)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		t.Fatal(err)
	}
	if e := doc.FindElement("//title"); e == nil || e.Text() != "One: complete" {
		t.Errorf("saved title = %v", e)
	}
}
