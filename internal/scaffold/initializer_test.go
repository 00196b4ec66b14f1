package scaffold

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dyluth/hctorder/internal/config"
	"github.com/dyluth/hctorder/internal/report"
	"github.com/dyluth/hctorder/pkg/counterbalance"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name      string
		force     bool
		setupFunc func(string)
		wantErr   bool
	}{
		{
			name:  "fresh initialization",
			force: false,
			setupFunc: func(dir string) {
				// No setup needed - clean directory
			},
			wantErr: false,
		},
		{
			name:  "force initialization replaces existing files",
			force: true,
			setupFunc: func(dir string) {
				os.WriteFile(filepath.Join(dir, "hctorder.yml"), []byte("old content"), 0644)
				os.WriteFile(filepath.Join(dir, "counterbalance.csv"), []byte("ID\n"), 0644)
			},
			wantErr: false,
		},
		{
			name:  "existing files without force",
			force: false,
			setupFunc: func(dir string) {
				os.WriteFile(filepath.Join(dir, "report.Rmd"), []byte("mine"), 0644)
			},
			wantErr: true,
		},
		{
			name:  "creates a missing directory",
			force: false,
			setupFunc: func(dir string) {
				os.RemoveAll(dir)
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := filepath.Join(t.TempDir(), "study")
			if err := os.MkdirAll(tmpDir, 0755); err != nil {
				t.Fatal(err)
			}

			tt.setupFunc(tmpDir)

			var out bytes.Buffer
			err := Initialize(tmpDir, tt.force, &out)

			if (err != nil) != tt.wantErr {
				t.Errorf("Initialize() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				content, _ := os.ReadFile(filepath.Join(tmpDir, "report.Rmd"))
				if string(content) != "mine" {
					t.Errorf("existing report.Rmd was modified: %q", content)
				}
				return
			}

			for _, name := range []string{"hctorder.yml", "counterbalance.csv", "report.Rmd"} {
				if _, err := os.Stat(filepath.Join(tmpDir, name)); err != nil {
					t.Errorf("Expected file %s to exist, but got error: %v", name, err)
				}
			}

			cfg, err := config.Load(filepath.Join(tmpDir, "hctorder.yml"))
			if err != nil {
				t.Fatalf("created hctorder.yml does not load: %v", err)
			}
			if cfg.Archive.Driver != "sqlite" {
				t.Errorf("archive.driver = %q, want sqlite", cfg.Archive.Driver)
			}
			if cfg.Template.Path != "report.Rmd" {
				t.Errorf("template.path = %q, want report.Rmd", cfg.Template.Path)
			}

			if tt.force && !strings.Contains(out.String(), "Removing existing hctorder.yml") {
				t.Errorf("expected removal notice, got %q", out.String())
			}
		})
	}
}

func TestHandleForce(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"hctorder.yml", "counterbalance.csv", "report.Rmd", "keep.txt"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("content"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	var out bytes.Buffer
	if err := handleForce(tmpDir, &out); err != nil {
		t.Fatalf("handleForce() error = %v", err)
	}

	for _, name := range []string{"hctorder.yml", "counterbalance.csv", "report.Rmd"} {
		if _, err := os.Stat(filepath.Join(tmpDir, name)); err == nil {
			t.Errorf("%s should have been removed", name)
		}
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "keep.txt")); err != nil {
		t.Errorf("unrelated file was removed: %v", err)
	}

	t.Run("handles when files don't exist", func(t *testing.T) {
		if err := handleForce(t.TempDir(), &out); err != nil {
			t.Errorf("handleForce() error = %v", err)
		}
	})
}

func TestGetTemplateFiles(t *testing.T) {
	files, err := getTemplateFiles()
	if err != nil {
		t.Fatalf("getTemplateFiles() error = %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("Expected 3 template files, got %d", len(files))
	}

	for _, file := range files {
		if len(file.Content) == 0 {
			t.Errorf("Template file %s is empty", file.Path)
		}
		if file.Permissions != 0644 {
			t.Errorf("%s permissions = %v, want 0644", file.Path, file.Permissions)
		}
	}
}

func TestSampleTable(t *testing.T) {
	content, err := templatesFS.ReadFile("templates/counterbalance.csv.tmpl")
	if err != nil {
		t.Fatal(err)
	}
	table, err := counterbalance.LoadBytes(content)
	if err != nil {
		t.Fatalf("sample table does not load: %v", err)
	}
	if table.Len() != 24 {
		t.Errorf("sample table has %d rows, want 24", table.Len())
	}

	// Every ordering of the three durations appears equally often.
	counts := map[string]int{}
	for _, e := range table.Entries() {
		counts[counterbalance.FormatOrder(e.Order())]++
	}
	if len(counts) != 6 {
		t.Errorf("sample table covers %d orderings, want 6", len(counts))
	}
	for order, n := range counts {
		if n != 4 {
			t.Errorf("ordering %s appears %d times, want 4", order, n)
		}
	}
}

func TestSampleTemplate(t *testing.T) {
	content, err := templatesFS.ReadFile("templates/report.Rmd.tmpl")
	if err != nil {
		t.Fatal(err)
	}
	tmpl, err := report.ParseTemplate("report.Rmd", content)
	if err != nil {
		t.Fatalf("sample template does not parse: %v", err)
	}
	for _, key := range report.ParameterKeys {
		if _, ok := tmpl.Param(key); !ok {
			t.Errorf("sample template does not declare param %s", key)
		}
	}
}

func TestPrintSuccess(t *testing.T) {
	var out bytes.Buffer
	PrintSuccess(&out)
	for _, name := range []string{"hctorder.yml", "counterbalance.csv", "report.Rmd", "hctorder check"} {
		if !strings.Contains(out.String(), name) {
			t.Errorf("success message missing %q", name)
		}
	}
}
