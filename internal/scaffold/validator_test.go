package scaffold

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckExisting(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "no existing files",
			wantErr: false,
		},
		{
			name:    "existing hctorder.yml only",
			files:   []string{"hctorder.yml"},
			wantErr: true,
			errMsg:  "Found existing: hctorder.yml",
		},
		{
			name:    "existing table only",
			files:   []string{"counterbalance.csv"},
			wantErr: true,
			errMsg:  "counterbalance.csv",
		},
		{
			name:    "several project files exist",
			files:   []string{"hctorder.yml", "report.Rmd"},
			wantErr: true,
			errMsg:  "  - report.Rmd\n",
		},
		{
			name:    "unrelated files are ignored",
			files:   []string{"notes.txt", "output"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, name := range tt.files {
				if err := os.WriteFile(filepath.Join(dir, name), []byte("version: '1.0'"), 0644); err != nil {
					t.Fatal(err)
				}
			}

			err := CheckExisting(dir)

			if (err != nil) != tt.wantErr {
				t.Errorf("CheckExisting() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if tt.wantErr && err != nil {
				if !strings.Contains(err.Error(), "project already initialized") {
					t.Errorf("CheckExisting() error = %v, should say the project is initialized", err)
				}
				if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("CheckExisting() error = %v, should contain %v", err.Error(), tt.errMsg)
				}
				if !strings.Contains(err.Error(), "hctorder init --force") {
					t.Errorf("CheckExisting() error = %v, should suggest --force", err)
				}
			}
		})
	}
}
