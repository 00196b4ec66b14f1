package scaffold

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dyluth/hctorder/internal/config"
	"github.com/dyluth/hctorder/internal/report"
	"github.com/dyluth/hctorder/pkg/counterbalance"
)

//go:embed templates/*
var templatesFS embed.FS

// Files created by Initialize, relative to the project directory.
const (
	ConfigFile   = config.DefaultFile
	TableFile    = "counterbalance.csv"
	TemplateFile = "report.Rmd"
)

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize creates the hctorder project files in dir.
// If force is true, existing project files are replaced; otherwise any
// existing project file is an error and nothing is written.
func Initialize(dir string, force bool, out io.Writer) error {
	if force {
		if err := handleForce(dir, out); err != nil {
			return err
		}
	} else if err := CheckExisting(dir); err != nil {
		return err
	}

	files, err := getTemplateFiles()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := writeFiles(dir, files); err != nil {
		return err
	}

	if err := validateCreatedFiles(dir); err != nil {
		return err
	}

	return nil
}

// handleForce removes existing files if --force was specified
func handleForce(dir string, out io.Writer) error {
	for _, name := range projectFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		fmt.Fprintf(out, "⚠️  Removing existing %s...\n", name)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return nil
}

var projectFiles = []string{ConfigFile, TableFile, TemplateFile}

// GeneratedPaths are the directories the sample configuration writes
// session output and history to.
var GeneratedPaths = []string{"output/", ".hctorder/"}

// getTemplateFiles reads all template files
func getTemplateFiles() ([]FileInfo, error) {
	files := make([]FileInfo, 0, len(projectFiles))
	for _, name := range projectFiles {
		content, err := templatesFS.ReadFile("templates/" + name + ".tmpl")
		if err != nil {
			return nil, fmt.Errorf("failed to read %s template: %w", name, err)
		}
		files = append(files, FileInfo{
			Path:        name,
			Content:     content,
			Permissions: 0644,
		})
	}
	return files, nil
}

// writeFiles writes all template files to disk. Existing files are never
// overwritten.
func writeFiles(dir string, files []FileInfo) error {
	for _, file := range files {
		path := filepath.Join(dir, file.Path)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, file.Permissions)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
		if _, err := f.Write(file.Content); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}

	return nil
}

// validateCreatedFiles loads every created file the way the other commands will
func validateCreatedFiles(dir string) error {
	cfg, err := config.Load(filepath.Join(dir, ConfigFile))
	if err != nil {
		return fmt.Errorf("created %s is invalid: %w", ConfigFile, err)
	}

	data, err := os.ReadFile(cfg.Resolve(cfg.Table.Path))
	if err != nil {
		return fmt.Errorf("failed to read created %s: %w", TableFile, err)
	}
	if _, err := counterbalance.LoadBytes(data); err != nil {
		return fmt.Errorf("created %s is invalid: %w", TableFile, err)
	}

	data, err = os.ReadFile(cfg.Resolve(cfg.Template.Path))
	if err != nil {
		return fmt.Errorf("failed to read created %s: %w", TemplateFile, err)
	}
	if _, err := report.ParseTemplate(TemplateFile, data); err != nil {
		return fmt.Errorf("created %s is invalid: %w", TemplateFile, err)
	}

	return nil
}

// PrintSuccess prints the success message with created files
func PrintSuccess(out io.Writer) {
	fmt.Fprintln(out, "\n✅ Successfully initialized hctorder project!")
	fmt.Fprintln(out, "\nCreated:")
	for _, name := range projectFiles {
		fmt.Fprintf(out, "  ✓ %s\n", name)
	}
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Replace counterbalance.csv with your study's table")
	fmt.Fprintln(out, "  2. Run 'hctorder check' to validate it")
	fmt.Fprintln(out, "  3. Run 'hctorder generate --id <participant>' at the start of each session")
}
