package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/warren/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// ConfigFile is the project configuration file written by Initialize.
const ConfigFile = "warren.yml"

// CheckpointDir is created for the file checkpoint backend.
const CheckpointDir = ".warren/checkpoints"

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize writes the default warren.yml into dir.
// If force is true an existing warren.yml is replaced.
func Initialize(dir string, force bool) error {
	if force {
		if err := handleForce(dir); err != nil {
			return err
		}
	}

	files, err := getTemplateFiles(dir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(dir, CheckpointDir), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", CheckpointDir, err)
	}

	if err := writeFiles(files); err != nil {
		return err
	}

	return validateCreatedFiles(dir)
}

func handleForce(dir string) error {
	path := filepath.Join(dir, ConfigFile)
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("⚠️  Removing existing %s...\n", ConfigFile)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", ConfigFile, err)
		}
	}
	return nil
}

func getTemplateFiles(dir string) ([]FileInfo, error) {
	content, err := templatesFS.ReadFile("templates/warren.yml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read %s template: %w", ConfigFile, err)
	}
	return []FileInfo{{
		Path:        filepath.Join(dir, ConfigFile),
		Content:     content,
		Permissions: 0644,
	}}, nil
}

func writeFiles(files []FileInfo) error {
	for _, file := range files {
		if err := os.WriteFile(file.Path, file.Content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}
	return nil
}

// validateCreatedFiles loads the written configuration through the same
// path the CLI uses so a broken template fails at init time.
func validateCreatedFiles(dir string) error {
	if _, err := config.Load(filepath.Join(dir, ConfigFile)); err != nil {
		return fmt.Errorf("created %s is invalid: %w", ConfigFile, err)
	}
	return nil
}

// PrintSuccess prints the success message with created files
func PrintSuccess() {
	fmt.Println("\n✅ Successfully initialized Warren project!")
	fmt.Println("\nCreated:")
	fmt.Printf("  ✓ %s\n", ConfigFile)
	fmt.Printf("  ✓ %s/\n", CheckpointDir)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add '.warren/' to your .gitignore file")
	fmt.Println("  2. Export OPENAI_API_KEY, or set model.provider to static")
	fmt.Println("  3. Run 'warren up' to start the session store")
	fmt.Println("  4. Run 'warren run' to populate the archive")
}
