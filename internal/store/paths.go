package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DBFileName is the SQLite database file inside the .cmem directory.
const DBFileName = "memory.db"

// GlobalCmemPath returns the path to the global .cmem directory.
// On Unix: ~/.cmem
// On Windows: %USERPROFILE%\.cmem
func GlobalCmemPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cmem"), nil
}

// LocalCmemPath returns the path to the local .cmem directory for the
// given root.
func LocalCmemPath(root string) string {
	return filepath.Join(root, ".cmem")
}

// DBPath returns the database path inside the local .cmem directory.
func DBPath(root string) string {
	return filepath.Join(LocalCmemPath(root), DBFileName)
}

// cmemGitignore is the default .gitignore content for .cmem directories.
const cmemGitignore = `# SQLite database files
memory.db
memory.db-shm
memory.db-wal
`

// EnsureGitignore creates a .gitignore in the given .cmem directory if
// one does not already exist, so database files stay out of version
// control.
func EnsureGitignore(cmemDir string) error {
	gitignorePath := filepath.Join(cmemDir, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		return nil // already exists, respect user customizations
	}
	if err := os.WriteFile(gitignorePath, []byte(cmemGitignore), 0600); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	return nil
}
