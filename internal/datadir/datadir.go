// Package datadir describes the on-disk layout of a capture data directory.
package datadir

import (
	"os"
	"path/filepath"

	"github.com/matheus3301/autoreader/internal/store"
)

// EnvVar overrides the default data directory.
const EnvVar = "AUTOREADER_DATA_DIR"

// Default returns $AUTOREADER_DATA_DIR, or ~/.autoreader.
func Default() string {
	if dir := os.Getenv(EnvVar); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".autoreader")
}

// Layout resolves every path inside one data directory.
type Layout struct {
	Root string
}

// New returns the layout rooted at root, or at Default() when root is empty.
func New(root string) Layout {
	if root == "" {
		root = Default()
	}
	return Layout{Root: root}
}

// Documents returns the paths of the three capture documents.
func (l Layout) Documents() store.Paths {
	return store.PathsIn(l.Root)
}

// ConfigPath returns the config file path.
func (l Layout) ConfigPath() string {
	return filepath.Join(l.Root, "config.toml")
}

// EnvPath returns the optional dotenv file path.
func (l Layout) EnvPath() string {
	return filepath.Join(l.Root, ".env")
}

// WhatsAppSessionPath returns the whatsmeow device store path.
func (l Layout) WhatsAppSessionPath() string {
	return filepath.Join(l.Root, "wa-session.db")
}

// LogDir returns the log directory.
func (l Layout) LogDir() string {
	return filepath.Join(l.Root, "logs")
}

// LogPath returns the daemon log file path.
func (l Layout) LogPath() string {
	return filepath.Join(l.LogDir(), "autoreaderd.log")
}

// Ensure creates the directory tree with owner-only permissions.
func (l Layout) Ensure() error {
	for _, d := range []string{l.Root, l.LogDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
