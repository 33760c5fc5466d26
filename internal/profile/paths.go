// Package profile resolves per-profile filesystem paths. A profile is one
// WhatsApp account plus its CRM database; a dealership running two numbers
// runs two profiles.
package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.dealersync.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dealersync")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// WADBPath returns the whatsmeow credential store path.
func WADBPath(name string) string {
	return filepath.Join(Dir(name), "wa.db")
}

// CRMDBPath returns the app-owned CRM database path.
func CRMDBPath(name string) string {
	return filepath.Join(Dir(name), "crm.db")
}

// QRPath returns where the pairing QR code PNG is written.
func QRPath(name string) string {
	return filepath.Join(Dir(name), "qr.png")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "dealersyncd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with owner-only permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
