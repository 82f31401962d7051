package cli

import (
	"os"
	"path/filepath"
	"strings"
)

// Config holds CLI configuration
type Config struct {
	ServerURL string
	UserID    string
	UserFile  string
	Output    string
	Verbose   bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL: getEnvOrDefault("NOUGHTS_SERVER", "http://localhost:8080"),
		UserID:    os.Getenv("NOUGHTS_USER"),
		UserFile:  getEnvOrDefault("NOUGHTS_USER_FILE", defaultUserFile()),
		Output:    "text",
	}
}

// LoadUser reads the saved player id unless one was given explicitly
func (c *Config) LoadUser() error {
	if c.UserID != "" {
		return nil
	}

	data, err := os.ReadFile(c.UserFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	c.UserID = strings.TrimSpace(string(data))
	return nil
}

// SaveUser remembers the player id for later commands
func (c *Config) SaveUser(id string) error {
	c.UserID = id

	if err := os.MkdirAll(filepath.Dir(c.UserFile), 0700); err != nil {
		return err
	}
	return os.WriteFile(c.UserFile, []byte(id), 0600)
}

func defaultUserFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".noughts/user"
	}
	return filepath.Join(home, ".noughts", "user")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
