package pathing

import (
	"log"
	"os"
	"path/filepath"
)

// Ensure directories exist on startup
func init() {
	// Directories that must exist:
	dirs := []string{
		GetDataDir(),
	}

	// Create all directories
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			err := os.MkdirAll(dir, 0755)
			if err != nil {
				log.Printf("Warning: could not create %s: %v", dir, err)
			}
		}
	}
}

func GetScadaDbPath() string {
	// Join path
	return filepath.Join(GetDataDir(), "aws-scada.db")
}

func GetDataDir() string {
	// Overridable so tests and dev runs stay out of /var/lib
	if dir := os.Getenv("SCADA_DATA_DIR"); dir != "" {
		return dir
	}
	return "/var/lib/dashboard-aws"
}

func GetConfigDir() string {
	if dir := os.Getenv("SCADA_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "/etc/dashboard-aws"
}
