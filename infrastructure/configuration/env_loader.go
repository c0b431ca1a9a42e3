package configuration

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFromFile loads KEY=VALUE files such as config.env and .env.
// Missing files are skipped and existing environment variables win.
func LoadEnvFromFile(paths ...string) []string {
	loaded := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			continue
		}
		loaded = append(loaded, p)
	}
	return loaded
}
