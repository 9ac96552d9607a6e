package datadir

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
)

// EnvFileEnvVar names a single .env file to load instead of searching
const EnvFileEnvVar = "CRAWLWATCH_ENV_FILE"

// EnvVarPair is one KEY=VALUE line from a .env file
type EnvVarPair struct {
	Key   string
	Value string
}

// LoadEnv applies .env files so secrets such as TELEGRAM_BOT_TOKEN stay out
// of crawlwatch.yaml. The first file to mention a key wins and variables
// already in the environment are left alone.
//
// Files are read from CRAWLWATCH_ENV_FILE alone when it is set, otherwise
// from {datadir}/.env, ./.env and then {dir}/.env for each extra dir.
func LoadEnv(dataRoot string, dirs ...string) error {
	claimed := make(map[string]bool)
	for _, p := range envCandidates(dataRoot, dirs) {
		if err := LoadEnvFile(p, claimed); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// FindEnvFiles lists the candidates LoadEnv would read that exist on disk
func FindEnvFiles(dataRoot string, dirs ...string) []string {
	var found []string
	for _, p := range envCandidates(dataRoot, dirs) {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			found = append(found, p)
		}
	}
	return found
}

func envCandidates(dataRoot string, dirs []string) []string {
	if only := os.Getenv(EnvFileEnvVar); only != "" {
		return []string{only}
	}

	bases := []string{dataRoot}
	if cwd, err := os.Getwd(); err == nil {
		bases = append(bases, cwd)
	}
	bases = append(bases, dirs...)

	seen := make(map[string]bool)
	var out []string
	for _, base := range bases {
		if base == "" {
			continue
		}
		p := filepath.Join(base, ".env")
		if key := filepath.Clean(p); !seen[key] {
			seen[key] = true
			out = append(out, p)
		}
	}
	return out
}

// LoadEnvFile exports the pairs in path. Keys already in claimed or in the
// environment are skipped, and every key read is added to claimed (which may
// be nil). A missing file loads nothing.
func LoadEnvFile(path string, claimed map[string]bool) error {
	pairs, err := ParseEnvFile(path)
	switch {
	case os.IsNotExist(err):
		return nil
	case err != nil:
		return err
	}

	for _, p := range pairs {
		if claimed != nil {
			if claimed[p.Key] {
				continue
			}
			claimed[p.Key] = true
		}
		if _, set := os.LookupEnv(p.Key); set {
			continue
		}
		if err := os.Setenv(p.Key, p.Value); err != nil {
			return fmt.Errorf("setenv %s: %w", p.Key, err)
		}
	}
	return nil
}

// ParseEnvFile returns the pairs of a .env file sorted by key. The syntax
// is godotenv's: comments, "export " prefixes and quoted values with escapes.
func ParseEnvFile(path string) ([]EnvVarPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	values, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("invalid env file: %w", err)
	}
	pairs := make([]EnvVarPair, 0, len(values))
	for k, v := range values {
		pairs = append(pairs, EnvVarPair{Key: k, Value: v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs, nil
}
