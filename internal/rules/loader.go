package rules

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader reads extra rule files from a rules directory. Files are
// plain YAML lists of rules in the closed DSL; they are validated
// before registration so a bad file cannot poison the engine.
type Loader struct {
	rulesDir string
	logger   *slog.Logger
}

// NewLoader creates a loader for the given directory.
func NewLoader(rulesDir string, logger *slog.Logger) *Loader {
	return &Loader{rulesDir: rulesDir, logger: logger}
}

// Load parses every .yaml/.yml file in the rules directory, sorted by
// filename for a stable registration order. A missing directory is not
// an error; a file that fails to parse or validate is skipped whole.
func (l *Loader) Load() ([]Rule, error) {
	entries, err := os.ReadDir(l.rulesDir)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Info("Rules directory not present, using default catalog only", "rules_dir", l.rulesDir)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read rules directory %s: %w", l.rulesDir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var loaded []Rule
	for _, name := range names {
		path := filepath.Join(l.rulesDir, name)
		fileRules, err := l.loadFile(path)
		if err != nil {
			l.logger.Error("Skipping rule file", "file", path, "error", err)
			continue
		}
		loaded = append(loaded, fileRules...)
	}

	l.logger.Info("Loaded rule files", "files", len(names), "rules", len(loaded))
	return loaded, nil
}

func (l *Loader) loadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}

	var fileRules []Rule
	if err := yaml.Unmarshal(data, &fileRules); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}

	for i := range fileRules {
		if err := fileRules[i].Validate(); err != nil {
			return nil, fmt.Errorf("rule %d invalid: %w", i, err)
		}
	}
	return fileRules, nil
}
