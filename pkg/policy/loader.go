package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Loader handles loading policy configuration files.
type Loader struct {
	logger  zerolog.Logger
	cache   map[string]*File
	mu      sync.RWMutex
	watcher *fsnotify.Watcher
}

// NewLoader creates a new policy loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger: logger.With().Str("component", "policy-loader").Logger(),
		cache:  make(map[string]*File),
	}
}

// LoadFromPaths loads policy files from a list of file or directory paths.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]File, error) {
	var allFiles []File

	for _, path := range paths {
		files, err := l.loadFromPath(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to load from path %s: %w", path, err)
		}
		allFiles = append(allFiles, files...)
	}

	total := 0
	for i := range allFiles {
		total += len(allFiles[i].Policies)
	}

	l.logger.Info().
		Int("files", len(allFiles)).
		Int("policies", total).
		Int("sources", len(paths)).
		Msg("Policies loaded from paths")

	return allFiles, nil
}

// loadFromPath loads policy files from a single path (file or directory).
func (l *Loader) loadFromPath(ctx context.Context, path string) ([]File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		return l.loadFromDirectory(ctx, path)
	}

	file, err := l.LoadFile(ctx, path)
	if err != nil {
		return nil, err
	}

	return []File{*file}, nil
}

// loadFromDirectory loads all policy files from a directory recursively.
func (l *Loader) loadFromDirectory(ctx context.Context, dirPath string) ([]File, error) {
	var files []File

	err := filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		if !isPolicyFile(path) {
			return nil
		}

		file, err := l.LoadFile(ctx, path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Failed to load policy file")
			return nil // Continue processing other files
		}

		files = append(files, *file)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return files, nil
}

// LoadFile loads a single policy configuration file.
func (l *Loader) LoadFile(ctx context.Context, filePath string) (*File, error) {
	// Check cache first
	l.mu.RLock()
	if cached, exists := l.cache[filePath]; exists {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	file, err := l.parseFile(filePath, data)
	if err != nil {
		return nil, err
	}

	// Cache the parsed file
	l.mu.Lock()
	l.cache[filePath] = file
	l.mu.Unlock()

	l.logger.Debug().
		Str("path", filePath).
		Int("policies", len(file.Policies)).
		Msg("Policy file loaded")

	return file, nil
}

// policyDocument is the typed shape of a policy configuration file.
type policyDocument struct {
	Policies []Policy `yaml:"policies" json:"policies"`
}

// parseFile parses a policy document by file extension. The raw parse
// must succeed; the typed decode is best-effort so that structurally
// broken documents still reach schema validation, which reports them
// far better than a decoder error would.
func (l *Loader) parseFile(filePath string, data []byte) (*File, error) {
	var raw map[string]interface{}
	var doc policyDocument

	switch {
	case strings.HasSuffix(filePath, ".yml"), strings.HasSuffix(filePath, ".yaml"):
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse YAML policy file: %w", err)
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			l.logger.Debug().Err(err).Str("path", filePath).
				Msg("Typed policy decode failed, document kept for validation")
			doc.Policies = nil
		}
	case strings.HasSuffix(filePath, ".json"):
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse JSON policy file: %w", err)
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			l.logger.Debug().Err(err).Str("path", filePath).
				Msg("Typed policy decode failed, document kept for validation")
			doc.Policies = nil
		}
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filePath)
	}

	file := &File{
		Path:     filePath,
		Raw:      raw,
		Policies: doc.Policies,
	}

	// Attach the raw fragment to each typed policy so validation and
	// execution see the same document.
	items, _ := raw["policies"].([]interface{})
	for i := range file.Policies {
		if i < len(items) {
			if m, ok := items[i].(map[string]interface{}); ok {
				file.Policies[i].Raw = m
			}
		}
	}

	return file, nil
}

// isPolicyFile reports whether a path names a loadable policy file.
func isPolicyFile(path string) bool {
	return strings.HasSuffix(path, ".yml") ||
		strings.HasSuffix(path, ".yaml") ||
		strings.HasSuffix(path, ".json")
}

// Watch starts watching paths for policy changes and triggers reload on change.
func (l *Loader) Watch(ctx context.Context, paths []string, reloadFn func([]File) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	l.watcher = watcher

	// Add paths to watcher
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Failed to stat path for watching")
			continue
		}

		if info.IsDir() {
			// Watch directory recursively
			if err := l.watchDirectory(path); err != nil {
				l.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch directory")
			}
		} else {
			if err := watcher.Add(path); err != nil {
				l.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch file")
			}
		}
	}

	// Start watching in background
	go l.processEvents(ctx, paths, reloadFn)

	l.logger.Info().
		Int("paths", len(paths)).
		Msg("Started watching policy paths")

	return nil
}

// watchDirectory adds all directories under a path to the watcher.
func (l *Loader) watchDirectory(dirPath string) error {
	return filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return l.watcher.Add(path)
		}

		return nil
	})
}

// processEvents processes file system events and triggers reloads.
func (l *Loader) processEvents(ctx context.Context, paths []string, reloadFn func([]File) error) {
	// Debounce reload events
	var reloadTimer *time.Timer
	reloadDelay := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			if l.watcher != nil {
				_ = l.watcher.Close()
			}
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}

			// Only reload on write or create events for policy files
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if isPolicyFile(event.Name) {
					l.logger.Debug().
						Str("file", event.Name).
						Str("op", event.Op.String()).
						Msg("Policy file changed")

					// Clear cache for this file
					l.mu.Lock()
					delete(l.cache, event.Name)
					l.mu.Unlock()

					// Debounce reload
					if reloadTimer != nil {
						reloadTimer.Stop()
					}
					reloadTimer = time.AfterFunc(reloadDelay, func() {
						if err := l.triggerReload(ctx, paths, reloadFn); err != nil {
							l.logger.Error().Err(err).Msg("Failed to reload policies")
						}
					})
				}
			}

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// triggerReload reloads all policy files from watched paths.
func (l *Loader) triggerReload(ctx context.Context, paths []string, reloadFn func([]File) error) error {
	l.logger.Info().Msg("Reloading policies...")

	files, err := l.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to reload policies: %w", err)
	}

	if err := reloadFn(files); err != nil {
		return fmt.Errorf("failed to apply reloaded policies: %w", err)
	}

	l.logger.Info().
		Int("files", len(files)).
		Msg("Policies reloaded successfully")

	return nil
}

// StopWatching stops watching for file changes.
func (l *Loader) StopWatching() error {
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// ClearCache clears the parsed file cache.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cache = make(map[string]*File)
	l.logger.Debug().Msg("Policy cache cleared")
}
