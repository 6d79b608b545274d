package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RuleStore persists the user-defined rule list. Save always writes the
// full list, never a partial one.
type RuleStore interface {
	Load(ctx context.Context) ([]Rule, error)
	Save(ctx context.Context, rules []Rule) error
}

// FileRuleStore keeps rules in a single JSON file, rewritten atomically
// (temp file + rename) on every save.
type FileRuleStore struct {
	path   string
	logger *slog.Logger
}

// NewFileRuleStore creates a file-backed rule store at path.
func NewFileRuleStore(path string, logger *slog.Logger) *FileRuleStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileRuleStore{path: path, logger: logger}
}

// Load reads the rule list. A missing file is an empty list.
func (s *FileRuleStore) Load(_ context.Context) ([]Rule, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", s.path, err)
	}
	return rules, nil
}

// Save writes the full rule list atomically.
func (s *FileRuleStore) Save(_ context.Context, rules []Rule) error {
	if rules == nil {
		rules = []Rule{}
	}
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create rules dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".rules-*.json")
	if err != nil {
		return fmt.Errorf("create temp rules file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write rules: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp rules file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace rules file: %w", err)
	}
	return nil
}

// Watch invokes onChange (debounced) whenever the rules file is
// rewritten by another process, until ctx is done. This is what makes
// external edits hot-reload without a restart.
func (s *FileRuleStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch rules dir: %w", err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()

		// Debounce: a save is a write burst plus a rename.
		timer := time.NewTimer(time.Hour)
		if !timer.Stop() {
			<-timer.C
		}
		pending := false

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				pending = true
				timer.Reset(500 * time.Millisecond)
			case <-timer.C:
				if pending {
					pending = false
					s.logger.Debug("rules file changed on disk", "path", s.path)
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("rules file watcher error", "error", err)
			}
		}
	}()

	return nil
}
