package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/planguard/planguard/pkg/security"
)

// Loader discovers, parses, and compiles rule files.
type Loader struct {
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
}

// NewLoader creates a new rule loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger: logger.With().Str("component", "rule-loader").Logger(),
	}
}

// LoadDir loads and validates every rule file under dir, recursively. The
// batch fails closed: if any file is malformed, the whole load fails and the
// error names every offending file, so a bad rule is never silently dropped.
func (l *Loader) LoadDir(dir string) ([]*Rule, error) {
	resolved, err := security.ValidateSafeDirectory(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid rules directory: %w", err)
	}

	var files []string
	err = filepath.WalkDir(resolved, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if security.AllowedRuleExtensions[ext] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk rules directory: %w", err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no rule files (*.json, *.yaml) found in: %s", dir)
	}

	var rules []*Rule
	var loadErrs *multierror.Error
	fileByID := make(map[string]string, len(files))

	for _, file := range files {
		rule, err := l.LoadFile(file)
		if err != nil {
			loadErrs = multierror.Append(loadErrs, fmt.Errorf("%s: %w", file, err))
			continue
		}
		// Rule ids are unique across the batch; a collision is a batch
		// failure like any other malformed file.
		if prev, ok := fileByID[rule.ID]; ok {
			loadErrs = multierror.Append(loadErrs,
				fmt.Errorf("%s: duplicate rule id %q (already declared in %s)", file, rule.ID, prev))
			continue
		}
		fileByID[rule.ID] = file
		rules = append(rules, rule)
	}

	if err := loadErrs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("failed to load one or more rules: %w", err)
	}

	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	l.logger.Info().
		Int("count", len(rules)).
		Str("dir", dir).
		Msg("Rules loaded")

	return rules, nil
}

// LoadFile loads and compiles a single rule file.
func (l *Loader) LoadFile(path string) (*Rule, error) {
	resolved, err := security.ValidateSafePath(path, security.AllowedRuleExtensions, true)
	if err != nil {
		return nil, err
	}
	if err := security.ValidateFileSize(resolved); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	spec, err := parseSpec(resolved, data)
	if err != nil {
		return nil, err
	}

	rule, err := spec.Compile()
	if err != nil {
		return nil, err
	}

	l.logger.Debug().
		Str("path", path).
		Str("rule", rule.ID).
		Msg("Rule loaded from file")

	return rule, nil
}

// parseSpec decodes a rule file by extension. YAML documents are normalized
// through a generic map and re-decoded as JSON so both formats share the
// same presence-aware RuleSpec decoding.
func parseSpec(path string, data []byte) (*RuleSpec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var generic interface{}
		if err := json.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		if err := security.ValidateJSONDepth(generic); err != nil {
			return nil, err
		}
		var spec RuleSpec
		if err := json.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("invalid rule: %w", err)
		}
		return &spec, nil

	case ".yaml", ".yml":
		var generic map[string]interface{}
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		if err := security.ValidateJSONDepth(normalizeYAML(generic)); err != nil {
			return nil, err
		}
		normalized, err := json.Marshal(normalizeYAML(generic))
		if err != nil {
			return nil, fmt.Errorf("invalid rule: %w", err)
		}
		var spec RuleSpec
		if err := json.Unmarshal(normalized, &spec); err != nil {
			return nil, fmt.Errorf("invalid rule: %w", err)
		}
		return &spec, nil
	}

	return nil, fmt.Errorf("unsupported rule file type: %s", path)
}

// normalizeYAML rewrites yaml.v3's map[string]interface{} trees so nested
// map[interface{}]interface{} values (possible under older map key forms)
// become JSON-encodable string-keyed maps.
func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}

// Watch watches a rules directory and invokes reloadFn with the freshly
// loaded batch whenever a rule file changes. Reloads are debounced; a batch
// that fails validation is reported and the previous rules stay in effect.
func (l *Loader) Watch(ctx context.Context, dir string, reloadFn func([]*Rule) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	l.watcher = watcher

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch rules directory: %w", err)
	}

	go l.processEvents(ctx, dir, reloadFn)

	l.logger.Info().Str("dir", dir).Msg("Watching rules directory")
	return nil
}

// processEvents debounces file system events and triggers reloads.
func (l *Loader) processEvents(ctx context.Context, dir string, reloadFn func([]*Rule) error) {
	var reloadTimer *time.Timer
	const reloadDelay = 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			_ = l.watcher.Close()
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			ext := strings.ToLower(filepath.Ext(event.Name))
			if !security.AllowedRuleExtensions[ext] {
				continue
			}

			l.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Rule file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, func() {
				rules, err := l.LoadDir(dir)
				if err != nil {
					l.logger.Error().Err(err).Msg("Failed to reload rules")
					return
				}
				if err := reloadFn(rules); err != nil {
					l.logger.Error().Err(err).Msg("Failed to apply reloaded rules")
					return
				}
				l.logger.Info().Int("count", len(rules)).Msg("Rules reloaded")
			})

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// StopWatching stops watching for file changes.
func (l *Loader) StopWatching() error {
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}
