package log

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
	"moul.io/zapfilter"
)

// Rules lowers the effective level for selected logger namespaces.
// Entries at or above the logger level are always written, rules only add
// more verbose output for matching names.
type Rules struct {
	filter zapfilter.FilterFunc
}

// RulesConfig is the yaml layout of the log config file.
//
//	loggers:
//	  game: debug
//	  api.*: debug
type RulesConfig struct {
	Loggers map[string]string `yaml:"loggers"`
}

var rules atomic.Pointer[Rules]

func activeRules() *Rules {
	if r := rules.Load(); r != nil {
		return r
	}
	return &Rules{}
}

func (r *Rules) Allowed(e zapcore.Entry, f []zapcore.Field) bool {
	if r == nil || r.filter == nil {
		return false
	}
	return r.filter(e, f)
}

// levels from 'min' up to error, in the notation used by zapfilter rules
func levelList(min Level) string {
	all := []Level{DebugLevel, InfoLevel, WarnLevel, ErrorLevel}
	ret := make([]string, 0, len(all))
	for _, l := range all {
		if l >= min {
			ret = append(ret, l.String())
		}
	}
	return strings.Join(ret, ",")
}

func ParseRules(cfg *RulesConfig) (*Rules, error) {
	if cfg == nil || len(cfg.Loggers) == 0 {
		return &Rules{}, nil
	}
	names := make([]string, 0, len(cfg.Loggers))
	for name := range cfg.Loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		lvl, err := ParseLevel(cfg.Loggers[name])
		if err != nil {
			return nil, fmt.Errorf("logger %s: %w", name, err)
		}
		parts = append(parts, fmt.Sprintf("%s:%s", levelList(lvl), name))
	}
	filter, err := zapfilter.ParseRules(strings.Join(parts, " "))
	if err != nil {
		return nil, err
	}
	return &Rules{filter: filter}, nil
}

// LoadRules reads the yaml log config at path and activates it.
func LoadRules(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var cfg RulesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("log config %s: %w", path, err)
	}
	r, err := ParseRules(&cfg)
	if err != nil {
		return err
	}
	rules.Store(r)
	return nil
}

// WatchRules loads the log config and reloads it whenever the file changes
// until ctx is done.
func WatchRules(ctx context.Context, path string) error {
	if err := LoadRules(path); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// editors replace files on save, so the directory is watched
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}
	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target ||
					!ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if err := LoadRules(path); err != nil {
					Warn("could not reload log config",
						String("path", path), ErrorField(err))
				} else {
					Info("reloaded log config", String("path", path))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				Warn("log config watcher", ErrorField(err))
			}
		}
	}()
	return nil
}
