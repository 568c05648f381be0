package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const reloadDebounce = 100 * time.Millisecond

// Loader keeps the current settings and reloads them when the file changes.
type Loader struct {
	path string

	mu       sync.RWMutex
	settings *Settings
	onChange []func(*Settings)

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewLoader(path string) *Loader {
	return &Loader{path: path, done: make(chan struct{})}
}

// Load reads the file and makes it current.
func (l *Loader) Load() (*Settings, error) {
	s, err := LoadSettings(l.path)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.settings = s
	l.mu.Unlock()
	return s, nil
}

// Settings returns the last successfully loaded settings, or the defaults.
func (l *Loader) Settings() *Settings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.settings == nil {
		return Default()
	}
	return l.settings
}

// OnChange registers cb for successful reloads. Register before Watch.
func (l *Loader) OnChange(cb func(*Settings)) {
	l.mu.Lock()
	l.onChange = append(l.onChange, cb)
	l.mu.Unlock()
}

// Watch reloads the settings after writes to the file. The parent directory
// is watched so editors that replace the file are handled.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	l.watcher = watcher
	l.wg.Add(1)
	go l.watchLoop()
	return nil
}

func (l *Loader) watchLoop() {
	defer l.wg.Done()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	name := filepath.Base(l.path)
	for {
		select {
		case <-l.done:
			return
		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, l.reload)
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", l.path).Msg("[Config] Watcher error")
		}
	}
}

func (l *Loader) reload() {
	s, err := LoadSettings(l.path)
	if err != nil {
		// 保留旧配置
		log.Warn().Err(err).Str("path", l.path).Msg("[Config] Reload rejected")
		return
	}

	l.mu.Lock()
	l.settings = s
	callbacks := make([]func(*Settings), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()

	log.Info().Str("path", l.path).Msg("[Config] Settings reloaded")
	for _, cb := range callbacks {
		cb(s)
	}
}

// Close stops watching.
func (l *Loader) Close() error {
	select {
	case <-l.done:
		return nil
	default:
		close(l.done)
	}
	var err error
	if l.watcher != nil {
		err = l.watcher.Close()
	}
	l.wg.Wait()
	return err
}
