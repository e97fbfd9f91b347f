package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Manager owns the QuantDesk config file. Writes are atomic. Watch reloads
// the file after edits made outside this process and hands the new config
// to every subscriber.
type Manager struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu          sync.RWMutex
	cfg         Config
	lastWritten [sha256.Size]byte
	subs        map[int]func(Config)
	nextSub     int
	watching    bool
}

type managerOptions struct {
	configPath    string
	initialConfig *Config
	debounce      time.Duration
	logger        *slog.Logger
}

type ManagerOption func(*managerOptions)

func NewManager(opts ...ManagerOption) (*Manager, error) {
	options := managerOptions{
		debounce: 300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	configPath := options.configPath
	if configPath == "" {
		var err error
		configPath, err = defaultConfigPath()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	m := &Manager{
		path:     configPath,
		debounce: options.debounce,
		logger:   options.logger.With("config_path", configPath),
		subs:     make(map[int]func(Config)),
	}
	if err := m.loadOrCreate(options.initialConfig); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Path() string {
	return m.path
}

// Update validates cfg and writes it to disk. Subscribers are notified
// when the stored config actually changes.
func (m *Manager) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if reflect.DeepEqual(m.Get(), cfg) {
		return nil
	}
	if err := m.write(cfg); err != nil {
		return err
	}
	m.apply(cfg)
	return nil
}

// Watch calls onChange with every valid config written to the file by
// someone else. The subscription ends when ctx is done; the file watcher
// stops with the last subscription.
func (m *Manager) Watch(ctx context.Context, onChange func(Config)) error {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = onChange
	start := !m.watching
	m.watching = true
	m.mu.Unlock()

	if start {
		watcher, err := fsnotify.NewWatcher()
		if err == nil {
			err = watcher.Add(filepath.Dir(m.path))
			if err != nil {
				_ = watcher.Close()
			}
		}
		if err != nil {
			m.mu.Lock()
			delete(m.subs, id)
			m.watching = false
			m.mu.Unlock()
			return fmt.Errorf("watch config dir: %w", err)
		}
		go m.watch(watcher)
	}

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}()
	return nil
}

func (m *Manager) watch(watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var pending *time.Timer
	poll := time.NewTicker(m.debounce)
	defer poll.Stop()

	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != filepath.Clean(m.path) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(m.debounce, func() {
				if _, err := m.reload(); err != nil {
					m.logger.Warn("config reload failed", "error", err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("config watcher error", "error", err)
		case <-poll.C:
			m.mu.Lock()
			idle := len(m.subs) == 0
			if idle {
				m.watching = false
			}
			m.mu.Unlock()
			if idle {
				if pending != nil {
					pending.Stop()
				}
				return
			}
		}
	}
}

// reload reads the file and applies it. It reports whether the config
// changed. Our own writes, invalid files and unchanged contents are
// ignored; a deleted file is recreated from the current config.
func (m *Manager) reload() (bool, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, m.write(m.Get())
	}
	if err != nil {
		return false, err
	}

	m.mu.RLock()
	own := sha256.Sum256(data) == m.lastWritten
	m.mu.RUnlock()
	if own {
		return false, nil
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return false, fmt.Errorf("parse %s: %w", m.path, err)
	}
	if err := cfg.Validate(); err != nil {
		return false, fmt.Errorf("invalid config, keeping previous: %w", err)
	}
	if reflect.DeepEqual(m.Get(), cfg) {
		return false, nil
	}
	m.logger.Info("config reloaded")
	m.apply(cfg)
	return true, nil
}

func (m *Manager) apply(cfg Config) {
	m.mu.Lock()
	m.cfg = cfg
	subs := make([]func(Config), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(cfg)
	}
}

func (m *Manager) loadOrCreate(initial *Config) error {
	var cfg Config
	err := loadConfigFromFile(m.path, &cfg)
	switch {
	case err == nil:
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config %s: %w", m.path, err)
		}
		m.cfg = cfg
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("load config: %w", err)
	}

	if initial != nil {
		cfg = *initial
	} else {
		cfg = *DefaultConfigWithRoot(filepath.Dir(m.path))
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := m.write(cfg); err != nil {
		return fmt.Errorf("write initial config: %w", err)
	}
	m.cfg = cfg
	return nil
}

// write stores cfg atomically and remembers its digest so the watcher can
// tell our writes from external edits.
func (m *Manager) write(cfg Config) error {
	data, err := encodeConfig(cfg)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.lastWritten = sha256.Sum256(data)
	m.mu.Unlock()
	return writeFileAtomic(m.path, data)
}

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "QuantDesk", "config.json"), nil
}

func encodeConfig(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

func writeConfigFile(path string, cfg Config) error {
	data, err := encodeConfig(cfg)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "cfg-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func WithConfigDir(dir string) ManagerOption {
	return func(o *managerOptions) {
		if dir != "" {
			o.configPath = filepath.Join(dir, "config.json")
		}
	}
}

func WithConfigPath(path string) ManagerOption {
	return func(o *managerOptions) {
		if path != "" {
			o.configPath = path
		}
	}
}

func WithDebounce(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

func WithInitialConfig(cfg *Config) ManagerOption {
	return func(o *managerOptions) {
		o.initialConfig = cfg
	}
}

func WithLogger(logger *slog.Logger) ManagerOption {
	return func(o *managerOptions) {
		o.logger = logger
	}
}
