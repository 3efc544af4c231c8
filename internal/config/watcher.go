package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xlog "plexpresence/internal/log"
)

const defaultDebounce = 500 * time.Millisecond

// Holder keeps the active configuration and reloads it when the file
// changes. Listeners only receive configs that passed validation.
type Holder struct {
	mu       sync.RWMutex
	current  Config
	path     string
	debounce time.Duration
	logger   zerolog.Logger

	listenersMu sync.RWMutex
	listeners   []chan<- Config
}

func NewHolder(initial Config, path string) *Holder {
	return &Holder{
		current:  initial,
		path:     path,
		debounce: defaultDebounce,
		logger:   xlog.WithComponent("config"),
	}
}

func (h *Holder) Get() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Subscribe registers ch for reload notifications. Sends are non-blocking,
// so ch should be buffered.
func (h *Holder) Subscribe(ch chan<- Config) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

// Reload re-reads the file. An invalid file leaves the current config in
// place.
func (h *Holder) Reload() error {
	cfg, err := readFile(h.path)
	if err == nil {
		err = applyEnv(&cfg)
	}
	if err == nil {
		err = Validate(cfg)
	}
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = cfg
	h.mu.Unlock()

	h.logChanges(old, cfg)
	h.notify(cfg)
	return nil
}

func (h *Holder) notify(cfg Config) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().Msg("config listener is full, skipping notification")
		}
	}
}

func (h *Holder) logChanges(old, cfg Config) {
	if old.PollingIntervalSecs != cfg.PollingIntervalSecs {
		h.logger.Info().
			Int("old", old.PollingIntervalSecs).
			Int("new", cfg.PollingIntervalSecs).
			Msg("polling interval changed")
	}
	if old.LogLevel != cfg.LogLevel {
		h.logger.Info().Str("old", old.LogLevel).Str("new", cfg.LogLevel).Msg("log level changed")
	}
	if old.ServerURL != cfg.ServerURL || old.Token != cfg.Token ||
		old.DiagnosticsAddr != cfg.DiagnosticsAddr || old.DiscordClientID != cfg.DiscordClientID ||
		old.OMDbAPIKey != cfg.OMDbAPIKey {
		h.logger.Warn().Msg("connection settings changed; restart required")
	}
}

// Watch reloads the config whenever the file is written, until ctx is
// done. The parent directory is watched so that atomic replaces by
// editors are seen.
func (h *Holder) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(h.path)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.logger.Info().Str("path", h.path).Msg("watching config file for changes")

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	target := filepath.Clean(h.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug().Str("op", ev.Op.String()).Msg("config file changed")
			if timer == nil {
				timer = time.NewTimer(h.debounce)
			} else {
				timer.Reset(h.debounce)
			}
			reload = timer.C
		case <-reload:
			reload = nil
			if err := h.Reload(); err != nil {
				h.logger.Error().Err(err).Msg("automatic config reload failed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Error().Err(err).Msg("config watcher error")
		}
	}
}
