// Package tray is the user-facing shell: it shows the current status line
// and handles the open-config and quit actions.
package tray

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xlog "plexpresence/internal/log"
)

const (
	IdleText    = "Nothing playing"
	DefaultTick = 200 * time.Millisecond
)

type Action int

const (
	ActionOpenConfig Action = iota + 1
	ActionQuit
)

func (a Action) String() string {
	switch a {
	case ActionOpenConfig:
		return "open-config"
	case ActionQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Opener opens a file with the desktop's default handler.
type Opener func(path string) error

type Shell struct {
	status     <-chan *string
	actions    <-chan Action
	out        io.Writer
	configPath string
	open       Opener
	tick       time.Duration
	logger     zerolog.Logger

	mu   sync.RWMutex
	text string
}

type Option func(*Shell)

func WithOutput(w io.Writer) Option {
	return func(s *Shell) { s.out = w }
}

func WithOpener(fn Opener) Option {
	return func(s *Shell) { s.open = fn }
}

func WithTick(d time.Duration) Option {
	return func(s *Shell) {
		if d > 0 {
			s.tick = d
		}
	}
}

func New(status <-chan *string, actions <-chan Action, configPath string, opts ...Option) *Shell {
	s := &Shell{
		status:     status,
		actions:    actions,
		out:        io.Discard,
		configPath: configPath,
		open:       OpenFile,
		tick:       DefaultTick,
		logger:     xlog.WithComponent("tray"),
		text:       IdleText,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Text is the status line currently shown.
func (s *Shell) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// Run shows status updates until the user quits or ctx is done. A quit
// action returns nil; the caller owns shutting the worker down.
func (s *Shell) Run(ctx context.Context) error {
	s.render()
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.drain()
		case a, ok := <-s.actions:
			if !ok {
				s.actions = nil
				continue
			}
			if s.handle(a) {
				s.logger.Info().Msg("quit requested")
				return nil
			}
		}
	}
}

func (s *Shell) drain() {
	changed := false
	for {
		select {
		case st := <-s.status:
			text := IdleText
			if st != nil {
				text = *st
			}
			s.mu.Lock()
			if s.text != text {
				s.text = text
				changed = true
			}
			s.mu.Unlock()
		default:
			if changed {
				s.render()
			}
			return
		}
	}
}

func (s *Shell) render() {
	fmt.Fprintf(s.out, "%s\n", s.Text())
}

// handle reports whether the action asks the shell to exit.
func (s *Shell) handle(a Action) bool {
	switch a {
	case ActionQuit:
		return true
	case ActionOpenConfig:
		if err := s.open(s.configPath); err != nil {
			s.logger.Error().Err(err).Str("path", s.configPath).Msg("failed to open config file")
		}
	default:
		s.logger.Warn().Int("action", int(a)).Msg("unknown action")
	}
	return false
}

// ReadActions turns console commands into actions: "o"/"open" opens the
// config file, "q"/"quit" exits. It returns when r hits EOF or ctx is done.
func ReadActions(ctx context.Context, r io.Reader, ch chan<- Action) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		var a Action
		switch strings.ToLower(strings.TrimSpace(sc.Text())) {
		case "o", "open":
			a = ActionOpenConfig
		case "q", "quit", "exit":
			a = ActionQuit
		default:
			continue
		}
		select {
		case ch <- a:
		case <-ctx.Done():
			return nil
		}
	}
	return sc.Err()
}

// OpenFile launches the platform's default handler for path.
func OpenFile(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	go cmd.Wait() //nolint:errcheck
	return nil
}
