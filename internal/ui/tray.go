package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"
)

// refreshInterval is how often the menu counters are re-read.
const refreshInterval = 2 * time.Second

// Counter reports the size of the timeline.
type Counter interface {
	Counts() (clips, transitions int)
}

type Tray struct {
	counter Counter
	addr    string
	logger  *slog.Logger

	statusItem      *systray.MenuItem
	clipsItem       *systray.MenuItem
	transitionsItem *systray.MenuItem

	mu     sync.Mutex
	cancel context.CancelFunc

	onExport func() (string, error)
	onQuit   func()
}

type TrayConfig struct {
	Counter  Counter
	// Addr is the API listen address shown in the menu.
	Addr     string
	Logger   *slog.Logger
	OnExport func() (string, error)
	OnQuit   func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		counter:  cfg.Counter,
		addr:     cfg.Addr,
		logger:   cfg.Logger,
		onExport: cfg.OnExport,
		onQuit:   cfg.OnQuit,
	}
}

// Run blocks until the tray exits.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("transitiond")
	systray.SetTooltip("transitiond on " + t.addr)

	t.statusItem = systray.AddMenuItem(statusTitle(t.addr), "API address")
	t.statusItem.Disable()

	clips, transitions := t.counts()
	t.clipsItem = systray.AddMenuItem(clipsTitle(clips), "Clips on the timeline")
	t.clipsItem.Disable()
	t.transitionsItem = systray.AddMenuItem(transitionsTitle(transitions), "Transitions on the timeline")
	t.transitionsItem.Disable()

	systray.AddSeparator()

	exportItem := systray.AddMenuItem("Export EDL", "Write the timeline as an EDL")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit transitiond")

	ctx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	go t.refreshLoop(ctx)

	go func() {
		for {
			select {
			case <-exportItem.ClickedCh:
				t.handleExport()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Unlock()
	t.logger.Info("system tray exiting")
}

func (t *Tray) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Refresh()
		}
	}
}

// Refresh updates the counters in the menu.
func (t *Tray) Refresh() {
	clips, transitions := t.counts()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.clipsItem == nil {
		return
	}
	t.clipsItem.SetTitle(clipsTitle(clips))
	t.transitionsItem.SetTitle(transitionsTitle(transitions))
}

func (t *Tray) handleExport() {
	if t.onExport == nil {
		return
	}
	path, err := t.onExport()
	if err != nil {
		t.logger.Error("tray export failed", "error", err)
		t.setStatus("Export failed")
		return
	}
	t.logger.Info("tray export written", "path", path)
	t.setStatus("Exported")
}

func (t *Tray) setStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statusItem.SetTitle(statusTitle(t.addr) + " (" + status + ")")
}

func (t *Tray) counts() (int, int) {
	if t.counter == nil {
		return 0, 0
	}
	return t.counter.Counts()
}

func (t *Tray) Quit() {
	systray.Quit()
}

func statusTitle(addr string) string {
	return "Listening on " + addr
}

func clipsTitle(n int) string {
	return fmt.Sprintf("Clips: %d", n)
}

func transitionsTitle(n int) string {
	return fmt.Sprintf("Transitions: %d", n)
}
