// Package browser manages the Chrome lifecycle for collection runs:
// launch or remote-connect via Rod, stealth page creation, cookie-based
// authentication, and full restart after session loss.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Headless controls the local launcher. Remote instances decide for
	// themselves.
	Headless bool

	// CookiesFile is a JSON cookie export used to authenticate the
	// session. Empty skips authentication.
	CookiesFile string

	// BaseURL of the target site, used for the post-injection login
	// check.
	BaseURL string

	NavTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://x.com"
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns one Chrome instance at a time.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewManager creates a Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start launches Chrome (or connects to a remote instance), opens a
// stealth page, and authenticates it with the configured cookies.
// Calling Start while a browser is running recycles it first, which is
// how session loss is handled.
func (m *Manager) Start(ctx context.Context) (*rod.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}
	m.cleanupLocked()

	b, err := m.launch()
	if err != nil {
		return nil, err
	}
	m.browser = b

	page, err := stealth.Page(b)
	if err != nil {
		m.cleanupLocked()
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	if m.cfg.CookiesFile != "" {
		if err := m.authenticate(ctx, b, page); err != nil {
			m.cleanupLocked()
			return nil, err
		}
	}
	return page, nil
}

// Close shuts down Chrome.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cleanupLocked()
	return nil
}

func (m *Manager) launch() (*rod.Browser, error) {
	log := m.cfg.Logger

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Headless(m.cfg.Headless)

		// Anti-detection flags.
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "headless", m.cfg.Headless)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}
	return b, nil
}

func (m *Manager) authenticate(ctx context.Context, b *rod.Browser, page *rod.Page) error {
	cookies, err := LoadCookies(m.cfg.CookiesFile)
	if err != nil {
		return err
	}
	if err := b.SetCookies(cookies); err != nil {
		return fmt.Errorf("browser: set cookies: %w", err)
	}
	m.cfg.Logger.Info("browser: injected session cookies", "count", len(cookies))

	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(m.cfg.BaseURL + "/home"); err != nil {
		return fmt.Errorf("browser: navigate home: %w", err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		m.cfg.Logger.Warn("browser: home load timeout", "error", err)
	}

	info, err := page.Context(navCtx).Info()
	if err != nil {
		return fmt.Errorf("browser: page info: %w", err)
	}
	if isLoginURL(info.URL) {
		return fmt.Errorf("browser: cookies rejected, landed on %s", info.URL)
	}
	m.cfg.Logger.Info("browser: cookie login accepted")
	return nil
}

func (m *Manager) cleanupLocked() {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
}
