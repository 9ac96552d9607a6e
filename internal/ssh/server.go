// Package ssh serves the crawler dashboard to SSH clients with Wish. Every
// session gets its own dashboard model and its own live synchronizer, torn
// down when the session ends.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	charmssh "github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	wishbubbletea "github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"

	"crawlwatch/internal/tui"
)

// DefaultListenAddr is used when no address is configured
const DefaultListenAddr = ":2222"

// SSHConfig holds configuration for the SSH server
type SSHConfig struct {
	ListenAddr         string
	HostKeyPath        string
	AuthorizedKeysPath string

	// Dashboard is copied into every session. Preferences and log
	// redirection are cleared since they belong to the local terminal.
	Dashboard tui.RunConfig
}

// keyring holds the authorized keys and re-reads the file when its
// modification time changes, so `crawlwatch ssh-keys add` applies to the
// next login.
type keyring struct {
	path string

	mu      sync.Mutex
	keys    []charmssh.PublicKey
	modTime time.Time
}

func newKeyring(path string) *keyring {
	k := &keyring{path: path}
	k.reload()
	return k
}

// reload keeps the previous keys when the file cannot be read
func (k *keyring) reload() {
	info, err := os.Stat(k.path)
	if err != nil {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if !info.ModTime().After(k.modTime) && k.keys != nil {
		return
	}
	keys, err := LoadAuthorizedKeys(k.path)
	if err != nil {
		log.Printf("[SSH] Failed to reload %s: %v", k.path, err)
		return
	}
	k.keys = keys
	k.modTime = info.ModTime()
}

func (k *keyring) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.keys)
}

func (k *keyring) allows(key charmssh.PublicKey) bool {
	k.reload()
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, authorized := range k.keys {
		if charmssh.KeysEqual(key, authorized) {
			return true
		}
	}
	return false
}

// authorize admits any key while the ring is empty and only authorized
// keys once the file holds at least one
func (k *keyring) authorize(key charmssh.PublicKey) bool {
	k.reload()
	if k.len() == 0 {
		log.Printf("[SSH] Warning: no authorized keys in %q, accepting client", k.path)
		return true
	}
	return k.allows(key)
}

// NewServer builds the Wish server. While the authorized_keys file holds no
// key every client is accepted; the first key added locks the server down.
func NewServer(config SSHConfig) (*charmssh.Server, error) {
	if config.HostKeyPath == "" {
		return nil, fmt.Errorf("host key path is required")
	}
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}
	dashboard := config.Dashboard
	dashboard.PreferencesPath = ""
	dashboard.LogPath = ""

	opts := []charmssh.Option{
		wish.WithAddress(config.ListenAddr),
		wish.WithHostKeyPath(config.HostKeyPath),
		wish.WithMiddleware(
			wishbubbletea.Middleware(func(sess charmssh.Session) (tea.Model, []tea.ProgramOption) {
				return dashboardSession(sess, dashboard)
			}),
			activeterm.Middleware(),
			logging.Middleware(),
		),
	}

	ring := newKeyring(config.AuthorizedKeysPath)
	if n := ring.len(); n > 0 {
		log.Printf("[SSH] Loaded %d authorized keys from %s", n, config.AuthorizedKeysPath)
	} else {
		log.Printf("[SSH] Warning: no authorized keys in %q, accepting any client until one is added", config.AuthorizedKeysPath)
	}
	opts = append(opts, wish.WithPublicKeyAuth(func(ctx charmssh.Context, key charmssh.PublicKey) bool {
		ok := ring.authorize(key)
		if ok {
			log.Printf("[SSH] Public key accepted for %s", ctx.User())
		} else {
			log.Printf("[SSH] Public key rejected for %s", ctx.User())
		}
		return ok
	}))

	server, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH server: %w", err)
	}
	return server, nil
}

// ListenAndServe runs server until ctx is cancelled
func ListenAndServe(ctx context.Context, server *charmssh.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("[SSH] Shutting down SSH server...")
	if err := server.Close(); err != nil {
		log.Printf("[SSH] Close error: %v", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, charmssh.ErrServerClosed) {
		return err
	}
	return nil
}

// dashboardSession gives one SSH session its own dashboard and push channel
func dashboardSession(sess charmssh.Session, dashboard tui.RunConfig) (tea.Model, []tea.ProgramOption) {
	user := sess.User()
	if user == "" {
		user = "ssh-user"
	}

	// styles must be rendered for the remote terminal, not ours
	renderer := wishbubbletea.MakeRenderer(sess)

	model, live, err := tui.NewDashboard(&dashboard, renderer)
	if err != nil {
		log.Printf("[SSH] Dashboard for %s failed: %v", user, err)
		wish.Fatalln(sess, "crawlwatch: "+err.Error())
		return nil, nil
	}

	go func() {
		<-sess.Context().Done()
		live.Close()
		log.Printf("[SSH] Session closed for %s", user)
	}()

	model.SetSSHUser(user)
	return model, []tea.ProgramOption{tea.WithAltScreen()}
}
