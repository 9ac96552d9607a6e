package ssh

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	charmssh "github.com/charmbracelet/ssh"
	gossh "golang.org/x/crypto/ssh"

	"crawlwatch/internal/datadir"
)

const (
	// AuthorizedKeysFile is the key list's file name inside the SSH directory
	AuthorizedKeysFile = "authorized_keys"
	// HostKeyFile is the server host key's file name inside the SSH directory
	HostKeyFile = "ssh_host_key"
)

// ErrKeyExists is returned when adding a key that is already authorized
var ErrKeyExists = errors.New("key already authorized")

// KeyEntry represents an authorized public key with metadata
type KeyEntry struct {
	PublicKey   charmssh.PublicKey
	Type        string
	Comment     string
	Fingerprint string
}

// DefaultPaths returns the host key and authorized_keys paths under the
// data directory's ssh folder
func DefaultPaths(dd *datadir.DataDir) (hostKey, authorizedKeys string) {
	return dd.Path(datadir.AreaSSH, HostKeyFile), dd.Path(datadir.AreaSSH, AuthorizedKeysFile)
}

// parseKeyLine parses one authorized_keys line. Blank lines, comments and
// malformed keys yield ok=false.
func parseKeyLine(line string) (KeyEntry, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return KeyEntry{}, false
	}
	pubKey, comment, _, _, err := gossh.ParseAuthorizedKey([]byte(line))
	if err != nil {
		return KeyEntry{}, false
	}
	return KeyEntry{
		PublicKey:   pubKey,
		Type:        pubKey.Type(),
		Comment:     comment,
		Fingerprint: gossh.FingerprintSHA256(pubKey),
	}, true
}

// ListAuthorizedKeys returns all authorized keys with fingerprints
func ListAuthorizedKeys(path string) ([]KeyEntry, error) {
	if path == "" {
		return nil, fmt.Errorf("no authorized keys path available")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open authorized keys: %w", err)
	}
	defer f.Close()

	var entries []KeyEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if entry, ok := parseKeyLine(scanner.Text()); ok {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading authorized keys: %w", err)
	}
	return entries, nil
}

// LoadAuthorizedKeys loads SSH public keys from an authorized_keys file
func LoadAuthorizedKeys(path string) ([]charmssh.PublicKey, error) {
	entries, err := ListAuthorizedKeys(path)
	if err != nil {
		return nil, err
	}
	keys := make([]charmssh.PublicKey, len(entries))
	for i, e := range entries {
		keys[i] = e.PublicKey
	}
	return keys, nil
}

// AddAuthorizedKey validates keyData and appends it to the authorized_keys
// file. Adding a key that is already present returns ErrKeyExists.
func AddAuthorizedKey(path string, keyData string) (KeyEntry, error) {
	if path == "" {
		return KeyEntry{}, fmt.Errorf("no authorized keys path available")
	}

	keyData = strings.TrimSpace(keyData)
	entry, ok := parseKeyLine(keyData)
	if !ok {
		_, _, _, _, err := gossh.ParseAuthorizedKey([]byte(keyData))
		if err == nil {
			err = errors.New("empty key")
		}
		return KeyEntry{}, fmt.Errorf("invalid public key: %w", err)
	}

	existing, err := ListAuthorizedKeys(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return KeyEntry{}, err
	}
	for _, e := range existing {
		if e.Fingerprint == entry.Fingerprint {
			return e, ErrKeyExists
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return KeyEntry{}, fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return KeyEntry{}, fmt.Errorf("failed to open authorized keys: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(keyData + "\n"); err != nil {
		return KeyEntry{}, fmt.Errorf("failed to write key: %w", err)
	}
	return entry, nil
}

// RemoveAuthorizedKey removes a key by fingerprint. The "SHA256:" prefix is
// optional. Comments and unparseable lines are preserved.
func RemoveAuthorizedKey(path string, fingerprint string) error {
	if path == "" {
		return fmt.Errorf("no authorized keys path available")
	}
	if !strings.HasPrefix(fingerprint, "SHA256:") {
		fingerprint = "SHA256:" + fingerprint
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read authorized keys: %w", err)
	}

	var kept []string
	found := false
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if entry, ok := parseKeyLine(line); ok && entry.Fingerprint == fingerprint {
			found = true
			continue
		}
		kept = append(kept, line)
	}
	if !found {
		return fmt.Errorf("key with fingerprint %s not found", fingerprint)
	}

	content := strings.Join(kept, "\n")
	if content != "" {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0600)
}

// InitResult describes what InitKeys did
type InitResult struct {
	HostKeyPath        string
	AuthorizedKeysPath string
	Created            bool
}

// InitKeys creates an empty authorized_keys file if none exists. The host
// key is generated by Wish when the server first starts.
func InitKeys(hostKeyPath, authorizedKeysPath string) (*InitResult, error) {
	res := &InitResult{HostKeyPath: hostKeyPath, AuthorizedKeysPath: authorizedKeysPath}

	if _, err := os.Stat(authorizedKeysPath); err == nil {
		return res, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat authorized_keys: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(authorizedKeysPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(authorizedKeysPath, []byte("# crawlwatch authorized SSH keys\n"), 0600); err != nil {
		return nil, fmt.Errorf("failed to create authorized_keys: %w", err)
	}
	res.Created = true
	return res, nil
}
