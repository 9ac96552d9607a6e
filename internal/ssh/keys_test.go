package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"

	"crawlwatch/internal/tui"
)

// newKeyLine returns a fresh ed25519 authorized_keys line and its fingerprint
func newKeyLine(t *testing.T, comment string) (string, string) {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := gossh.NewPublicKey(pub)
	require.NoError(t, err)
	line := strings.TrimSpace(string(gossh.MarshalAuthorizedKey(sshPub)))
	if comment != "" {
		line += " " + comment
	}
	return line, gossh.FingerprintSHA256(sshPub)
}

func TestInitKeys_CreatesOnce(t *testing.T) {
	dir := t.TempDir()
	hostKey := filepath.Join(dir, "ssh", HostKeyFile)
	authKeys := filepath.Join(dir, "ssh", AuthorizedKeysFile)

	res, err := InitKeys(hostKey, authKeys)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.FileExists(t, authKeys)

	res, err = InitKeys(hostKey, authKeys)
	require.NoError(t, err)
	assert.False(t, res.Created)

	entries, err := ListAuthorizedKeys(authKeys)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAuthorizedKeys_AddListRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), AuthorizedKeysFile)
	lineA, fpA := newKeyLine(t, "alice@laptop")
	lineB, fpB := newKeyLine(t, "")

	entry, err := AddAuthorizedKey(path, lineA+"\n")
	require.NoError(t, err)
	assert.Equal(t, fpA, entry.Fingerprint)
	assert.Equal(t, "alice@laptop", entry.Comment)
	assert.Equal(t, "ssh-ed25519", entry.Type)

	_, err = AddAuthorizedKey(path, lineB)
	require.NoError(t, err)

	_, err = AddAuthorizedKey(path, lineA)
	assert.ErrorIs(t, err, ErrKeyExists)

	_, err = AddAuthorizedKey(path, "ssh-ed25519 not-base64")
	assert.Error(t, err)

	entries, err := ListAuthorizedKeys(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	keys, err := LoadAuthorizedKeys(path)
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	// Fingerprint without the SHA256: prefix
	require.NoError(t, RemoveAuthorizedKey(path, strings.TrimPrefix(fpA, "SHA256:")))
	entries, err = ListAuthorizedKeys(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, fpB, entries[0].Fingerprint)

	assert.Error(t, RemoveAuthorizedKey(path, fpA))
}

func TestRemoveAuthorizedKey_PreservesComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), AuthorizedKeysFile)
	line, fp := newKeyLine(t, "bob")
	content := "# team keys\n" + line + "\nnot a key\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	require.NoError(t, RemoveAuthorizedKey(path, fp))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# team keys\nnot a key\n", string(data))
}

func TestListAuthorizedKeys_Errors(t *testing.T) {
	_, err := ListAuthorizedKeys("")
	assert.Error(t, err)
	_, err = ListAuthorizedKeys(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestNewServer(t *testing.T) {
	dir := t.TempDir()

	_, err := NewServer(SSHConfig{})
	assert.Error(t, err)

	srv, err := NewServer(SSHConfig{
		ListenAddr:         "127.0.0.1:0",
		HostKeyPath:        filepath.Join(dir, HostKeyFile),
		AuthorizedKeysPath: filepath.Join(dir, AuthorizedKeysFile),
		Dashboard:          tui.RunConfig{BackendURL: "http://localhost:8001"},
	})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", srv.Addr)
}

func TestKeyring_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), AuthorizedKeysFile)
	first, _ := newKeyLine(t, "first")
	second, _ := newKeyLine(t, "second")
	require.NoError(t, os.WriteFile(path, []byte(first+"\n"), 0600))

	ring := newKeyring(path)
	assert.Equal(t, 1, ring.len())

	parse := func(line string) gossh.PublicKey {
		key, _, _, _, err := gossh.ParseAuthorizedKey([]byte(line))
		require.NoError(t, err)
		return key
	}
	assert.True(t, ring.allows(parse(first)))
	assert.False(t, ring.allows(parse(second)))

	_, err := AddAuthorizedKey(path, second)
	require.NoError(t, err)
	later := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	assert.True(t, ring.allows(parse(second)))
	assert.Equal(t, 2, ring.len())
}

func TestKeyring_MissingFile(t *testing.T) {
	ring := newKeyring(filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, 0, ring.len())
	line, _ := newKeyLine(t, "")
	key, _, _, _, err := gossh.ParseAuthorizedKey([]byte(line))
	require.NoError(t, err)
	assert.False(t, ring.allows(key))
}

func TestKeyring_AuthorizeLocksOnFirstKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), AuthorizedKeysFile)
	owner, _ := newKeyLine(t, "owner")
	stranger, _ := newKeyLine(t, "stranger")
	parse := func(line string) gossh.PublicKey {
		key, _, _, _, err := gossh.ParseAuthorizedKey([]byte(line))
		require.NoError(t, err)
		return key
	}

	ring := newKeyring(path)
	require.Equal(t, 0, ring.len())
	assert.True(t, ring.authorize(parse(stranger)))

	_, err := AddAuthorizedKey(path, owner)
	require.NoError(t, err)
	later := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	assert.False(t, ring.authorize(parse(stranger)))
	assert.True(t, ring.authorize(parse(owner)))
	assert.Equal(t, 1, ring.len())
}
