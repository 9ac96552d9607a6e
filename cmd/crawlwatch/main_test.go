package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"

	"crawlwatch/internal/datadir"
	"crawlwatch/internal/fakebackend"
	"crawlwatch/internal/scheduler"
)

type cli struct {
	t       *testing.T
	cfgPath string
	backend *fakebackend.Server
	dataDir string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	backend := fakebackend.New(fakebackend.WithSeed(5))
	backend.SeedAccounts()
	srv := httptest.NewServer(backend)
	t.Cleanup(func() {
		backend.Close()
		srv.Close()
	})

	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	t.Setenv(datadir.EnvVar, dataDir)

	cfgPath := filepath.Join(dir, "crawlwatch.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("backend_url: "+srv.URL+"\n"), 0600))

	return &cli{t: t, cfgPath: cfgPath, backend: backend, dataDir: dataDir}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append([]string{"--config", c.cfgPath}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	c := newCLI(t)
	out, err := c.run("version")
	require.NoError(t, err)
	assert.Contains(t, out, "Crawlwatch")
	assert.Contains(t, out, "Go version:")
}

func TestStatusStartStop(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "stopped")

	out, err = c.run("start")
	require.NoError(t, err)
	assert.Contains(t, out, "Crawler started")

	out, err = c.run("status", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"crawl_status": "running"`)

	_, err = c.run("stop")
	require.NoError(t, err)
	statusJSON = false
}

func TestAccountsCommands(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("accounts", "list")
	require.NoError(t, err)
	for _, name := range fakebackend.DefaultAccounts {
		assert.Contains(t, out, name)
	}

	out, err = c.run("accounts", "add", "newbie", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Account newbie added")
	accountPassword = ""

	out, err = c.run("accounts", "disable", "newbie")
	require.NoError(t, err)
	assert.Contains(t, out, "disabled")

	out, err = c.run("accounts", "delete", "newbie")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")

	out, err = c.run("accounts", "delete", "newbie", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Account newbie deleted")
	accountsDeleteYes = false

	_, err = c.run("accounts", "add", "nopass")
	assert.Error(t, err)
}

func TestRecordsAndExport(t *testing.T) {
	c := newCLI(t)
	c.backend.CrawlOnce()

	out, err := c.run("records", "--account", fakebackend.DefaultAccounts[0], "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "ACCOUNT")
	assert.Contains(t, out, fakebackend.DefaultAccounts[0])
	recordFilters.AccountUsername = ""

	dest := filepath.Join(t.TempDir(), "out.csv")
	out, err = c.run("export", "-o", dest)
	require.NoError(t, err)
	assert.Contains(t, out, dest)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	exportOutput = ""
}

func TestJobsCommands(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("jobs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No scheduled jobs")

	_, err = c.run("jobs", "add", "@daily", "reboot")
	assert.Error(t, err)

	out, err = c.run("jobs", "add", "0 8 * * *", "enable-all", "--name", "morning")
	require.NoError(t, err)
	assert.Contains(t, out, "Added job")
	jobName = ""

	s := scheduler.New(c.dataDir, nil)
	require.NoError(t, s.Load())
	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, scheduler.ActionEnableAll, jobs[0].Action)

	out, err = c.run("jobs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "morning")
	assert.Contains(t, out, shortID(jobs[0].ID))

	_, err = c.run("jobs", "disable", shortID(jobs[0].ID))
	require.NoError(t, err)
	out, err = c.run("jobs", "remove", jobs[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed job")
}

func TestHistoryCommand(t *testing.T) {
	c := newCLI(t)
	out, err := c.run("history", "--prune")
	require.NoError(t, err)
	assert.Contains(t, out, "Status snapshots")
	assert.Contains(t, out, "Alerts")
	historyPrune = false
}

func TestResolveJobID(t *testing.T) {
	jobs := []*scheduler.Job{{ID: "abc123"}, {ID: "abd456"}, {ID: "xyz"}}

	id, err := resolveJobID(jobs, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	id, err = resolveJobID(jobs, "xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", id)

	_, err = resolveJobID(jobs, "ab")
	assert.Error(t, err)
	_, err = resolveJobID(jobs, "nope")
	assert.Error(t, err)
}

func TestFormatKeywordHits(t *testing.T) {
	assert.Equal(t, "", formatKeywordHits(nil))
	assert.Equal(t, "gold:2, sword:1", formatKeywordHits(map[string]int{"sword": 1, "gold": 2}))
}

func TestSSHKeysCommands(t *testing.T) {
	c := newCLI(t)
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := gossh.NewPublicKey(pub)
	require.NoError(t, err)
	line := strings.TrimSpace(string(gossh.MarshalAuthorizedKey(sshPub))) + " ops@laptop"
	fingerprint := gossh.FingerprintSHA256(sshPub)

	out, err := c.run("ssh-keys", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "(created)")

	keyFile := filepath.Join(t.TempDir(), "id_ed25519.pub")
	require.NoError(t, os.WriteFile(keyFile, []byte(line+"\n"), 0600))
	out, err = c.run("ssh-keys", "add", keyFile)
	require.NoError(t, err)
	assert.Contains(t, out, fingerprint)

	out, err = c.run("ssh-keys", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ops@laptop")

	out, err = c.run("ssh-keys", "remove", strings.TrimPrefix(fingerprint, "SHA256:"))
	require.NoError(t, err)
	assert.Contains(t, out, "Revoked")

	out, err = c.run("ssh-keys", "list", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
	sshKeysJSON = false
}

func TestReadKeyArg(t *testing.T) {
	key, err := readKeyArg("-", strings.NewReader("ssh-ed25519 AAAA test\n"))
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519 AAAA test", key)

	key, err = readKeyArg("  ssh-rsa AAAA  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "ssh-rsa AAAA", key)

	key, err = readKeyArg(filepath.Join(t.TempDir(), "missing.pub"), nil)
	require.NoError(t, err)
	assert.Contains(t, key, "missing.pub")
}
