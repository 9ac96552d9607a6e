package tui

import (
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlwatch/internal/fakebackend"
	"crawlwatch/internal/livesync"
)

// listen waits for the next live message
func listen(t *testing.T, c *LiveClient) tea.Msg {
	t.Helper()
	ch := make(chan tea.Msg, 1)
	go func() { ch <- c.ListenCmd()() }()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for live message")
		return nil
	}
}

func TestLiveClient_DeliversTriggersAndState(t *testing.T) {
	backend := fakebackend.New(fakebackend.WithSeed(7))
	backend.SeedAccounts()
	srv := httptest.NewServer(backend)
	t.Cleanup(func() {
		backend.Close()
		srv.Close()
	})

	client, err := NewLiveClient(srv.URL, livesync.Options{ReconnectDelay: 20 * time.Millisecond})
	require.NoError(t, err)
	defer client.Close()

	assert.Nil(t, client.StartCmd()())

	msg := listen(t, client)
	refresh, ok := msg.(RefreshMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, livesync.SourceInitial, refresh.Source)

	var sawOpen bool
	for !sawOpen {
		if st, ok := listen(t, client).(ConnStateMsg); ok && st.State == livesync.Open {
			sawOpen = true
		}
	}
	require.Eventually(t, func() bool { return backend.StreamClients() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.Greater(t, backend.CrawlOnce(), 0)
	for {
		msg := listen(t, client)
		if r, ok := msg.(RefreshMsg); ok {
			assert.Equal(t, livesync.SourcePush, r.Source)
			require.NotNil(t, r.Update)
			break
		}
	}

	client.Refresh()
	for {
		if r, ok := listen(t, client).(RefreshMsg); ok && r.Source == livesync.SourceManual {
			break
		}
	}

	client.Close()
	client.Close()
	var stopped bool
	for i := 0; i < 10 && !stopped; i++ {
		_, stopped = listen(t, client).(LiveStoppedMsg)
	}
	assert.True(t, stopped)
	assert.Equal(t, livesync.Closed, client.State())
}

func TestNewLiveClient_RejectsBadURL(t *testing.T) {
	_, err := NewLiveClient("ftp://crawler", livesync.Options{})
	assert.Error(t, err)
}
