package relay_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"mlesc/internal/domain"
	"mlesc/internal/relay"
)

func newHub(t *testing.T, history int, key []byte) (*relay.Hub, string) {
	t.Helper()
	hub := relay.NewHub(history, key, zerolog.Nop())
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, uid, channel string, key []byte) domain.Transport {
	t.Helper()
	d := &relay.Dialer{URL: url, UID: uid, Channel: channel, ServerKey: key, AllowInsecure: true}
	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn domain.Transport) ([]byte, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return conn.ReadFrame(ctx)
}

func TestDialer_Endpoint(t *testing.T) {
	t.Parallel()

	cases := []struct {
		url      string
		insecure bool
		ok       bool
	}{
		{"wss://mles.io", false, true},
		{"wss://mles.io:443/path", false, true},
		{"ws://127.0.0.1:8080", true, true},
		{"ws://127.0.0.1:8080", false, false},
		{"http://mles.io", true, false},
		{"wss://", false, false},
		{"::not a url", false, false},
	}
	for _, tc := range cases {
		t.Run(tc.url, func(t *testing.T) {
			d := &relay.Dialer{URL: tc.url, AllowInsecure: tc.insecure}
			_, err := d.Endpoint()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, domain.ErrConfig)
			}
		})
	}
}

func TestHub_FansOutWithinChannel(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	hub, url := newHub(t, 0, nil)
	alice := dial(t, url, "alice", "room", nil)
	bob := dial(t, url, "bob", "room", nil)
	eve := dial(t, url, "eve", "elsewhere", nil)
	require.Eventually(func() bool { return hub.Members("room") == 2 && hub.Members("elsewhere") == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(alice.WriteFrame(context.Background(), []byte{1, 2, 3}))
	got, err := read(t, bob)
	require.NoError(err)
	require.Equal([]byte{1, 2, 3}, got)

	// Neither the sender nor another channel sees it.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = alice.ReadFrame(ctx)
	require.ErrorIs(err, context.DeadlineExceeded)
	ctx2, cancel2 := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel2()
	_, err = eve.ReadFrame(ctx2)
	require.ErrorIs(err, context.DeadlineExceeded)
}

func TestHub_ReplaysHistoryToLateJoiner(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	hub, url := newHub(t, 2, nil)
	alice := dial(t, url, "alice", "room", nil)
	bob := dial(t, url, "bob", "room", nil)
	require.Eventually(func() bool { return hub.Members("room") == 2 }, 2*time.Second, 5*time.Millisecond)

	for _, b := range []byte{1, 2, 3} {
		require.NoError(alice.WriteFrame(context.Background(), []byte{b}))
	}
	// Once bob has all three, the hub has recorded them.
	for _, b := range []byte{1, 2, 3} {
		got, err := read(t, bob)
		require.NoError(err)
		require.Equal([]byte{b}, got)
	}

	carol := dial(t, url, "carol", "room", nil)
	for _, b := range []byte{2, 3} {
		got, err := read(t, carol)
		require.NoError(err)
		require.Equal([]byte{b}, got)
	}
}

func TestHub_RejectsBadAuth(t *testing.T) {
	t.Parallel()

	key := []byte("server-key")
	hub, url := newHub(t, 0, key)

	good := dial(t, url, "alice", "room", key)
	require.Eventually(t, func() bool { return hub.Members("room") == 1 }, 2*time.Second, 5*time.Millisecond)
	_ = good

	bad := dial(t, url, "mallory", "room", []byte("guess"))
	_, err := read(t, bad)
	require.Error(t, err)
	require.Equal(t, 1, hub.Members("room"))
}

func TestConn_ReadHonoursContext(t *testing.T) {
	t.Parallel()

	_, url := newHub(t, 0, nil)
	conn := dial(t, url, "alice", "room", nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := conn.ReadFrame(ctx)
		errc <- err
	}()
	cancel()
	select {
	case err := <-errc:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("ReadFrame ignored cancellation")
	}
}
