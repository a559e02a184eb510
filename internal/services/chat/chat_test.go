package chat_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"mlesc/internal/dedup"
	"mlesc/internal/domain"
	"mlesc/internal/services/chat"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeChannel struct {
	msgs chan domain.Message

	mu   sync.Mutex
	sent []domain.Message
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{msgs: make(chan domain.Message, 16)}
}

func (f *fakeChannel) Channel() string { return "room" }
func (f *fakeChannel) Messages() <-chan domain.Message { return f.msgs }

func (f *fakeChannel) Send(m domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeChannel) Sent() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message(nil), f.sent...)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func clock() time.Time { return t0 }

func TestChat_SendsNonEmptyLines(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ch := newFakeChannel()
	c := chat.New("alice", ch, dedup.New(dedup.Config{}), clock, zerolog.Nop())

	in := strings.NewReader("hello\n\n   \nsecond line\r\n")
	require.NoError(c.Run(context.Background(), in, io.Discard))

	require.Equal([]domain.Message{
		domain.NewText("alice", "room", "hello", t0),
		domain.NewText("alice", "room", "second line", t0),
	}, ch.Sent())
}

func TestChat_RendersAndSuppressesEchoes(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ch := newFakeChannel()
	c := chat.New("alice", ch, dedup.New(dedup.Config{}), clock, zerolog.Nop())

	pr, pw := io.Pipe()
	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, pr, out) }()

	_, err := pw.Write([]byte("hi\n"))
	require.NoError(err)
	require.Eventually(func() bool { return len(ch.Sent()) == 1 }, 2*time.Second, time.Millisecond)

	bob := domain.NewText("bob", "room", "hey alice", t0)
	ch.msgs <- ch.Sent()[0] // server echo of our own line
	ch.msgs <- domain.NewJoin("bob", "room", t0)
	ch.msgs <- bob
	ch.msgs <- bob // redelivery

	var want bytes.Buffer
	require.NoError(chat.Render(&want, domain.NewJoin("bob", "room", t0)))
	require.NoError(chat.Render(&want, bob))
	require.Eventually(func() bool { return out.String() == want.String() }, 2*time.Second, time.Millisecond)

	cancel()
	require.NoError(<-done)
	pw.Close()
}

func TestRender(t *testing.T) {
	t.Parallel()

	var b bytes.Buffer
	require.NoError(t, chat.Render(&b, domain.NewJoin("carol", "room", t0)))
	require.Equal(t, "carol joined.\n", b.String())

	b.Reset()
	require.NoError(t, chat.Render(&b, domain.NewText("carol", "room", "a: b", t0)))
	require.True(t, strings.HasSuffix(b.String(), " carol: a: b\n"))
}
