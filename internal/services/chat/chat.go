package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mlesc/internal/dedup"
	"mlesc/internal/domain"
)

// Channel is the part of a session the chat needs.
type Channel interface {
	Channel() string
	Messages() <-chan domain.Message
	Send(m domain.Message) error
}

// Chat connects one terminal to one channel as one uid.
type Chat struct {
	uid   string
	ch    Channel
	cache *dedup.Cache
	now   func() time.Time
	log   zerolog.Logger
}

// New returns a Chat. now defaults to time.Now.
func New(uid string, ch Channel, cache *dedup.Cache, now func() time.Time, log zerolog.Logger) *Chat {
	if now == nil {
		now = time.Now
	}
	return &Chat{
		uid:   uid,
		ch:    ch,
		cache: cache,
		now:   now,
		log:   log.With().Str("component", "chat").Logger(),
	}
}

// Run pumps lines from in to the channel and messages from the channel to
// out. It returns nil when ctx ends, in reaches EOF or the channel closes.
func (c *Chat) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	msgs := c.ch.Messages()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read input: %w", err)
					}
				default:
				}
				return nil
			}
			c.say(line)
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			if !c.cache.Admit("", m) {
				continue
			}
			if err := Render(out, m); err != nil {
				return err
			}
		}
	}
}

func (c *Chat) say(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	m := domain.NewText(c.uid, c.ch.Channel(), line, c.now())
	c.cache.Admit("", m)
	if err := c.ch.Send(m); err != nil {
		c.log.Warn().Err(err).Msg("message not sent")
	}
}

// Render writes one message in terminal form.
func Render(w io.Writer, m domain.Message) error {
	var err error
	switch m.Kind {
	case domain.KindJoin:
		_, err = fmt.Fprintf(w, "%s joined.\n", m.UID)
	default:
		_, err = fmt.Fprintf(w, "%s %s: %s\n", m.Time.Local().Format(time.DateTime), m.UID, m.Body)
	}
	return err
}
