package dedup

import (
	"container/list"
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/dchest/siphash"

	"mlesc/internal/domain"
)

const (
	DefaultMaxEntries = 40000
	DefaultMaxAge     = 10 * time.Minute
)

// Config bounds the cache. Zero values take the defaults.
type Config struct {
	MaxEntries int
	MaxAge     time.Duration

	// Now is the clock used for ageing; defaults to time.Now.
	Now func() time.Time
}

// Fingerprint identifies one message within one scope.
type Fingerprint [16]byte

type entry struct {
	fp   Fingerprint
	seen time.Time
}

// Cache is a bounded first-in-first-out set of fingerprints.
type Cache struct {
	k0, k1     uint64
	maxEntries int
	maxAge     time.Duration
	now        func() time.Time

	mu    sync.Mutex
	order *list.List
	index map[Fingerprint]*list.Element
}

// New returns an empty cache with a fresh random fingerprint key.
func New(cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	var key [16]byte
	if _, err := rand.Read(key[:]); err != nil {
		panic(err)
	}
	return &Cache{
		k0:         binary.LittleEndian.Uint64(key[:8]),
		k1:         binary.LittleEndian.Uint64(key[8:]),
		maxEntries: cfg.MaxEntries,
		maxAge:     cfg.MaxAge,
		now:        cfg.Now,
		order:      list.New(),
		index:      make(map[Fingerprint]*list.Element),
	}
}

// Fingerprint hashes the canonical form of m under scope.
func (c *Cache) Fingerprint(scope string, m domain.Message) Fingerprint {
	var b []byte
	b = appendString(b, scope)
	b = appendString(b, m.UID)
	b = appendString(b, m.Channel)
	b = binary.BigEndian.AppendUint64(b, uint64(domain.NormalizeTime(m.Time).UnixMilli()))
	b = appendString(b, string(m.Kind))
	b = appendString(b, m.Body)
	lo, hi := siphash.Hash128(c.k0, c.k1, b)

	var fp Fingerprint
	binary.LittleEndian.PutUint64(fp[:8], lo)
	binary.LittleEndian.PutUint64(fp[8:], hi)
	return fp
}

// Admit records m under scope and reports whether it was new.
func (c *Cache) Admit(scope string, m domain.Message) bool {
	fp := c.Fingerprint(scope, m)

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.expire(now)
	if _, ok := c.index[fp]; ok {
		return false
	}
	c.insert(fp, now)
	return true
}

// AdmitAndMark admits in under origin and, only if it was new, records out
// under dest in the same critical section. A copy of out arriving later on
// dest is then rejected by Admit.
func (c *Cache) AdmitAndMark(origin string, in domain.Message, dest string, out domain.Message) bool {
	fpIn := c.Fingerprint(origin, in)
	fpOut := c.Fingerprint(dest, out)

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.expire(now)
	if _, ok := c.index[fpIn]; ok {
		return false
	}
	c.insert(fpIn, now)
	if _, ok := c.index[fpOut]; !ok {
		c.insert(fpOut, now)
	}
	return true
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expire(c.now())
	return c.order.Len()
}

// Reset forgets everything.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	clear(c.index)
}

func (c *Cache) insert(fp Fingerprint, now time.Time) {
	c.index[fp] = c.order.PushBack(entry{fp: fp, seen: now})
	for c.order.Len() > c.maxEntries {
		c.remove(c.order.Front())
	}
}

func (c *Cache) expire(now time.Time) {
	for e := c.order.Front(); e != nil; e = c.order.Front() {
		if now.Sub(e.Value.(entry).seen) < c.maxAge {
			return
		}
		c.remove(e)
	}
}

func (c *Cache) remove(e *list.Element) {
	delete(c.index, e.Value.(entry).fp)
	c.order.Remove(e)
}

func appendString(b []byte, s string) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}
