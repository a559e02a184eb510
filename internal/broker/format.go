package broker

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"mlesc/internal/domain"
)

// Format selects the payload encoding on the broker side.
type Format string

const (
	FormatLine Format = "line"
	FormatJSON Format = "json"

	// MaxPayload is the largest payload published or accepted.
	MaxPayload = 100 * 1024

	timeLayout = "2006-01-02T15:04:05.000Z07:00"
)

// ParseFormat maps a config value to a Format; empty means FormatLine.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatLine:
		return FormatLine, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown broker format %q", domain.ErrConfig, s)
	}
}

type joinPayload struct {
	UID  string `json:"uid"`
	Time string `json:"time"`
}

// ToBroker renders m as a broker payload.
func (f Format) ToBroker(m domain.Message) ([]byte, error) {
	if m.UID == "" {
		return nil, fmt.Errorf("%w: empty uid", domain.ErrBridgeTranslation)
	}
	m.Time = domain.NormalizeTime(m.Time)

	var (
		b   []byte
		err error
	)
	switch f {
	case FormatJSON:
		b, err = json.Marshal(m)
	case FormatLine, "":
		b, err = lineEncode(m)
	default:
		err = fmt.Errorf("%w: unknown format %q", domain.ErrBridgeTranslation, f)
	}
	if err != nil {
		return nil, err
	}
	if len(b) > MaxPayload {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", domain.ErrBridgeTranslation, len(b), MaxPayload)
	}
	return b, nil
}

// FromBroker parses a payload received on the topic named channel.
func (f Format) FromBroker(payload []byte, channel string) (domain.Message, error) {
	if len(payload) > MaxPayload {
		return domain.Message{}, fmt.Errorf("%w: payload of %d bytes exceeds %d", domain.ErrBridgeTranslation, len(payload), MaxPayload)
	}
	if !utf8.Valid(payload) {
		return domain.Message{}, fmt.Errorf("%w: payload is not UTF-8", domain.ErrBridgeTranslation)
	}

	var (
		m   domain.Message
		err error
	)
	switch f {
	case FormatJSON:
		if err = json.Unmarshal(payload, &m); err != nil {
			err = fmt.Errorf("%w: %v", domain.ErrBridgeTranslation, err)
		}
	case FormatLine, "":
		m, err = lineDecode(string(payload))
	default:
		err = fmt.Errorf("%w: unknown format %q", domain.ErrBridgeTranslation, f)
	}
	if err != nil {
		return domain.Message{}, err
	}
	if m.UID == "" {
		return domain.Message{}, fmt.Errorf("%w: empty uid", domain.ErrBridgeTranslation)
	}
	if !m.Kind.Valid() {
		return domain.Message{}, fmt.Errorf("%w: unknown kind %q", domain.ErrBridgeTranslation, m.Kind)
	}
	m.Channel = channel
	m.Time = domain.NormalizeTime(m.Time)
	return m, nil
}

func lineEncode(m domain.Message) ([]byte, error) {
	if strings.ContainsFunc(m.UID, func(r rune) bool { return r == ':' || unicode.IsSpace(r) }) {
		return nil, fmt.Errorf("%w: uid %q not representable in line format", domain.ErrBridgeTranslation, m.UID)
	}
	ts := m.Time.Format(timeLayout)
	switch m.Kind {
	case domain.KindText:
		return []byte(ts + " " + m.UID + ":" + m.Body), nil
	case domain.KindJoin:
		return json.Marshal(joinPayload{UID: m.UID, Time: ts})
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrBridgeTranslation, m.Kind)
	}
}

func lineDecode(s string) (domain.Message, error) {
	if strings.HasPrefix(s, "{") {
		var j joinPayload
		if err := json.Unmarshal([]byte(s), &j); err != nil {
			return domain.Message{}, fmt.Errorf("%w: join: %v", domain.ErrBridgeTranslation, err)
		}
		t, err := time.Parse(time.RFC3339Nano, j.Time)
		if err != nil {
			return domain.Message{}, fmt.Errorf("%w: join time: %v", domain.ErrBridgeTranslation, err)
		}
		return domain.Message{UID: j.UID, Time: t, Kind: domain.KindJoin}, nil
	}

	ts, rest, ok := strings.Cut(s, " ")
	if !ok {
		return domain.Message{}, fmt.Errorf("%w: missing timestamp", domain.ErrBridgeTranslation)
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: timestamp: %v", domain.ErrBridgeTranslation, err)
	}
	uid, body, ok := strings.Cut(rest, ":")
	if !ok || uid == "" || strings.IndexFunc(uid, unicode.IsSpace) >= 0 {
		return domain.Message{}, fmt.Errorf("%w: missing uid", domain.ErrBridgeTranslation)
	}
	return domain.Message{UID: uid, Time: t, Kind: domain.KindText, Body: body}, nil
}

// Adapter binds a Format to one topic. It satisfies session.FrameCodec.
type Adapter struct {
	format Format
	topic  string
}

// NewAdapter returns an Adapter for topic.
func NewAdapter(format Format, topic string) *Adapter {
	return &Adapter{format: format, topic: topic}
}

// Channel returns the topic.
func (a *Adapter) Channel() string { return a.topic }

func (a *Adapter) Encode(m domain.Message) ([]byte, error) { return a.format.ToBroker(m) }

func (a *Adapter) Decode(payload []byte) (domain.Message, error) {
	return a.format.FromBroker(payload, a.topic)
}
