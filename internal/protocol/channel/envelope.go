package channel

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"mlesc/internal/domain"
)

// ProtocolVersion is the only envelope version this client speaks.
const ProtocolVersion = 1

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: 16,
		MaxMapPairs:      16,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// MarshalEnvelope serialises env as a CBOR map.
func MarshalEnvelope(env domain.Envelope) ([]byte, error) {
	return encMode.Marshal(env)
}

// UnmarshalEnvelope parses a frame. Any parse failure, trailing data included,
// is reported as domain.ErrProtocol.
func UnmarshalEnvelope(frame []byte) (domain.Envelope, error) {
	var env domain.Envelope
	if len(frame) == 0 {
		return env, fmt.Errorf("%w: empty frame", domain.ErrProtocol)
	}
	if err := decMode.Unmarshal(frame, &env); err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: %v", domain.ErrProtocol, err)
	}
	return env, nil
}

// associatedData binds every clear header field into the AEAD tag.
func associatedData(env domain.Envelope) []byte {
	ad := make([]byte, 0, 32+len(env.Channel)+len(env.UID)+len(env.Kind))
	ad = binary.BigEndian.AppendUint16(ad, uint16(env.Version))
	ad = appendField(ad, env.Channel)
	ad = appendField(ad, env.UID)
	ad = binary.BigEndian.AppendUint64(ad, uint64(env.Time))
	ad = appendField(ad, string(env.Kind))
	return ad
}

func appendField(b []byte, s string) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}
