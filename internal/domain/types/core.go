package types

// Kind distinguishes application text from control payloads.
type Kind string

const (
	// KindText is an ordinary chat line.
	KindText Kind = "text"
	// KindJoin announces that a user joined the channel.
	KindJoin Kind = "join"
)

// String returns the string form of the kind.
func (k Kind) String() string { return string(k) }

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k == KindText || k == KindJoin }
