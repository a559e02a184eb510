package domain

import (
	interfaces "mlesc/internal/domain/interfaces"
	types "mlesc/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Kind      = types.Kind
	Message   = types.Message
	Envelope  = types.Envelope
	LinkState = types.LinkState
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	Transport = interfaces.Transport
	Dialer    = interfaces.Dialer
)

const (
	KindText = types.KindText
	KindJoin = types.KindJoin

	LinkDisconnected = types.LinkDisconnected
	LinkConnecting   = types.LinkConnecting
	LinkActive       = types.LinkActive
	LinkReconnecting = types.LinkReconnecting
)

var (
	NewText       = types.NewText
	NewJoin       = types.NewJoin
	NormalizeTime = types.NormalizeTime
)
