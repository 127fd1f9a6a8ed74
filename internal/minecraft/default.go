package minecraft

import (
	"context"
	"errors"
)

// ErrNoAdapter is returned by DefaultDialer until a protocol adapter
// installs itself.
var ErrNoAdapter = errors.New("no game connection adapter linked")

// DefaultDialer is the process-wide production dialer. A protocol adapter
// build replaces it from an init function; the console itself stays free of
// any game-protocol dependency. Without an adapter, connect attempts fail
// with ErrNoAdapter and surface as bot error events.
var DefaultDialer Dialer = DialerFunc(func(ctx context.Context, opts Options, ev Events) (Conn, error) {
	return nil, ErrNoAdapter
})
