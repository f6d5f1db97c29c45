package network

import "errors"

var (
	errClosed       = errors.New("network: connection closed")
	errPlayerLimit  = errors.New("network: player limit reached")
	errUnknownSocket = errors.New("network: unknown socket id")
)
