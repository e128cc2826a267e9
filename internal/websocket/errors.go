// internal/websocket/errors.go
package websocket

import "errors"

var (
	ErrHubStopped      = errors.New("websocket hub stopped")
	ErrUnknownChannel  = errors.New("unknown channel")
	ErrUnsupportedType = errors.New("unsupported message type")
)
