package websocket

import "errors"

var (
	ErrConnectionClosed = errors.New("connection closed")
)
