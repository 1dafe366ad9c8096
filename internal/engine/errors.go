package engine

import "errors"

var (
	ErrEngineNotRunning    = errors.New("engine not running")
	ErrEngineAlreadyActive = errors.New("engine already running")
	ErrSessionNotFound     = errors.New("session not found")
	ErrNotInSession        = errors.New("connection not bound to a session")
)
