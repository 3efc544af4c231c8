package presence

import "errors"

var (
	ErrTooSoon       = errors.New("presence: too soon to reconnect")
	ErrBackoff       = errors.New("presence: backing off after repeated failures")
	ErrNotConnected  = errors.New("presence: not connected")
	ErrTransportSend = errors.New("presence: transport send failed")
)
