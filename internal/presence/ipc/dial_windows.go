//go:build windows

package ipc

import (
	"context"

	"github.com/Microsoft/go-winio"
)

// Dial looks for a running Discord client and performs the handshake.
func Dial(ctx context.Context, clientID string) (*Conn, error) {
	for _, name := range PipeNames() {
		nc, err := winio.DialPipeContext(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		return Open(nc, clientID)
	}
	return nil, ErrNoSocket
}
