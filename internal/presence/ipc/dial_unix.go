//go:build !windows

package ipc

import (
	"context"
	"net"
)

// Dial looks for a running Discord client and performs the handshake.
func Dial(ctx context.Context, clientID string) (*Conn, error) {
	var d net.Dialer
	for _, path := range SocketPaths() {
		nc, err := d.DialContext(ctx, "unix", path)
		if err != nil {
			continue
		}
		return Open(nc, clientID)
	}
	return nil, ErrNoSocket
}
