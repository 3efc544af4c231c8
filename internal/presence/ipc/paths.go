package ipc

import (
	"os"
	"path/filepath"
	"strconv"
)

const pipePrefix = `\\.\pipe\discord-ipc-`

// SocketPaths lists candidate socket locations in the order they are tried.
func SocketPaths() []string {
	var dirs []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if v := os.Getenv(env); v != "" {
			dirs = append(dirs, v)
		}
	}
	dirs = append(dirs, "/tmp")

	subdirs := []string{"", "app/com.discordapp.Discord", "snap.discord", ".flatpak/dev.vencord.Vesktop/xdg-run"}
	var paths []string
	seen := make(map[string]struct{})
	for _, dir := range dirs {
		for _, sub := range subdirs {
			for i := 0; i < maxSockets; i++ {
				p := filepath.Join(dir, sub, "discord-ipc-"+strconv.Itoa(i))
				if _, ok := seen[p]; ok {
					continue
				}
				seen[p] = struct{}{}
				paths = append(paths, p)
			}
		}
	}
	return paths
}

// PipeNames lists the Windows named pipes a Discord client may listen on.
func PipeNames() []string {
	names := make([]string, 0, maxSockets)
	for i := 0; i < maxSockets; i++ {
		names = append(names, pipePrefix+strconv.Itoa(i))
	}
	return names
}
