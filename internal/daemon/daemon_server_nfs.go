package daemon

import (
	"snmpfs/internal/vfs"
)

// createServer creates a network filesystem server for fs
func createServer(fs *vfs.FS, opts ServerOptions) (NetFSServer, error) {
	return NewNFSServer(fs, opts), nil
}

// mountNetFS mounts the network filesystem served on ip:port
func mountNetFS(ip string, port int, mountPath string) error {
	return NFSMount(ip, port, mountPath)
}
