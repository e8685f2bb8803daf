package daemon

import (
	"net"

	"snmpfs/internal/cache"
)

// NetFSServer abstracts the network filesystem server
type NetFSServer interface {
	// Listen binds the given address (e.g., "127.0.0.1:12049")
	Listen(addr string) (net.Addr, error)

	// Serve blocks serving requests until Shutdown
	Serve() error

	// Shutdown stops the server
	Shutdown()

	// Invalidate forgets every resolved path, so rows that appeared or
	// vanished on the agent are seen before the cache TTL runs out.
	cache.Invalidator
}

// NetFSType returns the type of network filesystem in use
func NetFSType() string {
	return netFSTypeName
}

const netFSTypeName = "nfs"
