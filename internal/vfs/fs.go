// Copyright 2024 SnmpFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package vfs presents the object tree of a remote agent as a read-mostly
// filesystem. Directories are OID prefixes, files are object instances.
// Nothing is cached: every lookup and listing is answered by probing the
// agent, guided by the schema tree when one is loaded.
package vfs

import (
	"fmt"
	"runtime/debug"
	"time"

	log "github.com/sirupsen/logrus"

	"snmpfs/internal/common"
	"snmpfs/internal/oid"
	"snmpfs/internal/schema"
	"snmpfs/internal/snmp"
)

// SessionSource lends sessions to one operation at a time.
type SessionSource interface {
	Get() (snmp.Session, error)
	Put(snmp.Session)
}

// Options configures an FS.
type Options struct {
	// Root is the OID exported as "/". Empty exports the whole tree.
	Root oid.Path
	// Schema may be nil; names then fall back to decimal arcs.
	Schema   *schema.Tree
	Sessions SessionSource
	// Gate bounds in-flight probes across all operations. Nil is unbounded.
	Gate *snmp.Gate
	Now  func() time.Time
}

// FS is the filesystem view of one export. It holds no per-operation state
// and is safe for concurrent use.
type FS struct {
	root     oid.Path
	schema   *schema.Tree
	sessions SessionSource
	gate     *snmp.Gate
	now      func() time.Time
}

// New creates an FS for opts.
func New(opts Options) (*FS, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("%w: no session source", common.ErrInvalidArgument)
	}
	if len(opts.Root) > oid.MaxLen {
		return nil, fmt.Errorf("%w: export root of %d arcs", common.ErrInvalidArgument, len(opts.Root))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &FS{
		root:     opts.Root.Clone(),
		schema:   opts.Schema,
		sessions: opts.Sessions,
		gate:     opts.Gate,
		now:      now,
	}, nil
}

// Root returns the handle of the export root.
func (fs *FS) Root() oid.Handle {
	return oid.NewHandle(oid.KindRoot, fs.root)
}

// RootPath returns a copy of the exported OID.
func (fs *FS) RootPath() oid.Path {
	return fs.root.Clone()
}

// Schema returns the schema tree, possibly nil.
func (fs *FS) Schema() *schema.Tree {
	return fs.schema
}

// parentOf returns the parent handle, never leaving the export.
func (fs *FS) parentOf(h oid.Handle) oid.Handle {
	if len(h.Path) <= len(fs.root)+1 {
		return fs.Root()
	}
	return oid.NewHandle(oid.KindInterior, h.Path.Parent())
}

// handleAt returns a handle for p with kind, promoting the export root.
func (fs *FS) handleAt(p oid.Path, kind oid.Kind) oid.Handle {
	if p.Equal(fs.root) {
		return fs.Root()
	}
	return oid.NewHandle(kind, p)
}

func (fs *FS) checkHandle(h oid.Handle) error {
	if !h.Path.HasPrefix(fs.root) {
		return fmt.Errorf("%w: %s is outside export %s", common.ErrInvalidArgument, h, fs.root)
	}
	return nil
}

// name returns the directory entry name of the arc sub below parent.
func (fs *FS) name(parent oid.Path, sub uint32) string {
	if n := fs.schema.Lookup(parent.Append(sub)); n != nil && n.Label != "" {
		return n.Label
	}
	return fmt.Sprintf("%d", sub)
}

// Names returns the directory entry names leading from the export root to
// h, the inverse of resolving them one by one.
func (fs *FS) Names(h oid.Handle) ([]string, error) {
	if err := fs.checkHandle(h); err != nil {
		return nil, err
	}
	rel := h.Path[len(fs.root):]
	names := make([]string, 0, len(rel))
	for i, sub := range rel {
		names = append(names, fs.name(h.Path[:len(fs.root)+i], sub))
	}
	return names, nil
}

// recoverFSPanic turns a panic inside an operation into ErrServerFault so
// a single bad reply cannot take the NFS server down.
func recoverFSPanic(operation string, err *error) {
	if r := recover(); r != nil {
		log.Errorf("[VFS] PANIC RECOVERED in %s: %v\nStack:\n%s", operation, r, debug.Stack())
		if err != nil {
			*err = fmt.Errorf("%w: panic in %s", common.ErrServerFault, operation)
		}
	}
}
