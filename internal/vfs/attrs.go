package vfs

import (
	"encoding/binary"
	"os"
	"time"

	"github.com/zeebo/blake3"

	"snmpfs/internal/oid"
	"snmpfs/internal/schema"
	"snmpfs/internal/snmp"
)

// Attrs are the POSIX-style attributes of a handle.
type Attrs struct {
	Kind    oid.Kind
	Mode    os.FileMode
	Size    int64
	FileID  uint64
	Label   string
	Access  schema.Access
	Syntax  schema.Syntax
	ModTime time.Time
}

// IsDir reports whether the attributes describe a directory.
func (a *Attrs) IsDir() bool {
	return a.Kind.IsDir()
}

const dirMode = os.ModeDir | 0o555

// leafMode maps the access class of the nearest schema node to file
// permission bits.
func leafMode(n *schema.Node) os.FileMode {
	if n == nil {
		return 0o666
	}
	switch n.Access {
	case schema.AccessReadOnly:
		return 0o444
	case schema.AccessReadWrite:
		return 0o666
	case schema.AccessWriteOnly:
		return 0o222
	case schema.AccessNone, schema.AccessNotify:
		return 0
	}
	return 0o666
}

// fileIDKey separates file ids from any other keyed hash of the same arcs.
var fileIDKey = [32]byte{
	's', 'n', 'm', 'p', 'f', 's', '/', 'f', 'i', 'l', 'e', 'i', 'd', '/', 'v', '1',
}

// FileID derives a stable inode number from the OID path.
func FileID(p oid.Path) uint64 {
	hasher, err := blake3.NewKeyed(fileIDKey[:])
	if err != nil {
		// Only returned for a key of the wrong length.
		panic(err)
	}
	var arc [4]byte
	for _, sub := range p {
		binary.BigEndian.PutUint32(arc[:], sub)
		_, _ = hasher.Write(arc[:])
	}
	sum := hasher.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// attrs builds attributes for h. A leaf's size is the length of its
// rendered value, so v is fetched when the caller does not already have it.
func (p *prober) attrs(h oid.Handle, v *snmp.Variable) (*Attrs, error) {
	node := p.fs.schema.FindNearestAncestor(h.Path, false)
	a := &Attrs{
		Kind:    h.Kind,
		FileID:  FileID(h.Path),
		ModTime: p.fs.now(),
	}
	if node != nil {
		a.Label = node.Label
		a.Access = node.Access
		a.Syntax = node.Syntax
	}
	if h.Kind.IsDir() {
		a.Mode = dirMode
		return a, nil
	}
	a.Mode = leafMode(node)
	if v == nil {
		var err error
		if v, err = p.getExact(h.Path); err != nil {
			return nil, err
		}
	}
	a.Size = int64(len(snmp.Render(v)))
	return a, nil
}

// GetAttr returns the attributes of h, classifying it first when its kind
// is unknown.
func (fs *FS) GetAttr(h oid.Handle) (attrs *Attrs, err error) {
	defer recoverFSPanic("GetAttr", &err)
	if err := fs.checkHandle(h); err != nil {
		return nil, err
	}
	err = fs.withSession(func(p *prober) error {
		var v *snmp.Variable
		if h.Kind == oid.KindUndetermined {
			var kind oid.Kind
			if kind, v, err = p.classify(h.Path); err != nil {
				return err
			}
			h = fs.handleAt(h.Path, kind)
		}
		attrs, err = p.attrs(h, v)
		return err
	})
	return attrs, err
}
