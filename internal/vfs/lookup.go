package vfs

import (
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"snmpfs/internal/common"
	"snmpfs/internal/oid"
	"snmpfs/internal/snmp"
)

// LookupResult is a resolved name. Attrs is nil unless requested.
type LookupResult struct {
	Handle oid.Handle
	Attrs  *Attrs
}

// Resolve finds name in the directory parent.
func (fs *FS) Resolve(parent oid.Handle, name string) (oid.Handle, error) {
	res, err := fs.Lookup(parent, name, false)
	return res.Handle, err
}

// Lookup finds name in the directory parent and optionally returns its
// attributes. "." and ".." never reach the agent; schema labels name
// directories without a probe; anything else is an arc number whose kind
// is settled by GetExact and, failing that, a has-children probe.
func (fs *FS) Lookup(parent oid.Handle, name string, wantAttrs bool) (res LookupResult, err error) {
	defer recoverFSPanic("Lookup", &err)
	if log.IsLevelEnabled(log.TraceLevel) {
		start := time.Now()
		defer func() { log.Tracef("[VFS] Lookup %s %q → %s %v (%v)", parent, name, res.Handle, err, time.Since(start)) }()
	}
	log.Debugf("[VFS] Lookup: parent=%s name=%q", parent, name)

	if err := fs.checkHandle(parent); err != nil {
		return res, err
	}
	h, err := fs.step(parent, name)
	if err != nil {
		return res, err
	}
	// "." and ".." hand back a handle the caller already had, hint and all.
	dots := name == "." || name == ".."
	if (dots || h.Kind != oid.KindUndetermined) && !wantAttrs {
		return LookupResult{Handle: h}, nil
	}

	err = fs.withSession(func(p *prober) error {
		var v *snmp.Variable
		if h.Kind == oid.KindUndetermined {
			kind, val, err := p.classify(h.Path)
			if err != nil {
				return err
			}
			h.Kind, v = kind, val
		}
		res.Handle = h
		if wantAttrs {
			attrs, err := p.attrs(h, v)
			if err != nil {
				return err
			}
			res.Attrs = attrs
		}
		return nil
	})
	if err != nil {
		return LookupResult{}, err
	}
	return res, nil
}

// step resolves one name without talking to the agent. The returned
// handle's kind is undetermined when only a probe can tell.
func (fs *FS) step(parent oid.Handle, name string) (oid.Handle, error) {
	if parent.Kind == oid.KindLeaf {
		return oid.Handle{}, fmt.Errorf("%w: %s", common.ErrNotDir, parent)
	}
	switch name {
	case ".":
		return oid.NewHandle(parent.Kind, parent.Path), nil
	case "..":
		return fs.parentOf(parent), nil
	}

	for _, n := range fs.schema.ChildrenOf(parent.Path) {
		if n.Label != name {
			continue
		}
		if n.HasChildren() {
			return parent.Child(n.SubID, oid.KindInterior), nil
		}
		return parent.Child(n.SubID, oid.KindUndetermined), nil
	}

	sub, ok := parseArc(name)
	if !ok || len(parent.Path) >= oid.MaxLen {
		return oid.Handle{}, fmt.Errorf("%w: %q in %s", common.ErrNotFound, name, parent.Path)
	}
	return parent.Child(sub, oid.KindUndetermined), nil
}

// parseArc accepts the canonical decimal form of an arc only, so that
// "007" and "+7" do not alias "7".
func parseArc(name string) (uint32, bool) {
	v, err := strconv.ParseUint(name, 10, 32)
	if err != nil || strconv.FormatUint(v, 10) != name {
		return 0, false
	}
	return uint32(v), true
}

// Classify settles the kind of a handle whose hint is missing. Handles
// with a kind are returned unchanged.
func (fs *FS) Classify(h oid.Handle) (out oid.Handle, err error) {
	defer recoverFSPanic("Classify", &err)
	if err := fs.checkHandle(h); err != nil {
		return oid.Handle{}, err
	}
	if h.Kind != oid.KindUndetermined {
		return h, nil
	}
	if h.Path.Equal(fs.root) {
		return fs.Root(), nil
	}
	err = fs.withSession(func(p *prober) error {
		kind, _, err := p.classify(h.Path)
		out = oid.NewHandle(kind, h.Path)
		return err
	})
	if err != nil {
		return oid.Handle{}, err
	}
	return out, nil
}

// LookupPath resolves a slash separated path from the export root, one
// component at a time, on a single session.
func (fs *FS) LookupPath(path string) (h oid.Handle, err error) {
	defer recoverFSPanic("LookupPath", &err)
	log.Debugf("[VFS] LookupPath: %q", path)

	h = fs.Root()
	parts := common.SplitPath(path)
	if len(parts) == 0 {
		return h, nil
	}
	err = fs.withSession(func(p *prober) error {
		for _, name := range parts {
			next, err := fs.step(h, name)
			if err != nil {
				return err
			}
			if next.Kind == oid.KindUndetermined {
				if next.Kind, _, err = p.classify(next.Path); err != nil {
					return err
				}
			}
			h = next
		}
		return nil
	})
	if err != nil {
		return oid.Handle{}, err
	}
	return h, nil
}
