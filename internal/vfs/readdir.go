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

package vfs

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"snmpfs/internal/common"
	"snmpfs/internal/oid"
	"snmpfs/internal/snmp"
)

// DirEntry is one child of a listed directory. Cookie resumes the listing
// right after this entry. AttrErr is set instead of Attrs when attributes
// were requested but could not be built.
type DirEntry struct {
	Handle  oid.Handle
	Cookie  oid.Cookie
	Name    string
	Attrs   *Attrs
	AttrErr error
}

// ReadDirResult is one page of a listing.
type ReadDirResult struct {
	Entries []DirEntry
	Cookie  oid.Cookie
	EOF     bool
}

// ReadDir lists the children of dir in OID order, starting after cookie.
// An empty cookie starts from the beginning; maxEntries 0 means no limit.
//
// The agent only answers GetExact and GetNext, so children are discovered
// by walking instances: an instance directly below dir is a Leaf entry; an
// instance deeper down reveals an Interior child that is emitted once and
// then skipped over. Cookies are addresses, so resuming a listing after a
// failed call is safe.
func (fs *FS) ReadDir(dir oid.Handle, cookie oid.Cookie, maxEntries int, wantAttrs bool) (res ReadDirResult, err error) {
	defer recoverFSPanic("ReadDir", &err)
	if log.IsLevelEnabled(log.TraceLevel) {
		start := time.Now()
		defer func() {
			log.Tracef("[VFS] ReadDir %s cookie=%s → %d entries eof=%v, %v (%v)",
				dir, cookie, len(res.Entries), res.EOF, err, time.Since(start))
		}()
	}
	log.Debugf("[VFS] ReadDir: dir=%s cookie=%s max=%d", dir, cookie, maxEntries)

	if err := fs.checkHandle(dir); err != nil {
		return res, err
	}
	if dir.Kind == oid.KindLeaf {
		return res, fmt.Errorf("%w: %s", common.ErrNotDir, dir)
	}
	if maxEntries < 0 {
		return res, fmt.Errorf("%w: maxEntries %d", common.ErrInvalidArgument, maxEntries)
	}

	probe := cookie.Clone()
	switch {
	case len(cookie) == 0:
		probe = dir.Path.Append(0)
	case cookie.IsDescendantOf(dir.Path):
	case cookie.Compare(dir.Path) > 0:
		// Past the directory's subtree: a cookie that carried out of dir.
		log.Debugf("[VFS] ReadDir: cookie %s is past %s, returning EOF", cookie, dir.Path)
		return ReadDirResult{Cookie: cookie.Clone(), EOF: true}, nil
	default:
		return res, fmt.Errorf("%w: cookie %s does not belong to %s", common.ErrInvalidArgument, cookie, dir.Path)
	}

	err = fs.withSession(func(p *prober) error {
		if dir.Kind == oid.KindUndetermined {
			kind, _, err := p.classify(dir.Path)
			if err != nil {
				return err
			}
			if kind == oid.KindLeaf {
				return fmt.Errorf("%w: %s", common.ErrNotDir, dir.Path)
			}
			dir.Kind = kind
		}
		l := &lister{p: p, dir: dir, probe: probe, max: maxEntries, wantAttrs: wantAttrs}
		if err := l.run(); err != nil {
			return err
		}
		res = ReadDirResult{Entries: l.entries, Cookie: l.probe, EOF: l.eof}
		return nil
	})
	if err != nil {
		return ReadDirResult{}, err
	}
	log.Debugf("[VFS] ReadDir: dir=%s returned %d entries, eof=%v", dir, len(res.Entries), res.EOF)
	return res, nil
}

// lister holds the state of one ReadDir call.
type lister struct {
	p         *prober
	dir       oid.Handle
	probe     oid.Path
	max       int
	wantAttrs bool

	entries []DirEntry
	eof     bool
}

func (l *lister) full() bool {
	return l.max > 0 && len(l.entries) >= l.max
}

func (l *lister) run() error {
	for !l.full() && !l.eof {
		// Fast path: consecutive leaves directly below dir need no GetNext.
		if l.probe.IsChildOf(l.dir.Path) {
			v, err := l.p.getExact(l.probe)
			if err == nil {
				l.emit(oid.KindLeaf, l.probe, v)
				continue
			}
			if !common.IsNotFound(err) {
				return err
			}
		}

		v, err := l.p.getNext(l.probe)
		if common.IsNotFound(err) {
			l.eof = true
			break
		}
		if err != nil {
			return err
		}
		if v.Name.Compare(l.probe) <= 0 {
			return fmt.Errorf("%w: GetNext(%s) went backwards to %s", common.ErrServerFault, l.probe, v.Name)
		}
		if !v.Name.IsDescendantOf(l.dir.Path) {
			l.eof = true
			break
		}
		if v.Name.IsChildOf(l.dir.Path) {
			l.emit(oid.KindLeaf, v.Name, v)
			continue
		}

		trunc := v.Name.Truncate(len(l.dir.Path) + 1)
		if trunc.Compare(l.probe) < 0 {
			// The probe lies inside trunc's subtree, which an earlier page
			// already listed. Jump past it.
			log.Tracef("[VFS] ReadDir: skipping subtree %s below probe %s", trunc, l.probe)
			l.advance(trunc)
			continue
		}
		l.emit(oid.KindInterior, trunc, nil)
	}
	return nil
}

// emit appends the entry at p and moves the probe after it.
func (l *lister) emit(kind oid.Kind, p oid.Path, v *snmp.Variable) {
	sub, _ := p.Last()
	h := oid.NewHandle(kind, p)
	e := DirEntry{
		Handle: h,
		Name:   l.p.fs.name(l.dir.Path, sub),
	}
	if l.wantAttrs {
		// The walk passes the probed variable for leaves, so this only
		// probes, and can only fail, when v is nil.
		attrs, err := l.p.attrs(h, v)
		if err != nil {
			log.Warnf("[VFS] ReadDir: attributes of %s: %v", h, err)
			e.AttrErr = err
		} else {
			e.Attrs = attrs
		}
	}
	l.advance(p)
	e.Cookie = l.probe.Clone()
	l.entries = append(l.entries, e)
}

// advance moves the probe to the first address after p's subtree. A carry
// out of dir ends the listing. When p ends the OID space there is no such
// address; the probe becomes p.0 instead, which still sorts after p and
// resumes through GetNext into p's already listed subtree.
func (l *lister) advance(p oid.Path) {
	next, ok := p.Next()
	if !ok {
		next = p.Append(0)
	}
	if !ok || !next.IsDescendantOf(l.dir.Path) {
		l.eof = true
	}
	l.probe = next
}
