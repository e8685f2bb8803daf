package vfs

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"snmpfs/internal/common"
	"snmpfs/internal/oid"
	"snmpfs/internal/snmp"
)

// prober issues single probes on a borrowed session. The gate is held for
// one probe at a time, never across a whole operation.
type prober struct {
	fs   *FS
	sess snmp.Session
}

// withSession borrows a session for the duration of fn.
func (fs *FS) withSession(fn func(*prober) error) error {
	sess, err := fs.sessions.Get()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	defer fs.sessions.Put(sess)
	return fn(&prober{fs: fs, sess: sess})
}

func (p *prober) getExact(path oid.Path) (*snmp.Variable, error) {
	p.fs.gate.Acquire()
	res := p.sess.GetExact(path)
	p.fs.gate.Release()
	return p.variable("GetExact", path, res)
}

func (p *prober) getNext(path oid.Path) (*snmp.Variable, error) {
	p.fs.gate.Acquire()
	res := p.sess.GetNext(path)
	p.fs.gate.Release()
	return p.variable("GetNext", path, res)
}

func (p *prober) set(path oid.Path, v snmp.Value) error {
	p.fs.gate.Acquire()
	code := p.sess.Set(path, v)
	p.fs.gate.Release()
	if err := snmp.Translate(code); err != nil {
		log.Debugf("[VFS] Set %s: %v", path, err)
		return err
	}
	log.Tracef("[VFS] Set %s: ok", path)
	return nil
}

func (p *prober) variable(op string, path oid.Path, res snmp.Result) (*snmp.Variable, error) {
	if err := res.Err(); err != nil {
		if common.IsNotFound(err) {
			log.Tracef("[VFS] %s %s: not found", op, path)
		} else {
			log.Debugf("[VFS] %s %s: %v", op, path, err)
		}
		return nil, err
	}
	if res.Var == nil {
		return nil, fmt.Errorf("%w: %s %s returned no variable", common.ErrServerFault, op, path)
	}
	log.Tracef("[VFS] %s %s → %s", op, path, res.Var.Name)
	return res.Var, nil
}

// hasChildren reports whether any instance lives strictly below path.
// It never looks at the kind of path itself.
func (p *prober) hasChildren(path oid.Path) (bool, error) {
	v, err := p.getNext(path)
	if common.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v.Name.IsDescendantOf(path), nil
}

// classify determines the kind of an existing candidate path: an instance
// is a Leaf, anything with instances below it is Interior.
func (p *prober) classify(path oid.Path) (oid.Kind, *snmp.Variable, error) {
	v, err := p.getExact(path)
	if err == nil {
		return oid.KindLeaf, v, nil
	}
	if !common.IsNotFound(err) {
		return oid.KindUndetermined, nil, err
	}
	ok, err := p.hasChildren(path)
	if err != nil {
		return oid.KindUndetermined, nil, err
	}
	if !ok {
		return oid.KindUndetermined, nil, fmt.Errorf("%w: %s", common.ErrNotFound, path)
	}
	return oid.KindInterior, nil, nil
}
