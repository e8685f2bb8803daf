package vfs

import (
	"fmt"

	"github.com/gosnmp/gosnmp"
	log "github.com/sirupsen/logrus"

	"snmpfs/internal/common"
	"snmpfs/internal/oid"
	"snmpfs/internal/schema"
	"snmpfs/internal/snmp"
)

// ReadValue returns the rendered content of a leaf.
func (fs *FS) ReadValue(h oid.Handle) (data []byte, err error) {
	defer recoverFSPanic("ReadValue", &err)
	if err := fs.checkHandle(h); err != nil {
		return nil, err
	}
	if h.Kind.IsDir() {
		return nil, fmt.Errorf("%w: %s", common.ErrIsDir, h)
	}
	err = fs.withSession(func(p *prober) error {
		v, err := p.getExact(h.Path)
		if err != nil {
			return err
		}
		data = []byte(snmp.Render(v))
		return nil
	})
	return data, err
}

// WriteValue parses text as the leaf's type and stores it. The type comes
// from the schema; objects the schema does not describe keep the type of
// their current value.
func (fs *FS) WriteValue(h oid.Handle, text string) (err error) {
	defer recoverFSPanic("WriteValue", &err)
	log.Debugf("[VFS] WriteValue: %s (%d bytes)", h, len(text))
	if err := fs.checkHandle(h); err != nil {
		return err
	}
	if h.Kind.IsDir() {
		return fmt.Errorf("%w: %s", common.ErrIsDir, h)
	}
	return fs.withSession(func(p *prober) error {
		typ, ok := berType(fs.schema.FindNearestAncestor(h.Path, false))
		if !ok {
			cur, err := p.getExact(h.Path)
			if err != nil {
				return err
			}
			typ = cur.Type
		}
		val, err := snmp.ParseValue(text, typ)
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrInvalidArgument, err)
		}
		return p.set(h.Path, val)
	})
}

// berType maps a schema syntax to the wire type used to write it.
func berType(n *schema.Node) (gosnmp.Asn1BER, bool) {
	if n == nil {
		return 0, false
	}
	switch n.Syntax {
	case schema.SyntaxInteger:
		return gosnmp.Integer, true
	case schema.SyntaxUnsigned:
		return gosnmp.Uinteger32, true
	case schema.SyntaxCounter32:
		return gosnmp.Counter32, true
	case schema.SyntaxCounter64:
		return gosnmp.Counter64, true
	case schema.SyntaxGauge:
		return gosnmp.Gauge32, true
	case schema.SyntaxTimeTicks:
		return gosnmp.TimeTicks, true
	case schema.SyntaxIPAddress:
		return gosnmp.IPAddress, true
	case schema.SyntaxOctetString, schema.SyntaxBits:
		return gosnmp.OctetString, true
	case schema.SyntaxObjectID:
		return gosnmp.ObjectIdentifier, true
	case schema.SyntaxOpaque:
		return gosnmp.Opaque, true
	}
	return 0, false
}
