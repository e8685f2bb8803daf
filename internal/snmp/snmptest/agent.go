// Package snmptest provides an in-memory agent for tests. It answers
// GetExact/GetNext from a sorted table and counts every probe it serves.
package snmptest

import (
	"sort"
	"sync"

	"github.com/gosnmp/gosnmp"

	"snmpfs/internal/oid"
	"snmpfs/internal/snmp"
)

type object struct {
	v        snmp.Variable
	readOnly bool
}

type fault struct {
	op   string
	path string
	code snmp.Code
}

// Agent is an in-memory snmp.Session. It also hands itself out as a session
// source, so a single Agent can back a whole filesystem in tests.
type Agent struct {
	mu      sync.Mutex
	objects []object
	faults  []fault
	exact   int
	next    int
	sets    int
}

var _ snmp.Session = (*Agent)(nil)

// New returns an agent holding the given dotted OIDs as string leaves whose
// value is the OID itself.
func New(oids ...string) *Agent {
	a := &Agent{}
	for _, s := range oids {
		a.AddString(s, s)
	}
	return a
}

// Add stores a typed instance, replacing any previous one at the same OID.
func (a *Agent) Add(s string, typ gosnmp.Asn1BER, value interface{}) *Agent {
	return a.add(s, typ, value, false)
}

// AddString stores an octet string instance.
func (a *Agent) AddString(s, value string) *Agent {
	return a.add(s, gosnmp.OctetString, []byte(value), false)
}

// AddReadOnly stores an instance that rejects Set with notWritable.
func (a *Agent) AddReadOnly(s string, typ gosnmp.Asn1BER, value interface{}) *Agent {
	return a.add(s, typ, value, true)
}

func (a *Agent) add(s string, typ gosnmp.Asn1BER, value interface{}, ro bool) *Agent {
	p := oid.MustParse(s)
	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.search(p)
	obj := object{v: snmp.Variable{Name: p, Type: typ, Value: value}, readOnly: ro}
	if i < len(a.objects) && a.objects[i].v.Name.Equal(p) {
		a.objects[i] = obj
		return a
	}
	a.objects = append(a.objects, object{})
	copy(a.objects[i+1:], a.objects[i:])
	a.objects[i] = obj
	return a
}

// Fail makes every op ("get", "getnext" or "set") at the dotted OID answer
// with code instead of consulting the table.
func (a *Agent) Fail(op, s string, code snmp.Code) *Agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.faults = append(a.faults, fault{op: op, path: oid.MustParse(s).String(), code: code})
	return a
}

// search returns the index of the first object not sorting before p.
func (a *Agent) search(p oid.Path) int {
	return sort.Search(len(a.objects), func(i int) bool {
		return a.objects[i].v.Name.Compare(p) >= 0
	})
}

func (a *Agent) injected(op string, p oid.Path) (snmp.Code, bool) {
	key := p.String()
	for _, f := range a.faults {
		if f.op == op && f.path == key {
			return f.code, true
		}
	}
	return snmp.NoError, false
}

// GetExact implements snmp.Session.
func (a *Agent) GetExact(p oid.Path) snmp.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.exact++

	if code, ok := a.injected("get", p); ok {
		return snmp.Result{Code: code}
	}
	i := a.search(p)
	if i < len(a.objects) && a.objects[i].v.Name.Equal(p) {
		v := a.objects[i].v
		v.Name = v.Name.Clone()
		return snmp.Result{Code: snmp.NoError, Var: &v}
	}
	return snmp.Result{Code: snmp.NoSuchName}
}

// GetNext implements snmp.Session.
func (a *Agent) GetNext(p oid.Path) snmp.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++

	if code, ok := a.injected("getnext", p); ok {
		return snmp.Result{Code: code}
	}
	i := a.search(p)
	if i < len(a.objects) && a.objects[i].v.Name.Equal(p) {
		i++
	}
	if i >= len(a.objects) {
		return snmp.Result{Code: snmp.NoSuchName}
	}
	v := a.objects[i].v
	v.Name = v.Name.Clone()
	return snmp.Result{Code: snmp.NoError, Var: &v}
}

// Set implements snmp.Session. Only existing instances can be written.
func (a *Agent) Set(p oid.Path, v snmp.Value) snmp.Code {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sets++

	if code, ok := a.injected("set", p); ok {
		return code
	}
	i := a.search(p)
	if i >= len(a.objects) || !a.objects[i].v.Name.Equal(p) {
		return snmp.NoCreation
	}
	if a.objects[i].readOnly {
		return snmp.NotWritable
	}
	if a.objects[i].v.Type != v.Type {
		return snmp.WrongType
	}
	a.objects[i].v.Value = v.Value
	return snmp.NoError
}

// Probes returns the number of GetExact and GetNext calls served.
func (a *Agent) Probes() (exact, next int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exact, a.next
}

// Sets returns the number of Set calls served.
func (a *Agent) Sets() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sets
}

// ResetProbes zeroes the probe counters.
func (a *Agent) ResetProbes() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.exact, a.next, a.sets = 0, 0, 0
}

// Get returns the agent itself.
func (a *Agent) Get() (snmp.Session, error) {
	return a, nil
}

// Put is a no-op.
func (a *Agent) Put(snmp.Session) {}
