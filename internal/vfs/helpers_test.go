package vfs

import (
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/require"

	"snmpfs/internal/oid"
	"snmpfs/internal/schema"
	"snmpfs/internal/snmp/snmptest"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const mib2 = "1.3.6.1.2.1"

func newTestFS(t *testing.T, agent SessionSource, root string, tree *schema.Tree) *FS {
	t.Helper()
	fs, err := New(Options{
		Root:     oid.MustParse(root),
		Schema:   tree,
		Sessions: agent,
		Now:      func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return fs
}

// systemTree describes the system and interfaces groups of mib-2.
func systemTree() *schema.Tree {
	p := func(s string) oid.Path { return oid.MustParse(mib2 + s) }
	return schema.NewBuilder().
		Add(p(""), "mib-2", schema.AccessUnknown, schema.SyntaxUnknown).
		Add(p(".1"), "system", schema.AccessUnknown, schema.SyntaxUnknown).
		Add(p(".1.1"), "sysDescr", schema.AccessReadOnly, schema.SyntaxOctetString).
		Add(p(".1.3"), "sysUpTime", schema.AccessReadOnly, schema.SyntaxTimeTicks).
		Add(p(".1.5"), "sysName", schema.AccessReadWrite, schema.SyntaxOctetString).
		Add(p(".2"), "interfaces", schema.AccessUnknown, schema.SyntaxUnknown).
		Add(p(".2.1"), "ifNumber", schema.AccessReadOnly, schema.SyntaxInteger).
		Add(p(".2.2"), "ifTable", schema.AccessNone, schema.SyntaxUnknown).
		Tree()
}

// systemAgent serves instances matching systemTree plus one object
// outside mib-2.
func systemAgent() *snmptest.Agent {
	return snmptest.New().
		AddReadOnly(mib2+".1.1.0", gosnmp.OctetString, []byte("Linux box")).
		AddReadOnly(mib2+".1.3.0", gosnmp.TimeTicks, uint32(123456)).
		AddString(mib2+".1.5.0", "router").
		AddReadOnly(mib2+".2.1.0", gosnmp.Integer, 2).
		AddReadOnly(mib2+".2.2.1.1.1", gosnmp.Integer, 1).
		AddReadOnly(mib2+".2.2.1.1.2", gosnmp.Integer, 2).
		AddString("1.3.6.1.4.1.9.1", "elsewhere")
}

// scenarioAgent has leaves 1.1, 1.2, 1.4 and a deeper leaf 1.3.1 with no
// instance at 1.3.
func scenarioAgent() *snmptest.Agent {
	return snmptest.New("1.1", "1.2", "1.3.1", "1.4", "2.1")
}

func interior(s string) oid.Handle {
	return oid.NewHandle(oid.KindInterior, oid.MustParse(s))
}

func leaf(s string) oid.Handle {
	return oid.NewHandle(oid.KindLeaf, oid.MustParse(s))
}

func names(entries []DirEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func handles(entries []DirEntry) []oid.Handle {
	out := make([]oid.Handle, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Handle)
	}
	return out
}

func probes(a *snmptest.Agent) int {
	exact, next := a.Probes()
	return exact + next
}
