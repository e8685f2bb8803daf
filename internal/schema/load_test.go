package schema

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snmpfs/internal/oid"
)

const testMIB = `
SNMPFS-TEST-MIB DEFINITIONS ::= BEGIN

IMPORTS
    MODULE-IDENTITY, OBJECT-TYPE, Integer32, TimeTicks, enterprises
        FROM SNMPv2-SMI
    DisplayString
        FROM SNMPv2-TC;

snmpfsTest MODULE-IDENTITY
    LAST-UPDATED "202401010000Z"
    ORGANIZATION "SnmpFS"
    CONTACT-INFO "dev@snmpfs.invalid"
    DESCRIPTION  "Objects used by the schema loader tests"
    ::= { enterprises 99999 }

testObjects OBJECT IDENTIFIER ::= { snmpfsTest 1 }

testString OBJECT-TYPE
    SYNTAX      DisplayString (SIZE (0..255))
    MAX-ACCESS  read-only
    STATUS      current
    DESCRIPTION "A string"
    ::= { testObjects 1 }

testInteger OBJECT-TYPE
    SYNTAX      Integer32
    MAX-ACCESS  read-write
    STATUS      current
    DESCRIPTION "An integer"
    ::= { testObjects 2 }

testTicks OBJECT-TYPE
    SYNTAX      TimeTicks
    MAX-ACCESS  read-only
    STATUS      current
    DESCRIPTION "Some ticks"
    ::= { testObjects 3 }

END
`

func TestLoadNothing(t *testing.T) {
	t.Parallel()

	tree, err := Load(context.Background(), LoadOptions{})
	require.NoError(t, err)
	assert.Nil(t, tree)
}

func TestLoadDirWithIgnore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SNMPFS-TEST-MIB.txt"), []byte(testMIB), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "drafts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "drafts", "BROKEN-MIB.txt"), []byte("not a mib"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# mibs"), 0o644))

	tree, err := Load(context.Background(), LoadOptions{
		Dirs:   []string{dir},
		Ignore: []string{"drafts/", "*.md"},
	})
	require.NoError(t, err)
	require.NotNil(t, tree)

	objects := oid.MustParse("1.3.6.1.4.1.99999.1")

	str := tree.Lookup(objects.Append(1))
	require.NotNil(t, str)
	assert.Equal(t, "testString", str.Label)
	assert.Equal(t, AccessReadOnly, str.Access)
	assert.Equal(t, SyntaxOctetString, str.Syntax)

	integer := tree.Lookup(objects.Append(2))
	require.NotNil(t, integer)
	assert.Equal(t, AccessReadWrite, integer.Access)
	assert.Equal(t, SyntaxInteger, integer.Syntax)

	ticks := tree.Lookup(objects.Append(3))
	require.NotNil(t, ticks)
	assert.Equal(t, SyntaxTimeTicks, ticks.Syntax)

	parent := tree.Lookup(objects)
	require.NotNil(t, parent)
	assert.Equal(t, "testObjects", parent.Label)
	assert.Len(t, tree.ChildrenOf(objects), 3)
}

func TestLoadMissingDir(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), LoadOptions{Dirs: []string{filepath.Join(t.TempDir(), "absent")}})
	assert.Error(t, err)
}
