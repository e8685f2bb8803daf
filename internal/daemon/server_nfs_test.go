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

package daemon

import (
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	nfsfile "github.com/willscott/go-nfs/file"

	"snmpfs/internal/cache"
	"snmpfs/internal/oid"
	"snmpfs/internal/schema"
	"snmpfs/internal/snmp"
	"snmpfs/internal/snmp/snmptest"
	"snmpfs/internal/vfs"
)

const mib2 = "1.3.6.1.2.1"

func testTree() *schema.Tree {
	p := func(s string) oid.Path { return oid.MustParse(mib2 + s) }
	return schema.NewBuilder().
		Add(p(".1"), "system", schema.AccessUnknown, schema.SyntaxUnknown).
		Add(p(".1.1"), "sysDescr", schema.AccessReadOnly, schema.SyntaxOctetString).
		Add(p(".1.5"), "sysName", schema.AccessReadWrite, schema.SyntaxOctetString).
		Add(p(".1.7"), "sysServices", schema.AccessReadWrite, schema.SyntaxInteger).
		Tree()
}

func testAgent() *snmptest.Agent {
	return snmptest.New().
		AddReadOnly(mib2+".1.1.0", gosnmp.OctetString, []byte("Linux box")).
		AddString(mib2+".1.5.0", "router").
		Add(mib2+".1.7.0", gosnmp.Integer, 72).
		AddString(mib2+".2.1.0", "unnamed")
}

func newTestAdapter(t *testing.T, agent *snmptest.Agent, chunk int) *BillyAdapter {
	t.Helper()
	fs, err := vfs.New(vfs.Options{
		Root:     oid.MustParse(mib2),
		Schema:   testTree(),
		Sessions: agent,
	})
	require.NoError(t, err)
	return NewBillyAdapter(fs, cache.NewHandleCache(time.Minute, 0), chunk)
}

func readAll(t *testing.T, b *BillyAdapter, name string) string {
	t.Helper()
	f, err := b.Open(name)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(data)
}

func TestBillyAdapterStat(t *testing.T) {
	t.Parallel()

	b := newTestAdapter(t, testAgent(), 0)

	tests := []struct {
		path  string
		isDir bool
		mode  os.FileMode
		size  int64
	}{
		{"", true, os.ModeDir | 0o555, 0},
		{"system", true, os.ModeDir | 0o555, 0},
		{"system/sysDescr/0", false, 0o444, int64(len("Linux box\n"))},
		{"system/sysName/0", false, 0o666, int64(len("router\n"))},
		{"2/1/0", false, 0o666, int64(len("unnamed\n"))},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			fi, err := b.Stat(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.isDir, fi.IsDir())
			assert.Equal(t, tt.mode, fi.Mode())
			assert.Equal(t, tt.size, fi.Size())

			sys, ok := fi.Sys().(*nfsfile.FileInfo)
			require.True(t, ok, "go-nfs needs *file.FileInfo")
			assert.NotZero(t, sys.Fileid)
		})
	}

	_, err := b.Stat("system/nope")
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = b.Stat("system/sysName/0/deeper")
	assert.Equal(t, vfs.ENOTDIR, err)
}

func TestBillyAdapterReadDirPages(t *testing.T) {
	t.Parallel()

	for _, chunk := range []int{0, 1, 2} {
		agent := testAgent()
		b := newTestAdapter(t, agent, chunk)

		infos, err := b.ReadDir("system")
		require.NoError(t, err)
		var names []string
		for _, fi := range infos {
			names = append(names, fi.Name())
			assert.True(t, fi.IsDir())
		}
		assert.Equal(t, []string{"sysDescr", "sysName", "sysServices"}, names, "chunk %d", chunk)

		// Listed entries are cached: resolving them costs no probe.
		agent.ResetProbes()
		_, err = b.resolve("system/sysName")
		require.NoError(t, err)
		exact, next := agent.Probes()
		assert.Zero(t, exact+next)
	}

	_, err := newTestAdapter(t, testAgent(), 0).ReadDir("system/sysName/0")
	assert.Equal(t, vfs.ENOTDIR, err)
}

func TestBillyFileReadWrite(t *testing.T) {
	t.Parallel()

	agent := testAgent()
	b := newTestAdapter(t, agent, 0)

	assert.Equal(t, "router\n", readAll(t, b, "system/sysName/0"))

	f, err := b.OpenFile("system/sysName/0", os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte("core-1\n"))
	require.NoError(t, err)
	assert.Zero(t, agent.Sets(), "writes are buffered until close")
	require.NoError(t, f.Close())
	assert.Equal(t, 1, agent.Sets())
	assert.Equal(t, "core-1\n", readAll(t, b, "system/sysName/0"))

	// Seek then write patches the current value.
	f, err = b.OpenFile("system/sysServices/0", os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Seek(1, io.SeekStart)
	require.NoError(t, err)
	_, err = f.Write([]byte("6"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "76\n", readAll(t, b, "system/sysServices/0"))

	// Truncate alone stores nothing.
	f, err = b.OpenFile("system/sysName/0", os.O_WRONLY, 0)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(0))
	require.NoError(t, f.Close())
	assert.Equal(t, 2, agent.Sets())
}

func TestBillyFileWriteErrors(t *testing.T) {
	t.Parallel()

	b := newTestAdapter(t, testAgent(), 0)

	f, err := b.Open("system/sysName/0")
	require.NoError(t, err)
	_, err = f.Write([]byte("x"))
	assert.Equal(t, vfs.EBADF, err)
	require.NoError(t, f.Close())

	f, err = b.OpenFile("system/sysServices/0", os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte("many\n"))
	require.NoError(t, err)
	assert.Equal(t, vfs.EINVAL, f.Close())

	f, err = b.OpenFile("system/sysDescr/0", os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte("other\n"))
	require.NoError(t, err)
	assert.Equal(t, vfs.EACCES, f.Close())
}

func TestBillyAdapterNamespaceIsFixed(t *testing.T) {
	t.Parallel()

	b := newTestAdapter(t, testAgent(), 0)

	_, err := b.Create("system/new")
	assert.Equal(t, vfs.EPERM, err)
	_, err = b.OpenFile("system/sysName/0", os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	assert.ErrorIs(t, err, os.ErrExist)
	_, err = b.Open("system")
	assert.Equal(t, vfs.EISDIR, err)

	assert.Equal(t, vfs.EPERM, b.Remove("system/sysName/0"))
	assert.Equal(t, vfs.EPERM, b.Rename("system/sysName/0", "system/x"))
	assert.Equal(t, vfs.EPERM, b.MkdirAll("system/x", 0o755))
	assert.Equal(t, vfs.EPERM, b.Symlink("a", "system/x"))
	assert.Equal(t, vfs.EPERM, b.Chmod("system/sysName/0", 0o600))
	assert.NoError(t, b.Chtimes("system/sysName/0", time.Now(), time.Now()))
}

func TestBillyFileInfoFallback(t *testing.T) {
	t.Parallel()

	dir := &BillyFileInfo{name: "ifTable", handle: oid.NewHandle(oid.KindInterior, oid.MustParse("1.2"))}
	assert.True(t, dir.IsDir())
	assert.Equal(t, os.ModeDir|0o555, dir.Mode())
	assert.Zero(t, dir.Size())

	file := &BillyFileInfo{name: "0", handle: oid.NewHandle(oid.KindLeaf, oid.MustParse("1.2.0"))}
	assert.False(t, file.IsDir())
	assert.Equal(t, os.FileMode(0o444), file.Mode())
	sys := file.Sys().(*nfsfile.FileInfo)
	assert.Equal(t, vfs.FileID(oid.MustParse("1.2.0")), sys.Fileid)
}

func TestDigestHandlerRoundTrip(t *testing.T) {
	g := NewWithT(t)

	agent := testAgent()
	b := newTestAdapter(t, agent, 0)
	h := newDigestHandler(b)

	for _, parts := range [][]string{
		{},
		{"system"},
		{"system", "sysName", "0"},
		{"2", "1", "0"},
	} {
		fh := h.ToHandle(b, parts)
		g.Expect(fh).NotTo(BeEmpty())
		g.Expect(len(fh)).To(BeNumerically("<=", 64))

		fs, got, err := h.FromHandle(fh)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(fs).To(BeIdenticalTo(b))
		g.Expect(got).To(Equal(parts))
	}

	// A handle decoded by a fresh server resolves without probing.
	fresh := newTestAdapter(t, agent, 0)
	fh := h.ToHandle(b, []string{"system", "sysName", "0"})
	_, parts, err := newDigestHandler(fresh).FromHandle(fh)
	g.Expect(err).NotTo(HaveOccurred())
	agent.ResetProbes()
	_, err = fresh.resolve(fresh.Join(parts...))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(agent.Probes()).To(BeZero())

	_, _, err = h.FromHandle([]byte{0xff, 0xff})
	g.Expect(err).To(HaveOccurred())
	_, _, err = h.FromHandle(make([]byte, 65))
	g.Expect(err).To(HaveOccurred())
}

func TestHandleCacheDropsVanishedPaths(t *testing.T) {
	t.Parallel()

	agent := testAgent()
	b := newTestAdapter(t, agent, 0)

	_, err := b.Stat("2/1/0")
	require.NoError(t, err)
	_, ok := b.handles.Get("2/1/0")
	require.True(t, ok)

	// The row disappears on the agent.
	agent.Fail("get", mib2+".2.1.0", snmp.NoSuchName)
	_, err = b.Stat("2/1/0")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, ok = b.handles.Get("2/1/0")
	assert.False(t, ok)
	_, ok = b.handles.Get("2/1")
	assert.True(t, ok, "parent stays cached")
}

func TestNFSServerLifecycle(t *testing.T) {
	t.Parallel()

	fs, err := vfs.New(vfs.Options{
		Root:     oid.MustParse(mib2),
		Schema:   testTree(),
		Sessions: testAgent(),
	})
	require.NoError(t, err)

	srv := NewNFSServer(fs, ServerOptions{HandleTTL: time.Minute})
	assert.EqualError(t, srv.Serve(), "serve before listen")

	_, err = srv.adapter.Stat("system/sysName/0")
	require.NoError(t, err)
	assert.Equal(t, 3, srv.adapter.handles.Size())

	srv.Invalidate()
	assert.Zero(t, srv.adapter.handles.Size())

	addr, err := srv.Listen("127.0.0.1:0")
	require.NoError(t, err)
	assert.NotZero(t, addr.(*net.TCPAddr).Port)

	served := make(chan error, 1)
	go func() { served <- srv.Serve() }()
	srv.Shutdown()
	srv.Shutdown()
	select {
	case <-served:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}
