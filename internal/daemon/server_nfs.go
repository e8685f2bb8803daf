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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path"
	"runtime"
	"sync"
	"time"

	billy "github.com/go-git/go-billy/v5"
	log "github.com/sirupsen/logrus"
	nfs "github.com/willscott/go-nfs"
	nfsfile "github.com/willscott/go-nfs/file"
	nfshelper "github.com/willscott/go-nfs/helpers"

	"snmpfs/internal/cache"
	"snmpfs/internal/common"
	"snmpfs/internal/digest"
	"snmpfs/internal/oid"
	"snmpfs/internal/vfs"
)

// ServerOptions tunes the NFS front end.
type ServerOptions struct {
	// HandleTTL bounds how long a resolved path is trusted.
	HandleTTL time.Duration
	// HandleCacheSize caps the resolved path cache. 0 is unlimited.
	HandleCacheSize int
	// ReaddirChunk is the page size used when listing a directory.
	// 0 lists a directory in one call.
	ReaddirChunk int
}

// NFSServer wraps the go-nfs server
type NFSServer struct {
	listener net.Listener
	server   *nfs.Server
	handler  nfs.Handler
	adapter  *BillyAdapter
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

// NewNFSServer creates a new NFS server exporting fs.
func NewNFSServer(fs *vfs.FS, opts ServerOptions) *NFSServer {
	// Set go-nfs log level to match daemon's log level
	if log.IsLevelEnabled(log.TraceLevel) {
		nfs.Log.SetLevel(nfs.TraceLevel)
	} else if log.IsLevelEnabled(log.DebugLevel) {
		nfs.Log.SetLevel(nfs.DebugLevel)
	}
	adapter := NewBillyAdapter(fs, cache.NewHandleCache(opts.HandleTTL, opts.HandleCacheSize), opts.ReaddirChunk)
	handler := newDigestHandler(adapter)

	ctx, cancel := context.WithCancel(context.Background())
	server := &nfs.Server{
		Handler: handler,
		Context: ctx,
	}

	return &NFSServer{
		server:  server,
		handler: handler,
		adapter: adapter,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Listen binds addr and returns the bound address.
func (s *NFSServer) Listen(addr string) (net.Addr, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	return listener.Addr(), nil
}

// Serve serves requests on the bound listener until Shutdown.
func (s *NFSServer) Serve() error {
	if s.listener == nil {
		return fmt.Errorf("serve before listen")
	}
	return s.server.Serve(s.listener)
}

// Invalidate drops the resolved path cache.
func (s *NFSServer) Invalidate() {
	stats := s.adapter.handles.Stats()
	s.adapter.handles.Invalidate()
	log.WithField("entries", stats.Size).Info("[NFS] Handle cache flushed")
}

// Shutdown stops the NFS server gracefully
func (s *NFSServer) Shutdown() {
	s.once.Do(func() {
		stats := s.adapter.handles.Stats()
		log.WithFields(log.Fields{
			"entries":  stats.Size,
			"max_size": stats.MaxSize,
			"ttl":      stats.TTL,
		}).Debug("[NFS] Shutting down")
		if s.listener != nil {
			s.listener.Close()
		}

		// Settle time for in-flight requests after the listener is gone.
		time.Sleep(100 * time.Millisecond)

		if s.cancel != nil {
			s.cancel()
		}
		close(s.done)
	})
}

// NFSMount mounts the export served on ip:port at mountPath.
func NFSMount(ip string, port int, mountPath string) error {
	if err := os.MkdirAll(mountPath, 0755); err != nil {
		return fmt.Errorf("failed to create mount point: %w", err)
	}

	// noac: values change on the agent behind our back, never cache attributes.
	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" {
		cmd = exec.Command("mount_nfs",
			"-o", fmt.Sprintf("port=%d,mountport=%d,tcp,nolocks,vers=3,noac,soft,timeo=50,retrans=3,nobrowse", port, port),
			fmt.Sprintf("%s:/", ip),
			mountPath,
		)
	} else {
		cmd = exec.Command("mount", "-t", "nfs",
			"-o", fmt.Sprintf("port=%d,mountport=%d,tcp,nolock,vers=3,noac,soft,timeo=50,retrans=3", port, port),
			fmt.Sprintf("%s:/", ip),
			mountPath,
		)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", cmd.Args[0], err, string(output))
	}
	return nil
}

// digestHandler serves file handles that are digests of the object
// address, so a handle stays valid across server restarts and needs no
// server-side table. Everything else is the null-auth handler.
type digestHandler struct {
	nfs.Handler
	adapter *BillyAdapter
}

func newDigestHandler(adapter *BillyAdapter) *digestHandler {
	return &digestHandler{
		Handler: nfshelper.NewNullAuthHandler(adapter),
		adapter: adapter,
	}
}

// ToHandle encodes the object at path. Trailing zero bytes are dropped;
// FromHandle pads them back.
func (h *digestHandler) ToHandle(_ billy.Filesystem, parts []string) []byte {
	handle, err := h.adapter.resolveParts(parts)
	if err != nil {
		log.Debugf("[NFS] ToHandle %q: %v", parts, err)
		return nil
	}
	token, err := digest.Compact(handle, h.adapter.fs.RootPath())
	if err != nil {
		log.WithError(err).Warnf("[NFS] ToHandle %s: cannot compact", handle)
		return nil
	}
	return bytes.TrimRight(token[:], "\x00")
}

// FromHandle decodes a handle produced by ToHandle and remembers the
// path it names, so the operation that follows does not probe again.
func (h *digestHandler) FromHandle(fh []byte) (billy.Filesystem, []string, error) {
	token, err := digest.FromBytes(fh)
	if err != nil {
		return nil, nil, err
	}
	handle, err := digest.Expand(token, h.adapter.fs.RootPath())
	if err != nil {
		log.Debugf("[NFS] FromHandle %x: %v", fh, err)
		return nil, nil, err
	}
	parts, err := h.adapter.fs.Names(handle)
	if err != nil {
		return nil, nil, err
	}
	h.adapter.handles.Set(common.JoinPath(parts...), handle)
	return h.adapter, parts, nil
}

// BillyAdapter adapts the SNMP filesystem to the billy interface go-nfs
// serves. The namespace is fixed by the agent: only leaf values can be
// written.
type BillyAdapter struct {
	fs      *vfs.FS
	handles *cache.HandleCache
	chunk   int
	uid     uint32 // cached os.Getuid()
	gid     uint32 // cached os.Getgid()
}

var (
	_ billy.Filesystem = (*BillyAdapter)(nil)
	_ billy.Change     = (*BillyAdapter)(nil)
)

// NewBillyAdapter creates a Billy adapter for fs. handles may be nil.
func NewBillyAdapter(fs *vfs.FS, handles *cache.HandleCache, chunk int) *BillyAdapter {
	return &BillyAdapter{
		fs:      fs,
		handles: handles,
		chunk:   chunk,
		uid:     uint32(os.Getuid()),
		gid:     uint32(os.Getgid()),
	}
}

// resolveParts resolves path components from the export root, starting
// from the longest prefix already in the handle cache.
func (b *BillyAdapter) resolveParts(parts []string) (oid.Handle, error) {
	h := b.fs.Root()
	start := 0
	for i := len(parts); i > 0; i-- {
		if cached, ok := b.handles.Get(common.JoinPath(parts[:i]...)); ok {
			h, start = cached, i
			break
		}
	}
	for i := start; i < len(parts); i++ {
		next, err := b.fs.Resolve(h, parts[i])
		if err != nil {
			return oid.Handle{}, err
		}
		if next.Kind == oid.KindUndetermined {
			if next, err = b.fs.Classify(next); err != nil {
				return oid.Handle{}, err
			}
		}
		b.handles.Set(common.JoinPath(parts[:i+1]...), next)
		h = next
	}
	return h, nil
}

func (b *BillyAdapter) resolve(filename string) (oid.Handle, error) {
	return b.resolveParts(common.SplitPath(filename))
}

// fail logs err and converts it to the errno go-nfs reports. A path that
// no longer exists is dropped from the cache together with its subtree.
func (b *BillyAdapter) fail(op, name string, err error) error {
	if common.IsNotFound(err) {
		p := common.JoinPath(name)
		if _, ok := b.handles.Get(p); ok {
			b.handles.InvalidatePrefix(p)
		}
	}
	switch {
	case errors.Is(err, common.ErrServerFault),
		errors.Is(err, common.ErrTransport),
		errors.Is(err, common.ErrSecurity):
		log.WithError(err).Errorf("[NFS] %s %q failed", op, name)
	default:
		log.Debugf("[NFS] %s %q: %v", op, name, err)
	}
	return vfs.ToErrno(err)
}

func (b *BillyAdapter) Create(filename string) (billy.File, error) {
	return b.OpenFile(filename, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
}

func (b *BillyAdapter) Open(filename string) (billy.File, error) {
	return b.OpenFile(filename, os.O_RDONLY, 0)
}

// OpenFile opens an existing leaf. Objects cannot be created.
func (b *BillyAdapter) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	h, err := b.resolve(filename)
	if err != nil {
		if common.IsNotFound(err) && flag&os.O_CREATE != 0 {
			return nil, vfs.EPERM
		}
		return nil, b.fail("OpenFile", filename, err)
	}
	if flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0 {
		return nil, os.ErrExist
	}
	if h.Kind.IsDir() {
		return nil, vfs.EISDIR
	}

	f := &BillyFile{
		adapter: b,
		handle:  h,
		name:    filename,
		flags:   flag,
	}
	if flag&os.O_TRUNC != 0 {
		f.loaded = true
	}
	return f, nil
}

func (b *BillyAdapter) Stat(filename string) (os.FileInfo, error) {
	h, err := b.resolve(filename)
	if err != nil {
		return nil, b.fail("Stat", filename, err)
	}
	attrs, err := b.fs.GetAttr(h)
	if err != nil {
		return nil, b.fail("Stat", filename, err)
	}
	return &BillyFileInfo{
		name:    common.BaseName(filename),
		handle:  h,
		attrs:   attrs,
		adapter: b,
	}, nil
}

// Lstat is Stat: there are no symlinks.
func (b *BillyAdapter) Lstat(filename string) (os.FileInfo, error) {
	return b.Stat(filename)
}

// ReadDir lists a directory, paging through the agent ReaddirChunk
// entries at a time.
func (b *BillyAdapter) ReadDir(dirname string) ([]os.FileInfo, error) {
	dir, err := b.resolve(dirname)
	if err != nil {
		return nil, b.fail("ReadDir", dirname, err)
	}
	if !dir.Kind.IsDir() {
		return nil, vfs.ENOTDIR
	}

	prefix := common.SplitPath(dirname)
	var result []os.FileInfo
	var cookie oid.Cookie
	for {
		page, err := b.fs.ReadDir(dir, cookie, b.chunk, true)
		if err != nil {
			return nil, b.fail("ReadDir", dirname, err)
		}
		for _, e := range page.Entries {
			if e.AttrErr != nil {
				log.WithError(e.AttrErr).Debugf("[NFS] ReadDir %q: no attributes for %s", dirname, e.Name)
			}
			b.handles.Set(common.JoinPath(append(prefix, e.Name)...), e.Handle)
			result = append(result, &BillyFileInfo{
				name:    e.Name,
				handle:  e.Handle,
				attrs:   e.Attrs,
				adapter: b,
			})
		}
		if page.EOF {
			return result, nil
		}
		cookie = page.Cookie
	}
}

func (b *BillyAdapter) Rename(oldpath, newpath string) error {
	return vfs.EPERM
}

func (b *BillyAdapter) Remove(filename string) error {
	return vfs.EPERM
}

func (b *BillyAdapter) MkdirAll(filename string, perm os.FileMode) error {
	return vfs.EPERM
}

func (b *BillyAdapter) Symlink(target, link string) error {
	return vfs.EPERM
}

func (b *BillyAdapter) Readlink(link string) (string, error) {
	return "", vfs.EINVAL
}

func (b *BillyAdapter) TempFile(dir, prefix string) (billy.File, error) {
	return nil, vfs.EPERM
}

func (b *BillyAdapter) Join(elem ...string) string {
	return path.Join(elem...)
}

func (b *BillyAdapter) Chroot(path string) (billy.Filesystem, error) {
	return nil, os.ErrInvalid
}

func (b *BillyAdapter) Root() string {
	return "/"
}

// billy.Change interface. Modes come from the schema access class.
func (b *BillyAdapter) Chmod(name string, mode os.FileMode) error {
	return vfs.EPERM
}

func (b *BillyAdapter) Lchown(name string, uid, gid int) error            { return nil }
func (b *BillyAdapter) Chown(name string, uid, gid int) error             { return nil }
func (b *BillyAdapter) Chtimes(name string, atime, mtime time.Time) error { return nil }

func (b *BillyAdapter) Capabilities() billy.Capability {
	return billy.WriteCapability | billy.ReadCapability |
		billy.ReadAndWriteCapability | billy.SeekCapability | billy.TruncateCapability
}

// BillyFile is an open leaf. Its content is the rendered value, read on
// first use. Writes are buffered and stored with a single Set on Close;
// a write at offset zero to an unmodified file replaces the value.
type BillyFile struct {
	adapter *BillyAdapter
	handle  oid.Handle
	name    string
	flags   int

	mu     sync.Mutex
	offset int64
	data   []byte
	loaded bool
	dirty  bool
}

func (f *BillyFile) Name() string {
	return f.name
}

func (f *BillyFile) load() error {
	if f.loaded {
		return nil
	}
	data, err := f.adapter.fs.ReadValue(f.handle)
	if err != nil {
		return f.adapter.fail("Read", f.name, err)
	}
	f.data, f.loaded = data, true
	return nil
}

func (f *BillyFile) writable() bool {
	return f.flags&(os.O_WRONLY|os.O_RDWR) != 0
}

func (f *BillyFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.writable() {
		return 0, vfs.EBADF
	}
	switch {
	case f.flags&os.O_APPEND != 0:
		if err := f.load(); err != nil {
			return 0, err
		}
		f.offset = int64(len(f.data))
	case f.offset == 0 && !f.dirty:
		f.data, f.loaded = nil, true
	default:
		if err := f.load(); err != nil {
			return 0, err
		}
	}

	end := f.offset + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[f.offset:], p)
	f.offset = end
	f.dirty = true
	return len(p), nil
}

func (f *BillyFile) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.readAt(p, f.offset)
	f.offset += int64(n)
	return n, err
}

func (f *BillyFile) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.readAt(p, off)
}

func (f *BillyFile) readAt(p []byte, off int64) (int, error) {
	if err := f.load(); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, vfs.EINVAL
	}
	if off >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *BillyFile) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch whence {
	case io.SeekStart:
		f.offset = offset
	case io.SeekCurrent:
		f.offset += offset
	case io.SeekEnd:
		if err := f.load(); err != nil {
			return 0, err
		}
		f.offset = int64(len(f.data)) + offset
	}
	if f.offset < 0 {
		f.offset = 0
		return 0, vfs.EINVAL
	}
	return f.offset, nil
}

// Truncate resizes the buffered value without storing it; only a write
// reaches the agent.
func (f *BillyFile) Truncate(size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if size < 0 {
		return vfs.EINVAL
	}
	if size == 0 {
		f.data, f.loaded = nil, true
		return nil
	}
	if err := f.load(); err != nil {
		return err
	}
	if size <= int64(len(f.data)) {
		f.data = f.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, f.data)
	f.data = grown
	return nil
}

// Close stores the buffered value if it was written.
func (f *BillyFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.dirty {
		return nil
	}
	f.dirty = false
	if err := f.adapter.fs.WriteValue(f.handle, string(f.data)); err != nil {
		return f.adapter.fail("Write", f.name, err)
	}
	return nil
}

func (f *BillyFile) Lock() error {
	return nil
}

func (f *BillyFile) Unlock() error {
	return nil
}

// BillyFileInfo describes one object. attrs is nil when the attributes
// could not be read; the handle kind still tells files from directories.
type BillyFileInfo struct {
	name    string
	handle  oid.Handle
	attrs   *vfs.Attrs
	adapter *BillyAdapter // cached uid/gid source (nil falls back to syscall)
}

func (fi *BillyFileInfo) Name() string {
	return fi.name
}

func (fi *BillyFileInfo) Size() int64 {
	if fi.attrs != nil {
		return fi.attrs.Size
	}
	return 0
}

func (fi *BillyFileInfo) Mode() os.FileMode {
	if fi.attrs != nil {
		return fi.attrs.Mode
	}
	if fi.IsDir() {
		return os.ModeDir | 0555
	}
	return 0444
}

func (fi *BillyFileInfo) ModTime() time.Time {
	if fi.attrs != nil {
		return fi.attrs.ModTime
	}
	return time.Now()
}

func (fi *BillyFileInfo) IsDir() bool {
	if fi.attrs != nil {
		return fi.attrs.IsDir()
	}
	return fi.handle.Kind.IsDir()
}

func (fi *BillyFileInfo) Sys() interface{} {
	// go-nfs's GetInfo() only recognizes file.FileInfo or *file.FileInfo types
	uid, gid := fi.getUIDGID()

	fileid := vfs.FileID(fi.handle.Path)
	if fi.attrs != nil {
		fileid = fi.attrs.FileID
	}
	return &nfsfile.FileInfo{
		Nlink:  1,
		UID:    uid,
		GID:    gid,
		Fileid: fileid,
	}
}

// getUIDGID returns cached uid/gid from the adapter if available, otherwise falls back to syscall.
func (fi *BillyFileInfo) getUIDGID() (uint32, uint32) {
	if fi.adapter != nil {
		return fi.adapter.uid, fi.adapter.gid
	}
	return uint32(os.Getuid()), uint32(os.Getgid())
}
