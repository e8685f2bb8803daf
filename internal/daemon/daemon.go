package daemon

// NFS DEADLOCK WARNING:
// When mount_point is set, the export is mounted on this host. Nothing in
// the daemon may touch paths under the mount point while serving, or the
// kernel NFS client will wait on the very server that is waiting on it.

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"snmpfs/internal/schema"
	"snmpfs/internal/snmp"
	"snmpfs/internal/vfs"
)

func init() {
	// Default logging to discard until explicitly enabled via config
	log.SetOutput(io.Discard)
}

// maxLogSize is the size above which the log file is cut in half on start.
const maxLogSize = 50 * 1024 * 1024

// Daemon serves one agent over NFS until stopped.
type Daemon struct {
	cfg      *Config
	id       string
	logger   *log.Entry
	logFile  *os.File
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	lock     *flock.Flock

	// LogOutput, when set, receives the log instead of the configured file.
	LogOutput io.Writer
	// SkipCleanup leaves a mount found at the mount point alone.
	SkipCleanup bool

	pool    *snmp.Pool
	server  NetFSServer
	mounted bool
}

// New creates a new daemon instance for cfg.
func New(cfg *Config) *Daemon {
	id := uuid.NewString()
	return &Daemon{
		cfg:    cfg,
		id:     id,
		logger: log.WithField("instance", id),
		stopCh: make(chan struct{}),
	}
}

// ID returns the instance id carried by every log line of this daemon.
func (d *Daemon) ID() string {
	return d.id
}

// Stop asks Run to shut down.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// Run starts the daemon and blocks until stopped
func (d *Daemon) Run() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	// Acquire exclusive lock
	d.lock = flock.New(LockPath())
	locked, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another daemon instance is already running")
	}
	defer d.lock.Unlock()

	if err := d.setupLogging(); err != nil {
		return err
	}
	defer d.closeLog()

	if err := d.writePidFile(); err != nil {
		return err
	}
	defer d.removePidFile()

	d.logger.WithField("pid", os.Getpid()).Info("Daemon started")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fs, pool, err := OpenFS(ctx, d.cfg)
	if err != nil {
		return err
	}
	d.pool = pool
	defer d.closePool()

	errCh, err := d.startServer(fs)
	if err != nil {
		return err
	}
	defer d.stopServer()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				d.server.Invalidate()
				continue
			}
			d.logger.Infof("Received signal %v, shutting down...", sig)
		case <-d.stopCh:
			d.logger.Info("Stop requested, shutting down...")
		case err := <-errCh:
			d.logger.WithError(err).Error("NFS server stopped")
			return err
		}
		return nil
	}
}

// OpenFS loads the schema and builds the filesystem for cfg. The returned
// pool must be closed by the caller.
func OpenFS(ctx context.Context, cfg *Config) (*vfs.FS, *snmp.Pool, error) {
	root, err := cfg.ExportRoot()
	if err != nil {
		return nil, nil, fmt.Errorf("export root: %w", err)
	}

	t0 := time.Now()
	tree, err := schema.Load(ctx, cfg.SchemaOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load schema: %w", err)
	}
	log.WithFields(log.Fields{
		"nodes":    tree.Len(),
		"duration": time.Since(t0),
	}).Info("Schema loaded")

	agentCfg := cfg.AgentConfig()
	pool := snmp.NewPool(func() (snmp.Session, error) {
		agent, err := snmp.Dial(ctx, agentCfg)
		if err != nil {
			return nil, err
		}
		return agent, nil
	}, cfg.Sessions)

	fs, err := vfs.New(vfs.Options{
		Root:     root,
		Schema:   tree,
		Sessions: pool,
		Gate:     snmp.NewGate(cfg.MaxInFlight),
	})
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return fs, pool, nil
}

// startServer serves fs on the configured address and mounts it when a
// mount point is set. Serve errors are delivered on the returned channel.
func (d *Daemon) startServer(fs *vfs.FS) (<-chan error, error) {
	srv, err := createServer(fs, d.cfg.ServerOptions())
	if err != nil {
		return nil, err
	}
	addr, err := srv.Listen(d.cfg.Export.Listen)
	if err != nil {
		return nil, err
	}
	d.server = srv

	errCh := make(chan error, 1)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := srv.Serve(); err != nil {
			errCh <- err
		}
	}()
	d.logger.WithField("addr", addr.String()).Info("NFS server listening")

	if mp := d.cfg.Export.MountPoint; mp != "" {
		// We hold the instance lock, so a mount already there is stale.
		if !d.SkipCleanup && IsMounted(mp) {
			d.logger.WithField("mount_point", mp).Warn("Removing stale mount")
			if err := Unmount(mp); err != nil {
				d.stopServer()
				return nil, err
			}
		}
		tcp := addr.(*net.TCPAddr)
		if err := mountNetFS(tcp.IP.String(), tcp.Port, mp); err != nil {
			d.stopServer()
			return nil, err
		}
		d.mounted = true
		d.logger.WithField("mount_point", mp).Info("Export mounted")
	}
	return errCh, nil
}

func (d *Daemon) stopServer() {
	if d.server == nil {
		return
	}
	// Unmount first while the server can still answer the kernel.
	if d.mounted {
		if err := Unmount(d.cfg.Export.MountPoint); err != nil {
			d.logger.WithError(err).Warn("graceful unmount failed")
		}
		d.mounted = false
	}
	d.server.Shutdown()
	d.server = nil

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		d.logger.Warn("Timeout waiting for NFS server goroutine")
	}
}

func (d *Daemon) closePool() {
	if d.pool == nil {
		return
	}
	if err := d.pool.Close(); err != nil {
		d.logger.WithError(err).Warn("closing agent sessions")
	}
	d.pool = nil
}

// setupLogging points logrus at the configured destination and level.
func (d *Daemon) setupLogging() error {
	level, err := ParseLogLevel(d.cfg.LogLevel)
	if err != nil {
		return err
	}
	if level == log.PanicLevel {
		log.SetOutput(io.Discard)
		return nil
	}
	log.SetLevel(level)

	if d.LogOutput != nil {
		log.SetOutput(d.LogOutput)
		return nil
	}

	if err := truncateLogFile(d.cfg.LogFile, maxLogSize); err != nil {
		// Non-fatal, just log to stderr
		fmt.Fprintf(os.Stderr, "Warning: failed to truncate log file: %v\n", err)
	}
	logFile, err := os.OpenFile(d.cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	d.logFile = logFile
	log.SetOutput(logFile)
	return nil
}

func (d *Daemon) closeLog() {
	d.logger.Info("Daemon stopped")
	if d.logFile != nil {
		log.SetOutput(io.Discard)
		d.logFile.Close()
		d.logFile = nil
	}
}

func (d *Daemon) writePidFile() error {
	data := []byte(strconv.Itoa(os.Getpid()))
	return os.WriteFile(PidPath(), data, 0600)
}

func (d *Daemon) removePidFile() {
	os.Remove(PidPath())
}

// GetPID reads the daemon PID from file
func GetPID() (int, error) {
	data, err := os.ReadFile(PidPath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(data))
}

// IsDaemonRunning reports whether a daemon holds the instance lock.
func IsDaemonRunning() bool {
	lock := flock.New(LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return false
	}
	if locked {
		lock.Unlock()
		return false
	}
	return true
}

// truncateLogFile truncates the log file if it exceeds maxSize bytes.
// It keeps the last half of the file content to preserve recent logs.
func truncateLogFile(logPath string, maxSize int64) error {
	info, err := os.Stat(logPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() <= maxSize {
		return nil
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		return err
	}

	startIdx := len(data) - len(data)/2
	// Do not cut a line in the middle.
	for i := startIdx; i < len(data); i++ {
		if data[i] == '\n' {
			startIdx = i + 1
			break
		}
	}

	kept := data[startIdx:]
	header := []byte(fmt.Sprintf("--- Log truncated at %s (kept last %d bytes) ---\n",
		time.Now().Format(time.RFC3339), len(kept)))
	return os.WriteFile(logPath, append(header, kept...), 0600)
}
