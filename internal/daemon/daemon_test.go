package daemon

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freeAddr returns a loopback address nobody listens on right now.
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().String()
}

func TestDaemonRunAndStop(t *testing.T) {
	g := NewWithT(t)
	t.Setenv("SNMPFS_CONFIG_DIR", t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Export.Listen = freeAddr(t)
	cfg.LogLevel = "off"

	d := New(cfg)
	assert.NotEmpty(t, d.ID())

	done := make(chan error, 1)
	go func() { done <- d.Run() }()

	g.Eventually(IsDaemonRunning, 5*time.Second, 25*time.Millisecond).Should(BeTrue())
	g.Eventually(func() error {
		conn, err := net.DialTimeout("tcp", cfg.Export.Listen, 100*time.Millisecond)
		if err == nil {
			conn.Close()
		}
		return err
	}, 5*time.Second, 25*time.Millisecond).Should(Succeed())

	pid, err := GetPID()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(pid).To(Equal(os.Getpid()))

	// A second instance is refused while the first holds the lock.
	g.Expect(New(cfg).Run()).To(MatchError(ContainSubstring("already running")))

	d.Stop()
	g.Eventually(done, 5*time.Second).Should(Receive(BeNil()))
	g.Expect(IsDaemonRunning()).To(BeFalse())
	_, err = os.Stat(PidPath())
	g.Expect(os.IsNotExist(err)).To(BeTrue())
}

func TestDaemonListenFailure(t *testing.T) {
	t.Setenv("SNMPFS_CONFIG_DIR", t.TempDir())

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Export.Listen = busy.Addr().String()
	cfg.LogLevel = "off"

	err = New(cfg).Run()
	require.Error(t, err)
	assert.False(t, IsDaemonRunning())
}

func TestTruncateLogFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "daemon.log")
	require.NoError(t, truncateLogFile(path, 10), "missing file is fine")

	var lines []string
	for i := 0; i < 100; i++ {
		lines = append(lines, strings.Repeat("x", 9))
	}
	content := strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	require.NoError(t, truncateLogFile(path, int64(len(content))))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data), "within limit")

	require.NoError(t, truncateLogFile(path, 100))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "--- Log truncated at "))
	assert.Less(t, len(data), len(content))
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n")[1:] {
		assert.Equal(t, strings.Repeat("x", 9), line, "lines are kept whole")
	}
}
