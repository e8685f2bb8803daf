package daemon

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsMount(t *testing.T) {
	t.Parallel()

	const linux = "sysfs on /sys type sysfs (rw,nosuid)\n" +
		"127.0.0.1:/ on /mnt/router type nfs (rw,vers=3,port=12049)\n"
	const darwin = "/dev/disk1s1 on / (apfs, local, journaled)\n" +
		"127.0.0.1:/ on /private/tmp/agent (nfs, nodev, nosuid, mounted by me)\n"

	tests := []struct {
		name   string
		output string
		mp     string
		want   bool
	}{
		{"linux match", linux, "/mnt/router", true},
		{"linux prefix only", linux, "/mnt/rout", false},
		{"linux nested", linux, "/mnt/router/system", false},
		{"darwin match", darwin, "/private/tmp/agent", true},
		{"darwin root", darwin, "/", true},
		{"absent", darwin, "/mnt/other", false},
		{"trailing line", "a on /mnt/x", "/mnt/x", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, containsMount(tt.output, tt.mp))
		})
	}
}

func TestCleanupStalePidFile(t *testing.T) {
	t.Setenv("SNMPFS_CONFIG_DIR", t.TempDir())
	require.NoError(t, EnsureConfigDir())

	assert.False(t, cleanupStalePidFile(), "no pid file")

	// A PID that cannot belong to a live process.
	require.NoError(t, os.WriteFile(PidPath(), []byte("999999999"), 0600))
	assert.True(t, cleanupStalePidFile())
	_, err := os.Stat(PidPath())
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, os.WriteFile(PidPath(), []byte("garbage"), 0600))
	assert.True(t, cleanupStalePidFile())

	res := Cleanup("")
	assert.Equal(t, "No cleanup needed", FormatCleanupResult(res))
}

func TestFormatCleanupResult(t *testing.T) {
	t.Parallel()

	result := &CleanupResult{
		StaleMounts:    []string{"/mnt/a"},
		CleanedPidFile: true,
		Errors:         []error{errors.New("umount: busy")},
	}
	assert.Equal(t, "Unmounted 1 stale mount(s):\n  - /mnt/a\n"+
		"Cleaned up stale PID file\n"+
		"Encountered 1 error(s):\n  - umount: busy", FormatCleanupResult(result))
}
