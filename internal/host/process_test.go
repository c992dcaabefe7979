package host

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/quill/internal/toolchain"
)

func TestParseListening(t *testing.T) {
	port, ok := ParseListening("Listening on port 5123")
	assert.True(t, ok)
	assert.Equal(t, 5123, port)

	port, ok = ParseListening("info: Listening on port 80 (tcp)")
	assert.True(t, ok)
	assert.Equal(t, 80, port)

	for _, line := range []string{"", "Listening on port", "Listening on port 0", "Listening on port 70000"} {
		_, ok := ParseListening(line)
		assert.False(t, ok, line)
	}
}

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func TestStartProcessReady(t *testing.T) {
	sh := requireShell(t)
	p, err := StartProcess(context.Background(), ProcessConfig{
		Command:  sh,
		Args:     []string{"-c", "echo starting; echo 'Listening on port 4242'; exec sleep 30"},
		Resolver: toolchain.Static(""),
	}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 4242, p.Port())
	require.NoError(t, p.Stop())
	<-p.Exited()
}

func TestStartProcessExitsEarly(t *testing.T) {
	sh := requireShell(t)
	_, err := StartProcess(context.Background(), ProcessConfig{
		Command:  sh,
		Args:     []string{"-c", "echo boom; exit 3"},
		Resolver: toolchain.Static(""),
	}, testLogger())
	assert.ErrorIs(t, err, ErrHostExited)
}

func TestStartProcessCanceled(t *testing.T) {
	sh := requireShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := StartProcess(ctx, ProcessConfig{
		Command:  sh,
		Args:     []string{"-c", "exec sleep 30"},
		Resolver: toolchain.Static(""),
	}, testLogger())
	assert.ErrorIs(t, err, context.Canceled)
}
