package command

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citra-space/citrascope/internal/safety"
	"github.com/citra-space/citrascope/internal/task"
)

func startTestServer(t *testing.T) (*UDSClient, *task.Registry, func()) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "citrascope.sock")

	tasks := task.NewRegistry()
	handler := NewCommandHandler(tasks, fakeSafety{current: safety.Result{Severity: safety.Safe}, safe: true}, nil, nil)
	server := NewUDSServer(socketPath, handler)

	ctx, cancel := context.WithCancel(context.Background())
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		_ = server.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	client := NewUDSClient(socketPath, 2*time.Second)
	return client, tasks, func() {
		cancel()
		<-serverDone
	}
}

func TestUDS_TaskListRoundTrip(t *testing.T) {
	client, tasks, cleanup := startTestServer(t)
	defer cleanup()

	tk := task.New("uds-task-1", "sat-1", "gs-1", time.Now(), time.Now().Add(time.Minute), "clear", 1.0)
	require.NoError(t, tasks.Add(tk))

	resp, err := client.TaskList(context.Background())
	require.NoError(t, err)
	require.Nil(t, resp.Error)
}

func TestUDS_PingSucceedsAgainstRunningDaemon(t *testing.T) {
	client, _, cleanup := startTestServer(t)
	defer cleanup()

	assert.NoError(t, client.Ping(context.Background()))
}

func TestUDS_UnknownMethodReturnsError(t *testing.T) {
	client, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := client.Call(context.Background(), "bogus_method", nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
}
