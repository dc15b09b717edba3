package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// EnsureRunning starts the daemon as a detached background process if
// socketPath isn't already live, re-executing this same binary with
// "daemon" and the given config/socket/pidfile flags.
func EnsureRunning(configPath, socketPath, pidFile string) error {
	if isSocketAlive(socketPath) {
		return nil
	}
	return spawnBackground(configPath, socketPath, pidFile)
}

// StopByPIDFile sends SIGTERM to the daemon process recorded in pidFile and
// waits briefly for it to exit, for use when the control socket itself is
// unreachable (e.g. the daemon is wedged).
func StopByPIDFile(pidFile, socketPath string) error {
	pid, err := readPIDFile(pidFile)
	if err != nil {
		return fmt.Errorf("daemon not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return err
	}

	time.Sleep(500 * time.Millisecond)
	os.Remove(socketPath)
	os.Remove(pidFile)
	return nil
}

func spawnBackground(configPath, socketPath, pidFile string) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find own executable: %w", err)
	}

	cmd := exec.Command(execPath, "daemon",
		"--config", configPath,
		"--socket", socketPath,
		"--pidfile", pidFile,
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	logFile, _ := os.OpenFile("/tmp/citrascoped.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon process: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if isSocketAlive(socketPath) {
			return nil
		}
	}
	return fmt.Errorf("daemon started but control socket never came up")
}

func isSocketAlive(socketPath string) bool {
	_, err := os.Stat(socketPath)
	return err == nil
}

func readPIDFile(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, fmt.Errorf("parse pid file: %w", err)
	}
	return pid, nil
}
