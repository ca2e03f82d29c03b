package status

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"waved/internal/uds"
)

func TestCollect_DaemonNotRunning(t *testing.T) {
	dir := t.TempDir()

	report := Collect(dir)
	if report.Daemon.Running {
		t.Error("daemon reported running with no socket")
	}
}

func TestCollect_StaleLockPid(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "locks"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "locks", "daemon.lock"), []byte("4242\n"), 0600); err != nil {
		t.Fatal(err)
	}

	report := Collect(dir)
	if report.Daemon.Running {
		t.Error("daemon reported running")
	}
	if report.Daemon.Pid != 4242 {
		t.Errorf("pid = %d, want 4242", report.Daemon.Pid)
	}
}

func TestCollect_RunningDaemon(t *testing.T) {
	dir, err := os.MkdirTemp("/tmp", "waved-status-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	server := uds.NewServer(filepath.Join(dir, uds.DefaultSocketName))
	server.Handle(uds.CmdStatus, func(req *uds.Request) *uds.Response {
		return uds.SuccessResponse(map[string]any{
			"pid":      1234,
			"version":  "3.69.0",
			"wave":     5,
			"counters": map[string]int{"runner": 7},
			"last_results": map[string]any{
				"runner": map[string]string{
					"op_id":  "dep_1700000000_deadbeef",
					"status": "deployed",
					"at":     time.Now().UTC().Format(time.RFC3339),
				},
			},
		})
	})
	if err := server.Start(); err != nil {
		t.Fatalf("server start: %v", err)
	}
	defer server.Stop()

	report := Collect(dir)
	if !report.Daemon.Running {
		t.Fatal("daemon reported not running")
	}
	if report.Daemon.Pid != 1234 {
		t.Errorf("pid = %d", report.Daemon.Pid)
	}
	if report.Wave != 5 {
		t.Errorf("wave = %d", report.Wave)
	}
	if report.Counters["runner"] != 7 {
		t.Errorf("runner counter = %d", report.Counters["runner"])
	}

	var buf bytes.Buffer
	if err := Run(dir, &buf, false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "running (pid 1234") {
		t.Errorf("output missing daemon line: %s", out)
	}
	if !strings.Contains(out, "runner: 7") {
		t.Errorf("output missing counter line: %s", out)
	}
}

func TestRun_JSONOutput(t *testing.T) {
	dir := t.TempDir()

	var buf bytes.Buffer
	if err := Run(dir, &buf, true); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(buf.String(), `"running": false`) {
		t.Errorf("json output = %s", buf.String())
	}
}
