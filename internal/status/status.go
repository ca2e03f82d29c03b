// Package status reports daemon liveness and operation counters.
package status

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"waved/internal/lock"
	"waved/internal/uds"
)

type Report struct {
	Daemon   DaemonStatus      `json:"daemon"`
	Wave     int               `json:"wave,omitempty"`
	Version  string            `json:"version,omitempty"`
	Counters map[string]int    `json:"counters,omitempty"`
	LastOps  map[string]LastOp `json:"last_ops,omitempty"`
}

type DaemonStatus struct {
	Running   bool   `json:"running"`
	Pid       int    `json:"pid,omitempty"`
	Heartbeat string `json:"heartbeat,omitempty"`
}

type LastOp struct {
	OpID   string `json:"op_id"`
	Status string `json:"status"`
	At     string `json:"at"`
}

// Collect queries the daemon over UDS. When the daemon is unreachable it
// falls back to the PID recorded in the lock file, reported as not running.
func Collect(wavedDir string) Report {
	report := Report{}

	client := uds.NewClient(filepath.Join(wavedDir, uds.DefaultSocketName))
	resp, err := client.SendCommand(uds.CmdStatus, nil)
	if err != nil || !resp.Success {
		if pid, pidErr := lock.ReadPID(filepath.Join(wavedDir, "locks", "daemon.lock")); pidErr == nil {
			report.Daemon.Pid = pid
		}
		return report
	}

	var data struct {
		Pid         int               `json:"pid"`
		Version     string            `json:"version"`
		Wave        int               `json:"wave"`
		Counters    map[string]int    `json:"counters"`
		LastResults map[string]LastOp `json:"last_results"`
		Heartbeat   *string           `json:"heartbeat"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return report
	}

	report.Daemon.Running = true
	report.Daemon.Pid = data.Pid
	if data.Heartbeat != nil {
		report.Daemon.Heartbeat = *data.Heartbeat
	}
	report.Wave = data.Wave
	report.Version = data.Version
	report.Counters = data.Counters
	report.LastOps = data.LastResults
	return report
}

// Run collects the status and writes it to w, as JSON when jsonOutput is set.
func Run(wavedDir string, w io.Writer, jsonOutput bool) error {
	report := Collect(wavedDir)

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printReport(w, report)
	return nil
}

func printReport(w io.Writer, report Report) {
	if !report.Daemon.Running {
		fmt.Fprintln(w, "daemon: not running")
		if report.Daemon.Pid != 0 {
			fmt.Fprintf(w, "  stale lock pid: %d\n", report.Daemon.Pid)
		}
		return
	}

	fmt.Fprintf(w, "daemon: running (pid %d, version %s)\n", report.Daemon.Pid, report.Version)
	if report.Daemon.Heartbeat != "" {
		fmt.Fprintf(w, "  heartbeat: %s\n", report.Daemon.Heartbeat)
	}
	fmt.Fprintf(w, "  wave: %d\n", report.Wave)

	if len(report.Counters) == 0 {
		fmt.Fprintln(w, "  ops: none")
		return
	}

	components := make([]string, 0, len(report.Counters))
	for c := range report.Counters {
		components = append(components, c)
	}
	sort.Strings(components)

	fmt.Fprintln(w, "  ops:")
	for _, c := range components {
		line := fmt.Sprintf("    %s: %d", c, report.Counters[c])
		if last, ok := report.LastOps[c]; ok {
			line += fmt.Sprintf(" (last %s %s at %s)", last.OpID, last.Status, last.At)
		}
		fmt.Fprintln(w, line)
	}
}
