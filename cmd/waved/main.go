package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"waved/internal/daemon"
	"waved/internal/events"
	"waved/internal/model"
	"waved/internal/setup"
	"waved/internal/status"
	"waved/internal/uds"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "setup":
		runSetup(os.Args[2:])
	case "daemon":
		runDaemon(os.Args[2:])
	case "deploy":
		runDeploy(os.Args[2:])
	case "validate":
		runSimple(uds.CmdValidate, nil)
	case "analyze":
		runAnalyze(uds.CmdAnalyze, os.Args[2:])
	case "exec-analysis":
		runAnalyze(uds.CmdExecAnalysis, os.Args[2:])
	case "process":
		runDataCommand(uds.CmdProcess, "data", os.Args[2:])
	case "synthesize":
		runDataCommand(uds.CmdSynthesize, "data", os.Args[2:])
	case "transform":
		runDataCommand(uds.CmdTransform, "input", os.Args[2:])
	case "serialize":
		runDataCommand(uds.CmdSerialize, "obj", os.Args[2:])
	case "hash":
		runHash(os.Args[2:])
	case "codec-transform":
		runDataCommand(uds.CmdCodecTransform, "data", os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "audit-verify":
		runAuditVerify(os.Args[2:])
	case "ping":
		runSimple(uds.CmdPing, nil)
	case "reload":
		runSimple(uds.CmdReload, nil)
	case "shutdown":
		runSimple(uds.CmdShutdown, nil)
	case "version":
		fmt.Printf("waved %s\n", model.Version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runSetup(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: waved setup <project_dir> [--name <project_name>]")
		os.Exit(1)
	}

	projectDir := args[0]
	var projectName string
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "--name":
			if i+1 >= len(rest) {
				fmt.Fprintln(os.Stderr, "--name requires a value")
				os.Exit(1)
			}
			i++
			projectName = rest[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: waved setup <project_dir> [--name <project_name>]\n", rest[i])
			os.Exit(1)
		}
	}

	if err := setup.Run(projectDir, projectName); err != nil {
		fmt.Fprintf(os.Stderr, "setup: %v\n", err)
		os.Exit(1)
	}
	absDir, _ := filepath.Abs(projectDir)
	fmt.Printf("Initialized .waved/ in %s\n", absDir)
}

func runDaemon(_ []string) {
	wavedDir := findWavedDir()
	if wavedDir == "" {
		fmt.Fprintln(os.Stderr, "error: .waved/ directory not found. Run 'waved setup <dir>' first.")
		os.Exit(1)
	}

	cfg, err := loadConfig(wavedDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	d, err := daemon.New(wavedDir, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create daemon: %v\n", err)
		os.Exit(1)
	}

	if err := d.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "daemon: %v\n", err)
		os.Exit(1)
	}
}

func runDeploy(args []string) {
	var params map[string]any
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--task":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--task requires a value")
				os.Exit(1)
			}
			i++
			params = map[string]any{"task": parseValue(args[i])}
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: waved deploy [--task <json|string>]\n", args[i])
			os.Exit(1)
		}
	}
	runSimple(uds.CmdDeploy, params)
}

func runAnalyze(command string, args []string) {
	var params map[string]any
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--context":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--context requires a value")
				os.Exit(1)
			}
			i++
			params = map[string]any{"context": parseValue(args[i])}
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: waved %s [--context <json|string>]\n", args[i], os.Args[1])
			os.Exit(1)
		}
	}
	runSimple(command, params)
}

// runDataCommand handles the single-payload commands. The payload flag name
// mirrors the wire field so 'waved transform --input ...' maps directly.
func runDataCommand(command, field string, args []string) {
	flag := "--" + field
	var params map[string]any
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case flag:
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "%s requires a value\n", flag)
				os.Exit(1)
			}
			i++
			params = map[string]any{field: parseValue(args[i])}
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: waved %s [%s <json|string>]\n", args[i], os.Args[1], flag)
			os.Exit(1)
		}
	}
	runSimple(command, params)
}

func runHash(args []string) {
	data := ""
	if len(args) > 0 {
		data = args[0]
	}
	runSimple(uds.CmdHash, map[string]any{"data": data})
}

func runStatus(args []string) {
	jsonOutput := false
	for _, a := range args {
		switch a {
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: waved status [--json]\n", a)
			os.Exit(1)
		}
	}

	wavedDir := findWavedDir()
	if wavedDir == "" {
		fmt.Fprintln(os.Stderr, "error: .waved/ directory not found. Run 'waved setup <dir>' first.")
		os.Exit(1)
	}

	if err := status.Run(wavedDir, os.Stdout, jsonOutput); err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		os.Exit(1)
	}
}

func runAuditVerify(_ []string) {
	wavedDir := findWavedDir()
	if wavedDir == "" {
		fmt.Fprintln(os.Stderr, "error: .waved/ directory not found. Run 'waved setup <dir>' first.")
		os.Exit(1)
	}

	logPath := filepath.Join(wavedDir, "logs", "audit.jsonl")
	total, valid, err := events.VerifyLogIntegrity(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit-verify: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("audit entries: %d total, %d valid\n", total, valid)
	if valid != total {
		fmt.Fprintf(os.Stderr, "%d entries failed checksum verification\n", total-valid)
		os.Exit(1)
	}
}

// runSimple sends one command to the daemon and prints the response data as
// indented JSON.
func runSimple(command string, params map[string]any) {
	wavedDir := findWavedDir()
	if wavedDir == "" {
		fmt.Fprintln(os.Stderr, "error: .waved/ directory not found. Run 'waved setup <dir>' first.")
		os.Exit(1)
	}

	client := uds.NewClient(filepath.Join(wavedDir, uds.DefaultSocketName))
	resp, err := client.SendCommand(command, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
		os.Exit(1)
	}
	if !resp.Success {
		code := ""
		msg := "unknown error"
		if resp.Error != nil {
			code = resp.Error.Code
			msg = resp.Error.Message
		}
		fmt.Fprintf(os.Stderr, "%s failed [%s]: %s\n", command, code, msg)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(json.RawMessage(resp.Data), "", "  ")
	fmt.Println(string(out))
}

// parseValue decodes a flag value as JSON when possible and falls back to a
// plain string, so both '{"a":1}' and 'hello' work on the command line.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func findWavedDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".waved")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func loadConfig(wavedDir string) (model.Config, error) {
	data, err := os.ReadFile(filepath.Join(wavedDir, "config.yaml"))
	if err != nil {
		return model.Config{}, fmt.Errorf("read config.yaml: %w", err)
	}
	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.Config{}, fmt.Errorf("parse config.yaml: %w", err)
	}
	return cfg, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `waved %s — Wave deployment and analysis daemon

Usage: waved <command> [options]

Workspace:
  setup <dir> [--name <n>]  Initialize .waved/ directory
  daemon                    Run daemon process
  status [--json]           Show daemon status and op counters

Operations (CLI → Daemon):
  deploy [--task <v>]          Deploy the configured wave
  validate                     Validate deployment readiness
  analyze [--context <v>]      Run analysis
  exec-analysis [--context <v>] Alias for analyze
  process [--data <v>]         Process data through the analyzer
  synthesize [--data <v>]      Alias for process
  transform [--input <v>]      Apply the data transform
  serialize [--obj <v>]        Serialize a value to JSON
  hash [<data>]                SHA-256 digest of <data>
  codec-transform [--data <v>] Deep-copy a value through the codec

Control:
  audit-verify      Check audit log entry checksums
  ping              Check daemon liveness
  reload            Reload config.yaml
  shutdown          Stop the daemon
  version           Show version
  help              Show this help

`, model.Version)
}
