// Package daemon wires the stub components behind the UDS server: one
// process owns the socket, the audit log, and the ops state file.
package daemon

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"waved/internal/analyzer"
	"waved/internal/codec"
	"waved/internal/events"
	"waved/internal/lock"
	"waved/internal/model"
	"waved/internal/runner"
	"waved/internal/state"
	"waved/internal/uds"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func parseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Daemon is the main waved daemon process.
type Daemon struct {
	wavedDir string
	logLevel atomic.Int32
	logger   *log.Logger
	logFile  io.Closer

	fileLock *lock.FileLock
	server   *uds.Server
	watcher  *fsnotify.Watcher
	ticker   *time.Ticker

	bus      *events.Bus
	audit    *events.AuditLogger
	store    *state.Store
	digester *codec.Digester

	// config, runner, and analyzer are swapped together on hot reload.
	mu       sync.RWMutex
	config   model.Config
	runner   *runner.Runner
	analyzer *analyzer.Analyzer

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutdown sync.Once

	forceExit atomic.Bool
}

// New creates a new Daemon instance logging to logs/daemon.log.
func New(wavedDir string, cfg model.Config) (*Daemon, error) {
	logPath := filepath.Join(wavedDir, "logs", "daemon.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open daemon log: %w", err)
	}

	return newDaemon(wavedDir, cfg, logFile, logFile)
}

// newDaemon is the internal constructor for testing.
func newDaemon(wavedDir string, cfg model.Config, w io.Writer, closer io.Closer) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	heartbeat := cfg.Daemon.HeartbeatSec
	if heartbeat <= 0 {
		heartbeat = 30
	}

	lockMap := lock.NewMutexMap()
	store := state.NewStore(wavedDir, lockMap)
	store.SetMaxHistory(cfg.Limits.MaxStateResults)

	d := &Daemon{
		wavedDir: wavedDir,
		config:   cfg,
		logger:   log.New(w, "", 0),
		logFile:  closer,
		fileLock: lock.NewFileLock(filepath.Join(wavedDir, "locks", "daemon.lock")),
		server:   uds.NewServer(filepath.Join(wavedDir, uds.DefaultSocketName)),
		ticker:   time.NewTicker(time.Duration(heartbeat) * time.Second),
		bus:      events.NewBus(cfg.Logging.AuditBufferSize),
		store:    store,
		digester: codec.NewDigester(0),
		runner:   runner.New(cfg.Runner.Rank, cfg.Runner.Wave),
		analyzer: analyzer.FromConfig(cfg.Analyzer),
		ctx:      ctx,
		cancel:   cancel,
	}
	d.logLevel.Store(int32(parseLogLevel(cfg.Logging.Level)))
	d.server.SetParamLimit(cfg.Limits.MaxParamBytes)
	d.server.SetRequestLog(func(command string, dur time.Duration) {
		d.log(LogLevelDebug, "request cmd=%s dur=%s", command, dur)
	})

	return d, nil
}

// Run starts the daemon and blocks until shutdown completes.
func (d *Daemon) Run() error {
	if err := d.start(); err != nil {
		return err
	}

	// Wait for signals
	d.waitSignals()

	return nil
}

// start brings up the lock, audit log, state file, watcher, and UDS server.
func (d *Daemon) start() error {
	// Step 1: Acquire file lock
	if err := os.MkdirAll(filepath.Join(d.wavedDir, "locks"), 0755); err != nil {
		return fmt.Errorf("create locks dir: %w", err)
	}
	if err := d.fileLock.TryLock(); err != nil {
		return fmt.Errorf("daemon lock: %w", err)
	}
	d.log(LogLevelInfo, "daemon starting pid=%d version=%s", os.Getpid(), model.Version)

	// Step 2: Open audit log and feed it from the bus
	audit, err := events.NewAuditLogger(
		filepath.Join(d.wavedDir, "logs", "audit.jsonl"),
		d.config.Logging.AuditMaxBytes,
	)
	if err != nil {
		d.fileLock.Unlock()
		return fmt.Errorf("open audit log: %w", err)
	}
	d.audit = audit
	d.audit.EnableChecksum(d.config.Logging.AuditChecksums)
	d.bus.SubscribeAll(func(e events.Event) {
		if err := d.audit.Log(string(e.Type), e.Data); err != nil {
			d.log(LogLevelError, "audit write error=%v", err)
		}
	})

	// Step 3: Ensure state file exists
	if err := d.store.Init(); err != nil {
		d.cleanup()
		return fmt.Errorf("init ops state: %w", err)
	}

	// Step 4: Watch config.yaml for hot reload
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.cleanup()
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	d.watcher = watcher
	if err := watcher.Add(d.wavedDir); err != nil {
		d.cleanup()
		return fmt.Errorf("watch %s: %w", d.wavedDir, err)
	}

	// Step 5: Register UDS handlers and start the server
	d.registerHandlers()
	if err := d.server.Start(); err != nil {
		d.cleanup()
		return fmt.Errorf("start UDS server: %w", err)
	}
	d.log(LogLevelInfo, "UDS server listening on %s", filepath.Join(d.wavedDir, uds.DefaultSocketName))

	// Step 6: Background loops
	d.wg.Add(2)
	go d.fsnotifyLoop()
	go d.heartbeatLoop()

	// Step 7: Initial heartbeat
	if err := d.store.Heartbeat(); err != nil {
		d.log(LogLevelWarn, "initial heartbeat error=%v", err)
	}
	d.log(LogLevelInfo, "daemon ready wave=%d", d.currentRunner().Wave())

	return nil
}

// fsnotifyLoop reacts to config.yaml changes with a hot reload.
func (d *Daemon) fsnotifyLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != "config.yaml" {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				d.log(LogLevelDebug, "fsnotify event=%s file=%s", event.Op, event.Name)
				d.reloadConfig()
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.log(LogLevelError, "fsnotify error=%v", err)
		}
	}
}

// heartbeatLoop stamps daemon liveness into the ops state file.
func (d *Daemon) heartbeatLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-d.ticker.C:
			if err := d.store.Heartbeat(); err != nil {
				d.log(LogLevelWarn, "heartbeat error=%v", err)
			}
		}
	}
}

// reloadConfig re-reads config.yaml and swaps the runner and analyzer.
// A config that fails to load or validate keeps the previous one.
func (d *Daemon) reloadConfig() {
	cfg, err := model.LoadConfig(d.wavedDir)
	if err != nil {
		d.log(LogLevelWarn, "config reload failed: %v", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		d.log(LogLevelWarn, "config reload rejected: %v", err)
		return
	}

	d.mu.Lock()
	d.config = cfg
	d.runner = runner.New(cfg.Runner.Rank, cfg.Runner.Wave)
	d.analyzer = analyzer.FromConfig(cfg.Analyzer)
	d.mu.Unlock()
	d.logLevel.Store(int32(parseLogLevel(cfg.Logging.Level)))
	d.server.SetParamLimit(cfg.Limits.MaxParamBytes)

	d.log(LogLevelInfo, "config reloaded wave=%d analyzer_mode=%s", cfg.Runner.Wave, cfg.Analyzer.Mode)
}

func (d *Daemon) currentRunner() *runner.Runner {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.runner
}

func (d *Daemon) currentAnalyzer() *analyzer.Analyzer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.analyzer
}

// waitSignals blocks until a shutdown signal is received.
func (d *Daemon) waitSignals() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	d.log(LogLevelInfo, "received signal=%s, initiating graceful shutdown", sig)

	// Second signal forces exit
	go func() {
		<-sigCh
		d.log(LogLevelWarn, "received second signal, forcing exit")
		d.forceExit.Store(true)
		os.Exit(1)
	}()

	d.Shutdown()
}

// Shutdown performs graceful shutdown (idempotent via sync.Once).
func (d *Daemon) Shutdown() {
	d.shutdown.Do(func() {
		d.log(LogLevelInfo, "shutdown started")

		// 1. Cancel context (stops accepting new work)
		d.cancel()

		// 2. Stop producers
		d.ticker.Stop()
		if d.watcher != nil {
			d.watcher.Close()
		}
		if d.server != nil {
			d.server.Stop()
		}

		// 3. Drain in-flight with timeout
		d.mu.RLock()
		timeout := d.config.Daemon.ShutdownTimeoutSec
		d.mu.RUnlock()
		if timeout <= 0 {
			timeout = 30
		}

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			d.log(LogLevelInfo, "all goroutines drained")
		case <-time.After(time.Duration(timeout) * time.Second):
			d.log(LogLevelWarn, "shutdown timeout after %ds, some operations may be incomplete", timeout)
		}

		// 4. Cleanup
		d.bus.Close()
		d.cleanup()
		d.log(LogLevelInfo, "daemon stopped")
	})
}

// cleanup releases resources.
func (d *Daemon) cleanup() {
	os.Remove(filepath.Join(d.wavedDir, uds.DefaultSocketName))
	d.fileLock.Unlock()
	if d.audit != nil {
		d.audit.Close()
	}
	if d.logFile != nil {
		d.logFile.Close()
	}
}

func (d *Daemon) log(level LogLevel, format string, args ...any) {
	if level < LogLevel(d.logLevel.Load()) {
		return
	}
	levelStr := "INFO"
	switch level {
	case LogLevelDebug:
		levelStr = "DEBUG"
	case LogLevelWarn:
		levelStr = "WARN"
	case LogLevelError:
		levelStr = "ERROR"
	}
	msg := fmt.Sprintf(format, args...)
	d.logger.Printf("%s %s daemon: %s", time.Now().Format(time.RFC3339), levelStr, msg)
}
