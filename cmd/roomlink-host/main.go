// Command roomlink-host runs a room host that keeps a long-lived
// control channel to a RoomLink relay service.
//
// The host connects out to the relay, announces itself under a display
// name, and tracks the remotes that join its room. With a pairing
// backend configured it first registers using a pairing code and
// presents the issued credential to the relay; without one it runs
// standalone against an open relay.
//
// Usage:
//
//	roomlink-host [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-host-id string    Stable host identifier (auto-generated if empty)
//	-name string       User-facing host display name
//	-relay string      Relay WebSocket URL (default "wss://relay.roomlink.dev/host")
//	-backend string    Pairing backend base URL (empty: standalone mode)
//	-code string       Pairing code for first registration
//	-data-dir string   Directory for persisted settings (default "~/.roomlink")
//	-event-log string  Lifecycle event log file (.rlog, empty: disabled)
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-interface string  Network interface for mDNS (default: all)
//	-no-mdns           Disable LAN advertisement
//	-connect           Connect immediately on startup
//
// Examples:
//
//	# Standalone host against a local relay
//	roomlink-host -relay ws://localhost:9470/host -name "Lab Bench" -connect
//
//	# Backend-paired host, first run with a pairing code
//	roomlink-host -backend https://pairing.example.com -code QQQQ-2345 -connect
//
//	# Subsequent runs reuse the stored long-lived code
//	roomlink-host -backend https://pairing.example.com -connect
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roomlink-project/roomlink-go/cmd/roomlink-host/interactive"
	"github.com/roomlink-project/roomlink-go/pkg/backend"
	"github.com/roomlink-project/roomlink-go/pkg/connection"
	"github.com/roomlink-project/roomlink-go/pkg/discovery"
	"github.com/roomlink-project/roomlink-go/pkg/eventlog"
	"github.com/roomlink-project/roomlink-go/pkg/host"
	"github.com/roomlink-project/roomlink-go/pkg/transport"
	"github.com/roomlink-project/roomlink-go/pkg/version"
)

// Config holds the host configuration.
type Config struct {
	ConfigFile string

	HostID      string `yaml:"hostId"`
	DisplayName string `yaml:"displayName"`

	RelayEndpoint string `yaml:"relay"`
	BackendURL    string `yaml:"backend"`
	PairingCode   string `yaml:"pairingCode"`

	DataDir  string `yaml:"dataDir"`
	EventLog string `yaml:"eventLog"`
	LogLevel string `yaml:"logLevel"`

	Interface string `yaml:"interface"`
	NoMDNS    bool   `yaml:"noMdns"`

	Connect bool
}

var config Config

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&config.HostID, "host-id", "", "Stable host identifier (auto-generated if empty)")
	flag.StringVar(&config.DisplayName, "name", "", "User-facing host display name")
	flag.StringVar(&config.RelayEndpoint, "relay", "wss://relay.roomlink.dev/host", "Relay WebSocket URL")
	flag.StringVar(&config.BackendURL, "backend", "", "Pairing backend base URL (empty: standalone mode)")
	flag.StringVar(&config.PairingCode, "code", "", "Pairing code for first registration")
	flag.StringVar(&config.DataDir, "data-dir", "", "Directory for persisted settings (default: ~/.roomlink)")
	flag.StringVar(&config.EventLog, "event-log", "", "Lifecycle event log file (.rlog, empty: disabled)")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.Interface, "interface", "", "Network interface for mDNS (default: all)")
	flag.BoolVar(&config.NoMDNS, "no-mdns", false, "Disable LAN advertisement")
	flag.BoolVar(&config.Connect, "connect", false, "Connect immediately on startup")
}

func main() {
	flag.Parse()

	if config.ConfigFile != "" {
		if err := loadConfigFile(config.ConfigFile); err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
	}
	applyDefaults()
	if err := validateConfig(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := setupLogging(config.LogLevel)

	log.SetFlags(log.Ltime)
	log.Println("RoomLink Host")
	log.Printf("Protocol:  %s", version.Current)
	log.Printf("Host ID:   %s", config.HostID)
	log.Printf("Relay:     %s", config.RelayEndpoint)
	if config.BackendURL != "" {
		log.Printf("Backend:   %s", config.BackendURL)
	} else {
		log.Println("Backend:   none (standalone mode)")
	}

	svc, eventLog, err := buildService(logger)
	if err != nil {
		log.Fatalf("Failed to create host service: %v", err)
	}
	if eventLog != nil {
		defer func() { _ = eventLog.Close() }()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		log.Fatalf("Failed to start host service: %v", err)
	}
	log.Printf("Service started (state: %s)", svc.State())

	console, err := interactive.New(svc)
	if err != nil {
		log.Fatalf("Failed to create console: %v", err)
	}

	// Route log output through the console writer so printed lines do
	// not clobber the prompt.
	log.SetOutput(console.Stdout())

	if config.Connect {
		go connectOnStartup(ctx, svc)
	}

	go console.Run(ctx, cancel)

	// Wait for a shutdown signal or console exit
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	if err := svc.Stop(); err != nil {
		log.Printf("Error stopping service: %v", err)
	}
	log.Println("Goodbye!")
}

// connectOnStartup performs the initial connect requested by -connect.
// Transient failures keep retrying in the background; a rejected
// pairing code is reported and left for the operator to fix.
func connectOnStartup(ctx context.Context, svc *host.Service) {
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	req := connection.ConnectRequest{
		PairingCode: config.PairingCode,
		AllowRetry:  true,
	}
	if err := svc.Connect(connectCtx, req); err != nil {
		log.Printf("Connect failed: %v", err)
	}
}

// loadConfigFile fills unset fields from a YAML file. Flags given on
// the command line win over file values.
func loadConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fileConfig Config
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	if !setFlags["host-id"] && fileConfig.HostID != "" {
		config.HostID = fileConfig.HostID
	}
	if !setFlags["name"] && fileConfig.DisplayName != "" {
		config.DisplayName = fileConfig.DisplayName
	}
	if !setFlags["relay"] && fileConfig.RelayEndpoint != "" {
		config.RelayEndpoint = fileConfig.RelayEndpoint
	}
	if !setFlags["backend"] && fileConfig.BackendURL != "" {
		config.BackendURL = fileConfig.BackendURL
	}
	if !setFlags["code"] && fileConfig.PairingCode != "" {
		config.PairingCode = fileConfig.PairingCode
	}
	if !setFlags["data-dir"] && fileConfig.DataDir != "" {
		config.DataDir = fileConfig.DataDir
	}
	if !setFlags["event-log"] && fileConfig.EventLog != "" {
		config.EventLog = fileConfig.EventLog
	}
	if !setFlags["log-level"] && fileConfig.LogLevel != "" {
		config.LogLevel = fileConfig.LogLevel
	}
	if !setFlags["interface"] && fileConfig.Interface != "" {
		config.Interface = fileConfig.Interface
	}
	if !setFlags["no-mdns"] && fileConfig.NoMDNS {
		config.NoMDNS = true
	}

	return nil
}

func applyDefaults() {
	if config.HostID == "" {
		config.HostID = fmt.Sprintf("host-%d", time.Now().Unix()%100000)
	}
	if config.DisplayName == "" {
		config.DisplayName = "RoomLink Host"
	}
	if config.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			config.DataDir = filepath.Join(home, ".roomlink")
		}
	}
}

func validateConfig() error {
	if config.RelayEndpoint == "" {
		return fmt.Errorf("relay endpoint is required")
	}
	switch config.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s", config.LogLevel)
	}
	if config.PairingCode != "" && config.BackendURL == "" {
		return fmt.Errorf("a pairing code requires a backend URL")
	}
	return nil
}

func setupLogging(level string) *slog.Logger {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel,
	}))
}

// buildService assembles the host service from the configuration.
func buildService(logger *slog.Logger) (*host.Service, *eventlog.FileLogger, error) {
	relay, err := transport.NewRelayClient(transport.RelayConfig{
		Endpoint: config.RelayEndpoint,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, err
	}

	svcConfig := host.DefaultConfig()
	svcConfig.HostID = config.HostID
	svcConfig.DisplayName = config.DisplayName
	svcConfig.Transport = relay
	svcConfig.Logger = logger

	if config.BackendURL != "" {
		client, err := backend.NewClient(backend.Config{
			BaseURL:     config.BackendURL,
			HostID:      config.HostID,
			DisplayName: config.DisplayName,
			Logger:      logger,
		})
		if err != nil {
			return nil, nil, err
		}
		svcConfig.Backend = client
	}

	if config.DataDir != "" {
		svcConfig.SettingsStore = host.NewSettingsStore(filepath.Join(config.DataDir, "settings.json"))
	}

	if !config.NoMDNS {
		advConfig := discovery.DefaultAdvertiserConfig()
		advConfig.Interface = config.Interface
		advertiser, err := discovery.NewMDNSAdvertiser(advConfig)
		if err != nil {
			return nil, nil, err
		}
		svcConfig.Advertiser = advertiser
	}

	var fileLog *eventlog.FileLogger
	if config.EventLog != "" {
		fileLog, err = eventlog.NewFileLogger(config.EventLog)
		if err != nil {
			return nil, nil, err
		}
		svcConfig.EventLogger = fileLog
	}

	svc, err := host.NewService(svcConfig)
	if err != nil {
		if fileLog != nil {
			_ = fileLog.Close()
		}
		return nil, nil, err
	}
	return svc, fileLog, nil
}
