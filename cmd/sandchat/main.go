// Package main is the sandchat command: a streaming chat server whose file
// access is confined by kernel sandbox rules, plus client utilities.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Cyclone1070/sandchat/internal/agent"
	"github.com/Cyclone1070/sandchat/internal/capability"
	"github.com/Cyclone1070/sandchat/internal/config"
	"github.com/Cyclone1070/sandchat/internal/logging"
	"github.com/Cyclone1070/sandchat/internal/orchestrator"
	"github.com/Cyclone1070/sandchat/internal/provider/gemini"
	"github.com/Cyclone1070/sandchat/internal/server"
	"github.com/Cyclone1070/sandchat/internal/store"
	"github.com/Cyclone1070/sandchat/internal/tool/file"
	"github.com/Cyclone1070/sandchat/internal/ui"
	"github.com/spf13/cobra"
	"google.golang.org/genai"
)

const systemPrompt = "You are a helpful chat assistant. You have a read_file tool that " +
	"can read files from the local filesystem. Use it when the user asks " +
	"to see file contents. If a read is blocked by the sandbox, explain " +
	"that the file is outside the allowed sandbox permissions."

var (
	noSandbox bool
	host      string
	port      int
	serverURL string
	assumeYes bool
)

func main() {
	root := &cobra.Command{
		Use:   "sandchat",
		Short: "Streaming AI chat with OS-sandboxed file access",
		Long: "sandchat serves a chat frontend backed by a streaming model pipeline.\n" +
			"The model's read_file tool is confined by kernel sandbox rules applied\n" +
			"at startup; reads outside the granted directories fail with EPERM.",
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		RunE:  runServe,
	}
	serveCmd.Flags().BoolVar(&noSandbox, "no-sandbox", false, "skip applying kernel sandbox rules (development only)")
	serveCmd.Flags().StringVar(&host, "host", "", "host to bind to (overrides config)")
	serveCmd.Flags().IntVar(&port, "port", 0, "port to bind to (overrides config)")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Open a terminal chat client against a running server",
		RunE:  runChat,
	}
	chatCmd.Flags().StringVar(&serverURL, "url", "", "server URL (default from config)")

	clearCmd := &cobra.Command{
		Use:   "clear-history",
		Short: "Delete the persisted conversation history",
		RunE:  runClearHistory,
	}
	clearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation")

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show resolved configuration and sandbox grants",
		RunE:  runInfo,
	}

	root.AddCommand(serveCmd, chatCmd, clearCmd, infoCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads config and builds the logger shared by all commands.
func setup() (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, closer, err := logging.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closer, nil
}

// buildCapabilities assembles the sandbox grants: the database directory
// (WAL sidecar files included) and /tmp as read-write, plus whatever the
// config adds.
func buildCapabilities(cfg *config.Config, dbPath string, logger *slog.Logger) (*capability.Set, error) {
	caps := capability.NewSet(logger)

	grants := []struct {
		path string
		mode capability.Mode
	}{
		// SQLite creates -wal and -shm sidecars next to the database, so
		// the whole directory needs write access.
		{filepath.Dir(dbPath), capability.ModeReadWrite},
		{os.TempDir(), capability.ModeReadWrite},
		// resolv.conf, hosts, TLS trust roots.
		{"/etc", capability.ModeRead},
	}
	for _, p := range cfg.Sandbox.ReadPaths {
		grants = append(grants, struct {
			path string
			mode capability.Mode
		}{p, capability.ModeRead})
	}
	for _, p := range cfg.Sandbox.ReadWritePaths {
		grants = append(grants, struct {
			path string
			mode capability.Mode
		}{p, capability.ModeReadWrite})
	}

	for _, g := range grants {
		if err := caps.Allow(g.path, g.mode); err != nil {
			return nil, fmt.Errorf("grant %s: %w", g.path, err)
		}
	}
	return caps, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return fmt.Errorf("resolve database path: %w", err)
	}

	st, err := store.Open(dbPath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	caps, err := buildCapabilities(cfg, dbPath, logger)
	if err != nil {
		return err
	}

	// One-shot: after this the process can never widen its file access.
	if noSandbox {
		logger.Warn("sandbox disabled, file access is unrestricted")
	} else {
		if err := caps.Apply(); err != nil {
			return fmt.Errorf("apply sandbox: %w", err)
		}
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return fmt.Errorf("create Gemini client: %w", err)
	}

	prov := gemini.New(gemini.NewRealClient(genaiClient), cfg.Model.Name, systemPrompt)
	tools := agent.NewToolSet(
		file.NewReadFileTool(caps, int(cfg.Sandbox.MaxReadBytes), logger),
	)
	loop := agent.NewLoop(prov, tools, cfg.Model.MaxIterations)
	orch := orchestrator.New(st, loop, time.Duration(cfg.Server.StreamDebounceMs)*time.Millisecond, logger)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	return server.New(addr, orch, logger).Start(ctx)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, _, closer, err := setup()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	url := serverURL
	if url == "" {
		url = fmt.Sprintf("http://%s", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)))
	}
	return ui.Run(ui.NewClient(url))
}

func runClearHistory(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	if !assumeYes {
		fmt.Fprint(cmd.OutOrStdout(), "Delete all conversation history? [y/N] ")
		reader := bufio.NewReader(cmd.InOrStdin())
		answer, _ := reader.ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return err
	}
	st, err := store.Open(dbPath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Clear(context.Background()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return err
	}
	caps, err := buildCapabilities(cfg, dbPath, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "server:   http://%s\n", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)))
	fmt.Fprintf(out, "database: %s\n", dbPath)
	fmt.Fprintf(out, "model:    %s\n", cfg.Model.Name)
	fmt.Fprintln(out, "sandbox grants:")
	for _, e := range caps.Entries() {
		fmt.Fprintf(out, "  %-10s %s\n", e.Mode, e.Path)
	}
	return nil
}
