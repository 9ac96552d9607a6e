package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"crawlwatch/internal/api"
	"crawlwatch/internal/config"
	"crawlwatch/internal/datadir"
	"crawlwatch/internal/history"
	internalssh "crawlwatch/internal/ssh"
	"crawlwatch/internal/tui"
	"crawlwatch/internal/version"
)

var (
	cfgFile    string
	backendURL string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "crawlwatch",
	Short: "Crawlwatch - live dashboard for the crawler service",
	Long: `Crawlwatch monitors and controls a crawler service. It shows crawled
records, crawler status, accounts and keyword analytics in a terminal
dashboard that stays current through the crawler's push channel and a
periodic refresh.

Run without a command to open the dashboard.`,
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Crawlwatch %s\n", version.Full())
		buildInfo := version.GetBuildInfo()

		if buildInfo.GitCommit != "unknown" {
			fmt.Fprintf(out, "Git commit: %s\n", buildInfo.GitCommit)
		}
		if buildInfo.GitTag != "" {
			fmt.Fprintf(out, "Git tag: %s\n", buildInfo.GitTag)
		}
		if buildInfo.GitDirty {
			fmt.Fprintf(out, "Git status: dirty (uncommitted changes)\n")
		}
		if buildInfo.BuildDate != "unknown" {
			fmt.Fprintf(out, "Build date: %s\n", buildInfo.BuildDate)
		}
		fmt.Fprintf(out, "Go version: %s\n", buildInfo.GoVersion)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "crawler base URL (overrides backend_url from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(sshCmd)
	rootCmd.AddCommand(sshKeysCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(devServerCmd)

	// If no command is specified, open the dashboard
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return tuiCmd.RunE(cmd, args)
	}
}

func initConfig() {
	// Load .env files early so ${ENV_VAR} expansion in the config sees them
	dd, err := datadir.New("")
	if err == nil {
		_ = datadir.LoadEnv(dd.Root())
	}

	if verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		log.Println("Verbose logging enabled")
	}
}

// runtimeEnv is the loaded configuration plus the resolved data directory
type runtimeEnv struct {
	cfg *config.Config
	dd  *datadir.DataDir
}

// loadRuntime loads the config file, applies flag overrides and makes sure
// the data directory exists
func loadRuntime() (*runtimeEnv, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if backendURL != "" {
		cfg.BackendURL = backendURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if cfg.Debug.VerboseLogging && !verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	dd, err := datadir.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	if err := dd.EnsureDirs(); err != nil {
		return nil, err
	}
	return &runtimeEnv{cfg: cfg, dd: dd}, nil
}

func (e *runtimeEnv) client() (*api.Client, error) {
	return api.NewClient(e.cfg.BackendURL, api.WithTimeout(e.cfg.Refresh.RequestTimeout()))
}

func (e *runtimeEnv) historyPath() string {
	return e.dd.Resolve(e.cfg.Database.Path)
}

func (e *runtimeEnv) openHistory() (*history.Store, error) {
	return history.Open(e.historyPath())
}

func (e *runtimeEnv) exportDir() string {
	if e.cfg.Export.Dir == "" {
		return e.dd.Dir(datadir.AreaExports)
	}
	return e.dd.Resolve(e.cfg.Export.Dir)
}

func (e *runtimeEnv) exportOptions() api.ExportOptions {
	return api.ExportOptions{
		IncludeKeywords:    e.cfg.Export.IncludeKeywords,
		IncludeAccumulated: e.cfg.Export.IncludeAccumulated,
	}
}

// sshPaths returns configured key paths, defaulting to the data directory
func (e *runtimeEnv) sshPaths() (hostKey, authorizedKeys string) {
	hostKey, authorizedKeys = internalssh.DefaultPaths(e.dd)
	if e.cfg.SSH.HostKeyPath != "" {
		hostKey = e.dd.Resolve(e.cfg.SSH.HostKeyPath)
	}
	if e.cfg.SSH.AuthorizedKeysPath != "" {
		authorizedKeys = e.dd.Resolve(e.cfg.SSH.AuthorizedKeysPath)
	}
	return hostKey, authorizedKeys
}

// dashboardConfig builds the dashboard settings shared by the local and SSH
// front ends
func (e *runtimeEnv) dashboardConfig(hist tui.HistorySource) tui.RunConfig {
	return tui.RunConfig{
		BackendURL:      e.cfg.BackendURL,
		RefreshSchedule: e.cfg.Refresh.Schedule,
		ReconnectDelay:  e.cfg.Refresh.ReconnectDelay(),
		RequestTimeout:  e.cfg.Refresh.RequestTimeout(),
		Location:        e.cfg.GetLocation(),
		History:         hist,
		ExportDir:       e.exportDir(),
		ExportOptions:   e.exportOptions(),
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("Received signal: %v", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
