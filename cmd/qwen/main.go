package main

import (
	"fmt"
	"os"
	"strconv"

	"qwencli/internal/config"
	"qwencli/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose      bool
	apiKey       string
	workspace    string
	showThinking bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "qwen",
	Short: "qwen - interactive command-line assistant backed by a local Qwen3 model",
	Long: `qwen is an interactive command-line assistant that talks to a local
OpenAI-compatible Qwen3 endpoint (vLLM, SGLang, llama.cpp).

Besides chatting, it detects when a reply calls for a tool - searching,
calculating, running a code snippet, translating - and invokes that tool
autonomously. Explicit slash commands reach the same tools directly.

Run without arguments to start the interactive chat session.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip logger init for the chat session (it has its own UI)
		if cmd.Use == "qwen" && cmd.CalledAs() == "qwen" {
			return nil
		}

		// Initialize logger
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: launch the interactive chat session
		return runChat()
	},
}

// versionCmd prints the build identity
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the qwen version",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.DefaultConfig()
		fmt.Printf("%s %s (default model %s)\n", cfg.Name, cfg.Version, cfg.LLM.Model)
	},
}

// configCmd manages the workspace configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or initialize the workspace configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  showConfig,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to .qwen/config.yaml",
	RunE:  initConfig,
}

// recallCmd searches the conversation archive without starting a session
var recallCmd = &cobra.Command{
	Use:   "recall [query]",
	Short: "Search past conversations in the archive",
	Args:  cobra.ExactArgs(1),
	RunE:  recallArchive,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for the endpoint (or set QWEN_API_KEY env)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")

	rootCmd.Flags().BoolVar(&showThinking, "thinking", false, "Show the model's reasoning traces")

	recallCmd.Flags().Int("limit", 10, "Maximum number of matching turns")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(recallCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveWorkspace returns the workspace flag or the current directory.
func resolveWorkspace() (string, error) {
	if workspace != "" {
		return workspace, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace: %w", err)
	}
	return cwd, nil
}

// showConfig loads and prints the effective configuration.
func showConfig(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	cfg, err := config.Load(config.Path(ws))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Debug("Loaded configuration", zap.String("workspace", ws))

	fmt.Printf("name:            %s\n", cfg.Name)
	fmt.Printf("version:         %s\n", cfg.Version)
	fmt.Printf("model:           %s\n", cfg.LLM.Model)
	fmt.Printf("base_url:        %s\n", cfg.LLM.BaseURL)
	fmt.Printf("timeout:         %s\n", cfg.LLM.Timeout)
	fmt.Printf("context_window:  %d\n", cfg.LLM.ContextWindow)
	fmt.Printf("max_turns:       %d (trim to %d)\n", cfg.Session.MaxTurns, cfg.Session.TrimTo)
	fmt.Printf("session_file:    %s\n", cfg.Session.File)
	fmt.Printf("archive:         %s\n", cfg.Session.ArchivePath)
	fmt.Printf("exec_timeout:    %s\n", cfg.Execution.Timeout)
	fmt.Printf("default_lang:    %s\n", cfg.Tools.DefaultSnippetLanguage)
	fmt.Printf("debug_logging:   %s\n", strconv.FormatBool(cfg.Logging.DebugMode))
	return nil
}

// initConfig writes the default configuration file if one does not exist.
func initConfig(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	path := config.Path(ws)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	cfg := config.DefaultConfig()
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	logger.Info("Wrote default configuration", zap.String("path", path))
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// recallArchive searches the conversation archive for past turns.
func recallArchive(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	cfg, err := config.Load(config.Path(ws))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Session.ArchivePath == "" {
		return fmt.Errorf("archiving is disabled (session.archive_path is empty)")
	}
	limit, _ := cmd.Flags().GetInt("limit")

	archive, err := store.Open(archivePath(ws, cfg))
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	entries, err := archive.Recall(args[0], limit)
	if err != nil {
		return fmt.Errorf("recall failed: %w", err)
	}
	logger.Debug("Recall complete", zap.String("query", args[0]), zap.Int("matches", len(entries)))

	if len(entries) == 0 {
		fmt.Println("No matching turns found.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("[%s] %s/%s: %s\n",
			e.CreatedAt.Format("2006-01-02 15:04"), e.SessionID, e.Role, preview(e.Content, 100))
	}
	return nil
}
