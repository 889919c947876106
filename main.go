package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	flagConfig      string
	flagAccount     string
	flagProvider    string
	flagAPIKey      string
	flagVerbose     bool
	flagConcurrency int
	flagRefresh     bool
	flagImportDir   string
)

var rootCmd = &cobra.Command{
	Use:   "wx-uploader <path>",
	Short: "Upload markdown articles to WeChat Official Account drafts",
	Long: `wx-uploader scans a directory tree (or takes a single file) of markdown
documents with YAML frontmatter, optionally generates AI cover images,
and uploads unpublished documents as WeChat Official Account drafts.

Directory scans skip documents whose frontmatter marks them published;
naming a file directly always uploads it.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runUpload,
}

var accountsCmd = &cobra.Command{
	Use:           "accounts",
	Short:         "List configured WeChat accounts",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAccounts,
}

var initCmd = &cobra.Command{
	Use:           "init",
	Short:         "Write a commented wx-uploader.toml template",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := writeSampleConfig("wx-uploader.toml"); err != nil {
			return err
		}
		fmt.Println("✓ wrote wx-uploader.toml")
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:           "import <url>",
	Short:         "Fetch a web page and save it as a markdown document",
	Long:          "Fetches the page, converts it to markdown, and writes an unpublished document ready for upload. Set ANTHROPIC_API_KEY to have the title and digest drafted by a model.",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runImport,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (default: wx-uploader.toml/.yaml in the working directory)")
	rootCmd.PersistentFlags().StringVar(&flagAccount, "account", "", "Named WeChat account to upload with")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().StringVar(&flagProvider, "ai-provider", "", "Cover image provider: openai or gemini")
	rootCmd.Flags().StringVar(&flagAPIKey, "api-key", "", "API key for the cover image provider")
	rootCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "Max documents processed in parallel")
	rootCmd.Flags().BoolVar(&flagRefresh, "refresh", false, "Force a fresh access token before uploading")
	importCmd.Flags().StringVarP(&flagImportDir, "output", "o", ".", "Directory to write the imported document into")

	rootCmd.AddCommand(accountsCmd, initCmd, importCmd)
}

func gatherFlags(cmd *cobra.Command) Flags {
	return Flags{
		ConfigPath:  flagConfig,
		Account:     flagAccount,
		Provider:    flagProvider,
		APIKey:      flagAPIKey,
		Verbose:     flagVerbose,
		VerboseSet:  cmd.Flags().Changed("verbose"),
		Concurrency: flagConcurrency,
	}
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveConfig(gatherFlags(cmd))
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := newWeChatClient()
	if flagRefresh {
		if err := client.RefreshToken(ctx, cfg.Account); err != nil {
			return err
		}
	}

	reporter := newReporter(os.Stdout)
	cover := newCoverOrchestrator(newAIClient(cfg), logger)
	uploader := newUploader(cfg, client, cover, reporter, logger)

	batch, err := uploader.ProcessPath(ctx, args[0])
	if err != nil {
		return err
	}
	reporter.Summary(batch)

	if batch.Failed() {
		_, _, failed := batch.Counts()
		return fmt.Errorf("%d of %d documents failed", failed, len(batch.Results))
	}
	return nil
}

func runAccounts(cmd *cobra.Command, args []string) error {
	var fileCfg *FileConfig
	if path := findConfigFile(flagConfig); path != "" {
		cfg, err := loadFileConfig(path)
		if err != nil {
			return &ConfigError{Message: fmt.Sprintf("cannot load %s", path), Err: err}
		}
		fileCfg = cfg
	} else {
		fileCfg = &FileConfig{}
	}

	registry, err := buildRegistry(fileCfg)
	if err != nil {
		return err
	}

	accounts := registry.List()
	if len(accounts) == 0 {
		fmt.Println("no accounts configured (run `wx-uploader init` or set WECHAT_APP_ID and WECHAT_APP_SECRET)")
		return nil
	}
	newReporter(os.Stdout).AccountTable(accounts, fileCfg.DefaultAccount)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	logger := newLogger(flagVerbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path, err := newImporter(logger).Import(ctx, args[0], flagImportDir)
	if err != nil {
		return err
	}
	fmt.Printf("✓ imported %s\n", path)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
