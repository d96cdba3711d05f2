// Package main is the one-shot command that analyzes a single account
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/azure/controversy-analyzer/internal/analysis"
	"github.com/azure/controversy-analyzer/internal/config"
	"github.com/azure/controversy-analyzer/internal/monitoring"
	"github.com/azure/controversy-analyzer/internal/notifications"
	"github.com/azure/controversy-analyzer/internal/report"
	"github.com/azure/controversy-analyzer/internal/sources"
	"github.com/azure/controversy-analyzer/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "controversy-analyzer <username>",
	Short: "Find controversial tweets posted by an X/Twitter account",
	Long: `controversy-analyzer searches the recent tweets of an account for a list of
sensitive keywords, asks an LLM to judge every matching tweet and writes a JSON
report next to a console summary.

Credentials are read from X_BEARER_TOKEN and OPENAI_API_KEY (a .env file in the
working directory is honoured).`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAnalyze,
}

func init() {
	rootCmd.Flags().StringP("output", "o", config.DefaultOutputFile, "path of the JSON report")
	rootCmd.Flags().Bool("notify", false, "send the report to the configured Teams/e-mail channels when tweets are flagged")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	username := strings.TrimPrefix(strings.TrimSpace(args[0]), "@")
	if username == "" {
		return fmt.Errorf("username must not be empty")
	}

	output, _ := cmd.Flags().GetString("output")
	notify, _ := cmd.Flags().GetBool("notify")

	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	searcher := sources.NewTwitterSource(sources.TwitterConfig{
		BearerToken:         cfg.TwitterBearerToken,
		BaseURL:             cfg.TwitterBaseURL,
		RateLimitWait:       cfg.RateLimitWait,
		MaxRateLimitRetries: cfg.MaxRateLimitRetries,
	})

	classifier := analysis.NewClassifier(&analysis.Config{
		APIKey:        cfg.OpenAIAPIKey,
		BaseURL:       cfg.OpenAIBaseURL,
		Model:         cfg.OpenAIModel,
		Temperature:   float32(cfg.Temperature),
		MaxTokens:     cfg.MaxTokens,
		RateLimitWait: cfg.RateLimitWait,
	})

	// Archiving is optional for one-shot runs
	var archive storage.StorageInterface
	if cfg.StorageAccount != "" {
		azureStorage, err := storage.NewAzureStorage(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		archive = azureStorage
	}

	var notifier notifications.NotificationInterface
	if notificationService := notifications.NewService(cfg); notify && notificationService.Enabled() {
		notifier = notificationService
	}

	service := monitoring.NewService(cfg, searcher, classifier, archive, notifier)

	rep, err := service.AnalyzeProfile(ctx, username)
	if errors.Is(err, monitoring.ErrAccountNotFound) {
		return fmt.Errorf("account @%s not found or is private", username)
	}
	if err != nil {
		return err
	}

	report.Print(os.Stdout, rep)

	if err := report.SaveJSON(output, rep); err != nil {
		return err
	}
	fmt.Printf("Results saved to: %s\n", output)

	if err := service.ArchiveReport(ctx, rep); err != nil {
		logrus.Errorf("Failed to archive report: %v", err)
	}

	if notifier != nil && rep.ControversialCount > 0 {
		if err := notifier.SendReport(rep); err != nil {
			logrus.Errorf("Failed to send notifications: %v", err)
		}
	}

	fmt.Println("\nAnalysis complete!")
	return nil
}
