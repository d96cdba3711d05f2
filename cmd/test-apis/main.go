package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/azure/controversy-analyzer/internal/analysis"
	"github.com/azure/controversy-analyzer/internal/config"
	"github.com/azure/controversy-analyzer/internal/sources"
	"github.com/joho/godotenv"
)

const sampleTweet = "Just watched the game, what a finish!"

func main() {
	fmt.Println("🔍 Controversy Analyzer - API Connectivity Test")
	fmt.Println("===============================================")

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Account used for the lookup, first argument or the X developer account
	username := "XDevelopers"
	if len(os.Args) > 1 {
		username = strings.TrimPrefix(os.Args[1], "@")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Println("\n📡 Testing APIs...")
	fmt.Println(strings.Repeat("-", 40))

	searcher := sources.NewTwitterSource(sources.TwitterConfig{
		BearerToken: cfg.TwitterBearerToken,
		BaseURL:     cfg.TwitterBaseURL,
		// Fail fast instead of waiting out the window
		RateLimitWait:       5 * time.Second,
		MaxRateLimitRetries: 1,
	})
	ok := testTwitter(ctx, searcher, username)

	classifier := analysis.NewClassifier(&analysis.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		Temperature: float32(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
	})
	ok = testClassifier(ctx, classifier) && ok

	if !ok {
		fmt.Println("\n❌ API connectivity test failed")
		os.Exit(1)
	}

	fmt.Println("\n✅ API connectivity test completed!")
	fmt.Println("\n💡 Next steps:")
	fmt.Println("   • Analyze an account with: controversy-analyzer <username>")
	fmt.Println("   • Set WATCH_ACCOUNTS and run the bot for scheduled reports")
}

func testTwitter(ctx context.Context, searcher sources.Searcher, username string) bool {
	fmt.Printf("🔸 Testing Twitter/X user lookup (@%s)... ", username)

	if !searcher.UserExists(ctx, username) {
		fmt.Printf("❌ ERROR: account not found or credentials rejected\n")
		return false
	}
	fmt.Printf("✅ SUCCESS\n")

	fmt.Printf("🔸 Testing Twitter/X recent search... ")
	outcome := searcher.Search(ctx, sources.BuildSingleQuery(username, "the"))
	if outcome.Kind != sources.SearchComplete {
		fmt.Printf("❌ ERROR: search ended with %s: %v\n", outcome.Kind, outcome.Err)
		return false
	}
	fmt.Printf("✅ SUCCESS (%d tweets found)\n", len(outcome.Tweets))

	if len(outcome.Tweets) > 0 {
		fmt.Printf("   📝 Sample: \"%s\"\n", outcome.Tweets[0].Text)
	}
	return true
}

func testClassifier(ctx context.Context, classifier analysis.ClassifierInterface) bool {
	fmt.Printf("🔸 Testing OpenAI classification... ")

	verdict := classifier.Classify(ctx, sampleTweet)
	if analysis.IsFailure(verdict) {
		fmt.Printf("❌ ERROR: %s\n", verdict.Reasons[0])
		return false
	}

	fmt.Printf("✅ SUCCESS (controversial=%t, score=%d/10)\n", verdict.IsControversial, verdict.ControversyScore)
	return true
}
