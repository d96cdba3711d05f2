package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/azure/controversy-analyzer/internal/analysis"
	"github.com/azure/controversy-analyzer/internal/config"
	"github.com/azure/controversy-analyzer/internal/metrics"
	"github.com/azure/controversy-analyzer/internal/models"
	"github.com/azure/controversy-analyzer/internal/notifications"
	"github.com/azure/controversy-analyzer/internal/report"
	"github.com/azure/controversy-analyzer/internal/sources"
	"github.com/azure/controversy-analyzer/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// UnknownKeyword attributes a tweet the search returned but whose text matches none of the keywords
const UnknownKeyword = "unknown"

const reportPrefix = "reports/"

var (
	// ErrAccountNotFound is returned when the account does not exist or cannot be read
	ErrAccountNotFound = errors.New("account not found or is private")
	// ErrRunInProgress is returned when a watch run is requested while another one is active
	ErrRunInProgress = errors.New("a monitoring run is already in progress")
)

// Service searches accounts for keyword-matching tweets and classifies them
type Service struct {
	config              *config.Config
	keywords            []string
	searcher            sources.Searcher
	classifier          analysis.ClassifierInterface
	storage             storage.StorageInterface
	notificationService notifications.NotificationInterface
	metrics             *Metrics
	mu                  sync.RWMutex
	running             bool
	now                 func() time.Time
}

// Metrics holds watch-mode run metrics
type Metrics struct {
	LastRun             time.Time      `json:"last_run"`
	LastRunDuration     string         `json:"last_run_duration"`
	ProfilesAnalyzed    int            `json:"profiles_analyzed"`
	ControversialByUser map[string]int `json:"controversial_by_user"`
	ErrorCount          int            `json:"error_count"`
}

// NewService creates a new monitoring service. storage and notificationService may be nil
func NewService(cfg *config.Config, searcher sources.Searcher, classifier analysis.ClassifierInterface, storage storage.StorageInterface, notificationService notifications.NotificationInterface) *Service {
	return &Service{
		config:              cfg,
		keywords:            append([]string{}, cfg.Keywords...),
		searcher:            searcher,
		classifier:          classifier,
		storage:             storage,
		notificationService: notificationService,
		metrics: &Metrics{
			ControversialByUser: make(map[string]int),
		},
		now: time.Now,
	}
}

// AnalyzeProfile searches username's tweets for the configured keywords, classifies every
// distinct tweet once and assembles the report. It fails only when the account cannot be found
// or ctx is canceled; search and classification problems degrade the report instead
func (s *Service) AnalyzeProfile(ctx context.Context, username string) (*models.Report, error) {
	logrus.Infof("Analyzing profile: @%s", username)

	if !s.searcher.UserExists(ctx, username) {
		metrics.ProfilesAnalyzedTotal.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("%w: @%s", ErrAccountNotFound, username)
	}

	logrus.Infof("Searching for tweets containing %d controversial keywords", len(s.keywords))
	tweets := s.collectTweets(ctx, username)
	unique := DeduplicateTweets(tweets)
	logrus.Infof("Found %d tweet(s), %d unique", len(tweets), len(unique))

	verdicts, err := s.classifyAll(ctx, unique)
	if err != nil {
		metrics.ProfilesAnalyzedTotal.WithLabelValues("canceled").Inc()
		return nil, err
	}

	rep := BuildReport(username, s.keywords, len(tweets), unique, verdicts, s.now())

	metrics.ProfilesAnalyzedTotal.WithLabelValues("ok").Inc()
	metrics.FlaggedTweets.WithLabelValues(username).Set(float64(rep.ControversialCount))

	return rep, nil
}

// collectTweets tries the batch query first and falls back to one query per keyword
// when the API rejects it
func (s *Service) collectTweets(ctx context.Context, username string) []models.Tweet {
	outcome := s.searcher.Search(ctx, sources.BuildBatchQuery(username, s.keywords))
	if outcome.Kind != sources.SearchQueryRejected {
		if outcome.Kind == sources.SearchPartial {
			logrus.Warnf("Batch search for @%s ended early, continuing with %d tweet(s): %v", username, len(outcome.Tweets), outcome.Err)
		}
		return AttachMatches(outcome.Tweets, s.keywords)
	}

	logrus.Warnf("Batch query rejected, falling back to %d per-keyword searches", len(s.keywords))

	var tweets []models.Tweet
	for idx, keyword := range s.keywords {
		if ctx.Err() != nil {
			break
		}

		outcome := s.searcher.Search(ctx, sources.BuildSingleQuery(username, keyword))
		if outcome.Kind != sources.SearchComplete {
			logrus.Warnf("Search for keyword '%s' ended with %s: %v", keyword, outcome.Kind, outcome.Err)
		}

		logrus.Infof("[%d/%d] keyword '%s': found %d tweet(s)", idx+1, len(s.keywords), keyword, len(outcome.Tweets))
		tweets = append(tweets, tagKeyword(outcome.Tweets, keyword)...)
	}

	return tweets
}

// classifyAll returns one verdict per tweet, index-aligned with tweets
func (s *Service) classifyAll(ctx context.Context, tweets []models.Tweet) ([]models.Verdict, error) {
	verdicts := make([]models.Verdict, len(tweets))

	limit := s.config.ClassifyConcurrency
	if limit < 1 {
		limit = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := range tweets {
		i := i
		tweet := tweets[i]
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			verdict := s.classifier.Classify(gCtx, tweet.Text)
			verdicts[i] = verdict

			status := "not controversial"
			if verdict.IsControversial {
				status = "CONTROVERSIAL"
			}
			logrus.Infof("Analyzed tweet %s: %s (score: %d/10)", tweet.ID, status, verdict.ControversyScore)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Verdicts produced after cancellation are error placeholders, not judgments
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return verdicts, nil
}

// BuildReport flattens classified tweets into report rows. verdicts must be index-aligned with
// tweets, which must already be deduplicated
func BuildReport(username string, keywords []string, totalFound int, tweets []models.Tweet, verdicts []models.Verdict, generatedAt time.Time) *models.Report {
	rows := []models.ResultRow{}
	flagged := []models.ResultRow{}

	for i, tweet := range tweets {
		verdict := verdicts[i]

		matched := tweet.Keywords
		if len(matched) == 0 {
			matched = []string{UnknownKeyword}
		}

		for _, keyword := range matched {
			rows = append(rows, newResultRow(keyword, tweet, verdict))
		}

		if verdict.IsControversial {
			flagged = append(flagged, newResultRow(matched[0], tweet, verdict))
		}
	}

	return &models.Report{
		Username:            username,
		Timestamp:           generatedAt,
		KeywordsSearched:    append([]string{}, keywords...),
		TotalTweetsFound:    totalFound,
		ControversialCount:  len(flagged),
		Tweets:              rows,
		ControversialTweets: flagged,
		Summary: models.Summary{
			TotalAnalyzed:    len(tweets),
			Controversial:    len(flagged),
			NonControversial: len(tweets) - len(flagged),
		},
	}
}

func newResultRow(keyword string, tweet models.Tweet, verdict models.Verdict) models.ResultRow {
	return models.ResultRow{
		TweetID:       tweet.ID,
		Text:          tweet.Text,
		CreatedAt:     tweet.CreatedAt,
		Keyword:       keyword,
		PublicMetrics: tweet.PublicMetrics,
		Analysis:      verdict,
	}
}

// RunMonitoring analyzes every watched account, archives the reports and sends a
// notification for each account with controversial tweets
func (s *Service) RunMonitoring(ctx context.Context) error {
	if !s.startRun() {
		return ErrRunInProgress
	}
	defer s.finishRun()

	start := time.Now()
	logrus.Infof("Starting monitoring run for %d account(s)", len(s.config.WatchAccounts))

	var errs []string
	flagged := make(map[string]int)
	analyzed := 0

	for _, account := range s.config.WatchAccounts {
		username := strings.TrimPrefix(account, "@")

		rep, err := s.AnalyzeProfile(ctx, username)
		if err != nil {
			logrus.Errorf("Failed to analyze @%s: %v", username, err)
			errs = append(errs, fmt.Sprintf("@%s: %v", username, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		analyzed++
		flagged[username] = rep.ControversialCount

		if err := s.ArchiveReport(ctx, rep); err != nil {
			logrus.Errorf("Failed to archive report for @%s: %v", username, err)
			errs = append(errs, fmt.Sprintf("@%s archive: %v", username, err))
		}

		if rep.ControversialCount == 0 || s.notificationService == nil {
			continue
		}

		if err := s.notificationService.SendReport(rep); err != nil {
			logrus.Errorf("Failed to send report for @%s: %v", username, err)
			errs = append(errs, fmt.Sprintf("@%s notify: %v", username, err))
		}
	}

	s.updateMetrics(analyzed, flagged, time.Since(start), len(errs))

	if len(errs) > 0 {
		return fmt.Errorf("monitoring errors: %s", strings.Join(errs, "; "))
	}

	logrus.Infof("Monitoring run completed in %v", time.Since(start))
	return nil
}

// ArchiveReport stores the report under reports/ and prunes the account's oldest
// reports beyond the configured retention. It is a no-op without storage
func (s *Service) ArchiveReport(ctx context.Context, rep *models.Report) error {
	if s.storage == nil {
		return nil
	}

	data, err := report.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := s.storage.Store(ctx, ReportFilename(rep), data); err != nil {
		return err
	}

	return s.pruneReports(ctx, rep.Username)
}

// ReportFilename is the archive name of a report
func ReportFilename(rep *models.Report) string {
	return fmt.Sprintf("%s%s-%s.json", reportPrefix, rep.Username, rep.Timestamp.UTC().Format("2006-01-02-15-04-05"))
}

func (s *Service) pruneReports(ctx context.Context, username string) error {
	if s.config.ReportRetention <= 0 {
		return nil
	}

	names, err := s.storage.List(ctx, reportPrefix+username+"-")
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	if len(names) <= s.config.ReportRetention {
		return nil
	}

	// Timestamped names sort chronologically
	sort.Strings(names)
	for _, name := range names[:len(names)-s.config.ReportRetention] {
		if err := s.storage.Delete(ctx, name); err != nil {
			return fmt.Errorf("failed to prune report %s: %w", name, err)
		}
	}

	return nil
}

// LatestReport returns the most recent archived report of username
func (s *Service) LatestReport(ctx context.Context, username string) (*models.Report, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("report storage is not configured")
	}

	names, err := s.storage.List(ctx, reportPrefix+username+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no reports for @%s", username)
	}

	sort.Strings(names)
	data, err := s.storage.Retrieve(ctx, names[len(names)-1])
	if err != nil {
		return nil, err
	}

	var rep models.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &rep, nil
}

func (s *Service) startRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Service) finishRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *Service) updateMetrics(analyzed int, flagged map[string]int, duration time.Duration, errorCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.LastRun = time.Now()
	s.metrics.LastRunDuration = duration.String()
	s.metrics.ProfilesAnalyzed = analyzed
	s.metrics.ErrorCount = errorCount
	s.metrics.ControversialByUser = flagged
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
