package monitoring

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/azure/controversy-analyzer/internal/config"
	"github.com/azure/controversy-analyzer/internal/models"
	"github.com/azure/controversy-analyzer/internal/sources"
	"github.com/azure/controversy-analyzer/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSearcher is a mock implementation of the search API
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, query string) sources.SearchOutcome {
	args := m.Called(ctx, query)
	return args.Get(0).(sources.SearchOutcome)
}

func (m *MockSearcher) UserExists(ctx context.Context, username string) bool {
	args := m.Called(ctx, username)
	return args.Bool(0)
}

// MockClassifier is a mock implementation of the tweet classifier
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, text string) models.Verdict {
	args := m.Called(ctx, text)
	return args.Get(0).(models.Verdict)
}

// MockStorage is a mock implementation of the storage interface
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Store(ctx context.Context, filename string, data []byte) error {
	args := m.Called(ctx, filename, data)
	return args.Error(0)
}

func (m *MockStorage) Retrieve(ctx context.Context, filename string) ([]byte, error) {
	args := m.Called(ctx, filename)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorage) List(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, filename string) error {
	args := m.Called(ctx, filename)
	return args.Error(0)
}

// MockNotificationService is a mock implementation of the notification service
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendReport(report *models.Report) error {
	args := m.Called(report)
	return args.Error(0)
}

var (
	controversial = models.Verdict{
		IsControversial:  true,
		ControversyScore: 8,
		Reasons:          []string{"Misinformation claims"},
		Topics:           []string{"politics"},
	}
	benign = models.Verdict{
		IsControversial:  false,
		ControversyScore: 1,
		Reasons:          []string{},
		Topics:           []string{"weather"},
	}
	fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

func tweet(id, text string) models.Tweet {
	return models.Tweet{ID: id, Text: text, Keywords: []string{}}
}

func newTestService(cfg *config.Config, searcher *MockSearcher, classifier *MockClassifier, store storage.StorageInterface, notifier *MockNotificationService) *Service {
	var service *Service
	if notifier == nil {
		service = NewService(cfg, searcher, classifier, store, nil)
	} else {
		service = NewService(cfg, searcher, classifier, store, notifier)
	}
	service.now = func() time.Time { return fixedNow }
	return service
}

func TestService_AnalyzeProfileAccountNotFound(t *testing.T) {
	searcher := new(MockSearcher)
	searcher.On("UserExists", mock.Anything, "ghost").Return(false)
	classifier := new(MockClassifier)

	service := newTestService(&config.Config{Keywords: []string{"fraud"}}, searcher, classifier, nil, nil)

	rep, err := service.AnalyzeProfile(context.Background(), "ghost")

	assert.Nil(t, rep)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	classifier.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
}

func TestService_AnalyzeProfileBatchSearch(t *testing.T) {
	keywords := []string{"fraud", "vaccine"}

	searcher := new(MockSearcher)
	searcher.On("UserExists", mock.Anything, "alice").Return(true)
	searcher.On("Search", mock.Anything, sources.BuildBatchQuery("alice", keywords)).Return(sources.SearchOutcome{
		Kind: sources.SearchComplete,
		Tweets: []models.Tweet{
			tweet("1", "Vaccine FRAUD everywhere"),
			tweet("2", "Nice weather"),
			tweet("1", "Vaccine FRAUD everywhere"),
		},
	})

	classifier := new(MockClassifier)
	classifier.On("Classify", mock.Anything, "Vaccine FRAUD everywhere").Return(controversial).Once()
	classifier.On("Classify", mock.Anything, "Nice weather").Return(benign).Once()

	service := newTestService(&config.Config{Keywords: keywords}, searcher, classifier, nil, nil)

	rep, err := service.AnalyzeProfile(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, "alice", rep.Username)
	assert.Equal(t, fixedNow, rep.Timestamp)
	assert.Equal(t, keywords, rep.KeywordsSearched)
	assert.Equal(t, 3, rep.TotalTweetsFound)

	// One row per (tweet, keyword); unmatched tweets are kept under "unknown"
	require.Len(t, rep.Tweets, 3)
	assert.Equal(t, "1", rep.Tweets[0].TweetID)
	assert.Equal(t, "fraud", rep.Tweets[0].Keyword)
	assert.Equal(t, "1", rep.Tweets[1].TweetID)
	assert.Equal(t, "vaccine", rep.Tweets[1].Keyword)
	assert.Equal(t, controversial, rep.Tweets[1].Analysis)
	assert.Equal(t, "2", rep.Tweets[2].TweetID)
	assert.Equal(t, UnknownKeyword, rep.Tweets[2].Keyword)

	// A flagged tweet is listed once even when it matched several keywords
	require.Len(t, rep.ControversialTweets, 1)
	assert.Equal(t, "1", rep.ControversialTweets[0].TweetID)
	assert.Equal(t, "fraud", rep.ControversialTweets[0].Keyword)
	assert.Equal(t, 1, rep.ControversialCount)

	assert.Equal(t, models.Summary{TotalAnalyzed: 2, Controversial: 1, NonControversial: 1}, rep.Summary)

	classifier.AssertNumberOfCalls(t, "Classify", 2)
	searcher.AssertNumberOfCalls(t, "Search", 1)
}

func TestService_AnalyzeProfileFallsBackToPerKeywordSearch(t *testing.T) {
	keywords := []string{"fraud", "vaccine"}

	searcher := new(MockSearcher)
	searcher.On("UserExists", mock.Anything, "alice").Return(true)
	searcher.On("Search", mock.Anything, sources.BuildBatchQuery("alice", keywords)).Return(sources.SearchOutcome{
		Kind: sources.SearchQueryRejected,
		Err:  sources.ErrQueryRejected,
	})
	searcher.On("Search", mock.Anything, "from:alice fraud").Return(sources.SearchOutcome{
		Kind:   sources.SearchComplete,
		Tweets: []models.Tweet{tweet("1", "some text")},
	})
	searcher.On("Search", mock.Anything, "from:alice vaccine").Return(sources.SearchOutcome{
		Kind:   sources.SearchPartial,
		Tweets: []models.Tweet{tweet("1", "some text"), tweet("3", "other text")},
		Err:    errors.New("connection reset"),
	})

	classifier := new(MockClassifier)
	classifier.On("Classify", mock.Anything, "some text").Return(controversial).Once()
	classifier.On("Classify", mock.Anything, "other text").Return(benign).Once()

	service := newTestService(&config.Config{Keywords: keywords}, searcher, classifier, nil, nil)

	rep, err := service.AnalyzeProfile(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, 3, rep.TotalTweetsFound)

	// Fallback attributes each tweet to the keyword whose search returned it
	require.Len(t, rep.Tweets, 3)
	assert.Equal(t, []string{"1", "1", "3"}, []string{rep.Tweets[0].TweetID, rep.Tweets[1].TweetID, rep.Tweets[2].TweetID})
	assert.Equal(t, []string{"fraud", "vaccine", "vaccine"}, []string{rep.Tweets[0].Keyword, rep.Tweets[1].Keyword, rep.Tweets[2].Keyword})

	assert.Equal(t, 1, rep.ControversialCount)
	assert.Equal(t, models.Summary{TotalAnalyzed: 2, Controversial: 1, NonControversial: 1}, rep.Summary)

	searcher.AssertNumberOfCalls(t, "Search", 3)
	classifier.AssertNumberOfCalls(t, "Classify", 2)
}

func TestService_AnalyzeProfileKeepsPartialBatchResults(t *testing.T) {
	keywords := []string{"riot"}

	searcher := new(MockSearcher)
	searcher.On("UserExists", mock.Anything, "alice").Return(true)
	searcher.On("Search", mock.Anything, sources.BuildBatchQuery("alice", keywords)).Return(sources.SearchOutcome{
		Kind:   sources.SearchPartial,
		Tweets: []models.Tweet{tweet("7", "riot downtown")},
		Err:    errors.New("server error"),
	})

	classifier := new(MockClassifier)
	classifier.On("Classify", mock.Anything, "riot downtown").Return(benign)

	service := newTestService(&config.Config{Keywords: keywords}, searcher, classifier, nil, nil)

	rep, err := service.AnalyzeProfile(context.Background(), "alice")
	require.NoError(t, err)

	require.Len(t, rep.Tweets, 1)
	assert.Equal(t, "riot", rep.Tweets[0].Keyword)
	assert.Empty(t, rep.ControversialTweets)
	assert.NotNil(t, rep.ControversialTweets)
	searcher.AssertNumberOfCalls(t, "Search", 1)
}

func TestService_AnalyzeProfileNoTweets(t *testing.T) {
	searcher := new(MockSearcher)
	searcher.On("UserExists", mock.Anything, "alice").Return(true)
	searcher.On("Search", mock.Anything, mock.Anything).Return(sources.SearchOutcome{Kind: sources.SearchComplete})

	classifier := new(MockClassifier)

	service := newTestService(&config.Config{Keywords: []string{"fraud"}}, searcher, classifier, nil, nil)

	rep, err := service.AnalyzeProfile(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, 0, rep.TotalTweetsFound)
	assert.NotNil(t, rep.Tweets)
	assert.Empty(t, rep.Tweets)
	assert.Equal(t, models.Summary{}, rep.Summary)
	classifier.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
}

func TestService_AnalyzeProfileCanceled(t *testing.T) {
	searcher := new(MockSearcher)
	searcher.On("UserExists", mock.Anything, "alice").Return(true)
	searcher.On("Search", mock.Anything, mock.Anything).Return(sources.SearchOutcome{
		Kind:   sources.SearchComplete,
		Tweets: []models.Tweet{tweet("1", "fraud")},
	})

	classifier := new(MockClassifier)

	service := newTestService(&config.Config{Keywords: []string{"fraud"}}, searcher, classifier, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := service.AnalyzeProfile(ctx, "alice")

	assert.Nil(t, rep)
	assert.ErrorIs(t, err, context.Canceled)
	classifier.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
}

func TestService_ClassifyAllConcurrently(t *testing.T) {
	classifier := new(MockClassifier)
	tweets := make([]models.Tweet, 20)
	for i := range tweets {
		text := fmt.Sprintf("tweet %d", i)
		tweets[i] = tweet(fmt.Sprint(i), text)

		verdict := benign
		if i%2 == 0 {
			verdict = controversial
		}
		classifier.On("Classify", mock.Anything, text).Return(verdict).Once()
	}

	service := newTestService(&config.Config{ClassifyConcurrency: 4}, new(MockSearcher), classifier, nil, nil)

	verdicts, err := service.classifyAll(context.Background(), tweets)
	require.NoError(t, err)

	require.Len(t, verdicts, len(tweets))
	for i, verdict := range verdicts {
		assert.Equal(t, i%2 == 0, verdict.IsControversial, "verdict %d must stay aligned with its tweet", i)
	}
	classifier.AssertExpectations(t)
}

func TestBuildReport_FlaggedRowsMatchVerdicts(t *testing.T) {
	tweets := []models.Tweet{
		{ID: "1", Text: "a", Keywords: []string{"x", "y"}},
		{ID: "2", Text: "b", Keywords: []string{"y"}},
		{ID: "3", Text: "c", Keywords: []string{}},
	}
	verdicts := []models.Verdict{controversial, benign, controversial}

	rep := BuildReport("alice", []string{"x", "y"}, 5, tweets, verdicts, fixedNow)

	assert.Len(t, rep.Tweets, 4)
	assert.Equal(t, 2, rep.ControversialCount)
	assert.Len(t, rep.ControversialTweets, rep.ControversialCount)

	for _, row := range rep.ControversialTweets {
		assert.True(t, row.Analysis.IsControversial)
		assert.Contains(t, rep.Tweets, row, "flagged rows must also appear in the full list")
	}
	assert.Equal(t, UnknownKeyword, rep.ControversialTweets[1].Keyword)
	assert.Equal(t, 5, rep.TotalTweetsFound)
}

func TestReportFilename(t *testing.T) {
	rep := &models.Report{
		Username:  "alice",
		Timestamp: time.Date(2024, 6, 1, 14, 5, 9, 0, time.FixedZone("CEST", 2*60*60)),
	}

	assert.Equal(t, "reports/alice-2024-06-01-12-05-09.json", ReportFilename(rep))
}

func TestService_ArchiveReportPrunesOldReports(t *testing.T) {
	rep := &models.Report{Username: "alice", Timestamp: fixedNow}

	mockStorage := new(MockStorage)
	mockStorage.On("Store", mock.Anything, "reports/alice-2024-06-01-12-00-00.json", mock.Anything).Return(nil)
	mockStorage.On("List", mock.Anything, "reports/alice-").Return([]string{
		"reports/alice-2024-06-01-12-00-00.json",
		"reports/alice-2024-05-30-12-00-00.json",
		"reports/alice-2024-05-31-12-00-00.json",
	}, nil)
	mockStorage.On("Delete", mock.Anything, "reports/alice-2024-05-30-12-00-00.json").Return(nil)

	service := newTestService(&config.Config{ReportRetention: 2}, new(MockSearcher), new(MockClassifier), mockStorage, nil)

	require.NoError(t, service.ArchiveReport(context.Background(), rep))

	mockStorage.AssertExpectations(t)
	mockStorage.AssertNumberOfCalls(t, "Delete", 1)
}

func TestService_ArchiveReportWithoutStorage(t *testing.T) {
	service := newTestService(&config.Config{}, new(MockSearcher), new(MockClassifier), nil, nil)

	assert.NoError(t, service.ArchiveReport(context.Background(), &models.Report{Username: "alice"}))
}

func TestService_LatestReport(t *testing.T) {
	store := storage.NewLocalStorage(t.TempDir())
	service := newTestService(&config.Config{}, new(MockSearcher), new(MockClassifier), store, nil)

	older := &models.Report{Username: "alice", Timestamp: fixedNow.Add(-24 * time.Hour), TotalTweetsFound: 1}
	newer := &models.Report{Username: "alice", Timestamp: fixedNow, TotalTweetsFound: 2}
	require.NoError(t, service.ArchiveReport(context.Background(), newer))
	require.NoError(t, service.ArchiveReport(context.Background(), older))

	latest, err := service.LatestReport(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.TotalTweetsFound)

	_, err = service.LatestReport(context.Background(), "bob")
	assert.Error(t, err)
}

func TestService_RunMonitoring(t *testing.T) {
	cfg := &config.Config{
		Keywords:      []string{"fraud"},
		WatchAccounts: []string{"@alice", "bob", "carol"},
	}

	searcher := new(MockSearcher)
	searcher.On("UserExists", mock.Anything, "alice").Return(true)
	searcher.On("UserExists", mock.Anything, "bob").Return(false)
	searcher.On("UserExists", mock.Anything, "carol").Return(true)
	searcher.On("Search", mock.Anything, sources.BuildBatchQuery("alice", cfg.Keywords)).Return(sources.SearchOutcome{
		Kind:   sources.SearchComplete,
		Tweets: []models.Tweet{tweet("1", "fraud claims")},
	})
	searcher.On("Search", mock.Anything, sources.BuildBatchQuery("carol", cfg.Keywords)).Return(sources.SearchOutcome{
		Kind:   sources.SearchComplete,
		Tweets: []models.Tweet{tweet("2", "fraud prevention tips")},
	})

	classifier := new(MockClassifier)
	classifier.On("Classify", mock.Anything, "fraud claims").Return(controversial)
	classifier.On("Classify", mock.Anything, "fraud prevention tips").Return(benign)

	mockStorage := new(MockStorage)
	mockStorage.On("Store", mock.Anything, "reports/alice-2024-06-01-12-00-00.json", mock.Anything).Return(nil)
	mockStorage.On("Store", mock.Anything, "reports/carol-2024-06-01-12-00-00.json", mock.Anything).Return(nil)

	notifier := new(MockNotificationService)
	notifier.On("SendReport", mock.MatchedBy(func(rep *models.Report) bool {
		return rep.Username == "alice"
	})).Return(nil).Once()

	service := newTestService(cfg, searcher, classifier, mockStorage, notifier)

	err := service.RunMonitoring(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "@bob")

	mockStorage.AssertExpectations(t)
	notifier.AssertExpectations(t)

	metricsJSON := service.GetMetrics()
	assert.Contains(t, metricsJSON, `"profiles_analyzed": 2`)
	assert.Contains(t, metricsJSON, `"error_count": 1`)
	assert.Contains(t, metricsJSON, `"alice": 1`)
	assert.Contains(t, metricsJSON, `"carol": 0`)
}

func TestService_RunMonitoringRejectsOverlappingRuns(t *testing.T) {
	service := newTestService(&config.Config{}, new(MockSearcher), new(MockClassifier), nil, nil)
	service.running = true

	assert.ErrorIs(t, service.RunMonitoring(context.Background()), ErrRunInProgress)
}
