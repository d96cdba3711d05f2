package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/azure/controversy-analyzer/internal/config"
	"github.com/azure/controversy-analyzer/internal/models"
	"github.com/azure/controversy-analyzer/internal/report"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// maxListedTweets caps how many flagged tweets a single notification lists
const maxListedTweets = 10

// Service handles sending notifications via various channels
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// Enabled reports whether any notification channel is configured
func (s *Service) Enabled() bool {
	return s.config.TeamsWebhookURL != "" || s.config.NotificationEmail != ""
}

// SendReport sends a report via configured notification channels
func (s *Service) SendReport(rep *models.Report) error {
	var errors []string

	// Send to Teams if configured
	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(rep); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Infof("Successfully sent report for @%s to Teams", rep.Username)
		}
	}

	// Send via email if configured
	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(rep); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Infof("Successfully sent report for @%s via email", rep.Username)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToTeams(rep *models.Report) error {
	message := s.buildTeamsMessage(rep)

	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildTeamsMessage(rep *models.Report) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Controversy Report - @%s", rep.Username),
		Text:    fmt.Sprintf("Found %d controversial tweet(s) out of %d analyzed", rep.ControversialCount, rep.Summary.TotalAnalyzed),
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts: []TeamsFact{
			{Name: "Keywords Searched", Value: fmt.Sprintf("%d", len(rep.KeywordsSearched))},
			{Name: "Tweets Found", Value: fmt.Sprintf("%d", rep.TotalTweetsFound)},
			{Name: "Tweets Analyzed", Value: fmt.Sprintf("%d", rep.Summary.TotalAnalyzed)},
			{Name: "Controversial", Value: fmt.Sprintf("%d", rep.Summary.Controversial)},
			{Name: "Generated", Value: rep.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")},
		},
		Markdown: true,
	})

	if len(rep.ControversialTweets) > 0 {
		var lines []string
		for _, row := range listedTweets(rep) {
			lines = append(lines, fmt.Sprintf("**%d/10** [%s](%s) - %s (%s)",
				row.Analysis.ControversyScore, row.TweetID, TweetURL(rep.Username, row.TweetID),
				report.Truncate(row.Text, 140), strings.Join(row.Analysis.Topics, ", ")))
		}

		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Controversial Tweets",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) sendEmail(rep *models.Report) error {
	subject := fmt.Sprintf("Controversy Report - @%s (%d controversial)", rep.Username, rep.ControversialCount)

	htmlBody, err := s.buildEmailHTML(rep)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	textBody := s.buildEmailText(rep)

	// Create message
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

const emailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Controversy Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #d13438; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .tweet { border-left: 4px solid #d13438; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .tweet-meta { color: #666; font-size: 0.9em; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Controversy Report for @{{.Username}}</h1>
        <p>Generated on {{.Timestamp.UTC.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Keywords Searched:</strong> {{len .KeywordsSearched}}</p>
        <p><strong>Tweets Found:</strong> {{.TotalTweetsFound}}</p>
        <p><strong>Tweets Analyzed:</strong> {{.Summary.TotalAnalyzed}}</p>
        <p><strong>Controversial:</strong> {{.Summary.Controversial}}</p>
    </div>

    {{if .ControversialTweets}}
    <h2>Controversial Tweets</h2>
    {{range $index, $row := .ControversialTweets}}
        {{if lt $index 10}}
        <div class="tweet">
            <p>{{$row.Text | truncate 200}}</p>
            <div class="tweet-meta">
                Score: {{$row.Analysis.ControversyScore}}/10 | Keyword: {{$row.Keyword}} | {{date $row.CreatedAt}}
                | <a href="{{tweetURL $row.TweetID}}" target="_blank">View tweet</a>
            </div>
            {{if $row.Analysis.Reasons}}<p class="tweet-meta">Reasons: {{join $row.Analysis.Reasons}}</p>{{end}}
            {{if $row.Analysis.Topics}}<p class="tweet-meta">Topics: {{join $row.Analysis.Topics}}</p>{{end}}
        </div>
        {{end}}
    {{end}}
    {{end}}

    <hr>
    <p><small>This report was generated automatically by the Controversy Analyzer.</small></p>
</body>
</html>
`

func (s *Service) buildEmailHTML(rep *models.Report) (string, error) {
	t := template.New("email").Funcs(template.FuncMap{
		"truncate": func(length int, s string) string {
			return report.Truncate(s, length)
		},
		"date": report.FormatDate,
		"join": func(items []string) string {
			return strings.Join(items, ", ")
		},
		"tweetURL": func(id string) string {
			return TweetURL(rep.Username, id)
		},
	})

	t, err := t.Parse(emailTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, rep); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *Service) buildEmailText(rep *models.Report) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Controversy Report - @%s\n", rep.Username))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", rep.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Keywords Searched: %d\n", len(rep.KeywordsSearched)))
	text.WriteString(fmt.Sprintf("Tweets Found: %d\n", rep.TotalTweetsFound))
	text.WriteString(fmt.Sprintf("Tweets Analyzed: %d\n", rep.Summary.TotalAnalyzed))
	text.WriteString(fmt.Sprintf("Controversial: %d\n", rep.Summary.Controversial))

	if len(rep.ControversialTweets) > 0 {
		text.WriteString("\nCONTROVERSIAL TWEETS\n")
		text.WriteString("====================\n")

		for i, row := range listedTweets(rep) {
			text.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, report.Truncate(row.Text, 200)))
			text.WriteString(fmt.Sprintf("   Score: %d/10 | Keyword: %s | Date: %s\n",
				row.Analysis.ControversyScore, row.Keyword, report.FormatDate(row.CreatedAt)))
			if len(row.Analysis.Reasons) > 0 {
				text.WriteString(fmt.Sprintf("   Reasons: %s\n", strings.Join(row.Analysis.Reasons, ", ")))
			}
			text.WriteString(fmt.Sprintf("   URL: %s\n", TweetURL(rep.Username, row.TweetID)))
		}
	}

	text.WriteString("\n---\nThis report was generated automatically by the Controversy Analyzer.\n")

	return text.String()
}

// TweetURL links to a tweet on x.com
func TweetURL(username, tweetID string) string {
	return fmt.Sprintf("https://x.com/%s/status/%s", username, tweetID)
}

func listedTweets(rep *models.Report) []models.ResultRow {
	if len(rep.ControversialTweets) > maxListedTweets {
		return rep.ControversialTweets[:maxListedTweets]
	}
	return rep.ControversialTweets
}
