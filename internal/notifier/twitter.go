package notifier

import (
	"fmt"
	"os"
	"time"

	"github.com/dghubble/go-twitter/twitter" //nolint:staticcheck // Using stable v1.1 API
	"github.com/dghubble/oauth1"

	"github.com/boylston-chess/bcf-monitor/internal/report"
)

// Twitter posts a short per-run summary tweet. The full report does not fit
// a tweet, so only the headline (run date and event count) is posted.
type Twitter struct {
	client *twitter.Client
}

// NewTwitter creates a Twitter notifier using environment variables:
// TWITTER_API_KEY, TWITTER_API_SECRET, TWITTER_ACCESS_TOKEN,
// TWITTER_ACCESS_SECRET.
func NewTwitter() (*Twitter, error) {
	apiKey := os.Getenv("TWITTER_API_KEY")
	apiSecret := os.Getenv("TWITTER_API_SECRET")
	accessToken := os.Getenv("TWITTER_ACCESS_TOKEN")
	accessSecret := os.Getenv("TWITTER_ACCESS_SECRET")

	if apiKey == "" || apiSecret == "" || accessToken == "" || accessSecret == "" {
		return nil, fmt.Errorf("missing required Twitter credentials in environment variables")
	}

	config := oauth1.NewConfig(apiKey, apiSecret)
	token := oauth1.NewToken(accessToken, accessSecret)
	httpClient := config.Client(oauth1.NoContext, token)

	return &Twitter{client: twitter.NewClient(httpClient)}, nil
}

func (t *Twitter) Name() string { return "twitter" }

// Notify posts the summary tweet. Runs with nothing to report are skipped.
func (t *Twitter) Notify(rep *report.Report, runDate time.Time) error {
	if rep.Included == 0 {
		return nil
	}

	tweet := formatSummaryTweet(rep, runDate)
	if _, _, err := t.client.Statuses.Update(tweet, nil); err != nil {
		return &SendError{Notifier: t.Name(), Err: err}
	}
	return nil
}

func formatSummaryTweet(rep *report.Report, runDate time.Time) string {
	noun := "events"
	if rep.Included == 1 {
		noun = "event"
	}
	tweet := fmt.Sprintf("BCF event updates for %s: %d upcoming %s with roster activity.\n",
		runDate.Format("Jan 2, 2006"), rep.Included, noun)
	tweet += "Entry lists at boylstonchess.org/events\n#chess #BoylstonChess"

	// Twitter limit is 280 characters
	if len(tweet) > 280 {
		tweet = tweet[:277] + "..."
	}
	return tweet
}
