package report

import (
	"fmt"
	"strings"
	"time"

	"nikkei-digest/feed"
	"nikkei-digest/summarizer"
)

// FormatNotification renders the push message: header, date, article
// count, trend and the top topics with their links.
func FormatNotification(s *summarizer.Summary, articles []feed.Article, articleCount int, date time.Time) string {
	lines := []string{
		"📰 日経新聞 本日のサマリー",
		"📅 " + date.Format("2006年01月02日"),
		fmt.Sprintf("📊 本日の記事数: %d件", articleCount),
		"",
		"📈 本日のトレンド:",
		s.DailyTrend.Summary,
		"",
		"🔥 注目トピック TOP5:",
	}

	for i, topic := range topTopics(s) {
		lines = append(lines,
			fmt.Sprintf("%d. [%s] %s", i+1, topic.Category, topic.Title),
			"   "+stars(topic.Importance),
		)
		if link, ok := articleLink(articles, topic.Index); ok {
			lines = append(lines, "   "+link)
		}
	}

	return strings.Join(lines, "\n")
}

// FormatError renders the message sent when a run fails.
func FormatError(message string) string {
	return "⚠️ 日経新聞サマリー生成エラー\n\n" + message
}

func topTopics(s *summarizer.Summary) []summarizer.TopTopic {
	if len(s.TopTopics) > summarizer.MaxTopTopics {
		return s.TopTopics[:summarizer.MaxTopTopics]
	}
	return s.TopTopics
}

// articleLink resolves a 1-based article index.
func articleLink(articles []feed.Article, index int) (string, bool) {
	if index < 1 || index > len(articles) {
		return "", false
	}
	return articles[index-1].Link, true
}

// stars renders filled stars only.
func stars(importance int) string {
	return strings.Repeat("★", clampStars(importance))
}

// paddedStars renders a five-slot rating.
func paddedStars(importance int) string {
	n := clampStars(importance)
	return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
}

func clampStars(n int) int {
	return max(0, min(n, 5))
}
