package report

import (
	"fmt"
	"strings"
	"time"

	"nikkei-digest/feed"
	"nikkei-digest/summarizer"
)

// RenderDocument renders the daily Markdown document. Sections appear in a
// fixed order; empty categories are left out.
func RenderDocument(s *summarizer.Summary, articles []feed.Article, generatedAt time.Time) string {
	lines := []string{
		"# 日経新聞サマリー - " + generatedAt.Format("2006年01月02日"),
		"",
		"**生成時刻**: " + generatedAt.Format("2006-01-02 15:04:05"),
		fmt.Sprintf("**記事数**: %d件", len(articles)),
		"",
		"---",
		"",
		"## 📊 本日のトレンド",
		"",
		s.DailyTrend.Summary,
		"",
	}

	if len(s.DailyTrend.Keywords) > 0 {
		lines = append(lines, "**キーワード**: "+strings.Join(s.DailyTrend.Keywords, ", "), "")
	}

	lines = append(lines, "---", "", "## 🔥 注目トピック TOP5", "")
	for i, topic := range topTopics(s) {
		lines = append(lines,
			fmt.Sprintf("### %d. %s", i+1, topic.Title),
			fmt.Sprintf("**分野**: %s | **重要度**: %s", topic.Category, paddedStars(topic.Importance)),
			"> "+topic.Summary,
			"",
		)
	}

	lines = append(lines, "---", "", "## 📂 分野別サマリー", "")
	for _, category := range summarizer.Categories {
		items := s.Items(category)
		if len(items) == 0 {
			continue
		}
		lines = append(lines, "### "+category, "")
		for _, item := range items {
			lines = append(lines,
				fmt.Sprintf("- **%s** %s", item.Title, stars(item.Importance)),
				"  - "+item.Summary,
			)
		}
		lines = append(lines, "")
	}

	lines = append(lines, "---", "", "## 📋 全記事一覧", "")
	for i, a := range articles {
		lines = append(lines, fmt.Sprintf("%d. [%s](%s)", i+1, a.Title, a.Link))
	}

	return strings.Join(lines, "\n")
}
