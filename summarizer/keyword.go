package summarizer

import (
	"context"
	"strings"
	"unicode/utf8"

	"nikkei-digest/feed"
)

const (
	keywordStageName   = "keyword"
	keywordImportance  = 3
	maxItemSummaryRune = 100
)

// keywordTable is checked in order; the first category with a matching
// keyword wins. The catch-all has no keywords.
var keywordTable = []struct {
	category string
	words    []string
}{
	{"経済・景気", []string{"GDP", "景気", "消費", "物価", "インフレ", "デフレ", "成長"}},
	{"政治・政策", []string{"政府", "首相", "国会", "法案", "選挙", "政党", "内閣"}},
	{"テクノロジー・DX", []string{"AI", "DX", "IT", "デジタル", "半導体", "ソフトウェア", "クラウド"}},
	{"国際情勢", []string{"米国", "中国", "EU", "外交", "貿易", "国連", "戦争"}},
	{"企業・産業", []string{"決算", "売上", "利益", "事業", "新製品", "M&A", "買収"}},
	{"金融・市場", []string{"株価", "為替", "日銀", "金利", "投資", "債券", "円安", "円高"}},
	{CategoryOther, nil},
}

// KeywordClassifier categorizes articles by substring rules. It needs no
// network access and never fails.
type KeywordClassifier struct{}

func (KeywordClassifier) Name() string { return keywordStageName }

func (k KeywordClassifier) Summarize(_ context.Context, articles []feed.Article) (*Summary, error) {
	return k.Classify(articles), nil
}

func (KeywordClassifier) stage() {}

// Classify files every article under the first matching category. Top
// topics are the first five articles in feed order.
func (KeywordClassifier) Classify(articles []feed.Article) *Summary {
	categories := make(map[string][]CategoryItem, len(Categories))
	for _, c := range Categories {
		categories[c] = make([]CategoryItem, 0)
	}
	topics := make([]TopTopic, 0, min(len(articles), MaxTopTopics))

	for i, a := range articles {
		category := matchCategory(a.Title + " " + a.Summary)
		item := CategoryItem{
			Index:      i + 1,
			Title:      a.Title,
			Summary:    truncateSummary(a.Summary),
			Importance: keywordImportance,
		}
		categories[category] = append(categories[category], item)

		if len(topics) < MaxTopTopics {
			topics = append(topics, TopTopic{CategoryItem: item, Category: category})
		}
	}

	return &Summary{
		DailyTrend: DailyTrend{Summary: TrendNotAnalyzed, Keywords: []string{}},
		Categories: categories,
		TopTopics:  topics,
	}
}

func matchCategory(text string) string {
	for _, entry := range keywordTable {
		for _, w := range entry.words {
			if strings.Contains(text, w) {
				return entry.category
			}
		}
	}
	return CategoryOther
}

func truncateSummary(s string) string {
	if utf8.RuneCountInString(s) <= maxItemSummaryRune {
		return s
	}
	return string([]rune(s)[:maxItemSummaryRune]) + "..."
}
