package summarizer

// Categories is the closed set of topical labels, in rendering order.
var Categories = []string{
	"経済・景気",
	"政治・政策",
	"テクノロジー・DX",
	"国際情勢",
	"企業・産業",
	"金融・市場",
	CategoryOther,
}

// CategoryOther is the catch-all label.
const CategoryOther = "その他"

// MaxTopTopics bounds Summary.TopTopics.
const MaxTopTopics = 5

const (
	// TrendUnavailable replaces a daily_trend the model left out.
	TrendUnavailable = "トレンド分析は取得できませんでした。"
	// TrendNotAnalyzed is the trend text of the keyword classifier.
	TrendNotAnalyzed = "本日のニューストレンドは自動分析できませんでした。"
)

// Summary is the categorized daily summary every stage must produce.
// It is read-only once returned from a stage.
type Summary struct {
	DailyTrend DailyTrend                `json:"daily_trend"`
	Categories map[string][]CategoryItem `json:"categories"`
	TopTopics  []TopTopic                `json:"top_topics"`
}

// DailyTrend is the overall reading of the day's news.
type DailyTrend struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}

// CategoryItem is one summarized article. Index is the 1-based position in
// the article list the summary was built from.
type CategoryItem struct {
	Index      int    `json:"index"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	Importance int    `json:"importance"`
}

// TopTopic is a CategoryItem promoted to the top list.
type TopTopic struct {
	CategoryItem
	Category string `json:"category"`
}

// Items returns the items filed under category, or nil.
func (s *Summary) Items(category string) []CategoryItem {
	if s == nil || s.Categories == nil {
		return nil
	}
	return s.Categories[category]
}
