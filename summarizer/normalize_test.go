package summarizer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validResponse = `{
  "daily_trend": {"summary": "円安と半導体が焦点", "keywords": ["円安", "半導体"]},
  "categories": {
    "金融・市場": [{"index": 1, "title": "株価上昇", "summary": "日経平均が上昇", "importance": 4}],
    "テクノロジー・DX": [{"index": 2, "title": "AI投資", "summary": "大手がAIに投資", "importance": 5}]
  },
  "top_topics": [
    {"index": 2, "title": "AI投資", "summary": "大手がAIに投資", "importance": 5, "category": "テクノロジー・DX"},
    {"index": 1, "title": "株価上昇", "summary": "日経平均が上昇", "importance": 4, "category": "金融・市場"}
  ]
}`

func TestNormalizeValid(t *testing.T) {
	s, err := Normalize(validResponse)
	require.NoError(t, err)

	assert.Equal(t, "円安と半導体が焦点", s.DailyTrend.Summary)
	assert.Equal(t, []string{"円安", "半導体"}, s.DailyTrend.Keywords)
	require.Len(t, s.Items("金融・市場"), 1)
	assert.Equal(t, 4, s.Items("金融・市場")[0].Importance)
	require.Len(t, s.TopTopics, 2)
	assert.Equal(t, "テクノロジー・DX", s.TopTopics[0].Category)
	assert.Equal(t, 2, s.TopTopics[0].Index)
	assert.Empty(t, s.Items("政治・政策"))
}

func TestNormalizeFencedMatchesPlain(t *testing.T) {
	plain, err := Normalize(validResponse)
	require.NoError(t, err)

	for name, input := range map[string]string{
		"json fence":     "```json\n" + validResponse + "\n```",
		"bare fence":     "```\n" + validResponse + "\n```",
		"prose around":   "結果は以下です。\n```json\n" + validResponse + "\n```\n以上。",
		"trailing fence": "```json" + validResponse + "```\n```ignored```",
	} {
		t.Run(name, func(t *testing.T) {
			got, err := Normalize(input)
			require.NoError(t, err)
			assert.Equal(t, plain, got)
		})
	}
}

func TestNormalizeStripsControlCharacters(t *testing.T) {
	input := "{\"daily_trend\": {\"summary\": \"改行\n入り\x01\", \"keywords\": []}\x7f}"
	s, err := Normalize(input)
	require.NoError(t, err)
	assert.Equal(t, "改行入り", s.DailyTrend.Summary)
}

func TestNormalizeMissingDailyTrend(t *testing.T) {
	for _, input := range []string{
		`{"categories": {}, "top_topics": []}`,
		`{"daily_trend": null}`,
		`{"daily_trend": 42}`,
	} {
		s, err := Normalize(input)
		require.NoError(t, err, input)
		assert.Equal(t, TrendUnavailable, s.DailyTrend.Summary)
		assert.NotNil(t, s.DailyTrend.Keywords)
		assert.Empty(t, s.DailyTrend.Keywords)
	}
}

func TestNormalizeToleratesMissingCollections(t *testing.T) {
	for _, input := range []string{
		`{"daily_trend": {"summary": "x"}}`,
		`{"daily_trend": {"summary": "x"}, "categories": null, "top_topics": null}`,
		`{"daily_trend": {"summary": "x"}, "categories": [], "top_topics": {}}`,
	} {
		s, err := Normalize(input)
		require.NoError(t, err, input)
		assertCanonicalShape(t, s)
		assert.Empty(t, s.TopTopics, input)
		for _, c := range Categories {
			assert.Empty(t, s.Items(c), input)
		}
	}
}

func assertCanonicalShape(t *testing.T, s *Summary) {
	t.Helper()
	require.Len(t, s.Categories, len(Categories))
	for _, c := range Categories {
		assert.NotNil(t, s.Categories[c], "category %s", c)
	}
	assert.NotNil(t, s.TopTopics)
	assert.LessOrEqual(t, len(s.TopTopics), MaxTopTopics)
}

const offScheduleResponse = `{
  "daily_trend": {"summary": "t", "keywords": []},
  "categories": {
    "Other": [{"index": 99, "title": "unknown label", "summary": "s", "importance": 2}],
    "その他": [{"index": 7, "title": "own item", "summary": "s", "importance": 3}],
    "金融・市場": [{"index": 1, "title": "株価", "summary": "s", "importance": 4}]
  },
  "top_topics": [
    {"index": 1, "title": "t1", "category": "金融・市場"},
    {"index": 2, "title": "t2", "category": "Other"},
    {"index": 3, "title": "t3"},
    {"index": 4, "title": "t4"},
    {"index": 5, "title": "t5"},
    {"index": 6, "title": "t6"},
    {"index": 7, "title": "t7"},
    {"index": 8, "title": "t8"}
  ]
}`

func TestNormalizeCanonicalShape(t *testing.T) {
	s, err := Normalize(offScheduleResponse)
	require.NoError(t, err)
	assertCanonicalShape(t, s)

	assert.NotContains(t, s.Categories, "Other")
	other := s.Items(CategoryOther)
	require.Len(t, other, 2)
	assert.Equal(t, "own item", other[0].Title)
	assert.Equal(t, "unknown label", other[1].Title)
	assert.Equal(t, 99, other[1].Index)
	require.Len(t, s.Items("金融・市場"), 1)

	require.Len(t, s.TopTopics, MaxTopTopics)
	assert.Equal(t, "t1", s.TopTopics[0].Title)
	assert.Equal(t, "t5", s.TopTopics[4].Title)
	assert.Equal(t, "金融・市場", s.TopTopics[0].Category)
	assert.Equal(t, CategoryOther, s.TopTopics[1].Category)
	assert.Equal(t, "", s.TopTopics[2].Category)
}

func TestNormalizeTopicIndexDefaultsToPosition(t *testing.T) {
	s, err := Normalize(`{"top_topics": [
	  {"index": 4, "title": "explicit"},
	  {"title": "second"},
	  {"index": null, "title": "third"},
	  "skipped",
	  {"title": "fifth"}
	]}`)
	require.NoError(t, err)

	require.Len(t, s.TopTopics, 4)
	assert.Equal(t, 4, s.TopTopics[0].Index)
	assert.Equal(t, 2, s.TopTopics[1].Index)
	assert.Equal(t, 3, s.TopTopics[2].Index)
	assert.Equal(t, 5, s.TopTopics[3].Index, "position counts the undecodable entry")
}

func TestNormalizeCategoryIndexNotDefaulted(t *testing.T) {
	s, err := Normalize(`{"categories": {"経済・景気": [{"title": "no index"}]}}`)
	require.NoError(t, err)
	require.Len(t, s.Items("経済・景気"), 1)
	assert.Equal(t, 0, s.Items("経済・景気")[0].Index)
}

func TestNormalizeLenientItems(t *testing.T) {
	input := `{
	  "categories": {
	    "経済・景気": [
	      {"index": "3", "title": "物価", "summary": "s", "importance": "5"},
	      {"index": 4, "title": 99},
	      "not an item",
	      {"index": 5.0, "title": "景気", "importance": 9}
	    ]
	  },
	  "top_topics": [{"index": 3, "title": "物価"}]
	}`
	s, err := Normalize(input)
	require.NoError(t, err)

	items := s.Items("経済・景気")
	require.Len(t, items, 2)
	assert.Equal(t, CategoryItem{Index: 3, Title: "物価", Summary: "s", Importance: 5}, items[0])
	assert.Equal(t, 5, items[1].Index)
	assert.Equal(t, 5, items[1].Importance, "importance is clamped to 5")

	require.Len(t, s.TopTopics, 1)
	assert.Equal(t, 3, s.TopTopics[0].Importance, "missing importance decodes as 3")
}

func TestNormalizeMalformed(t *testing.T) {
	for _, input := range []string{
		"",
		"not json",
		"```json\n{\"daily_trend\": \n```",
		"null",
		"[1, 2, 3]",
	} {
		_, err := Normalize(input)
		require.Error(t, err, input)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		validResponse,
		`{"categories": {"その他": []}}`,
		`{"daily_trend": "plain string trend", "top_topics": [{"index": "1", "title": "a"}]}`,
		"```json\n{\"daily_trend\": {\"summary\": \"a<b & c\", \"keywords\": null}}\n```",
		offScheduleResponse,
		`{"top_topics": [{"title": "no index"}, {"title": "also none"}]}`,
		`{}`,
	}

	for _, input := range inputs {
		first, err := Normalize(input)
		require.NoError(t, err)

		encoded, err := json.Marshal(first)
		require.NoError(t, err)

		second, err := Normalize(string(encoded))
		require.NoError(t, err)
		assert.Equal(t, first, second, input)
		assertCanonicalShape(t, second)
	}
}

func TestExtractFenced(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", "\n{\"a\":1}\n"},
		{"```\n{\"a\":1}\n```", "\n{\"a\":1}\n"},
		{"```json{\"a\":1}", `{"a":1}`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, extractFenced(tt.input), tt.input)
	}
}
