package summarizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
)

const (
	jsonFence = "```json"
	fence     = "```"
)

// Normalize turns raw model output into a Summary. The text goes through
// fence extraction, control character removal and parsing, in that order.
// A missing daily_trend is replaced by a placeholder; every other missing or
// malformed part is left empty. The result always carries the seven fixed
// categories and at most MaxTopTopics topics. Errors wrap ErrMalformedResponse.
func Normalize(raw string) (*Summary, error) {
	text := stripControlChars(extractFenced(raw))
	text = strings.TrimSpace(text)

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &top); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if top == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedResponse)
	}

	return &Summary{
		DailyTrend: decodeTrend(top["daily_trend"]),
		Categories: decodeCategories(top["categories"]),
		TopTopics:  decodeTopTopics(top["top_topics"]),
	}, nil
}

// extractFenced returns the text between the first opening fence and the
// next closing fence. A ```json fence wins over a bare one.
func extractFenced(s string) string {
	for _, open := range []string{jsonFence, fence} {
		if _, after, ok := strings.Cut(s, open); ok {
			body, _, _ := strings.Cut(after, fence)
			return body
		}
	}
	return s
}

// stripControlChars drops 0x00-0x1F and 0x7F.
func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeTrend(raw json.RawMessage) DailyTrend {
	placeholder := DailyTrend{Summary: TrendUnavailable, Keywords: []string{}}
	if isNull(raw) {
		return placeholder
	}

	var obj struct {
		Summary  json.RawMessage   `json:"summary"`
		Keywords []json.RawMessage `json:"keywords"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		var text string
		if json.Unmarshal(raw, &text) == nil {
			return DailyTrend{Summary: text}
		}
		return placeholder
	}

	trend := DailyTrend{}
	_ = json.Unmarshal(obj.Summary, &trend.Summary)
	if obj.Keywords != nil {
		trend.Keywords = make([]string, 0, len(obj.Keywords))
		for _, k := range obj.Keywords {
			var kw string
			if json.Unmarshal(k, &kw) == nil {
				trend.Keywords = append(trend.Keywords, kw)
			}
		}
	}
	return trend
}

// decodeCategories returns all seven fixed labels. Items under a label
// outside the fixed set are filed under CategoryOther, in label order.
func decodeCategories(raw json.RawMessage) map[string][]CategoryItem {
	out := make(map[string][]CategoryItem, len(Categories))
	for _, c := range Categories {
		out[c] = []CategoryItem{}
	}
	if isNull(raw) {
		return out
	}
	var byName map[string][]json.RawMessage
	if err := json.Unmarshal(raw, &byName); err != nil {
		return out
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	// Known labels first, so CategoryOther keeps its own items ahead of
	// re-filed ones.
	sort.Slice(names, func(i, j int) bool {
		ki, kj := isCategory(names[i]), isCategory(names[j])
		if ki != kj {
			return ki
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		target := canonicalCategory(name)
		for _, r := range byName[name] {
			if it, ok := decodeItem(r, 0); ok {
				out[target] = append(out[target], it.CategoryItem)
			}
		}
	}
	return out
}

// decodeTopTopics keeps the first MaxTopTopics decodable topics. A topic
// without an index points at its 1-based position in the list.
func decodeTopTopics(raw json.RawMessage) []TopTopic {
	topics := []TopTopic{}
	if isNull(raw) {
		return topics
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(raw, &raws); err != nil {
		return topics
	}

	for i, r := range raws {
		if len(topics) == MaxTopTopics {
			break
		}
		if it, ok := decodeItem(r, i+1); ok {
			if it.Category != "" {
				it.Category = canonicalCategory(it.Category)
			}
			topics = append(topics, it)
		}
	}
	return topics
}

func isCategory(name string) bool {
	return slices.Contains(Categories, name)
}

func canonicalCategory(name string) string {
	if isCategory(name) {
		return name
	}
	return CategoryOther
}

type rawItem struct {
	Index      *flexInt `json:"index"`
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Importance *flexInt `json:"importance"`
	Category   string   `json:"category"`
}

// decodeItem decodes one item. defaultIndex is used when the item has no
// index.
func decodeItem(raw json.RawMessage, defaultIndex int) (TopTopic, bool) {
	var it rawItem
	if err := json.Unmarshal(raw, &it); err != nil {
		return TopTopic{}, false
	}

	index := defaultIndex
	if it.Index != nil {
		index = int(*it.Index)
	}

	importance := 3
	if it.Importance != nil {
		importance = clamp(int(*it.Importance), 1, 5)
	}
	return TopTopic{
		CategoryItem: CategoryItem{
			Index:      index,
			Title:      it.Title,
			Summary:    it.Summary,
			Importance: importance,
		},
		Category: it.Category,
	}, true
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	s := string(b)
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*f = flexInt(n)
	return nil
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
