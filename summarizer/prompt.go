package summarizer

import (
	"fmt"
	"strings"

	"nikkei-digest/feed"
)

const noSummaryPlaceholder = "(概要なし)"

// BuildPrompt renders the single generation request shared by every remote
// backend.
func BuildPrompt(articles []feed.Article) string {
	var list strings.Builder
	for i, a := range articles {
		if i > 0 {
			list.WriteString("\n\n")
		}
		summary := a.Summary
		if summary == "" {
			summary = noSummaryPlaceholder
		}
		fmt.Fprintf(&list, "【記事%d】\nタイトル: %s\n概要: %s", i+1, a.Title, summary)
	}

	var schema strings.Builder
	for i, c := range Categories {
		if i == 0 {
			fmt.Fprintf(&schema, "        %q: [\n            {\"index\": 記事番号, \"title\": \"タイトル\", \"summary\": \"2-3行の要約\", \"importance\": 1-5}\n        ]", c)
			continue
		}
		fmt.Fprintf(&schema, ",\n        %q: [...]", c)
	}

	return fmt.Sprintf(`次の日経新聞の記事一覧を読み、指定のJSON形式で分析結果を出力してください。

【記事一覧】
%s

【出力形式】
{
    "daily_trend": {
        "summary": "記事全体から読み取れる本日の動向を3-5行で",
        "keywords": ["キーワード1", "キーワード2", "キーワード3"]
    },
    "categories": {
%s
    },
    "top_topics": [
        {"index": 記事番号, "title": "タイトル", "summary": "要約", "importance": 1-5, "category": "分野"}
    ]
}

【指示】
1. 各記事を上記7分野のうち最も適切な1つに分類してください
2. 各記事を2-3行で要約してください
3. 重要度を1-5で評価してください（5が最重要）
4. top_topicsには重要度の高い記事を最大5件選んでください
5. JSONオブジェクトのみを出力し、説明文は付けないでください
`, list.String(), schema.String())
}
