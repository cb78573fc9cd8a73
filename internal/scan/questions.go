// Package scan は画像解析（スキャン）の実行と結果の管理を提供する。
package scan

import "unicode/utf8"

// DefaultQuestionID は質問ID未指定・不明時に使う質問。
const DefaultQuestionID = "rics_analyze"

// previewRunes は一覧で返すプロンプトプレビューの最大文字数。
const previewRunes = 180

// Question は解析時にモデルへ渡す質問プロンプト。
type Question struct {
	ID     string
	Prompt string
}

// QuestionPreview は質問一覧APIで返す項目。
type QuestionPreview struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
}

// Catalog は質問プロンプトの一覧。IDの順序を保持する。
type Catalog struct {
	defaultID string
	order     []string
	byID      map[string]Question
}

// NewCatalog は質問一覧からCatalogを生成する。
// defaultIDが一覧に含まれない場合は先頭の質問をデフォルトとする。
func NewCatalog(defaultID string, questions ...Question) *Catalog {
	c := &Catalog{byID: make(map[string]Question, len(questions))}
	for _, q := range questions {
		if _, dup := c.byID[q.ID]; dup {
			continue
		}
		c.order = append(c.order, q.ID)
		c.byID[q.ID] = q
	}
	c.defaultID = defaultID
	if _, ok := c.byID[defaultID]; !ok && len(c.order) > 0 {
		c.defaultID = c.order[0]
	}
	return c
}

// DefaultCatalog は住宅調査用の標準の質問一覧を返す。
func DefaultCatalog() *Catalog {
	return NewCatalog(DefaultQuestionID,
		Question{
			ID: "rics_analyze",
			Prompt: "Act as a UK RICS residential surveyor. From the image(s), identify visible defects " +
				"(e.g., damp, mould, cracking, leaks, roof or joinery issues). Provide concise findings and " +
				"solutions aligned with RICS standards and guidance. Respond ONLY as strict JSON with this schema:\n" +
				"{\n  \"title\": string,\n  \"summary\": string,\n  \"findings\": string[],\n  \"recommended_actions\": string[],\n  \"risk_level\": one of [\"low\", \"moderate\", \"high\"],\n  \"keywords\": string[]\n}\n" +
				"Keep the language clear and professional.",
		},
		Question{
			ID: "general",
			Prompt: "You are a building pathology assistant. Extract visible issues and suggest practical next steps. " +
				"Return strict JSON (title, summary, findings[], recommended_actions[], risk_level, keywords[]).",
		},
		Question{
			ID: "rics_single_image",
			Prompt: "Act as a UK RICS residential surveyor. From this single image of a property area/room, identify any visible defects " +
				"(e.g., damp, mould, cracking, leaks, roof, joinery, finishes, services) and give concise remedial actions aligned with the " +
				"RICS Home Survey Standard and related guidance. Where relevant, briefly comment on habitability/fitness for occupation and " +
				"whether the observed issues could reasonably support a negotiation on purchase price (do NOT give a monetary figure). " +
				"Respond ONLY as strict JSON with this schema:\n" +
				"{\n  \"title\": string,\n  \"summary\": string,\n  \"findings\": string[],\n  \"recommended_actions\": string[],\n  \"risk_level\": one of [\"low\", \"moderate\", \"high\"],\n  \"keywords\": string[]\n}\n" +
				"Keep the language clear, objective, and in a professional tone.",
		},
	)
}

// DefaultID はデフォルトの質問IDを返す。
func (c *Catalog) DefaultID() string {
	return c.defaultID
}

// Resolve は質問IDに対応する質問を返す。
// 空・不明なIDの場合はデフォルトの質問を返す。
func (c *Catalog) Resolve(id string) Question {
	if q, ok := c.byID[id]; ok {
		return q
	}
	return c.byID[c.defaultID]
}

// Previews は質問一覧を登録順に返す。プロンプトは先頭180文字に切り詰める。
func (c *Catalog) Previews() []QuestionPreview {
	items := make([]QuestionPreview, 0, len(c.order))
	for _, id := range c.order {
		items = append(items, QuestionPreview{ID: id, Prompt: preview(c.byID[id].Prompt)})
	}
	return items
}

// preview は文字列を文字数単位で切り詰め、切り詰めた場合は省略記号を付ける。
func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	return string([]rune(s)[:previewRunes]) + "…"
}
