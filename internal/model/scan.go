package model

import "time"

// Scan はAI解析の実行結果を表す。
// AccountIDで所有者を特定し、他のアカウントからは参照できない。
type Scan struct {
	ID         string
	AccountID  string
	QuestionID string
	Model      string
	Raws       []string
	CreatedAt  time.Time
}
