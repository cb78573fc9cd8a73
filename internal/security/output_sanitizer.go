// Package security はアプリケーションのセキュリティ機能を提供する。
//
// OutputSanitizer は解析モデルが生成したテキストからマークアップを除去する。
// 画像に写った文字列がそのままモデル出力に混入し得るため、保存前に必ず通す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はモデル出力のサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize はすべてのHTMLタグを除去したプレーンテキストを返す。
	// script, style等の要素は内容ごと除去する。
	// 結果はHTMLエスケープされないため、クライアントはテキストとして描画すること。
	Sanitize(raw string) string
}

// OutputSanitizer はTextSanitizerの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type OutputSanitizer struct {
	policy *bluemonday.Policy
}

// NewOutputSanitizer はOutputSanitizerの新しいインスタンスを生成する。
func NewOutputSanitizer() *OutputSanitizer {
	return &OutputSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はテキストからタグを除去する。
// StrictPolicyはテキストをエスケープして返すため、JSON等の構造を保つよう元に戻す。
func (s *OutputSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

var _ TextSanitizer = (*OutputSanitizer)(nil)
