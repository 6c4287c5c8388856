package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はリモートAPIから取得したテキストのサニタイズ機能の
// インターフェースを定義する。投稿タイトル・本文・コメントの保存前に使用される。
type ContentSanitizerService interface {
	// SanitizePlainText は入力からHTMLタグを全て除去し、プレーンテキストを返す。
	// 投稿データはプレーンテキストの想定だが、リモートAPIは信頼境界の外にあるため、
	// script等のタグが混入しても保存前に除去される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizePlainText(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは全てのタグと属性を除去する。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizePlainText は入力からHTMLタグを全て除去し、プレーンテキストを返す。
// StrictPolicyはタグ除去後にエンティティをエスケープするため、
// 平文として扱えるようアンエスケープして返す。
func (s *contentSanitizer) SanitizePlainText(raw string) string {
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

var _ ContentSanitizerService = (*contentSanitizer)(nil)
