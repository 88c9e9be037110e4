// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ReportSanitizerService はLLMが生成したMarkdownレポートに混入しうる
// 生HTMLをサニタイズし、フロントエンドでのレンダリング時の
// XSSリスクからユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグのみを通過させる。Markdown記法自体はHTMLではないため
// そのまま通過する。
package security

import (
	"html"
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// ReportSanitizerService はレポートコンテンツのサニタイズ機能のインターフェースを定義する。
// レポートの保存前およびAPI応答前に使用される。
type ReportSanitizerService interface {
	// Sanitize はレポートコンテンツをサニタイズして安全なテキストを返す。
	// 許可タグ（p, br, a, ul, ol, li, blockquote, pre, code, strong, em, h1〜h6, table系）
	// のみを通過させ、script, iframe, styleタグおよびon*イベント属性を除去する。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// reportSanitizer はReportSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type reportSanitizer struct {
	policy *bluemonday.Policy
}

// NewReportSanitizer はReportSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - 許可タグ: 見出し・段落・リスト・テーブル・整形済みテキストなどレポートの表現に必要なもの
//   - 禁止タグ: script, iframe, style および全てのon*イベント属性
//   - aタグ: href属性（httpsのみ）、target="_blank"とrel="noreferrer noopener"を強制付与
func NewReportSanitizer() *reportSanitizer {
	p := bluemonday.NewPolicy()

	// LLMの出力はMarkdownだが、生HTMLが混入した場合に備えて
	// レポート表現に必要なタグのみ許可する。
	// scriptやiframe等は許可リストに含めないことで自動的に除去される。
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "hr",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"table", "thead", "tbody", "tr", "th", "td",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &reportSanitizer{
		policy: p,
	}
}

// Sanitize はレポートコンテンツをサニタイズして安全なテキストを返す。
// bluemondayはテキストノード中の & や < を実体参照にエスケープするが、
// レポートはHTMLではなくMarkdownとして保存・配信するため元に戻す。
// 禁止タグはエスケープではなく除去されるので、アンエスケープで
// 除去済みのタグが復活することはない。
func (s *reportSanitizer) Sanitize(raw string) string {
	return html.UnescapeString(s.policy.Sanitize(raw))
}
