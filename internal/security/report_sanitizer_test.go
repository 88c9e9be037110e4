package security

import (
	"strings"
	"testing"
)

// reportSanitizerはReportSanitizerServiceインターフェースを満たすことを検証
func TestReportSanitizer_ImplementsInterface(t *testing.T) {
	var _ ReportSanitizerService = (*reportSanitizer)(nil)
}

func TestSanitize_RemovesScriptTags(t *testing.T) {
	s := NewReportSanitizer()

	input := `<p>概要</p><script>alert("xss")</script>`
	got := s.Sanitize(input)

	if strings.Contains(got, "<script>") || strings.Contains(got, "alert") {
		t.Errorf("Sanitize() = %q, should remove script tag and its content", got)
	}
	if !strings.Contains(got, "<p>概要</p>") {
		t.Errorf("Sanitize() = %q, should keep allowed p tag", got)
	}
}

func TestSanitize_RemovesIframeAndEventHandlers(t *testing.T) {
	s := NewReportSanitizer()

	tests := []struct {
		name   string
		input  string
		banned string
	}{
		{"iframe除去", `<iframe src="https://evil.example"></iframe>本文`, "<iframe"},
		{"onclick除去", `<p onclick="steal()">本文</p>`, "onclick"},
		{"style除去", `<style>body{display:none}</style>本文`, "<style"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.input)
			if strings.Contains(got, tt.banned) {
				t.Errorf("Sanitize(%q) = %q, should not contain %q", tt.input, got, tt.banned)
			}
			if !strings.Contains(got, "本文") {
				t.Errorf("Sanitize(%q) = %q, should keep text content", tt.input, got)
			}
		})
	}
}

func TestSanitize_KeepsReportStructureTags(t *testing.T) {
	s := NewReportSanitizer()

	input := `<h2>分析</h2><ul><li>項目1</li></ul><pre><code>sample</code></pre>`
	got := s.Sanitize(input)

	for _, tag := range []string{"<h2>", "<ul>", "<li>", "<pre>", "<code>"} {
		if !strings.Contains(got, tag) {
			t.Errorf("Sanitize() = %q, should keep %s", got, tag)
		}
	}
}

// httpsリンクにはtarget=_blankとnoreferrerが付与されることを検証
func TestSanitize_HTTPSLinks_AddTargetBlankAndNoReferrer(t *testing.T) {
	s := NewReportSanitizer()

	input := `<a href="https://example.com/source">出典</a>`
	got := s.Sanitize(input)

	if !strings.Contains(got, `href="https://example.com/source"`) {
		t.Errorf("Sanitize() = %q, should keep https href", got)
	}
	if !strings.Contains(got, `target="_blank"`) {
		t.Errorf("Sanitize() = %q, should add target=_blank", got)
	}
	if !strings.Contains(got, "noreferrer") {
		t.Errorf("Sanitize() = %q, should add noreferrer", got)
	}
}

// https以外のスキームのリンクは無効化されることを検証
func TestSanitize_NonHTTPSLinks_Stripped(t *testing.T) {
	s := NewReportSanitizer()

	tests := []string{
		`<a href="http://example.com">平文リンク</a>`,
		`<a href="javascript:alert(1)">悪性リンク</a>`,
	}

	for _, input := range tests {
		got := s.Sanitize(input)
		if strings.Contains(got, `href="http://`) || strings.Contains(got, "javascript:") {
			t.Errorf("Sanitize(%q) = %q, should strip non-https href", input, got)
		}
	}
}

func TestSanitize_PlainMarkdownPassesThrough(t *testing.T) {
	s := NewReportSanitizer()

	input := "## Executive Summary\n\nレポートの本文です。\n\n- 項目1\n- 項目2"
	got := s.Sanitize(input)

	if !strings.Contains(got, "## Executive Summary") {
		t.Errorf("Sanitize() = %q, markdown headings should pass through", got)
	}
	if !strings.Contains(got, "- 項目1") {
		t.Errorf("Sanitize() = %q, markdown lists should pass through", got)
	}
}

// HTMLを含まないMarkdownは & や < を含めてバイト単位で変化しないことを検証。
// bluemondayが導入する実体参照エスケープを打ち消していることの確認。
func TestSanitize_PlainMarkdown_RoundTripsUnchanged(t *testing.T) {
	s := NewReportSanitizer()

	tests := []struct {
		name  string
		input string
	}{
		{"アンパサンド", "R&D投資が前年比で拡大した。"},
		{"不等号", "成長率は 5 < 10% の範囲に収まる。"},
		{"コードスパン", "判定は `a && b` で行う。"},
		{"複合", "## R&D Summary\n\n- シェアは 5 < 10%\n- 条件: `x < y && y > 0`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.input {
				t.Errorf("Sanitize(%q) = %q, want input unchanged", tt.input, got)
			}
		})
	}
}

func TestSanitize_EmptyInput_ReturnsEmpty(t *testing.T) {
	s := NewReportSanitizer()
	if got := s.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want empty string", got)
	}
}

// 同一入力に対して常に同一出力を返す（冪等性）ことを検証
func TestSanitize_Idempotent(t *testing.T) {
	s := NewReportSanitizer()

	input := `<h1>タイトル</h1><p>本文<script>x()</script></p>`
	once := s.Sanitize(input)
	twice := s.Sanitize(once)

	if once != twice {
		t.Errorf("Sanitize should be idempotent: once=%q twice=%q", once, twice)
	}
}
