package aipipeline

import "regexp"

// PII 脱敏占位符
const (
	placeholderEmail = "[EMAIL_REDACTED]"
	placeholderPhone = "[PHONE_REDACTED]"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// 7 位以上的电话号码，允许国际前缀、空格、短横线、括号分隔
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{5,}\d`)
)

// RedactPII 将正文中的邮箱和电话替换为固定占位符
// 仅在租户开启 redact_pii 时由 Gateway 在发送给提供方之前调用；
// 关闭时原文原样透传。
func RedactPII(text string) string {
	redacted := emailPattern.ReplaceAllString(text, placeholderEmail)
	redacted = phonePattern.ReplaceAllString(redacted, placeholderPhone)
	return redacted
}
