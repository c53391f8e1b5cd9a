package store

import "regexp"

// secretPattern pairs a compiled regex with the marker name written in
// its place. Order matters: earlier entries claim their matches before
// broader ones get a look (AWS keys before generic sk- keys, Anthropic
// keys before generic sk- keys, and so on).
type secretPattern struct {
	re   *regexp.Regexp
	name string
}

var secretPatterns = []secretPattern{
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "AWS_KEY"},
	{regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`), "ANTHROPIC_KEY"},
	{regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`), "SK_KEY"},
	{regexp.MustCompile(`ghp_[a-zA-Z0-9]{36}|github_pat_[a-zA-Z0-9_]{20,}`), "GITHUB_TOKEN"},
	{regexp.MustCompile(`xox[bpsa]-[a-zA-Z0-9\-]{10,}`), "SLACK_TOKEN"},
	{regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`), "GOOGLE_KEY"},
	{regexp.MustCompile(`SG\.[a-zA-Z0-9\-_]{22,}\.[a-zA-Z0-9\-_]{22,}`), "SENDGRID_KEY"},
	{regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`), "PRIVATE_KEY"},
	{regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`), "JWT"},
	{regexp.MustCompile(`(?:mysql|postgresql|postgres|mongodb(?:\+srv)?|redis|amqp)://[^\s"']{10,}@`), "CONNECTION_STRING"},
	{regexp.MustCompile(`https://hooks\.slack\.com/services/[A-Za-z0-9/]+`), "SLACK_WEBHOOK"},
	{regexp.MustCompile(`https://discord\.com/api/webhooks/[0-9]+/[A-Za-z0-9_-]+`), "DISCORD_WEBHOOK"},
	{regexp.MustCompile(`(?i)(?:password|passwd|api_key|apikey|api_secret|secret_key|auth_token|access_token|private_key)\s*[:=]\s*["'][^"']{8,}["']`), "HARDCODED_CREDENTIAL"},
}

// Sanitize replaces every recognized secret in text with a
// [REDACTED:<TYPE>] marker. Non-secret content passes through unchanged;
// the same input always produces the same output. Already-redacted text
// is stable because markers match no pattern.
func Sanitize(text string) string {
	if text == "" {
		return text
	}
	for _, p := range secretPatterns {
		text = p.re.ReplaceAllString(text, "[REDACTED:"+p.name+"]")
	}
	return text
}

// sanitizePtr is the nullable-field variant of Sanitize.
func sanitizePtr(p *string) *string {
	if p == nil {
		return nil
	}
	clean := Sanitize(*p)
	return &clean
}

// sanitizeList redacts every element of a string list.
func sanitizeList(items []string) []string {
	if items == nil {
		return nil
	}
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = Sanitize(s)
	}
	return out
}
