package respond

import "regexp"

// Applied in order; more specific patterns first.
var secretPatterns = []struct {
	re   *regexp.Regexp
	mask string
}{
	{regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]+`), "sk-ant-****"},
	{regexp.MustCompile(`sk-or-[a-zA-Z0-9_-]+`), "sk-or-****"},
	{regexp.MustCompile(`csk-[a-zA-Z0-9]{10,}`), "csk-****"},
	{regexp.MustCompile(`sk-[a-zA-Z0-9]{10,}`), "sk-****"},
	{regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{20,}`), "gh*_****"},
	{regexp.MustCompile(`hf_[A-Za-z0-9]{10,}`), "hf_****"},
	{regexp.MustCompile(`AIza[0-9A-Za-z_-]{20,}`), "AIza****"},
	{regexp.MustCompile(`://([^:/@]*):([^@]+)@`), "://$1:****@"},
}

// SanitizeError returns err's message with API keys, tokens and DSN
// passwords masked.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, p := range secretPatterns {
		msg = p.re.ReplaceAllString(msg, p.mask)
	}
	return msg
}
