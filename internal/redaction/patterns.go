package redaction

import "regexp"

// patternRule is one ordered entry of the fixed pattern pass (spec.md §4.2).
// match locates the span to redact within a line; for connectionURI rules
// only the userinfo sub-span is redacted, so match returns the narrower
// range via group indices rather than the whole match.
type patternRule struct {
	id    string
	re    *regexp.Regexp
	group int // capture group to redact; 0 means the whole match
}

// Ordered exactly as spec.md §4.2 lists them. Order matters only insofar as
// report.PatternsHit records ids in the order rules are defined; redact
// itself is a single linear left-to-right scan per rule so later rules never
// see replacements made by earlier ones within the same call, since each
// rule is applied to the then-current buffer.
var patternRules = []patternRule{
	{
		id:    "secret_key_value",
		re:    regexp.MustCompile(`(?i)(password|passwd|pwd|token|api[_-]?key|secret|access[_-]?key)\s*[=:]\s*("[^"]*"|'[^']*'|\S+)`),
		group: 2,
	},
	{
		id:    "auth_header",
		re:    regexp.MustCompile(`(?i)authorization:\s*(bearer|basic)\s+(\S+)`),
		group: 2,
	},
	{
		id:    "connection_uri_userinfo",
		re:    regexp.MustCompile(`(?i)(postgres|mysql|mongodb|redis|amqp|mssql)://([^\s"'@]*)@`),
		group: 2,
	},
	{
		id:    "aws_access_key",
		re:    regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
		group: 0,
	},
	{
		id:    "aws_secret_access_key",
		re:    regexp.MustCompile(`(?i)aws_secret_access_key\s*=\s*(\S+)`),
		group: 1,
	},
	{
		id:    "pem_private_key",
		re:    regexp.MustCompile(`(?s)-----BEGIN[ A-Z0-9]*PRIVATE KEY-----.*?-----END[ A-Z0-9]*PRIVATE KEY-----`),
		group: 0,
	},
}

// isSensitiveKey reports whether a bare key name (e.g. an environment
// variable name) looks like a secret, using the same key vocabulary as the
// secret_key_value pattern. Used by the Dependency detector (§4.7) to flag
// sensitive env names without ever touching their (never-stored) values.
var sensitiveKeyPattern = regexp.MustCompile(`(?i)^(password|passwd|pwd|token|api[_-]?key|secret|access[_-]?key)`)

func isSensitiveKey(name string) bool {
	return sensitiveKeyPattern.MatchString(name)
}
