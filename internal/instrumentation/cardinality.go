package instrumentation

import "strings"

// Label values are bounded before they reach a metric. Methods come from
// untrusted input, so anything outside the known set collapses to "other".

const methodOther = "other"

var knownMethods = map[string]bool{
	"initialize":                true,
	"ping":                      true,
	"tools/list":                true,
	"tools/call":                true,
	"notifications/initialized": true,
	"notifications/cancelled":   true,
}

// NormalizeMethod maps a JSON-RPC method to a bounded label value.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	if strings.HasPrefix(method, "notifications/") {
		return "notifications/other"
	}
	return methodOther
}

// ExtractUserDomain extracts the domain part from an email address.
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")           // "unknown"
func ExtractUserDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "unknown"
	}
	return strings.TrimSuffix(email[at+1:], ">")
}
