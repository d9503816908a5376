package providers

import "strings"

// Channel config keys that become request headers on the news API call.
const (
	ConfigUserAgentKey      = "user_agent"
	ConfigAcceptKey         = "accept"
	ConfigAcceptLanguageKey = "accept_language"
	ConfigRefererKey        = "referer"
)

var headerKeys = []struct{ key, header string }{
	{ConfigUserAgentKey, "User-Agent"},
	{ConfigAcceptKey, "Accept"},
	{ConfigAcceptLanguageKey, "Accept-Language"},
	{ConfigRefererKey, "Referer"},
}

// ConfigString returns the trimmed string stored under key in ch.Config, or fallback.
func ConfigString(ch Channel, key, fallback string) string {
	val, ok := ch.Config[key].(string)
	if !ok || strings.TrimSpace(val) == "" {
		return fallback
	}
	return strings.TrimSpace(val)
}

// Headers returns the request headers configured for ch. Empty values are skipped.
func Headers(ch Channel) map[string]string {
	headers := make(map[string]string, len(headerKeys))
	for _, hk := range headerKeys {
		if v := ConfigString(ch, hk.key, ""); v != "" {
			headers[hk.header] = v
		}
	}
	return headers
}
