// Package chat holds the conversation identity rules shared by the store, the
// socket layer and the client SDK.
package chat

// ConversationKey maps a pair of participant IDs to the stable key of their
// conversation. The pair is sorted first, so the key is identical regardless
// of who initiated. Returns "" if either ID is missing.
func ConversationKey(a, b string) string {
	if a == "" || b == "" {
		return ""
	}
	if a > b {
		a, b = b, a
	}
	return a + "_" + b
}
