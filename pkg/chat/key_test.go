package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationKeySymmetric(t *testing.T) {
	assert.Equal(t, ConversationKey("alice", "bob"), ConversationKey("bob", "alice"))
	assert.Equal(t, "alice_bob", ConversationKey("bob", "alice"))
}

func TestConversationKeyDistinctPairs(t *testing.T) {
	// Different pairs must never collide
	assert.NotEqual(t, ConversationKey("a", "b"), ConversationKey("a", "c"))
	assert.NotEqual(t, ConversationKey("a", "b"), ConversationKey("b", "c"))
}

func TestConversationKeyMissingID(t *testing.T) {
	assert.Equal(t, "", ConversationKey("", "bob"))
	assert.Equal(t, "", ConversationKey("alice", ""))
}
