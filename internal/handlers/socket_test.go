package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionRegistry_MultiTab(t *testing.T) {
	r := newConnectionRegistry()

	// First session flips the user online
	assert.True(t, r.add("user1", "sock-a"))
	assert.True(t, r.isOnline("user1"))

	// Second tab does not re-announce
	assert.False(t, r.add("user1", "sock-b"))

	// Dropping one tab keeps the user online
	userID, last := r.remove("sock-a")
	assert.Equal(t, "user1", userID)
	assert.False(t, last)
	assert.True(t, r.isOnline("user1"))

	// Dropping the last session takes the user offline
	userID, last = r.remove("sock-b")
	assert.Equal(t, "user1", userID)
	assert.True(t, last)
	assert.False(t, r.isOnline("user1"))
}

func TestConnectionRegistry_RemoveUnknownSocket(t *testing.T) {
	r := newConnectionRegistry()

	userID, last := r.remove("never-registered")
	assert.Equal(t, "", userID)
	assert.False(t, last)
}

func TestConnectionRegistry_OnlineUsers(t *testing.T) {
	r := newConnectionRegistry()
	r.add("user1", "s1")
	r.add("user2", "s2")
	r.add("user2", "s3")

	users := r.onlineUsers()
	assert.Len(t, users, 2)
	assert.ElementsMatch(t, []string{"user1", "user2"}, users)
}
