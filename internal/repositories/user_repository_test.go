package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nox-relay/internal/models"
)

func TestRegisterBindsBothDirections(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	repo := NewUserRepo(WithClock(clock.Now))

	stored := repo.Register(ctx, "conn-1", models.User{ID: "u1", Username: "Alice"})
	assert.True(t, stored.IsOnline)
	assert.Equal(t, clock.Now(), stored.LastSeen)

	user, err := repo.ResolveUser(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Username)

	connID, ok := repo.ConnectionFor(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, "conn-1", connID)
}

func TestRegisterCurrentConnectionWins(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo()

	repo.Register(ctx, "conn-1", models.User{ID: "u1", Username: "Alice"})
	repo.Register(ctx, "conn-2", models.User{ID: "u1", Username: "Alice"})

	_, err := repo.ResolveUser(ctx, "conn-1")
	assert.ErrorIs(t, err, ErrUserNotFound)

	connID, ok := repo.ConnectionFor(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, "conn-2", connID)

	// the stale connection going away must not flip the user offline
	_, err = repo.MarkOffline(ctx, "conn-1")
	assert.ErrorIs(t, err, ErrUserNotFound)
	user, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, user.IsOnline)
}

func TestRegisterEvictsStaleBindingForConnection(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo()

	repo.Register(ctx, "conn-1", models.User{ID: "u1", Username: "Alice"})
	repo.Register(ctx, "conn-1", models.User{ID: "u2", Username: "Bob"})

	user, err := repo.ResolveUser(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "u2", user.ID)

	_, ok := repo.ConnectionFor(ctx, "u1")
	assert.False(t, ok)
	assert.Equal(t, 2, repo.Count(ctx))
}

func TestMarkOfflineKeepsRecord(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	repo := NewUserRepo(WithClock(clock.Now))
	repo.Register(ctx, "conn-1", models.User{ID: "u1", Username: "Alice"})

	clock.Advance(time.Minute)
	user, err := repo.MarkOffline(ctx, "conn-1")
	require.NoError(t, err)
	assert.False(t, user.IsOnline)
	assert.Equal(t, clock.Now(), user.LastSeen)

	_, err = repo.ResolveUser(ctx, "conn-1")
	assert.ErrorIs(t, err, ErrUserNotFound)

	stored, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, stored.IsOnline)
	assert.Equal(t, 1, repo.Count(ctx))
}

func TestMarkOfflineUnknownConnection(t *testing.T) {
	repo := NewUserRepo()
	_, err := repo.MarkOffline(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRemoveDeletesRecordAndBindings(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo()
	repo.Register(ctx, "conn-1", models.User{ID: "u1", Username: "Alice"})

	require.NoError(t, repo.Remove(ctx, "u1"))

	_, err := repo.GetUser(ctx, "u1")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = repo.ResolveUser(ctx, "conn-1")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, ok := repo.ConnectionFor(ctx, "u1")
	assert.False(t, ok)
	assert.Empty(t, repo.Search(ctx, "", ""))

	assert.ErrorIs(t, repo.Remove(ctx, "u1"), ErrUserNotFound)
}

func TestSearchCaseInsensitiveOnlineOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo()
	repo.Register(ctx, "c1", models.User{ID: "u1", Username: "Alice"})
	repo.Register(ctx, "c2", models.User{ID: "u2", Username: "Bob"})
	repo.Register(ctx, "c3", models.User{ID: "u3", Username: "Alina"})
	repo.Register(ctx, "c4", models.User{ID: "u4", Username: "MALIk"})
	_, err := repo.MarkOffline(ctx, "c4")
	require.NoError(t, err)

	found := repo.Search(ctx, "ali", "u2")
	require.Len(t, found, 2)
	assert.Equal(t, "Alice", found[0].Username)
	assert.Equal(t, "Alina", found[1].Username)

	found = repo.Search(ctx, "ALI", "u1")
	require.Len(t, found, 1)
	assert.Equal(t, "Alina", found[0].Username)
}

func TestSearchKeepsRegistrationOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo()
	for i := 0; i < SearchLimit+5; i++ {
		id := string(rune('a' + i))
		repo.Register(ctx, "conn-"+id, models.User{ID: id, Username: "user-" + id})
	}
	// re-registering keeps the original position
	repo.Register(ctx, "conn-x", models.User{ID: "a", Username: "user-a"})

	found := repo.Search(ctx, "user", "")
	require.Len(t, found, SearchLimit)
	assert.Equal(t, "a", found[0].ID)
	assert.Equal(t, "b", found[1].ID)
}

func TestPickRandomOnline(t *testing.T) {
	ctx := context.Background()
	var gotN int
	repo := NewUserRepo(WithRandom(func(n int) int {
		gotN = n
		return n - 1
	}))

	_, err := repo.PickRandomOnline(ctx, "u1")
	assert.ErrorIs(t, err, ErrNoCandidates)

	repo.Register(ctx, "c1", models.User{ID: "u1", Username: "Alice"})
	_, err = repo.PickRandomOnline(ctx, "u1")
	assert.ErrorIs(t, err, ErrNoCandidates)

	repo.Register(ctx, "c2", models.User{ID: "u2", Username: "Bob"})
	repo.Register(ctx, "c3", models.User{ID: "u3", Username: "Carol"})
	repo.Register(ctx, "c4", models.User{ID: "u4", Username: "Dan"})
	_, err = repo.MarkOffline(ctx, "c4")
	require.NoError(t, err)

	user, err := repo.PickRandomOnline(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, gotN)
	assert.Equal(t, "u3", user.ID)
}
