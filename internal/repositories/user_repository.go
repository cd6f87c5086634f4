package repositories

import (
	"context"
	"errors"
	"strings"
	"sync"

	"nox-relay/internal/models"
)

// SearchLimit caps the number of users returned by Search.
const SearchLimit = 10

var (
	ErrUserNotFound = errors.New("user not found")
	ErrNoCandidates = errors.New("no online users available")
)

// UserRepository abstracts the presence directory and connection bindings.
type UserRepository interface {
	Register(ctx context.Context, connID string, user models.User) models.User
	ResolveUser(ctx context.Context, connID string) (models.User, error)
	GetUser(ctx context.Context, userID string) (models.User, error)
	ConnectionFor(ctx context.Context, userID string) (string, bool)
	MarkOffline(ctx context.Context, connID string) (models.User, error)
	Remove(ctx context.Context, userID string) error
	Search(ctx context.Context, query string, excludingUserID string) []models.User
	PickRandomOnline(ctx context.Context, excludingUserID string) (models.User, error)
	Count(ctx context.Context) int
}

// UserRepo is an in-memory UserRepository.
type UserRepo struct {
	mu         sync.RWMutex
	users      map[string]*models.User
	order      []string
	connToUser map[string]string
	userToConn map[string]string
	opts       options
}

// NewUserRepo constructs an empty UserRepo.
func NewUserRepo(opts ...Option) *UserRepo {
	return &UserRepo{
		users:      make(map[string]*models.User),
		connToUser: make(map[string]string),
		userToConn: make(map[string]string),
		opts:       buildOptions(opts),
	}
}

// Register stores the user as online and binds it to connID, replacing any
// earlier binding of either side.
func (r *UserRepo) Register(ctx context.Context, connID string, user models.User) models.User {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prevUser, ok := r.connToUser[connID]; ok && prevUser != user.ID {
		delete(r.userToConn, prevUser)
	}
	if prevConn, ok := r.userToConn[user.ID]; ok && prevConn != connID {
		delete(r.connToUser, prevConn)
	}

	user.IsOnline = true
	user.LastSeen = r.opts.now()
	if _, exists := r.users[user.ID]; !exists {
		r.order = append(r.order, user.ID)
	}
	stored := user
	r.users[user.ID] = &stored
	r.connToUser[connID] = user.ID
	r.userToConn[user.ID] = connID
	return stored
}

// ResolveUser returns the user currently bound to connID.
func (r *UserRepo) ResolveUser(ctx context.Context, connID string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.connToUser[connID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	user, ok := r.users[userID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return *user, nil
}

// GetUser fetches a user by id regardless of presence.
func (r *UserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return *user, nil
}

// ConnectionFor returns the connection bound to userID, if any.
func (r *UserRepo) ConnectionFor(ctx context.Context, userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connID, ok := r.userToConn[userID]
	return connID, ok
}

// MarkOffline flags the user bound to connID as offline and drops the binding.
// The user record is kept.
func (r *UserRepo) MarkOffline(ctx context.Context, connID string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.connToUser[connID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	delete(r.connToUser, connID)
	if r.userToConn[userID] == connID {
		delete(r.userToConn, userID)
	}

	user, ok := r.users[userID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	user.IsOnline = false
	user.LastSeen = r.opts.now()
	return *user, nil
}

// Remove deletes the user record and both binding directions.
func (r *UserRepo) Remove(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; !ok {
		return ErrUserNotFound
	}
	delete(r.users, userID)
	if connID, ok := r.userToConn[userID]; ok {
		delete(r.connToUser, connID)
		delete(r.userToConn, userID)
	}
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Search returns online users whose username contains query, case-insensitively,
// in registration order.
func (r *UserRepo) Search(ctx context.Context, query string, excludingUserID string) []models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(query)
	found := make([]models.User, 0, SearchLimit)
	for _, id := range r.order {
		if len(found) == SearchLimit {
			break
		}
		user := r.users[id]
		if user == nil || !user.IsOnline || user.ID == excludingUserID {
			continue
		}
		if strings.Contains(strings.ToLower(user.Username), needle) {
			found = append(found, *user)
		}
	}
	return found
}

// PickRandomOnline chooses uniformly among online users other than the caller.
func (r *UserRepo) PickRandomOnline(ctx context.Context, excludingUserID string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := make([]*models.User, 0, len(r.order))
	for _, id := range r.order {
		user := r.users[id]
		if user != nil && user.IsOnline && user.ID != excludingUserID {
			candidates = append(candidates, user)
		}
	}
	if len(candidates) == 0 {
		return models.User{}, ErrNoCandidates
	}
	return *candidates[r.opts.intn(len(candidates))], nil
}

// Count returns the number of known users, online or not.
func (r *UserRepo) Count(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
