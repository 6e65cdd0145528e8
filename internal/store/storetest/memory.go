// Package storetest provides in-memory implementations of the store
// interfaces for handler and router tests. They follow the same contracts as
// the PostgreSQL stores: unique usernames and emails, store-boundary
// validation, owner scoping, cascade on user delete and all-or-nothing
// transactions.
package storetest

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"sceneit-backend/internal/models"
	"sceneit-backend/internal/store"
)

// DB is the shared state behind a UserStore and a MediaStore.
type DB struct {
	mu sync.Mutex

	users       map[int64]*models.User
	medias      map[int64]*models.Media
	nextUserID  int64
	nextMediaID int64

	// Now stamps created/modified times. Defaults to time.Now.
	Now func() time.Time
	// FailNext, when set, is returned by the next store call instead of
	// running it.
	FailNext error
}

func NewDB() *DB {
	return &DB{
		users:  make(map[int64]*models.User),
		medias: make(map[int64]*models.Media),
		Now:    time.Now,
	}
}

// Users returns a UserStore over db.
func (db *DB) Users() *UserStore { return &UserStore{db: db} }

// Media returns a MediaStore over db.
func (db *DB) Media() *MediaStore { return &MediaStore{db: db} }

type snapshot struct {
	users       map[int64]*models.User
	medias      map[int64]*models.Media
	nextUserID  int64
	nextMediaID int64
}

func (db *DB) snapshot() snapshot {
	s := snapshot{
		users:       make(map[int64]*models.User, len(db.users)),
		medias:      make(map[int64]*models.Media, len(db.medias)),
		nextUserID:  db.nextUserID,
		nextMediaID: db.nextMediaID,
	}
	for id, u := range db.users {
		c := *u
		s.users[id] = &c
	}
	for id, m := range db.medias {
		s.medias[id] = m.Clone()
	}
	return s
}

func (db *DB) restore(s snapshot) {
	db.users = s.users
	db.medias = s.medias
	db.nextUserID = s.nextUserID
	db.nextMediaID = s.nextMediaID
}

// withTx runs fn against the shared state and restores it if fn fails. The
// store lock is not held while fn runs, so fn may call back into the stores.
func (db *DB) withTx(fn func() error) error {
	db.mu.Lock()
	saved := db.snapshot()
	db.mu.Unlock()

	if err := fn(); err != nil {
		db.mu.Lock()
		db.restore(saved)
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *DB) takeFailure() error {
	err := db.FailNext
	db.FailNext = nil
	return err
}

// UserCount reports how many users exist.
func (db *DB) UserCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users)
}

// MediaCount reports how many media items exist across all users.
func (db *DB) MediaCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.medias)
}

// UserStore is an in-memory store.UserStore.
type UserStore struct {
	db *DB
}

var _ store.UserStore = (*UserStore)(nil)

func (s *UserStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure(); err != nil {
		return nil, err
	}

	for _, u := range s.db.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *UserStore) UsernameExists(_ context.Context, username string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure(); err != nil {
		return false, err
	}
	return s.db.usernameTaken(username, 0), nil
}

func (s *UserStore) EmailExists(_ context.Context, email string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure(); err != nil {
		return false, err
	}
	return s.db.emailTaken(&email, 0), nil
}

func (db *DB) usernameTaken(username string, exceptID int64) bool {
	for id, u := range db.users {
		if id != exceptID && u.Username == username {
			return true
		}
	}
	return false
}

func (db *DB) emailTaken(email *string, exceptID int64) bool {
	if email == nil {
		return false
	}
	for id, u := range db.users {
		if id != exceptID && u.Email != nil && *u.Email == *email {
			return true
		}
	}
	return false
}

func (s *UserStore) CreateUser(_ context.Context, user *models.User) error {
	if err := store.ValidateUser(user); err != nil {
		return err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure(); err != nil {
		return err
	}

	if s.db.usernameTaken(user.Username, 0) {
		return store.ErrUsernameExists
	}
	if s.db.emailTaken(user.Email, 0) {
		return store.ErrEmailExists
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	s.db.nextUserID++
	now := models.NormalizeInstant(s.db.Now())
	user.ID = s.db.nextUserID
	user.CreatedAt = now
	user.LastModifiedAt = now

	c := *user
	s.db.users[user.ID] = &c
	return nil
}

func (s *UserStore) UpdateUser(_ context.Context, user *models.User) error {
	if err := store.ValidateUser(user); err != nil {
		return err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure(); err != nil {
		return err
	}

	if _, ok := s.db.users[user.ID]; !ok {
		return store.ErrUserNotFound
	}
	if s.db.usernameTaken(user.Username, user.ID) {
		return store.ErrUsernameExists
	}
	if s.db.emailTaken(user.Email, user.ID) {
		return store.ErrEmailExists
	}

	user.LastModifiedAt = models.NormalizeInstant(s.db.Now())
	c := *user
	s.db.users[user.ID] = &c
	return nil
}

func (s *UserStore) DeleteUser(_ context.Context, id int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure(); err != nil {
		return err
	}

	if _, ok := s.db.users[id]; !ok {
		return store.ErrUserNotFound
	}
	delete(s.db.users, id)
	for mid, m := range s.db.medias {
		if m.UserID == id {
			delete(s.db.medias, mid)
		}
	}
	return nil
}

func (s *UserStore) WithTx(_ context.Context, fn func(store.UserStore) error) error {
	return s.db.withTx(func() error { return fn(s) })
}

// MediaStore is an in-memory store.MediaStore.
type MediaStore struct {
	db *DB
}

var _ store.MediaStore = (*MediaStore)(nil)

func (s *MediaStore) GetMediaByUser(_ context.Context, userID int64) ([]*models.Media, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure(); err != nil {
		return nil, err
	}

	out := make([]*models.Media, 0)
	for _, m := range s.db.medias {
		if m.UserID == userID {
			out = append(out, m.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.Media) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MediaStore) GetMediaByUserAndID(_ context.Context, userID, id int64) (*models.Media, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure(); err != nil {
		return nil, err
	}

	m, ok := s.db.medias[id]
	if !ok || m.UserID != userID {
		return nil, store.ErrMediaNotFound
	}
	return m.Clone(), nil
}

func (s *MediaStore) CreateMedia(_ context.Context, media *models.Media) error {
	if err := store.ValidateMedia(media); err != nil {
		return err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure(); err != nil {
		return err
	}

	if _, ok := s.db.users[media.UserID]; !ok {
		return store.ErrUserNotFound
	}

	s.db.nextMediaID++
	media.ID = s.db.nextMediaID
	media.CreatedAt = models.NormalizeInstant(s.db.Now())
	media.CompletionTimestamps = models.NewCompletionSet(media.CompletionTimestamps...)
	s.db.medias[media.ID] = media.Clone()
	return nil
}

func (s *MediaStore) UpdateMedia(_ context.Context, media *models.Media) error {
	if err := store.ValidateMedia(media); err != nil {
		return err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure(); err != nil {
		return err
	}

	existing, ok := s.db.medias[media.ID]
	if !ok || existing.UserID != media.UserID {
		return store.ErrMediaNotFound
	}

	media.CreatedAt = existing.CreatedAt
	media.CompletionTimestamps = models.NewCompletionSet(media.CompletionTimestamps...)
	s.db.medias[media.ID] = media.Clone()
	return nil
}

func (s *MediaStore) AddCompletion(_ context.Context, userID, id int64, t time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure(); err != nil {
		return err
	}

	m, ok := s.db.medias[id]
	if !ok || m.UserID != userID {
		return store.ErrMediaNotFound
	}
	m.CompletionTimestamps.Add(t)
	return nil
}

func (s *MediaStore) DeleteMedia(_ context.Context, userID, id int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.takeFailure(); err != nil {
		return err
	}

	m, ok := s.db.medias[id]
	if !ok || m.UserID != userID {
		return store.ErrMediaNotFound
	}
	delete(s.db.medias, id)
	return nil
}

func (s *MediaStore) WithTx(_ context.Context, fn func(store.MediaStore) error) error {
	return s.db.withTx(func() error { return fn(s) })
}
