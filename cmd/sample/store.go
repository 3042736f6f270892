package main

import (
	"context"
	"html"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/a-h/templ"
)

// User is the core domain entity.
type User struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Avatar    *string   `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
}

type avatar struct {
	data        []byte
	contentType string
	filename    string
	caption     string
}

type userStore struct {
	mu      sync.RWMutex
	users   map[int]*User
	avatars map[int]avatar
	nextID  int
}

func newStore() *userStore {
	now := time.Now()
	return &userStore{
		users: map[int]*User{
			1: {ID: 1, Name: "Alice", Email: "alice@example.com", Role: "admin", CreatedAt: now},
			2: {ID: 2, Name: "Bob", Email: "bob@example.com", Role: "member", CreatedAt: now},
		},
		avatars: map[int]avatar{},
		nextID:  3,
	}
}

func (s *userStore) list(role string) []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		if role != "" && u.Role != role {
			continue
		}
		out = append(out, *u)
	}
	slices.SortFunc(out, func(a, b User) int { return a.ID - b.ID })
	return out
}

func (s *userStore) get(id int) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	cp := *u
	return &cp, true
}

func (s *userStore) create(name, email, role string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &User{
		ID:        s.nextID,
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now(),
	}
	s.nextID++
	s.users[u.ID] = u
	cp := *u
	return &cp
}

func (s *userStore) delete(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return false
	}
	delete(s.users, id)
	delete(s.avatars, id)
	return true
}

func (s *userStore) setAvatar(id int, av avatar) (*User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	s.avatars[id] = av
	name := av.filename
	u.Avatar = &name
	cp := *u
	return &cp, true
}

func (s *userStore) getAvatar(id int) (avatar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	av, ok := s.avatars[id]
	return av, ok
}

func userCard(u *User) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<article class="user"><h1>`+html.EscapeString(u.Name)+
			`</h1><p>`+html.EscapeString(u.Email)+`</p><p>`+html.EscapeString(u.Role)+`</p></article>`)
		return err
	})
}
