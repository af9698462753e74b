package auth

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var registryHeader = []string{"user", "password", "avatar", "role"}

// Registry is the durable table of user accounts. The file-backed
// implementation is FileRegistry.
type Registry interface {
	Lookup(username string) (User, error)
	Insert(user User) error
	All() ([]User, error)
}

// FileRegistry keeps users in a flat CSV file with columns
// user, password, avatar, role. Every insert re-reads and rewrites the
// whole table; fine for the account counts this serves. The write goes
// to a temp file in the same directory followed by a rename, so readers
// never observe a half-written table.
type FileRegistry struct {
	path  string
	mutex sync.RWMutex
}

func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{path: path}
}

// Lookup finds a user by username. A missing registry file counts as an
// empty registry, not an error.
func (r *FileRegistry) Lookup(username string) (User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	users, err := r.readAll()
	if err != nil {
		return User{}, err
	}
	for _, u := range users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (r *FileRegistry) All() ([]User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.readAll()
}

// Insert adds a new user. The duplicate check and the table rewrite run
// under one writer lock, so two concurrent registrations for the same
// username cannot both pass the check.
func (r *FileRegistry) Insert(user User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	users, err := r.readAll()
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.Username == user.Username {
			return ErrUserExists
		}
	}

	users = append(users, user)
	return r.writeAll(users)
}

func (r *FileRegistry) readAll() ([]User, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open users file: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// first row is the header
	users := make([]User, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 4 {
			return nil, fmt.Errorf("malformed users file row: %v", row)
		}
		users = append(users, User{
			Username:     row[0],
			PasswordHash: row[1],
			AvatarPath:   row[2],
			Role:         Role(row[3]),
		})
	}
	return users, nil
}

func (r *FileRegistry) writeAll(users []User) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create users dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "users-*.csv")
	if err != nil {
		return fmt.Errorf("create temp users file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(registryHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("write users header: %w", err)
	}
	for _, u := range users {
		if err := w.Write([]string{u.Username, u.PasswordHash, u.AvatarPath, string(u.Role)}); err != nil {
			tmp.Close()
			return fmt.Errorf("write user row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush users file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp users file: %w", err)
	}

	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace users file: %w", err)
	}
	return nil
}
