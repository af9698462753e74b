package auth

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *FileRegistry {
	t.Helper()
	return NewFileRegistry(filepath.Join(t.TempDir(), "users.csv"))
}

func TestFileRegistry_EmptyRegistry(t *testing.T) {
	registry := newTestRegistry(t)

	// missing file reads as empty, not as an error
	users, err := registry.All()
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = registry.Lookup("mila")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFileRegistry_InsertAndLookup(t *testing.T) {
	registry := newTestRegistry(t)

	user := User{
		Username:     "mila",
		PasswordHash: HashPassword("pw1"),
		AvatarPath:   "/static/avatars/mila_abc.png",
		Role:         RoleUser,
	}
	require.NoError(t, registry.Insert(user))

	got, err := registry.Lookup("mila")
	require.NoError(t, err)
	assert.Equal(t, user, got)

	_, err = registry.Lookup("someone-else")
	assert.ErrorIs(t, err, ErrUserNotFound)

	// duplicate username is a hard conflict
	err = registry.Insert(User{Username: "mila", Role: RoleAdmin})
	assert.ErrorIs(t, err, ErrUserExists)

	users, err := registry.All()
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestFileRegistry_HeaderOnFirstInsert(t *testing.T) {
	registry := newTestRegistry(t)
	require.NoError(t, registry.Insert(User{Username: "mila", PasswordHash: "h", Role: RoleUser}))

	f, err := os.Open(registry.path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"user", "password", "avatar", "role"}, rows[0])
	assert.Equal(t, []string{"mila", "h", "", "user"}, rows[1])
}

func TestFileRegistry_ConcurrentInserts_SameUsername(t *testing.T) {
	registry := newTestRegistry(t)

	const attempts = 16
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- registry.Insert(User{Username: "dupe", PasswordHash: "h", Role: RoleUser})
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, conflicted int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case err == ErrUserExists:
			conflicted++
		default:
			t.Fatalf("unexpected insert error: %s", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicted)
}

func TestFileRegistry_ConcurrentInserts_DistinctUsernames(t *testing.T) {
	registry := newTestRegistry(t)

	const count = 20
	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := registry.Insert(User{
				Username:     fmt.Sprintf("user-%d-%s", i, gofakeit.Username()),
				PasswordHash: HashPassword(gofakeit.Password(true, true, true, false, false, 10)),
				Role:         RoleUser,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	users, err := registry.All()
	require.NoError(t, err)
	assert.Len(t, users, count)
}
