// Package avatars stores uploaded avatar images on disk and hands back
// the web path under which the static file server exposes them.
package avatars

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type Store struct {
	// dir is the on-disk directory, e.g. static/avatars
	dir string
	// webPrefix is the URL prefix the dir is served under, e.g. /static/avatars
	webPrefix string
}

func NewStore(dir, webPrefix string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("avatars dir cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create avatars dir: %w", err)
	}
	return &Store{
		dir:       dir,
		webPrefix: strings.TrimSuffix(webPrefix, "/"),
	}, nil
}

// Save stores the uploaded blob under {username}_{random}{ext} and
// returns the web path to record in the registry. The original file
// name only contributes its extension.
func (s *Store) Save(username, originalFilename string, r io.Reader) (string, error) {
	filename := fmt.Sprintf(
		"%s_%s%s",
		username,
		strings.ReplaceAll(uuid.NewString(), "-", ""),
		filepath.Ext(originalFilename),
	)
	fullPath := filepath.Join(s.dir, filename)

	f, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("create avatar file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Errorf("close avatar file %s: %s", fullPath, err)
		}
	}()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write avatar file: %w", err)
	}

	return path.Join(s.webPrefix, filename), nil
}
