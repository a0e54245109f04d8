package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"github.com/example/ecocommute/internal/models"
)

// FileStorage keeps the notification sequence in a local JSON file. It is
// the fallback when no redis instance is configured.
type FileStorage struct {
	Path string
}

func NewFileStorage(path string) *FileStorage { return &FileStorage{Path: path} }

func (f *FileStorage) Load(ctx context.Context) ([]models.Notification, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var list []models.Notification
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (f *FileStorage) Save(ctx context.Context, list []models.Notification) error {
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	// Write-then-rename so a crash mid-write cannot leave a torn file.
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}
