package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

// MaxImageSize — лимит на загружаемое изображение товара.
const MaxImageSize = 5 << 20 // 5 MB

var (
	ErrNotAnImage = errors.New("uploaded file is not an image")
	ErrTooLarge   = errors.New("uploaded file exceeds the size limit")
)

// Storage сохраняет изображения товаров на локальный диск и отдаёт
// стабильный публичный путь. Байты картинок в БД не попадают.
type Storage struct {
	dir string
}

func New(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: failed to create media dir %s: %w", dir, err)
	}
	return &Storage{dir: dir}, nil
}

// SaveImage читает файл, проверяет размер и реальный MIME-тип
// (по содержимому, заголовкам запроса не верим) и сохраняет его
// под сгенерированным именем. Возвращает публичный путь /media/<имя>.
func (s *Storage) SaveImage(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("storage: failed to read uploaded file: %w", err)
	}
	if len(data) > MaxImageSize {
		return "", ErrTooLarge
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", ErrNotAnImage
	}

	name, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("storage: failed to generate file name: %w", err)
	}
	fileName := name.String() + mtype.Extension()

	fullPath := filepath.Join(s.dir, fileName)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: failed to write file %s: %w", fullPath, err)
	}

	log.Debug().Str("file", fileName).Str("mime", mtype.String()).Int("size", len(data)).Msg("storage: image saved")

	return "/media/" + fileName, nil
}

// Dir возвращает каталог с медиафайлами (для отдачи статики).
func (s *Storage) Dir() string {
	return s.dir
}
