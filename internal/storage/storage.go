// Package storage загружает файлы (записи звонков, фото сканов) в Cloudinary.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"

	"serotonyl.ru/green-earth/internal/common"
)

// Kind: тип ресурса в хранилище.
type Kind string

const (
	KindImage Kind = "image"
	// Аудио Cloudinary хранит как video
	KindVideo Kind = "video"
)

// Object: загруженный файл.
type Object struct {
	URL      string
	PublicID string
	Bytes    int64
}

// Uploader: всё, что нужно сервисам от хранилища.
type Uploader interface {
	Upload(ctx context.Context, r io.Reader, kind Kind, folder, publicID string) (*Object, error)
}

// Cloudinary: реализация Uploader поверх cloudinary-go.
type Cloudinary struct {
	api    *uploader.API
	folder string
}

// NewCloudinary создаёт клиента. root: корневая папка проекта в аккаунте.
func NewCloudinary(cloudName, apiKey, apiSecret, root string) (*Cloudinary, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("ошибка конфигурации Cloudinary: %w", err)
	}
	api, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации Cloudinary: %w", err)
	}
	return &Cloudinary{api: api, folder: root}, nil
}

// Upload загружает поток в папку root/folder.
func (c *Cloudinary) Upload(ctx context.Context, r io.Reader, kind Kind, folder, publicID string) (*Object, error) {
	result, err := c.api.Upload(ctx, r, uploader.UploadParams{
		Folder:       path.Join(c.folder, folder),
		PublicID:     publicID,
		ResourceType: string(kind),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки в Cloudinary: %w", err)
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("ошибка Cloudinary: %s", result.Error.Message)
	}
	return &Object{
		URL:      result.SecureURL,
		PublicID: result.PublicID,
		Bytes:    int64(result.Bytes),
	}, nil
}

// Disabled: хранилище без ключей. Любая загрузка → ErrStorageDisabled.
type Disabled struct{}

// Upload всегда возвращает ErrStorageDisabled.
func (Disabled) Upload(context.Context, io.Reader, Kind, string, string) (*Object, error) {
	return nil, common.ErrStorageDisabled
}
