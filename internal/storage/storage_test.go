package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"serotonyl.ru/green-earth/internal/common"
)

func TestDisabledUpload(t *testing.T) {
	var u Uploader = Disabled{}
	_, err := u.Upload(context.Background(), strings.NewReader("x"), KindVideo, "calls", "rec")
	require.ErrorIs(t, err, common.ErrStorageDisabled)
}

func TestNewCloudinaryConfig(t *testing.T) {
	c, err := NewCloudinary("demo", "key", "secret", "green-earth")
	require.NoError(t, err)
	require.Equal(t, "green-earth", c.folder)
}
