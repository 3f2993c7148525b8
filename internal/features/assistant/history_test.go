package assistant

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistoryCacheRoundTrip(t *testing.T) {
	h := NewHistoryCache(t.TempDir())
	require.Empty(t, h.Load())

	var msgs []ChatMessage
	for i := 0; i < 70; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		msgs = append(msgs, ChatMessage{Role: role, Content: fmt.Sprintf("сообщение %d", i)})
	}
	require.NoError(t, h.Save(msgs))

	got := h.Load()
	require.Len(t, got, MaxChatMessages)
	require.Equal(t, "сообщение 20", got[0].Content)
	require.Equal(t, "сообщение 69", got[len(got)-1].Content)

	require.NoError(t, h.Clear())
	require.NoError(t, h.Clear())
	require.Empty(t, h.Load())
}

func TestHistoryCacheCorrupt(t *testing.T) {
	dir := t.TempDir()
	h := NewHistoryCache(dir)
	require.Equal(t, filepath.Join(dir, HistoryKey+".json"), h.Path())

	require.NoError(t, os.WriteFile(h.Path(), []byte(`[{"role":"user","content":`), 0o600))
	require.Empty(t, h.Load())
	_, err := os.Stat(h.Path())
	require.True(t, os.IsNotExist(err))
}

func TestHistoryCacheDropsInvalidEntries(t *testing.T) {
	h := NewHistoryCache(t.TempDir())
	require.NoError(t, os.WriteFile(h.Path(), []byte(`[
		{"role":"user","content":"привет"},
		{"role":"system","content":"секрет"},
		{"role":"assistant","content":""},
		{"role":"assistant","content":"здравствуйте"}
	]`), 0o600))
	require.Equal(t, []ChatMessage{
		{Role: RoleUser, Content: "привет"},
		{Role: RoleAssistant, Content: "здравствуйте"},
	}, h.Load())
}
