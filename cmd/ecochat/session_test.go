package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/features/assistant"
)

type fakeStreamer struct {
	calls [][]assistant.ChatMessage
	fail  bool
}

func (f *fakeStreamer) Stream(_ context.Context, msgs []assistant.ChatMessage, onDelta func(string) error) (string, error) {
	f.calls = append(f.calls, append([]assistant.ChatMessage(nil), msgs...))
	if f.fail {
		return "", &assistant.UpstreamError{Status: 429}
	}
	for _, d := range []string{"Сдайте ", "в жёлтый ", "бак"} {
		if err := onDelta(d); err != nil {
			return "", err
		}
	}
	return "Сдайте в жёлтый бак", nil
}

func TestSessionPersistsAndRestoresHistory(t *testing.T) {
	dir := t.TempDir()
	chat := &fakeStreamer{}
	var out bytes.Buffer

	s := &session{
		chat:    chat,
		history: assistant.NewHistoryCache(dir),
		in:      strings.NewReader("куда пластик?\n\n/quit\n"),
		out:     &out,
	}
	require.NoError(t, s.run(context.Background()))
	require.Contains(t, out.String(), "🤖 Сдайте в жёлтый бак")
	require.Len(t, chat.calls, 1)

	// второй запуск показывает историю без запроса в сеть
	out.Reset()
	s2 := &session{
		chat:    chat,
		history: assistant.NewHistoryCache(dir),
		in:      strings.NewReader(""),
		out:     &out,
	}
	require.NoError(t, s2.run(context.Background()))
	require.Contains(t, out.String(), "> куда пластик?")
	require.Contains(t, out.String(), "🤖 Сдайте в жёлтый бак")
	require.Len(t, chat.calls, 1)
}

func TestSessionErrorKeepsHistory(t *testing.T) {
	dir := t.TempDir()
	chat := &fakeStreamer{fail: true}
	var out bytes.Buffer

	s := &session{
		chat:    chat,
		history: assistant.NewHistoryCache(dir),
		in:      strings.NewReader("привет\n"),
		out:     &out,
	}
	require.NoError(t, s.run(context.Background()))
	require.Contains(t, out.String(), common.ErrUpstreamRateLimited.Error())
	require.Empty(t, s.messages)
	require.Empty(t, assistant.NewHistoryCache(dir).Load())
}

func TestSessionClear(t *testing.T) {
	dir := t.TempDir()
	cache := assistant.NewHistoryCache(dir)
	require.NoError(t, cache.Save([]assistant.ChatMessage{{Role: assistant.RoleUser, Content: "старое"}}))

	var out bytes.Buffer
	s := &session{
		chat:    &fakeStreamer{},
		history: cache,
		in:      strings.NewReader("/clear\n"),
		out:     &out,
	}
	require.NoError(t, s.run(context.Background()))
	require.Contains(t, out.String(), "История очищена")
	require.Empty(t, cache.Load())
}
