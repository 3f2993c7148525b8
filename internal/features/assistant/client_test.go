package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"serotonyl.ru/green-earth/internal/common"
)

func TestNormalizeBinColor(t *testing.T) {
	cases := map[string]BinColor{
		"yellow": BinYellow,
		" Blue ": BinBlue,
		"RED":    BinRed,
		"black":  BinBlack,
		"green":  BinBlack,
		"":       BinBlack,
		"жёлтый": BinBlack,
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeBinColor(in), in)
	}
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "secret", 5*time.Second)
}

func TestClassifyNormalizesResponse(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/classify-waste", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req ClassifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "https://img.test/bottle.jpg", req.ImageURL)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"waste_type": "PET bottle",
			"material":   "plastic",
			"recyclable": true,
			"bin_color":  "Purple",
			"confidence": 1.7,
		})
	})

	res, err := c.Classify(context.Background(), ClassifyRequest{ImageURL: "https://img.test/bottle.jpg"})
	require.NoError(t, err)
	require.Equal(t, BinBlack, res.BinColor)
	require.Equal(t, 1.0, res.Confidence)
	require.True(t, res.Recyclable)
}

func TestClassifyRequiresImage(t *testing.T) {
	c := NewClient("http://unused", "", time.Second)
	_, err := c.Classify(context.Background(), ClassifyRequest{})
	require.ErrorIs(t, err, common.ErrImageRequired)
}

func TestUpstreamErrors(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, common.ErrUpstreamRateLimited},
		{http.StatusPaymentRequired, common.ErrUpstreamQuotaExhausted},
		{http.StatusInternalServerError, common.ErrUpstreamUnavailable},
		{http.StatusBadGateway, common.ErrUpstreamUnavailable},
	}
	for _, tc := range cases {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"message":"модель устала"}`))
		})
		_, err := c.Classify(context.Background(), ClassifyRequest{ImageBase64: "aGk="})
		require.ErrorIs(t, err, tc.want, "status %d", tc.status)

		var ue *UpstreamError
		require.True(t, errors.As(err, &ue))
		require.Equal(t, tc.status, ue.Status)
		require.Equal(t, "модель устала", ue.Message)
	}
}

func TestDisplayMessage(t *testing.T) {
	require.Equal(t, common.ErrUpstreamRateLimited.Error(), DisplayMessage(&UpstreamError{Status: 429, Message: "slow down"}))
	require.Equal(t, common.ErrUpstreamQuotaExhausted.Error(), DisplayMessage(&UpstreamError{Status: 402}))
	require.Equal(t, "нет связи с моделью", DisplayMessage(&UpstreamError{Status: 500, Message: "нет связи с моделью"}))
	require.Equal(t, common.ErrUpstreamUnavailable.Error(), DisplayMessage(&UpstreamError{Status: 500}))
}

func TestNetworkFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, "", time.Second)
	_, err := c.Classify(context.Background(), ClassifyRequest{ImageURL: "x"})
	require.ErrorIs(t, err, common.ErrUpstreamUnavailable)
}

func TestStreamCollectsDeltas(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/eco-chat", r.URL.Path)
		var body struct {
			Messages []ChatMessage `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Messages, MaxChatMessages)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, part := range []string{
			"data: {\"choices\":[{\"delta\":{\"content\":\"Сдай \"}}]}\n\n",
			"data: {\"choices\":[{\"delta\":{\"con",
			"tent\":\"в жёлтый\"}}]}\n\n: keep-alive\n\n",
			"data: [DONE]\n\n",
			"data: {\"choices\":[{\"delta\":{\"content\":\"лишнее\"}}]}\n\n",
		} {
			_, _ = w.Write([]byte(part))
			flusher.Flush()
		}
	})

	history := make([]ChatMessage, 60)
	for i := range history {
		history[i] = ChatMessage{Role: RoleUser, Content: "куда батарейки?"}
	}
	var deltas []string
	full, err := c.Stream(context.Background(), history, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Сдай ", "в жёлтый"}, deltas)
	require.Equal(t, "Сдай в жёлтый", full)
}

func TestStreamErrorBody(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"message":"Пополните баланс"}`))
	})
	_, err := c.Stream(context.Background(), []ChatMessage{{Role: RoleUser, Content: "привет"}}, nil)
	require.ErrorIs(t, err, common.ErrUpstreamQuotaExhausted)
}
