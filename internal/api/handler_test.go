package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/longkey1/llmnote/internal/llmnote/conversation"
	"github.com/longkey1/llmnote/internal/llmnote/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, messageCap int) (*gin.Engine, *conversation.Service) {
	t.Helper()
	svc := conversation.Open(context.Background(), store.NewMemoryBackend(), conversation.Options{})
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	handler := NewHandler(svc, Options{DefaultUserID: "alice", MessageCap: messageCap})
	return NewRouter(handler, zap.NewNop(), []string{"http://localhost:3000/"}), svc
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestCreateAndListConversations(t *testing.T) {
	r, _ := newTestRouter(t, 10)

	w := doJSON(t, r, http.MethodPost, "/api/conversations", map[string]string{"title": "Trip"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[conversation.Conversation](t, w)
	assert.Equal(t, "Trip", created.Title)
	assert.Equal(t, "alice", created.UserID)

	w = doJSON(t, r, http.MethodPost, "/api/conversations", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/conversations", map[string]string{"userId": "bob"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Conversations []conversation.Summary `json:"conversations"`
	}](t, w)
	assert.Len(t, list.Conversations, 2)

	w = doJSON(t, r, http.MethodGet, "/api/conversations?user_id=bob", nil)
	list = decode[struct {
		Conversations []conversation.Summary `json:"conversations"`
	}](t, w)
	assert.Len(t, list.Conversations, 1)
}

func TestAppendMessagesAppliesCap(t *testing.T) {
	r, svc := newTestRouter(t, 2)
	conv, err := svc.CreateConversation(context.Background(), conversation.CreateParams{})
	require.NoError(t, err)

	path := "/api/conversations/" + conv.ID + "/messages"
	body := map[string]any{"messages": []conversation.NewMessage{
		{Role: conversation.RoleUser, Content: "one"},
		{Role: conversation.RoleAssistant, Content: "two"},
		{Role: conversation.RoleUser, Content: "three"},
	}}

	w := doJSON(t, r, http.MethodPost, path, body)
	require.Equal(t, http.StatusOK, w.Code)
	result := decode[conversation.AppendResult](t, w)
	assert.Len(t, result.Created, 3)
	assert.Len(t, result.DeletedIDs, 1)

	// An explicit cap overrides the configured one
	body["cap"] = 5
	w = doJSON(t, r, http.MethodPost, path, body)
	require.Equal(t, http.StatusOK, w.Code)
	result = decode[conversation.AppendResult](t, w)
	assert.Len(t, result.DeletedIDs, 0)

	w = doJSON(t, r, http.MethodGet, "/api/conversations/"+conv.ID+"?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[conversation.Detail](t, w)
	assert.True(t, detail.Exists)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "two", detail.Messages[0].Content)
	assert.Equal(t, "three", detail.Messages[1].Content)
}

func TestAppendMessagesValidation(t *testing.T) {
	r, _ := newTestRouter(t, 10)

	w := doJSON(t, r, http.MethodPost, "/api/conversations/c1/messages", map[string]any{
		"messages": []map[string]string{{"role": "robot", "content": "x"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "invalid message role")

	w = doJSON(t, r, http.MethodPost, "/api/conversations/c1/messages", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMissingConversation(t *testing.T) {
	r, _ := newTestRouter(t, 10)

	w := doJSON(t, r, http.MethodGet, "/api/conversations/nope", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[conversation.Detail](t, w)
	assert.False(t, detail.Exists)
	assert.Equal(t, conversation.DefaultTitle, detail.Title)
	assert.Empty(t, detail.Messages)

	w = doJSON(t, r, http.MethodGet, "/api/conversations/nope?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateConversation(t *testing.T) {
	r, svc := newTestRouter(t, 10)
	conv, err := svc.CreateConversation(context.Background(), conversation.CreateParams{Title: "old"})
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPatch, "/api/conversations/"+conv.ID, map[string]string{"title": "new"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "new", decode[conversation.Conversation](t, w).Title)

	w = doJSON(t, r, http.MethodPatch, "/api/conversations/missing", map[string]string{"title": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "conversation not found", decode[map[string]string](t, w)["error"])
}

func TestDeleteConversations(t *testing.T) {
	r, svc := newTestRouter(t, 10)
	ctx := context.Background()
	a, err := svc.CreateConversation(ctx, conversation.CreateParams{})
	require.NoError(t, err)
	b, err := svc.CreateConversation(ctx, conversation.CreateParams{})
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodDelete, "/api/conversations/"+a.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]bool{"deleted": true}, decode[map[string]bool](t, w))

	w = doJSON(t, r, http.MethodDelete, "/api/conversations/"+a.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]bool{"deleted": false}, decode[map[string]bool](t, w))

	w = doJSON(t, r, http.MethodPost, "/api/conversations/delete", map[string][]string{"ids": {b.ID, "ghost"}})
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[conversation.DeleteReport](t, w)
	assert.Equal(t, []string{b.ID}, report.Deleted)
	assert.Equal(t, []string{"ghost"}, report.NotFound)
	assert.Empty(t, report.Failed)
}

type failingStore struct {
	Store
}

func (failingStore) CreateConversation(context.Context, conversation.CreateParams) (conversation.Conversation, error) {
	return conversation.Conversation{}, errors.New("disk on fire")
}

func TestInternalErrorsAreHidden(t *testing.T) {
	r := NewRouter(NewHandler(failingStore{}, Options{}), zap.NewNop(), nil)

	w := doJSON(t, r, http.MethodPost, "/api/conversations", map[string]string{"title": "x"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, map[string]string{"error": "internal server error"}, decode[map[string]string](t, w))
}

func TestCorsAllowedOrigin(t *testing.T) {
	r, _ := newTestRouter(t, 10)

	req := httptest.NewRequest(http.MethodOptions, "/api/conversations", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))
}

func TestCorsRejectsUnknownOrigin(t *testing.T) {
	r, svc := newTestRouter(t, 10)
	_, err := svc.CreateConversation(context.Background(), conversation.CreateParams{Title: "private"})
	require.NoError(t, err)

	for _, method := range []string{http.MethodOptions, http.MethodGet} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/api/conversations", nil)
			req.Header.Set("Origin", "https://evil.example")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			assert.NotContains(t, w.Body.String(), "private")
		})
	}
}

func TestCrossSiteTextPlainDeleteIsRefused(t *testing.T) {
	r, svc := newTestRouter(t, 10)
	conv, err := svc.CreateConversation(context.Background(), conversation.CreateParams{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		origin string
		want   int
	}{
		{name: "foreign origin", origin: "https://evil.example", want: http.StatusForbidden},
		{name: "no origin", origin: "", want: http.StatusUnsupportedMediaType},
		{name: "allowed origin", origin: "http://localhost:3000", want: http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := strings.NewReader(`{"ids":["` + conv.ID + `"]}`)
			req := httptest.NewRequest(http.MethodPost, "/api/conversations/delete", body)
			req.Header.Set("Content-Type", "text/plain")
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			assert.True(t, svc.GetConversation(conv.ID, 0).Exists)
		})
	}
}

func TestRequireJSONAcceptsCharset(t *testing.T) {
	r, _ := newTestRouter(t, 10)

	req := httptest.NewRequest(http.MethodPost, "/api/conversations", strings.NewReader(`{"title":"Notes"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Notes", decode[conversation.Conversation](t, w).Title)
}
