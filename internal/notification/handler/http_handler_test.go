package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"followup_backend/internal/notification/inapp"
	"followup_backend/platform/apperr"
	"followup_backend/platform/httpkit"
	"followup_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubStore struct {
	items     []inapp.Notification
	unread    int
	lastLimit int
	marked    []uuid.UUID
	allRead   bool
}

func (s *stubStore) Create(_ context.Context, p inapp.CreateParams) (inapp.Notification, error) {
	return inapp.Notification{ID: uuid.New(), UserID: p.UserID, Kind: p.Kind, Title: p.Title}, nil
}

func (s *stubStore) List(_ context.Context, _ uuid.UUID, limit, _ int) ([]inapp.Notification, int, error) {
	s.lastLimit = limit
	return s.items, len(s.items), nil
}

func (s *stubStore) CountUnread(context.Context, uuid.UUID) (int, error) {
	return s.unread, nil
}

func (s *stubStore) MarkRead(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	for _, item := range s.items {
		if item.ID == id {
			s.marked = append(s.marked, id)
			return nil
		}
	}
	return apperr.NotFound("notification not found")
}

func (s *stubStore) MarkAllRead(context.Context, uuid.UUID) error {
	s.allRead = true
	return nil
}

type response struct {
	OK        bool            `json:"ok"`
	Data      json.RawMessage `json:"data"`
	ErrorKind string          `json:"errorKind"`
}

func newEngine(store *stubStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	group := engine.Group("/notifications", func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, uuid.New())
		c.Set(httpkit.ContextRolesKey, []string{})
		c.Next()
	})
	NewHTTPHandler(inapp.NewService(store, logger.Discard())).RegisterRoutes(group)
	return engine
}

func perform(t *testing.T, engine *gin.Engine, method, path string) (int, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var body response
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec.Code, body
}

func TestListCapsPageSize(t *testing.T) {
	store := &stubStore{items: []inapp.Notification{{ID: uuid.New(), Title: "Follow-up due"}}}
	code, body := perform(t, newEngine(store), http.MethodGet, "/notifications?limit=500")

	if code != http.StatusOK || !body.OK {
		t.Fatalf("expected ok, got %d %+v", code, body)
	}
	if store.lastLimit != maxPageSize {
		t.Fatalf("expected limit %d, got %d", maxPageSize, store.lastLimit)
	}
	var data struct {
		Total int `json:"total"`
		Page  int `json:"page"`
	}
	if err := json.Unmarshal(body.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Total != 1 || data.Page != 1 {
		t.Fatalf("unexpected page data %+v", data)
	}
}

func TestCountUnread(t *testing.T) {
	code, body := perform(t, newEngine(&stubStore{unread: 3}), http.MethodGet, "/notifications/unread")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var data struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Count != 3 {
		t.Fatalf("expected count 3, got %d", data.Count)
	}
}

func TestMarkRead(t *testing.T) {
	id := uuid.New()
	store := &stubStore{items: []inapp.Notification{{ID: id}}}
	engine := newEngine(store)

	code, _ := perform(t, engine, http.MethodPatch, "/notifications/"+id.String()+"/read")
	if code != http.StatusOK || len(store.marked) != 1 {
		t.Fatalf("expected notification marked read, got %d %v", code, store.marked)
	}

	code, body := perform(t, engine, http.MethodPatch, "/notifications/not-a-uuid/read")
	if code != http.StatusBadRequest || body.ErrorKind != apperr.KindValidation.String() {
		t.Fatalf("expected validation error, got %d %+v", code, body)
	}

	code, body = perform(t, engine, http.MethodPatch, "/notifications/"+uuid.NewString()+"/read")
	if code != http.StatusNotFound || body.OK {
		t.Fatalf("expected not found, got %d %+v", code, body)
	}
}

func TestMarkAllRead(t *testing.T) {
	store := &stubStore{}
	code, _ := perform(t, newEngine(store), http.MethodPatch, "/notifications/read-all")
	if code != http.StatusOK || !store.allRead {
		t.Fatalf("expected all marked read, got %d", code)
	}
}
