package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/hashnote/internal/attachments"
	"github.com/starford/hashnote/internal/content"
	"github.com/starford/hashnote/internal/noteservice"
	"github.com/starford/hashnote/internal/sse"
	"github.com/starford/hashnote/internal/testutil"
)

// testEnv sets up a temp SQLite DB, service, attachment store and router.
// An empty token means disabled auth; otherwise token mode.
func testEnv(t *testing.T, token string) (*noteservice.Service, http.Handler) {
	t.Helper()
	opts := AuthOptions{Mode: ModeDisabled}
	if token != "" {
		opts = AuthOptions{Mode: ModeToken, Token: token}
	}
	return testEnvWithAuth(t, NewAuth(opts), nil)
}

func testEnvWithAuth(t *testing.T, auth *Auth, broker *sse.Broker) (*noteservice.Service, http.Handler) {
	t.Helper()
	svc := noteservice.New(testutil.TestDB(t))
	_, fs := testutil.TestRoot(t)
	router := NewRouter(Deps{
		Notes:  svc,
		Auth:   auth,
		Assets: attachments.NewStore(attachments.NewLocal(fs, "/attachments")),
		Events: broker,
	})
	return svc, router
}

func do(t *testing.T, h http.Handler, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rdr = bytes.NewReader(data)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rdr)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body %s)", v, err, w.Body.String())
	}
	return v
}

func createNote(t *testing.T, h http.Handler, text string) content.DisplayNote {
	t.Helper()
	w := do(t, h, http.MethodPost, "/notes", map[string]any{"content": text})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	return decode[content.DisplayNote](t, w)
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes", map[string]any{
		"content":    "Hello #World\n#todo ship it",
		"image_urls": []string{"https://img/x.png"},
		"tags":       []string{"ignored"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decode[content.DisplayNote](t, w)
	if w.Header().Get("ETag") != `"`+created.Checksum+`"` {
		t.Errorf("etag = %q", w.Header().Get("ETag"))
	}
	if strings.Join(created.Tags, ",") != "world,todo" {
		t.Errorf("tags = %v", created.Tags)
	}

	w = do(t, router, http.MethodGet, "/notes/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	note := decode[content.DisplayNote](t, w)
	if note.Title != "Hello #World" {
		t.Errorf("title = %q", note.Title)
	}
	if note.ImageURL != "https://img/x.png" {
		t.Errorf("image = %q", note.ImageURL)
	}
	if strings.Contains(note.Content, "#") || strings.Contains(note.Content, "![") {
		t.Errorf("display content not sanitized: %q", note.Content)
	}
	if len(note.Todos) != 1 {
		t.Errorf("todos = %+v", note.Todos)
	}
}

func TestCreateNote_Validation(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodPost, "/notes", map[string]any{"content": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/notes", map[string]any{"image_urls": []string{""}}); w.Code != http.StatusBadRequest {
		t.Errorf("blank url = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/notes", map[string]any{"content": "   "}); w.Code != http.StatusBadRequest {
		t.Errorf("whitespace = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}

	if w := do(t, router, http.MethodPost, "/notes", map[string]any{"image_urls": []string{"https://x/y.png"}}); w.Code != http.StatusCreated {
		t.Errorf("image only = %d, want 201", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")
	created := createNote(t, router, "v1")

	w := do(t, router, http.MethodPut, "/notes/"+created.ID, map[string]any{"content": "v2"}, "If-Match", `"`+created.Checksum+`"`)
	if w.Code != http.StatusOK {
		t.Fatalf("update with correct checksum = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodPut, "/notes/"+created.ID, map[string]any{"content": "v3"}, "If-Match", created.Checksum)
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPut, "/notes/"+created.ID, map[string]any{"content": "v4"})
	if w.Code != http.StatusOK {
		t.Errorf("update without If-Match = %d, want 200", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	_, router := testEnv(t, "")
	created := createNote(t, router, "gone")

	if w := do(t, router, http.MethodDelete, "/notes/"+created.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/notes/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/notes/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "first #Go")
	createNote(t, router, "second #rust")
	createNote(t, router, "third #go")

	w := do(t, router, http.MethodGet, "/notes?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	if resp := decode[NoteListResponse](t, w); resp.Total != 3 || len(resp.Notes) != 3 {
		t.Errorf("total = %d, len = %d", resp.Total, len(resp.Notes))
	}

	resp := decode[NoteListResponse](t, do(t, router, http.MethodGet, "/notes?tag=%23GO&limit=1", nil))
	if resp.Total != 2 || len(resp.Notes) != 1 {
		t.Errorf("tag filter: total = %d, len = %d", resp.Total, len(resp.Notes))
	}

	for _, q := range []string{"limit=-1", "offset=-5", "limit=abc", "tag=not%20a%20tag", "limit=100000"} {
		if w := do(t, router, http.MethodGet, "/notes?"+q, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", q, w.Code)
		}
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "uniquetoken here")
	createNote(t, router, "something else #goal")

	resp := decode[NoteListResponse](t, do(t, router, http.MethodGet, "/search?q=UNIQUETOKEN", nil))
	if resp.Total != 1 {
		t.Errorf("content search = %d, want 1", resp.Total)
	}
	resp = decode[NoteListResponse](t, do(t, router, http.MethodGet, "/search?q=go", nil))
	if resp.Total != 1 {
		t.Errorf("tag substring search = %d, want 1", resp.Total)
	}
	resp = decode[NoteListResponse](t, do(t, router, http.MethodGet, "/notes?q=here", nil))
	if resp.Total != 1 {
		t.Errorf("list with q = %d, want 1", resp.Total)
	}
	if w := do(t, router, http.MethodGet, "/search?q=%20", nil); w.Code != http.StatusBadRequest {
		t.Errorf("blank query = %d, want 400", w.Code)
	}
}

func TestToggleTodoAndListTodos(t *testing.T) {
	_, router := testEnv(t, "")
	note := createNote(t, router, "#todo buy milk #todo call mom")

	w := do(t, router, http.MethodPost, "/notes/"+note.ID+"/todos/"+note.Todos[1].ID+"/toggle", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle = %d, body = %s", w.Code, w.Body.String())
	}
	toggled := decode[content.DisplayNote](t, w)
	if !toggled.Todos[1].Completed || toggled.Todos[0].Completed {
		t.Errorf("todos = %+v", toggled.Todos)
	}

	if w := do(t, router, http.MethodPost, "/notes/"+note.ID+"/todos/todo_missing/toggle", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown todo = %d, want 404", w.Code)
	}

	open := decode[TodoListResponse](t, do(t, router, http.MethodGet, "/todos?status=open", nil))
	if len(open.Todos) != 1 || open.Todos[0].Content != "buy milk" || open.Todos[0].NoteID != note.ID {
		t.Errorf("open = %+v", open.Todos)
	}
	done := decode[TodoListResponse](t, do(t, router, http.MethodGet, "/todos?status=done", nil))
	if len(done.Todos) != 1 || done.Todos[0].Content != "call mom" {
		t.Errorf("done = %+v", done.Todos)
	}
	if w := do(t, router, http.MethodGet, "/todos?status=someday", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad status = %d, want 400", w.Code)
	}
}

func TestTagsAndTagPages(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "#run 3k")
	createNote(t, router, "#run 5k #health")

	tags := decode[map[string][]struct {
		Tag   string `json:"tag"`
		Count int    `json:"count"`
	}](t, do(t, router, http.MethodGet, "/tags", nil))
	if len(tags["tags"]) != 2 || tags["tags"][0].Tag != "run" || tags["tags"][0].Count != 2 {
		t.Errorf("tags = %+v", tags)
	}

	w := do(t, router, http.MethodPut, "/tags/run", map[string]any{"goal": "sub 25", "target_days": 30})
	if w.Code != http.StatusOK {
		t.Fatalf("put tag page = %d, body = %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPut, "/tags/run", map[string]any{"target_days": -1}); w.Code != http.StatusBadRequest {
		t.Errorf("negative target = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPost, "/tags/run/checkins", map[string]any{"text": "easy"})
	if w.Code != http.StatusCreated {
		t.Fatalf("checkin = %d, body = %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPost, "/tags/run/checkins", nil); w.Code != http.StatusCreated {
		t.Errorf("checkin without body = %d", w.Code)
	}

	page := decode[noteservice.TagPageView](t, do(t, router, http.MethodGet, "/tags/RUN", nil))
	if page.Goal != "sub 25" || page.TargetDays != 30 || len(page.Notes) != 4 {
		t.Errorf("page = %+v", page)
	}
	if !page.Streak.CheckedInToday || page.Streak.Current != 1 {
		t.Errorf("streak = %+v", page.Streak)
	}

	if w := do(t, router, http.MethodGet, "/tags/bad%20tag", nil); w.Code != http.StatusBadRequest {
		t.Errorf("invalid tag = %d, want 400", w.Code)
	}
}

func TestUploadAttachment(t *testing.T) {
	_, router := testEnv(t, "")

	upload := func(name string, data []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, _ := mw.CreateFormFile("file", name)
		_, _ = fw.Write(data)
		_ = mw.Close()
		req := httptest.NewRequest(http.MethodPost, "/attachments", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)
	w := upload("Screen Shot.png", png)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	asset := decode[attachments.Asset](t, w)
	if !strings.HasPrefix(asset.URL, "/attachments/screen-shot-") || !strings.HasPrefix(asset.Markdown, "![") {
		t.Errorf("asset = %+v", asset)
	}

	if w := upload("notes.txt", []byte("hello")); w.Code != http.StatusBadRequest {
		t.Errorf("text upload = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/attachments", strings.NewReader("x"))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-multipart = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_Token(t *testing.T) {
	_, router := testEnv(t, "secret123")

	if w := do(t, router, http.MethodPost, "/notes", map[string]any{"content": "x"}, "Authorization", "Bearer secret123"); w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/notes", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/notes", nil, "Authorization", "Basic secret123"); w.Code != http.StatusUnauthorized {
		t.Errorf("basic auth = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestSSEEvents(t *testing.T) {
	broker := sse.NewBroker(time.Second)
	defer broker.Close()
	_, router := testEnvWithAuth(t, NewAuth(AuthOptions{Mode: ModeToken, Token: "tok"}), broker)

	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}

	for _, target := range []string{"/events", "/events?access_token=tok"} {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		req := httptest.NewRequest(http.MethodGet, target, nil).WithContext(ctx)
		if !strings.Contains(target, "access_token") {
			req.Header.Set("Authorization", "Bearer tok")
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		cancel()
		if w.Code != http.StatusOK {
			t.Errorf("%s = %d, want 200", target, w.Code)
		}
	}

	// The query token is only honoured on the events stream.
	if w := do(t, router, http.MethodGet, "/notes?access_token=tok", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("query token on /notes = %d, want 401", w.Code)
	}
}
