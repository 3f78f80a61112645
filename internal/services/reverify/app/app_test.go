package app

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	grpcx "github.com/louisbranch/reverify/internal/platform/grpc"
	"github.com/louisbranch/reverify/internal/platform/session"
	"github.com/louisbranch/reverify/internal/services/reverify/photo"
	"github.com/louisbranch/reverify/internal/services/reverify/routepath"
	reverifysqlite "github.com/louisbranch/reverify/internal/services/reverify/storage/sqlite"
	"github.com/louisbranch/reverify/internal/services/reverify/verification"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type testEnv struct {
	handler http.Handler
	service *verification.Service
	token   string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	store, err := reverifysqlite.Open(context.Background(), filepath.Join(t.TempDir(), "reverify.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	service, err := verification.NewService(verification.Config{Store: store})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	sessions, err := session.NewManager(session.Config{Key: testKey})
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	token, err := sessions.Issue("user-1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	handler, err := NewHandler(Dependencies{Service: service, Sessions: sessions})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return testEnv{handler: handler, service: service, token: token}
}

func (e testEnv) do(req *http.Request, authed bool) *httptest.ResponseRecorder {
	if authed {
		req.AddCookie(session.Cookie(e.token, false))
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func pngDataURL(t *testing.T) string {
	t.Helper()
	return photo.DataURL("image/png", pngBytes(t))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 48, 48))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestNewHandlerRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(Dependencies{}); err == nil {
		t.Fatal("expected missing service error")
	}
}

func TestHealthIsPublic(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rr := env.do(httptest.NewRequest(http.MethodGet, routepath.Health, nil), false)
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "ok" {
		t.Fatalf("health = %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestPageRequiresSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rr := env.do(httptest.NewRequest(http.MethodGet, routepath.Reverify("course-1", "midterm"), nil), false)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Please sign in to continue.") {
		t.Fatalf("body = %q", rr.Body.String())
	}
}

func TestPageRendersReverifyDocument(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rr := env.do(httptest.NewRequest(http.MethodGet, routepath.Reverify("course-v1:edX+DemoX", "midterm"), nil), true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{`id="incourse-reverify-container"`, `id="submit"`, "webcam-capture", "course-v1:edX+DemoX", `id="error-container"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("page missing %q:\n%s", want, body)
		}
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, routepath.Reverify("c", "m")+"?camera=none", nil), true)
	if !strings.Contains(rr.Body.String(), "upload-capture") {
		t.Fatalf("expected upload widget without camera:\n%s", rr.Body.String())
	}
}

func TestPageLocalizesFromQuery(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rr := env.do(httptest.NewRequest(http.MethodGet, routepath.Reverify("c", "m")+"?lang=pt-BR", nil), true)
	if !strings.Contains(rr.Body.String(), "Confirme sua identidade novamente") {
		t.Fatalf("expected pt-BR page:\n%s", rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("Set-Cookie"), "reverify_lang=pt-BR") {
		t.Fatalf("expected language cookie, got %q", rr.Header().Get("Set-Cookie"))
	}
}

func TestPersistEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	target := routepath.VerifyPersist("course-1", "midterm")

	rr := env.do(formRequest(target, url.Values{"face_image": {pngDataURL(t)}}), false)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rr.Code)
	}

	rr = env.do(formRequest(target, url.Values{"face_image": {pngDataURL(t)}}), true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	recent, err := env.service.Recent(context.Background(), "user-1", 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 || recent[0].CourseID != "course-1" || recent[0].CheckpointID != "midterm" {
		t.Fatalf("recent = %+v", recent)
	}

	rr = env.do(formRequest(target, url.Values{"face_image": {"data:image/png;base64,aGVsbG8="}}), true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid photo status = %d, want 400", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "The photo is not a valid image." {
		t.Fatalf("invalid photo body = %q", got)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}

	req := formRequest(target, url.Values{})
	req.Header.Set("Accept-Language", "pt-BR")
	rr = env.do(req, true)
	if got := strings.TrimSpace(rr.Body.String()); rr.Code != http.StatusBadRequest || got != "Nenhuma foto foi enviada. Tire uma foto e tente novamente." {
		t.Fatalf("missing photo = %d %q", rr.Code, got)
	}
}

func TestPersistEndpointRequiresTrailingSlash(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	target := strings.TrimSuffix(routepath.VerifyPersist("c", "m"), "/")
	rr := env.do(formRequest(target, url.Values{"face_image": {pngDataURL(t)}}), true)
	if rr.Code == http.StatusOK {
		t.Fatalf("expected no route without trailing slash, got %d", rr.Code)
	}
}

func TestSubmitFlowSuccessRedirects(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	target := routepath.ReverifySubmit("course-1", "midterm")

	rr := env.do(formRequest(target, url.Values{"face_image": {pngDataURL(t)}}), true)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != routepath.Dashboard {
		t.Fatalf("form submit = %d location %q", rr.Code, rr.Header().Get("Location"))
	}

	req := formRequest(routepath.ReverifySubmit("course-1", "final"), url.Values{"face_image": {pngDataURL(t)}})
	req.Header.Set("HX-Request", "true")
	rr = env.do(req, true)
	if rr.Code != http.StatusOK || rr.Header().Get("HX-Redirect") != routepath.Dashboard {
		t.Fatalf("htmx submit = %d hx-redirect %q", rr.Code, rr.Header().Get("HX-Redirect"))
	}
}

func TestSubmitFlowFailureReenablesControl(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	target := routepath.ReverifySubmit("course-1", "midterm")

	req := formRequest(target, url.Values{})
	req.Header.Set("HX-Request", "true")
	rr := env.do(req, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("htmx failure status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{`hx-swap-oob="true"`, "Could not submit photos", "No photo was submitted. Take a photo and try again.", `aria-disabled="false"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("htmx failure missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, `disabled="disabled"`) || strings.Contains(body, "is-disabled") {
		t.Fatalf("submit control still disabled:\n%s", body)
	}

	rr = env.do(formRequest(target, url.Values{}), true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("form failure status = %d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "<html") {
		t.Fatal("expected full document on non-HTMX failure")
	}
}

func TestSubmitFlowAcceptsUploadedFile(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("face_image_file", "face.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(pngBytes(t)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, routepath.ReverifySubmit("course-1", "midterm"), &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rr := env.do(req, true)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("upload submit = %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSubmitFlowUnreadableFormRendersPage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, routepath.ReverifySubmit("course-1", "midterm"), strings.NewReader("face_image=x"))
	req.Header.Set("Content-Type", "multipart/form-data")

	rr := env.do(req, true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %q, want text/html", ct)
	}
	body := rr.Body.String()
	for _, want := range []string{"<html", "Could not submit photos", "A course and checkpoint are required."} {
		if !strings.Contains(body, want) {
			t.Fatalf("failure page missing %q:\n%s", want, body)
		}
	}
}

func TestDashboardListsSubmissions(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rr := env.do(httptest.NewRequest(http.MethodGet, routepath.Dashboard, nil), true)
	if !strings.Contains(rr.Body.String(), "You have not submitted any photos yet.") {
		t.Fatalf("empty dashboard:\n%s", rr.Body.String())
	}

	env.do(formRequest(routepath.ReverifySubmit("course-9", "final"), url.Values{"face_image": {pngDataURL(t)}}), true)
	rr = env.do(httptest.NewRequest(http.MethodGet, routepath.Dashboard, nil), true)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "course-9") {
		t.Fatalf("dashboard = %d:\n%s", rr.Code, rr.Body.String())
	}
}

func TestServerServesHTTPAndGRPCHealth(t *testing.T) {
	t.Parallel()

	server, err := New(context.Background(), Config{
		HTTPAddr:   "127.0.0.1:0",
		GRPCAddr:   "127.0.0.1:0",
		DBPath:     filepath.Join(t.TempDir(), "data", "reverify.db"),
		SessionKey: testKey,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	resp, err := http.Get("http://" + server.Addr() + routepath.Health)
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	probeCtx, probeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = grpcx.Probe(probeCtx, server.GRPCAddr(), HealthServiceName, nil)
	probeCancel()
	if err != nil {
		t.Fatalf("probe grpc health: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewServerRejectsShortSessionKey(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Config{SessionKey: []byte("short")}); err == nil {
		t.Fatal("expected session key error")
	}
}
