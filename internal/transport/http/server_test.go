package transporthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentmachine/internal/config"
	"contentmachine/internal/content"
	"contentmachine/internal/machine"
	"contentmachine/internal/metrics"
	"contentmachine/internal/mining"
	"contentmachine/internal/publish"
	"contentmachine/internal/transcript"
)

const password = "open-sesame"

type fakeMachine struct {
	lastInput machine.Input
	lastClips machine.ClipsRequest
	lastQuery mining.Query
	result    machine.Result
	err       error
	week      machine.SocialWeek
	clips     machine.ClipReport
	script    machine.ScriptPackage
	signals   machine.SignalReport
}

func (f *fakeMachine) Run(ctx context.Context, in machine.Input) (machine.Result, error) {
	f.lastInput = in
	return f.result, f.err
}

func (f *fakeMachine) GenerateSocial(ctx context.Context, title, body string) (machine.SocialWeek, error) {
	return f.week, f.err
}

func (f *fakeMachine) AnalyzeClips(ctx context.Context, req machine.ClipsRequest) (machine.ClipReport, error) {
	f.lastClips = req
	return f.clips, f.err
}

func (f *fakeMachine) WriteScript(ctx context.Context, req machine.ScriptRequest) (machine.ScriptPackage, error) {
	return f.script, f.err
}

func (f *fakeMachine) Signals(ctx context.Context, q mining.Query) (machine.SignalReport, error) {
	f.lastQuery = q
	return f.signals, f.err
}

type stubPublisher struct {
	name string
	url  string
	err  error
	got  publish.Item
}

func (s *stubPublisher) Name() string { return s.name }

func (s *stubPublisher) Publish(ctx context.Context, item publish.Item) (string, error) {
	s.got = item
	return s.url, s.err
}

type fakeScheduler struct {
	configured bool
	text, mode string
}

func (f *fakeScheduler) Configured() bool { return f.configured }

func (f *fakeScheduler) Schedule(ctx context.Context, text, mode string) (publish.Draft, error) {
	f.text, f.mode = text, mode
	return publish.Draft{ID: "d1", ShareURL: "https://typefully.com/t/d1"}, nil
}

func newTestServer(deps Deps) http.Handler {
	return NewServer(config.Config{DashboardPassword: password, SiteURL: "https://example.com/blog"}, deps).Routes()
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(PasswordHeader, password)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(Deps{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthRequired(t *testing.T) {
	h := newTestServer(Deps{Machine: &fakeMachine{}})

	for _, header := range []string{"", "wrong"} {
		req := httptest.NewRequest(http.MethodPost, "/api/dominate/script", strings.NewReader(`{"pain":"x"}`))
		if header != "" {
			req.Header.Set(PasswordHeader, header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized", decodeBody(t, rec)["error"])
	}
}

func TestAuthRejectsEverythingWithoutServerPassword(t *testing.T) {
	h := NewServer(config.Config{}, Deps{Machine: &fakeMachine{}}).Routes()
	req := httptest.NewRequest(http.MethodPost, "/api/dominate/script", strings.NewReader(`{"pain":"x"}`))
	req.Header.Set(PasswordHeader, "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(Deps{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dominate/generate", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestGenerateJSON(t *testing.T) {
	fm := &fakeMachine{result: machine.Result{
		Post: machine.GeneratedPost{Post: content.Post{Slug: "own-the-middle", Title: "Own the Middle"}, MDX: "---\n..."},
		Social: machine.SocialWeek{
			Sections: []machine.Section{{Day: "Monday", Platform: machine.PlatformLinkedIn, Content: "hi"}},
			Raw:      "## LINKEDIN",
		},
	}}
	rec := post(t, newTestServer(Deps{Machine: fm}), "/api/dominate/generate", `{"type":"text","text":"an idea"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "own-the-middle", body["slug"])
	assert.Equal(t, "## LINKEDIN", body["socialContent"])
	assert.Len(t, body["social"], 1)
	assert.NotContains(t, body, "socialError")
	assert.Equal(t, machine.TextInput{Text: "an idea"}, fm.lastInput)
}

func TestGenerateReportsSocialFailure(t *testing.T) {
	fm := &fakeMachine{result: machine.Result{
		Post:      machine.GeneratedPost{Post: content.Post{Slug: "s", Title: "S"}},
		SocialErr: errors.New("rate limited"),
	}}
	rec := post(t, newTestServer(Deps{Machine: fm}), "/api/dominate/generate", `{"type":"text","text":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "rate limited", body["socialError"])
	assert.Equal(t, []any{}, body["social"])
}

func TestGenerateMultipartImage(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("type", "image"))
	require.NoError(t, mw.WriteField("text", "context"))
	part, err := mw.CreateFormFile("image", "shot.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, mw.Close())

	fm := &fakeMachine{result: machine.Result{Post: machine.GeneratedPost{Post: content.Post{Slug: "s"}}}}
	req := httptest.NewRequest(http.MethodPost, "/api/dominate/generate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(PasswordHeader, password)
	rec := httptest.NewRecorder()
	newTestServer(Deps{Machine: fm}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	in, ok := fm.lastInput.(machine.ImageBytesInput)
	require.True(t, ok)
	assert.Equal(t, "context", in.Caption)
	assert.NotEmpty(t, in.Data)
}

func TestGenerateValidation(t *testing.T) {
	fm := &fakeMachine{}
	h := newTestServer(Deps{Machine: fm})

	rec := post(t, h, "/api/dominate/generate", `{"type":"youtube"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = post(t, h, "/api/dominate/generate", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, fm.lastInput)
}

func TestGenerateParseFailureIncludesRawOutput(t *testing.T) {
	fm := &fakeMachine{err: &machine.ParseError{Kind: "post", Raw: "garbage", Err: content.ErrNoFrontMatter}}
	rec := post(t, newTestServer(Deps{Machine: fm}), "/api/dominate/generate", `{"text":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "garbage", decodeBody(t, rec)["raw_output"])
}

func TestGenerateWithoutCompletionProvider(t *testing.T) {
	rec := post(t, newTestServer(Deps{}), "/api/dominate/generate", `{"text":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGenerateSocial(t *testing.T) {
	fm := &fakeMachine{week: machine.SocialWeek{Raw: "raw"}}
	h := newTestServer(Deps{Machine: fm})

	rec := post(t, h, "/api/dominate/generate-social", `{"title":"T"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, h, "/api/dominate/generate-social", `{"title":"T","blogBody":"B"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "raw", decodeBody(t, rec)["socialContent"])
}

func TestClipsNeedsManualTranscript(t *testing.T) {
	fm := &fakeMachine{err: errors.Join(transcript.ErrManualTranscript, errors.New("captions: 429"))}
	rec := post(t, newTestServer(Deps{Machine: fm}), "/api/dominate/clips", `{"youtubeUrl":"https://youtu.be/dQw4w9WgXcQ"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["needs_manual_transcript"])
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", fm.lastClips.URL)
}

func TestClipsRequiresInput(t *testing.T) {
	rec := post(t, newTestServer(Deps{Machine: &fakeMachine{}}), "/api/dominate/clips", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScript(t *testing.T) {
	fm := &fakeMachine{script: machine.ScriptPackage{Titles: []string{"A"}, HookType: "proof-first"}}
	h := newTestServer(Deps{Machine: fm})

	rec := post(t, h, "/api/dominate/script", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, h, "/api/dominate/script", `{"pain":"no clients"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "proof-first", decodeBody(t, rec)["hook_type"])
}

func TestSignalsEmpty(t *testing.T) {
	fm := &fakeMachine{
		err:     machine.ErrNoSignals,
		signals: machine.SignalReport{Sources: map[string]int{"reddit": 0, "youtube": 0}},
	}
	rec := post(t, newTestServer(Deps{Machine: fm}), "/api/dominate/signals", `{"subreddits":["SaaS"],"youtubeChannelIds":["@x"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, []any{}, body["signals"])
	assert.Equal(t, float64(0), body["raw_count"])
	assert.NotEmpty(t, body["error"])
	assert.Equal(t, []string{"SaaS"}, fm.lastQuery.Subreddits)
	assert.Equal(t, []string{"@x"}, fm.lastQuery.Channels)
}

func TestPublishCommitsToGitHub(t *testing.T) {
	gh := &stubPublisher{name: publish.DestinationGitHub, url: "https://example.com/blog/s"}
	d := publish.NewDispatcher(nil, nil, gh)
	h := newTestServer(Deps{Dispatcher: d})

	rec := post(t, h, "/api/dominate/publish", `{"slug":"s","mdxContent":"---\ntitle: \"S\"\n---\n\nbody"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"url":"https://example.com/blog/s"}`, rec.Body.String())
	assert.Equal(t, "S", gh.got.Title)

	rec = post(t, h, "/api/dominate/publish", `{"slug":"s"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublishWithoutGitHub(t *testing.T) {
	h := newTestServer(Deps{Dispatcher: publish.NewDispatcher(nil, nil)})
	rec := post(t, h, "/api/dominate/publish", `{"slug":"s","mdxContent":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "GitHub not configured", decodeBody(t, rec)["error"])
}

func TestCrosspostPartialFailure(t *testing.T) {
	store := content.NewStore(t.TempDir())
	_, err := store.Save(content.Post{Slug: "own-the-middle", Title: "Own the Middle", Date: "2026-03-07", Category: content.DefaultCategory, Body: "text"})
	require.NoError(t, err)

	medium := &stubPublisher{name: publish.DestinationMedium, err: errors.New("medium: status 401")}
	devto := &stubPublisher{name: publish.DestinationDevTo, url: "https://dev.to/x"}
	m := metrics.New()
	h := newTestServer(Deps{Dispatcher: publish.NewDispatcher(nil, m, medium, devto), Store: store, Metrics: m})

	rec := post(t, h, "/api/dominate/crosspost", `{"slug":"own-the-middle"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results []publish.Record `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 2)
	assert.NotEmpty(t, body.Results[0].Error)
	assert.Equal(t, "https://dev.to/x", body.Results[1].URL)
	assert.Equal(t, "https://example.com/blog/own-the-middle", devto.got.CanonicalURL)

	metricsRec := httptest.NewRecorder()
	h.ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metricsRec.Body.String(), `contentmachine_publications_total{destination="medium",outcome="error"} 1`)
}

func TestCrosspostUnknownSlug(t *testing.T) {
	h := newTestServer(Deps{Dispatcher: publish.NewDispatcher(nil, nil), Store: content.NewStore(t.TempDir())})
	rec := post(t, h, "/api/dominate/crosspost", `{"slug":"missing"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAutopost(t *testing.T) {
	sched := &fakeScheduler{configured: true}
	h := newTestServer(Deps{Scheduler: sched})

	rec := post(t, h, "/api/dominate/autopost", `{"content":"a\n---\nb","scheduleMode":"now"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "d1", body["id"])
	assert.Nil(t, body["scheduled_date"])
	assert.Equal(t, "now", sched.mode)

	rec = post(t, h, "/api/dominate/autopost", `{"content":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, newTestServer(Deps{Scheduler: &fakeScheduler{}}), "/api/dominate/autopost", `{"content":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSwaggerServed(t *testing.T) {
	h := newTestServer(Deps{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/dominate/generate")
}
