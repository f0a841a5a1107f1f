package transporthttp

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"contentmachine/internal/content"
	"contentmachine/internal/machine"
	"contentmachine/internal/mining"
	"contentmachine/internal/publish"
)

const maxImageBytes = 10 << 20

const notConfigured = "completion provider not configured"

func (s *Server) machineOrFail(w http.ResponseWriter) (Machine, bool) {
	if s.deps.Machine == nil {
		s.writeError(w, http.StatusInternalServerError, notConfigured)
		return nil, false
	}
	return s.deps.Machine, true
}

type generateRequest struct {
	Type string `json:"type"`
	Text string `json:"text"`
	URL  string `json:"url"`
}

// generateInput reads either a JSON body or a multipart form with an optional image.
// The returned message explains a malformed request.
func (s *Server) generateInput(r *http.Request) (machine.Input, string) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var req generateRequest
	var image machine.ImageBytesInput
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxImageBytes); err != nil {
			return nil, "Invalid form data."
		}
		req = generateRequest{Type: r.FormValue("type"), Text: r.FormValue("text"), URL: r.FormValue("url")}
		if file, header, err := r.FormFile("image"); err == nil {
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
			if err != nil {
				return nil, "Could not read image."
			}
			image = machine.ImageBytesInput{MIME: header.Header.Get("Content-Type"), Data: data}
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, "Invalid JSON."
	}

	switch strings.ToLower(strings.TrimSpace(req.Type)) {
	case "youtube":
		return machine.VideoInput{URL: req.URL}, ""
	case "image":
		image.Caption = req.Text
		return image, ""
	default:
		return machine.TextInput{Text: req.Text}, ""
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	m, ok := s.machineOrFail(w)
	if !ok {
		return
	}
	in, problem := s.generateInput(r)
	if problem != "" {
		s.writeError(w, http.StatusBadRequest, problem)
		return
	}
	if err := machine.Validate(in); err != nil {
		s.writeError(w, http.StatusBadRequest, "No content to generate from. Please provide a URL, text, or image.")
		return
	}

	res, err := m.Run(r.Context(), in)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	post := res.Post.Post
	resp := map[string]any{
		"slug":          post.Slug,
		"title":         post.Title,
		"mdxContent":    res.Post.MDX,
		"socialContent": res.Social.Raw,
		"social":        sectionsOrEmpty(res.Social.Sections),
	}
	if res.SocialErr != nil {
		resp["socialError"] = res.SocialErr.Error()
	}
	if res.Post.TranscriptStrategy != "" {
		resp["transcriptSource"] = res.Post.TranscriptStrategy
	}
	writeJSON(w, http.StatusOK, resp)
}

func sectionsOrEmpty(sections []machine.Section) []machine.Section {
	if sections == nil {
		return []machine.Section{}
	}
	return sections
}

func (s *Server) handleGenerateSocial(w http.ResponseWriter, r *http.Request) {
	m, ok := s.machineOrFail(w)
	if !ok {
		return
	}
	var req struct {
		Title    string `json:"title"`
		BlogBody string `json:"blogBody"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.BlogBody) == "" {
		s.writeError(w, http.StatusBadRequest, "Missing title or blogBody")
		return
	}
	week, err := m.GenerateSocial(r.Context(), req.Title, req.BlogBody)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"socialContent": week.Raw, "social": sectionsOrEmpty(week.Sections)})
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slug       string `json:"slug"`
		MDXContent string `json:"mdxContent"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Slug == "" || strings.TrimSpace(req.MDXContent) == "" {
		s.writeError(w, http.StatusBadRequest, "Missing slug or content")
		return
	}
	if !content.ValidSlug(req.Slug) {
		s.writeError(w, http.StatusBadRequest, "Invalid slug")
		return
	}
	if s.deps.Dispatcher == nil {
		s.writeError(w, http.StatusInternalServerError, "GitHub not configured")
		return
	}
	if _, ok := s.deps.Dispatcher.Publisher(publish.DestinationGitHub); !ok {
		s.writeError(w, http.StatusInternalServerError, "GitHub not configured")
		return
	}

	item := publish.Item{Slug: req.Slug, Raw: req.MDXContent, CanonicalURL: content.CanonicalURL(s.siteURL, req.Slug)}
	if post, err := content.ParsePost(req.MDXContent); err == nil {
		item.Title = post.Title
	}
	rec := s.deps.Dispatcher.Publish(r.Context(), item, publish.DestinationGitHub)
	if rec.Err != nil {
		s.writeFailure(w, r, rec.Err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": rec.URL})
}

func (s *Server) handleCrosspost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slug         string   `json:"slug"`
		MDXContent   string   `json:"mdxContent"`
		Destinations []string `json:"destinations"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if s.deps.Dispatcher == nil {
		s.writeError(w, http.StatusInternalServerError, "publishing not configured")
		return
	}

	var (
		post content.Post
		err  error
	)
	switch {
	case strings.TrimSpace(req.MDXContent) != "":
		post, err = content.ParsePost(req.MDXContent)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Could not parse mdxContent: "+err.Error())
			return
		}
		if req.Slug != "" {
			post.Slug = req.Slug
		}
	case req.Slug != "" && s.deps.Store != nil:
		post, err = s.deps.Store.Load(req.Slug)
		if errors.Is(err, content.ErrNotFound) {
			s.writeError(w, http.StatusBadRequest, "Unknown slug")
			return
		}
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
	default:
		s.writeError(w, http.StatusBadRequest, "Missing slug or content")
		return
	}

	destinations := req.Destinations
	if len(destinations) == 0 {
		destinations = []string{publish.DestinationMedium, publish.DestinationDevTo}
	}
	records := s.deps.Dispatcher.PublishAll(r.Context(), publish.ItemFromPost(post, s.siteURL), destinations...)
	writeJSON(w, http.StatusOK, map[string]any{"slug": post.Slug, "results": records})
}

func (s *Server) handleAutopost(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scheduler == nil || !s.deps.Scheduler.Configured() {
		s.writeError(w, http.StatusInternalServerError, "TYPEFULLY_API_KEY not configured.")
		return
	}
	var req struct {
		Content      string `json:"content"`
		ScheduleMode string `json:"scheduleMode"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		s.writeError(w, http.StatusBadRequest, "No content provided.")
		return
	}
	draft, err := s.deps.Scheduler.Schedule(r.Context(), req.Content, req.ScheduleMode)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"id":             draft.ID,
		"share_url":      nullable(draft.ShareURL),
		"scheduled_date": nullable(draft.ScheduledDate),
	})
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *Server) handleClips(w http.ResponseWriter, r *http.Request) {
	m, ok := s.machineOrFail(w)
	if !ok {
		return
	}
	var req struct {
		YouTubeURL string `json:"youtubeUrl"`
		Transcript string `json:"transcript"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.YouTubeURL) == "" && strings.TrimSpace(req.Transcript) == "" {
		s.writeError(w, http.StatusBadRequest, "No transcript provided. Paste a YouTube URL or raw transcript.")
		return
	}
	report, err := m.AnalyzeClips(r.Context(), machine.ClipsRequest{URL: req.YouTubeURL, Transcript: req.Transcript})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	m, ok := s.machineOrFail(w)
	if !ok {
		return
	}
	var req machine.ScriptRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Pain) == "" {
		s.writeError(w, http.StatusBadRequest, "Missing 'pain' field.")
		return
	}
	pkg, err := m.WriteScript(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	m, ok := s.machineOrFail(w)
	if !ok {
		return
	}
	var req struct {
		Subreddits []string `json:"subreddits"`
		Keywords   []string `json:"keywords"`
		Channels   []string `json:"youtubeChannelIds"`
	}
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}

	report, err := m.Signals(r.Context(), mining.Query{Subreddits: req.Subreddits, Keywords: req.Keywords, Channels: req.Channels})
	if errors.Is(err, machine.ErrNoSignals) {
		writeJSON(w, http.StatusOK, map[string]any{
			"signals":   []machine.Signal{},
			"raw_count": 0,
			"sources":   report.Sources,
			"error":     "No signals found. Try different subreddits or keywords.",
		})
		return
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
