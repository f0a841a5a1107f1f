package machine

import (
	"context"
	"errors"
	"strings"
	"time"

	"contentmachine/internal/prompt"
)

// ErrNoPain is returned when a script request has no pain signal.
var ErrNoPain = errors.New("machine: pain signal is required")

// Script defaults applied when the model omits them.
const (
	DefaultEstimatedLength = "10-12 minutes"
	DefaultHookType        = "proof-first"
)

// ScriptRequest describes the video a script is written for.
type ScriptRequest struct {
	Pain           string `json:"pain"`
	SelectedTitle  string `json:"selectedTitle"`
	Emotion        string `json:"emotion"`
	HookSuggestion string `json:"hook_suggestion"`
}

// ScriptSections is the six-act script skeleton.
type ScriptSections struct {
	Hook      string `json:"hook"`
	Setup     string `json:"setup"`
	Insight   string `json:"insight"`
	Framework string `json:"framework"`
	Proof     string `json:"proof"`
	CTA       string `json:"cta"`
}

// ScriptPackage is everything needed to shoot a long-form video.
type ScriptPackage struct {
	Titles          []string       `json:"titles"`
	Thumbnails      []string       `json:"thumbnails"`
	Script          ScriptSections `json:"script"`
	BRoll           []string       `json:"broll"`
	EstimatedLength string         `json:"estimated_length"`
	HookType        string         `json:"hook_type"`
	GeneratedAt     time.Time      `json:"generated_at"`
}

// WriteScript produces titles, thumbnails, a script skeleton and b-roll ideas for one pain signal.
func (s *Studio) WriteScript(ctx context.Context, req ScriptRequest) (ScriptPackage, error) {
	if strings.TrimSpace(req.Pain) == "" {
		return ScriptPackage{}, ErrNoPain
	}
	raw, err := s.complete(ctx, prompt.KindScript, scriptParams, scriptMessage(req), nil)
	if err != nil {
		return ScriptPackage{}, err
	}
	pkg, err := ParseScript(raw)
	if err != nil {
		return ScriptPackage{}, err
	}
	pkg.GeneratedAt = s.now().UTC()
	return pkg, nil
}

func scriptMessage(req ScriptRequest) string {
	lines := []string{"PAIN SIGNAL: " + strings.TrimSpace(req.Pain)}
	if v := strings.TrimSpace(req.SelectedTitle); v != "" {
		lines = append(lines, "SELECTED TITLE DIRECTION: "+v)
	}
	if v := strings.TrimSpace(req.Emotion); v != "" {
		lines = append(lines, "DOMINANT EMOTION: "+v)
	}
	if v := strings.TrimSpace(req.HookSuggestion); v != "" {
		lines = append(lines, "EXISTING HOOK IDEA: "+v)
	}
	lines = append(lines, "", "Generate the full script package for this pain signal.")
	return strings.Join(lines, "\n")
}

type rawScript struct {
	Hook      flexString `json:"hook"`
	Setup     flexString `json:"setup"`
	Insight   flexString `json:"insight"`
	Framework flexString `json:"framework"`
	Proof     flexString `json:"proof"`
	CTA       flexString `json:"cta"`
}

func (r rawScript) sections() ScriptSections {
	return ScriptSections{
		Hook:      string(r.Hook),
		Setup:     string(r.Setup),
		Insight:   string(r.Insight),
		Framework: string(r.Framework),
		Proof:     string(r.Proof),
		CTA:       string(r.CTA),
	}
}

// ParseScript decodes a script package response and fills missing fields.
func ParseScript(raw string) (ScriptPackage, error) {
	var doc struct {
		Titles          flexStrings `json:"titles"`
		Thumbnails      flexStrings `json:"thumbnails"`
		Script          rawScript   `json:"script"`
		BRoll           flexStrings `json:"broll"`
		EstimatedLength flexString  `json:"estimated_length"`
		HookType        flexString  `json:"hook_type"`
	}
	if err := decodeJSON("script", raw, &doc); err != nil {
		return ScriptPackage{}, err
	}

	pkg := ScriptPackage{
		Titles:          doc.Titles.list(),
		Thumbnails:      doc.Thumbnails.list(),
		Script:          doc.Script.sections(),
		BRoll:           doc.BRoll.list(),
		EstimatedLength: strings.TrimSpace(string(doc.EstimatedLength)),
		HookType:        strings.ToLower(strings.TrimSpace(string(doc.HookType))),
	}
	if pkg.EstimatedLength == "" {
		pkg.EstimatedLength = DefaultEstimatedLength
	}
	if pkg.HookType == "" {
		pkg.HookType = DefaultHookType
	}
	return pkg, nil
}
