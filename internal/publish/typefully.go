package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const typefullyAPI = "https://api.typefully.com"

// Schedule modes.
const (
	ScheduleNextFreeSlot = "next-free-slot"
	ScheduleNow          = "now"
)

// Draft is what Typefully created.
type Draft struct {
	ID            string `json:"id"`
	ShareURL      string `json:"share_url,omitempty"`
	ScheduledDate string `json:"scheduled_date,omitempty"`
}

// TypefullyPublisher schedules social posts and threads as Typefully drafts.
type TypefullyPublisher struct {
	apiKey  string
	baseURL string
	client  *http.Client
	// Mode is used by Publish; defaults to ScheduleNextFreeSlot.
	Mode string
}

// NewTypefullyPublisher uses an API key. baseURL may be empty.
func NewTypefullyPublisher(apiKey, baseURL string, client *http.Client) *TypefullyPublisher {
	if baseURL == "" {
		baseURL = typefullyAPI
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &TypefullyPublisher{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), client: client, Mode: ScheduleNextFreeSlot}
}

func (p *TypefullyPublisher) Name() string { return DestinationTypefully }

// Configured reports whether an API key is present.
func (p *TypefullyPublisher) Configured() bool { return p != nil && p.apiKey != "" }

// ThreadText joins the non-empty units of a "---"-separated thread with the four
// newlines Typefully splits tweets on.
func ThreadText(text string) string {
	var (
		units   []string
		current []string
	)
	flush := func() {
		if unit := strings.TrimSpace(strings.Join(current, "\n")); unit != "" {
			units = append(units, unit)
		}
		current = nil
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "---" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return strings.Join(units, "\n\n\n\n")
}

// Schedule creates a draft from text. Any mode other than ScheduleNextFreeSlot shares it immediately.
func (p *TypefullyPublisher) Schedule(ctx context.Context, text, mode string) (Draft, error) {
	if !p.Configured() {
		return Draft{}, fmt.Errorf("%w: typefully", ErrNotConfigured)
	}
	joined := ThreadText(text)
	if joined == "" {
		return Draft{}, errors.New("publish: no content provided")
	}

	payload := map[string]any{"content": joined}
	if mode == "" || mode == ScheduleNextFreeSlot {
		payload["schedule-date"] = ScheduleNextFreeSlot
	} else {
		payload["share"] = true
	}

	var out struct {
		ID            json.RawMessage `json:"id"`
		ShareURL      *string         `json:"share_url"`
		ScheduledDate *string         `json:"scheduled_date"`
	}
	headers := map[string]string{"X-API-KEY": "Bearer " + p.apiKey}
	if err := doJSON(ctx, p.client, "typefully", http.MethodPost, p.baseURL+"/v1/drafts/", headers, payload, &out); err != nil {
		return Draft{}, err
	}

	draft := Draft{ID: strings.Trim(string(out.ID), `"`)}
	if out.ShareURL != nil {
		draft.ShareURL = *out.ShareURL
	}
	if out.ScheduledDate != nil {
		draft.ScheduledDate = *out.ScheduledDate
	}
	return draft, nil
}

// Publish schedules item.Body and returns the share URL, or the draft id when there is none.
func (p *TypefullyPublisher) Publish(ctx context.Context, item Item) (string, error) {
	draft, err := p.Schedule(ctx, item.Body, p.Mode)
	if err != nil {
		return "", err
	}
	if draft.ShareURL != "" {
		return draft.ShareURL, nil
	}
	return "typefully:" + draft.ID, nil
}
