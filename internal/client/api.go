// Package client is the consuming side of the sync protocol: an HTTP client
// for the mutation and full-state endpoints, and a Session that mirrors the
// account over the push channel.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"habitsync/internal/apperr"
	"habitsync/internal/model"
	"habitsync/internal/tracker"
	"habitsync/pkg/trace"
)

// API calls the server's REST endpoints. Error bodies are turned back into
// *apperr.Error so callers can match on the same kinds the server uses.
type API struct {
	baseURL string
	http    *http.Client
}

func NewAPI(baseURL string, hc *http.Client) *API {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := trace.FromContext(ctx); id != "" {
		req.Header.Set(trace.HeaderName, id)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return apperr.StoreUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Error == "" {
			return &apperr.Error{Kind: kindOfStatus(resp.StatusCode), Message: fmt.Sprintf("%s %s: %s", method, path, resp.Status)}
		}
		return &apperr.Error{Kind: apperr.ParseKind(eb.Error), Message: eb.Message}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func kindOfStatus(code int) apperr.Kind {
	switch code {
	case http.StatusBadRequest:
		return apperr.KindValidation
	case http.StatusNotFound:
		return apperr.KindNotFound
	case http.StatusConflict:
		return apperr.KindConflict
	case http.StatusServiceUnavailable:
		return apperr.KindStoreUnavailable
	default:
		return apperr.KindUnknown
	}
}

func (a *API) State(ctx context.Context) (model.State, error) {
	var st model.State
	err := a.do(ctx, http.MethodGet, "/api/state", nil, &st)
	return st, err
}

func (a *API) Stats(ctx context.Context) (tracker.Summary, error) {
	var s tracker.Summary
	err := a.do(ctx, http.MethodGet, "/api/stats", nil, &s)
	return s, err
}

func (a *API) CreateHabit(ctx context.Context, h model.Habit) (model.Habit, error) {
	var out model.Habit
	err := a.do(ctx, http.MethodPost, "/api/habits", habitBody(h), &out)
	return out, err
}

func (a *API) UpdateHabit(ctx context.Context, h model.Habit) (model.Habit, error) {
	var out model.Habit
	err := a.do(ctx, http.MethodPut, "/api/habits/"+url.PathEscape(h.ID), habitBody(h), &out)
	return out, err
}

func (a *API) DeleteHabit(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/api/habits/"+url.PathEscape(id), nil, nil)
}

func (a *API) SetLog(ctx context.Context, key model.DateKey, habitID string, completed bool) (model.LogEntry, error) {
	var out model.LogEntry
	err := a.do(ctx, http.MethodPost, "/api/logs", map[string]any{
		"dateKey":   key,
		"habitId":   habitID,
		"completed": completed,
	}, &out)
	return out, err
}

func (a *API) SetDailyNote(ctx context.Context, key model.DateKey, note string) (model.DailyNote, error) {
	var out model.DailyNote
	err := a.do(ctx, http.MethodPost, "/api/notes/daily", map[string]any{"dateKey": key, "note": note}, &out)
	return out, err
}

func (a *API) SetGlobalNote(ctx context.Context, content string) (model.GlobalNote, error) {
	var out model.GlobalNote
	err := a.do(ctx, http.MethodPost, "/api/notes/global", map[string]any{"content": content}, &out)
	return out, err
}

func (a *API) MarkDayPerfect(ctx context.Context, key model.DateKey) (model.DayEntry, error) {
	var out model.DayEntry
	err := a.do(ctx, http.MethodPost, "/api/days/"+url.PathEscape(string(key))+"/perfect", nil, &out)
	return out, err
}

func habitBody(h model.Habit) map[string]string {
	return map[string]string{"id": h.ID, "name": h.Name, "icon": h.Icon, "category": h.Category}
}
