package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"agencydesk.io/internal/ai"
	"agencydesk.io/internal/audit"
	"agencydesk.io/internal/directory"
	"agencydesk.io/internal/obs"
	"agencydesk.io/internal/ratelimit"
)

type analyzeTrendsRequest struct {
	ClientID string   `json:"client_id" validate:"required,max=64"`
	Keywords []string `json:"keywords" validate:"max=50,dive,max=100"`
}

type generateIdeasRequest struct {
	ClientID string `json:"client_id" validate:"required,max=64"`
	Brief    string `json:"brief" validate:"required,max=2000"`
}

type generateHeadlinesRequest struct {
	ClientID string `json:"client_id" validate:"required,max=64"`
	Topic    string `json:"topic" validate:"required,max=500"`
	Count    int    `json:"count" validate:"min=0,max=25"`
}

type generatePressReleaseRequest struct {
	ClientID     string `json:"client_id" validate:"required,max=64"`
	Announcement string `json:"announcement" validate:"required,max=2000"`
}

// Generation results are persisted as client activities, so every AI call
// leaves a scoped, queryable record.

func (a *API) handleAnalyzeTrends(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.requireLLM(w, r) {
		return
	}
	var req analyzeTrendsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	if err := directory.CheckStruct(req); err != nil {
		a.writeErr(w, r, err)
		return
	}
	client, err := a.dir.GetClient(r.Context(), p, req.ClientID)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	// News grounding is best effort; trend analysis still runs when the feed
	// is down.
	var articles []ai.Article
	if a.news != nil {
		query := client.Name
		if len(req.Keywords) > 0 {
			query = strings.Join(req.Keywords, " ")
		}
		articles, err = a.news.Search(r.Context(), query, 10)
		if err != nil {
			obs.Emit("warn", "news_fetch_failed", map[string]any{
				"request_id": audit.RequestIDFromContext(r.Context()),
				"error":      err.Error(),
			})
			articles = nil
		}
	}

	summary, err := a.llm.Complete(r.Context(), ai.SystemPrompt(), ai.TrendPrompt(client.Name, client.Industry, req.Keywords, articles))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	topic := client.Name
	if len(req.Keywords) > 0 {
		topic = truncate(strings.Join(req.Keywords, ", "), 500)
	}
	sources := make([]string, 0, len(articles))
	for _, art := range articles {
		sources = append(sources, truncate(art.URL, 2000))
	}
	activity, err := a.dir.CreateActivity(r.Context(), p, directory.ActivityInput{
		ClientID: client.ID,
		Type:     string(directory.ActivityTrend),
		Content: map[string]any{
			"topic":    topic,
			"summary":  truncate(summary, 10000),
			"keywords": req.Keywords,
			"sources":  sources,
		},
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"activity": activity,
		"articles": articles,
	})
}

func (a *API) handleGenerateIdeas(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.requireLLM(w, r) {
		return
	}
	var req generateIdeasRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	if err := directory.CheckStruct(req); err != nil {
		a.writeErr(w, r, err)
		return
	}
	client, err := a.dir.GetClient(r.Context(), p, req.ClientID)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	pitch, err := a.llm.Complete(r.Context(), ai.SystemPrompt(), ai.IdeaPrompt(client.Name, client.Industry, req.Brief))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	activity, err := a.dir.CreateActivity(r.Context(), p, directory.ActivityInput{
		ClientID: client.ID,
		Type:     string(directory.ActivityIdea),
		Content: map[string]any{
			"title": truncate(req.Brief, 500),
			"pitch": truncate(pitch, 10000),
		},
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": activity})
}

func (a *API) handleGenerateHeadlines(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.requireLLM(w, r) {
		return
	}
	var req generateHeadlinesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	if err := directory.CheckStruct(req); err != nil {
		a.writeErr(w, r, err)
		return
	}
	client, err := a.dir.GetClient(r.Context(), p, req.ClientID)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	completion, err := a.llm.Complete(r.Context(), ai.SystemPrompt(), ai.HeadlinePrompt(client.Name, req.Topic, req.Count))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	headlines := splitLines(completion)
	if len(headlines) == 0 {
		a.writeErr(w, r, ai.ErrUpstream)
		return
	}
	var alternates []string
	for _, h := range headlines[1:] {
		if len(alternates) == 25 {
			break
		}
		alternates = append(alternates, truncate(h, 500))
	}
	activity, err := a.dir.CreateActivity(r.Context(), p, directory.ActivityInput{
		ClientID: client.ID,
		Type:     string(directory.ActivityPR),
		Content: map[string]any{
			"headline":   truncate(headlines[0], 500),
			"alternates": alternates,
		},
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": activity})
}

func (a *API) handleGeneratePressRelease(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.requireLLM(w, r) {
		return
	}
	var req generatePressReleaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	if err := directory.CheckStruct(req); err != nil {
		a.writeErr(w, r, err)
		return
	}
	client, err := a.dir.GetClient(r.Context(), p, req.ClientID)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	completion, err := a.llm.Complete(r.Context(), ai.SystemPrompt(), ai.PressReleasePrompt(client.Name, client.Industry, req.Announcement))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	lines := splitLines(completion)
	headline := truncate(req.Announcement, 500)
	if len(lines) > 0 {
		headline = truncate(lines[0], 500)
	}
	activity, err := a.dir.CreateActivity(r.Context(), p, directory.ActivityInput{
		ClientID: client.ID,
		Type:     string(directory.ActivityPR),
		Content: map[string]any{
			"headline": headline,
			"body":     truncate(completion, 10000),
		},
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": activity})
}

func (a *API) handleNews(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.principal(w, r); !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.news == nil {
		writeErrorCode(w, r, http.StatusServiceUnavailable, codeExternalAPI, "news provider is not configured")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeErrorCode(w, r, http.StatusBadRequest, codeValidation, "q query parameter is required")
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	articles, err := a.news.Search(r.Context(), query, limit)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": articles})
}

// handleUsageDashboard reports both windows without consuming quota.
func (a *API) handleUsageDashboard(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	now := time.Now()
	ipUsage := a.ipLimiter.Peek("ip:"+clientIP(r), now)
	userUsage := a.userLimiter.Peek("user:"+p.ID, now)
	writeJSON(w, http.StatusOK, map[string]any{
		"ip":   usagePayload(ipUsage),
		"user": usagePayload(userUsage),
	})
}

func (a *API) requireLLM(w http.ResponseWriter, r *http.Request) bool {
	if a.llm == nil {
		writeErrorCode(w, r, http.StatusServiceUnavailable, codeExternalAPI, "content generation is not configured")
		return false
	}
	return true
}

func usagePayload(u ratelimit.Usage) map[string]any {
	return map[string]any{
		"limit":         u.Limit,
		"used":          u.Used,
		"remaining":     u.Remaining,
		"reset_seconds": int(u.ResetAfter.Round(time.Second) / time.Second),
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789. "))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
