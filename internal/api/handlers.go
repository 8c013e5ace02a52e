package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/LeventeLantos/lead-outreach/internal/classifier"
	"github.com/LeventeLantos/lead-outreach/internal/importer"
	"github.com/LeventeLantos/lead-outreach/internal/model"
	"github.com/LeventeLantos/lead-outreach/internal/repo"
	"github.com/LeventeLantos/lead-outreach/internal/scheduler"
	"github.com/LeventeLantos/lead-outreach/internal/service"
	"github.com/LeventeLantos/lead-outreach/internal/templates"
)

const maxImportBytes = 10 << 20

type CampaignRunner interface {
	Run(ctx context.Context, req service.RunRequest) (service.RunResult, error)
}

type EventHandler interface {
	Handle(ctx context.Context, ev service.Event) (service.Outcome, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev service.Event) error
}

type LeadImporter interface {
	Import(ctx context.Context, r io.Reader) (importer.Report, error)
}

// Deps wires the handler. Queue is optional; without it webhook events are
// handled inline. Metrics is optional as well.
type Deps struct {
	Leads      repo.LeadRepository
	Campaigns  CampaignRunner
	Events     EventHandler
	Queue      EventPublisher
	Importer   LeadImporter
	Templates  *templates.Store
	Classifier *classifier.Classifier
	Jobs       *scheduler.Registry
	Metrics    http.Handler
	Log        *zap.Logger
}

type Handler struct {
	Deps
}

func NewHandler(d Deps) *Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Classifier == nil {
		d.Classifier = classifier.New()
	}
	if d.Jobs == nil {
		d.Jobs = scheduler.NewRegistry()
	}
	return &Handler{Deps: d}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// TwilioWebhook accepts inbound messages and delivery reports. The provider
// only needs a 2xx, so processing failures are logged rather than returned.
func (h *Handler) TwilioWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}

	ev := service.Event{
		From:       r.PostForm.Get("From"),
		Body:       r.PostForm.Get("Body"),
		Status:     firstNonEmpty(r.PostForm.Get("MessageStatus"), r.PostForm.Get("SmsStatus")),
		MessageSID: firstNonEmpty(r.PostForm.Get("MessageSid"), r.PostForm.Get("SmsSid")),
	}

	if h.Queue != nil {
		err := h.Queue.Publish(r.Context(), ev)
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "queued": true})
			return
		}
		h.Log.Warn("enqueue webhook event failed, handling inline", zap.String("sid", ev.MessageSID), zap.Error(err))
	}

	out, err := h.Events.Handle(r.Context(), ev)
	if err != nil {
		h.Log.Warn("webhook event not processed", zap.String("sid", ev.MessageSID), zap.Error(err))
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "outcome": out})
}

type campaignBody struct {
	Message string   `json:"message"`
	LeadIDs []string `json:"leadIds"`
}

func (h *Handler) RunCampaign(w http.ResponseWriter, r *http.Request) {
	stage, ok := model.ParseStage(chi.URLParam(r, "stage"))
	if !ok {
		http.Error(w, "unknown stage", http.StatusBadRequest)
		return
	}

	var body campaignBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	res, err := h.Campaigns.Run(r.Context(), service.RunRequest{
		Stage:   stage,
		Message: body.Message,
		LeadIDs: body.LeadIDs,
		Force:   force,
	})
	switch {
	case errors.Is(err, service.ErrInvalidStage):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, service.ErrNoLeads):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repo.LeadFilter{
		Limit:  parseInt(q.Get("limit"), 50),
		Offset: parseInt(q.Get("offset"), 0),
	}
	for _, s := range strings.Split(q.Get("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			f.Statuses = append(f.Statuses, model.Status(s))
		}
	}
	if raw := q.Get("replied"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "replied must be a boolean", http.StatusBadRequest)
			return
		}
		f.Replied = &v
	}

	items, err := h.Leads.List(r.Context(), f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []model.Lead{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) LeadStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Leads.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	err := h.Leads.Delete(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, repo.ErrLeadNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) ImportLeads(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Importer.Import(r.Context(), http.MaxBytesReader(w, r.Body, maxImportBytes))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	case errors.Is(err, importer.ErrMissingColumns):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) ImportTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="leads_template.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(importer.TemplateCSV())
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": h.Templates.All()})
}

func (h *Handler) CategoryTemplates(w http.ResponseWriter, r *http.Request) {
	category := model.Category(chi.URLParam(r, "category"))
	items := h.Templates.ForCategory(category)
	if len(items) == 0 {
		http.Error(w, "unknown template category", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": category, "templates": items})
}

type classifyBody struct {
	Text string `json:"text"`
}

func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var body classifyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.Classifier.Classify(body.Text))
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": h.Jobs.Statuses()})
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.toggleJob(w, r, (*scheduler.Scheduler).Start)
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.toggleJob(w, r, (*scheduler.Scheduler).Stop)
}

func (h *Handler) toggleJob(w http.ResponseWriter, r *http.Request, fn func(*scheduler.Scheduler) bool) {
	job, ok := h.Jobs.Get(chi.URLParam(r, "job"))
	if !ok {
		http.Error(w, "unknown scheduler job", http.StatusNotFound)
		return
	}
	fn(job)
	writeJSON(w, http.StatusOK, job.Status())
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
