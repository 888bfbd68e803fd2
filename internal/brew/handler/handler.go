// Package handler exposes the brew flows over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/slidecoffee/brew-service/internal/brew"
	"github.com/slidecoffee/brew-service/internal/brew/repository"
	"github.com/slidecoffee/brew-service/internal/brew/service"
	"github.com/slidecoffee/brew-service/internal/events"
	"github.com/slidecoffee/brew-service/internal/pipeline"
	"github.com/slidecoffee/brew-service/internal/runs"
	"github.com/slidecoffee/brew-service/internal/workspaces"
	"github.com/slidecoffee/brew-service/pkg/logger"
)

// Handler serves the /api brew routes. Orchestrator may be nil when no AI
// provider is configured; generation routes then answer 503.
type Handler struct {
	Service      *service.Service
	Orchestrator *pipeline.Orchestrator
	Runs         runs.Store
	Journal      *events.Journal
}

// Register mounts the routes on rg. generationLimit guards the routes that
// start AI work.
func (h *Handler) Register(rg *gin.RouterGroup, generationLimit gin.HandlerFunc) {
	if generationLimit == nil {
		generationLimit = func(c *gin.Context) { c.Next() }
	}
	rg.POST("/generate-slides-stream", generationLimit, h.generateSlidesStream)
	rg.POST("/brews/generate-from-outline", generationLimit, h.generateFromOutline)
	rg.POST("/brews/generate-outline", generationLimit, h.generateOutline)
	rg.POST("/brews/analyze-content", generationLimit, h.analyzeContent)
	rg.POST("/brews/import-file", h.importFile)

	rg.GET("/brews/outline-drafts", h.listDrafts)
	rg.GET("/brews/outline-drafts/:id", h.getDraft)
	rg.PATCH("/brews/outline-drafts/:id", h.updateDraft)
	rg.DELETE("/brews/outline-drafts/:id", h.deleteDraft)

	rg.GET("/presentations/:id", h.getPresentation)

	rg.GET("/brews/runs", h.listRuns)
	rg.GET("/brews/runs/:id", h.getRun)
	rg.GET("/brews/runs/:id/events", h.runEvents)
}

func caller(c *gin.Context) (service.Caller, *workspaces.Principal, bool) {
	p, ok := workspaces.PrincipalFrom(c)
	if !ok || p.WorkspaceID == "" || p.UserID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": "Authentication required"})
		return service.Caller{}, nil, false
	}
	return service.Caller{WorkspaceID: p.WorkspaceID, UserID: p.UserID}, p, true
}

type streamRequest struct {
	Topic            string          `json:"topic"`
	PresentationPlan json.RawMessage `json:"presentationPlan"`
	Brand            *brew.Brand     `json:"brand"`
	BrandID          string          `json:"brandId"`
	ProjectID        string          `json:"projectId"`
	EnableResearch   *bool           `json:"enableResearch"`
	SlideCount       int             `json:"slideCount"`
}

func (h *Handler) generateSlidesStream(c *gin.Context) {
	_, p, ok := caller(c)
	if !ok {
		return
	}
	var body streamRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
		return
	}
	plan := body.PresentationPlan
	if strings.TrimSpace(string(plan)) == "null" {
		plan = nil
	}
	research := true
	if body.EnableResearch != nil {
		research = *body.EnableResearch
	}
	h.stream(c, pipeline.Request{
		WorkspaceID:    p.WorkspaceID,
		UserID:         p.UserID,
		PlanID:         p.Plan,
		ProjectID:      body.ProjectID,
		Topic:          body.Topic,
		Plan:           plan,
		Brand:          body.Brand,
		BrandID:        body.BrandID,
		EnableResearch: research,
		SlideCount:     body.SlideCount,
	})
}

func (h *Handler) generateFromOutline(c *gin.Context) {
	_, p, ok := caller(c)
	if !ok {
		return
	}
	var body struct {
		DraftID string `json:"draftId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.DraftID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Draft ID is required"})
		return
	}
	h.stream(c, pipeline.Request{
		WorkspaceID: p.WorkspaceID,
		UserID:      p.UserID,
		PlanID:      p.Plan,
		DraftID:     strings.TrimSpace(body.DraftID),
	})
}

// stream runs every precondition before the first byte is written, so
// failures there are plain JSON responses. Once the event stream is open the
// run reports its own outcome as events.
func (h *Handler) stream(c *gin.Context, req pipeline.Request) {
	if h.Orchestrator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service Unavailable", "message": "AI service is not configured"})
		return
	}
	run, err := h.Orchestrator.Prepare(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("X-Run-Id", run.ID)
	sink := events.NewSSESink(c.Writer)
	sink.Open()
	res := run.Execute(c.Request.Context(), sink)
	sink.Close()
	if res.Err != nil {
		logger.Debugf("stream %s ended in phase %s: %v", res.RunID, res.Phase, res.Err)
	}
}

func (h *Handler) generateOutline(c *gin.Context) {
	cl, _, ok := caller(c)
	if !ok {
		return
	}
	var body struct {
		Topic      string `json:"topic"`
		ProjectID  string `json:"projectId"`
		SlideCount int    `json:"slideCount"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
		return
	}
	d, err := h.Service.GenerateOutline(c.Request.Context(), cl, body.Topic, body.ProjectID, body.SlideCount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "draft": d, "outline": d.Outline})
}

func (h *Handler) analyzeContent(c *gin.Context) {
	cl, _, ok := caller(c)
	if !ok {
		return
	}
	var body struct {
		Content string                 `json:"content"`
		Options service.AnalyzeOptions `json:"options"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content is required"})
		return
	}
	d, err := h.Service.AnalyzeContent(c.Request.Context(), cl, body.Content, body.Options)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "draft": d, "outline": d.Outline, "draft_id": d.ID})
}

func (h *Handler) importFile(c *gin.Context) {
	cl, _, ok := caller(c)
	if !ok {
		return
	}
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Expected multipart/form-data"})
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read uploaded file"})
		return
	}
	defer f.Close()

	res, err := h.Service.ImportFile(c.Request.Context(), cl, service.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  res.Message,
		"content":  res.Content,
		"outline":  res.Draft.Outline,
		"draft":    res.Draft,
		"draft_id": res.Draft.ID,
	})
}

func (h *Handler) listDrafts(c *gin.Context) {
	cl, _, ok := caller(c)
	if !ok {
		return
	}
	list, err := h.Service.ListDrafts(c.Request.Context(), cl)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) getDraft(c *gin.Context) {
	cl, _, ok := caller(c)
	if !ok {
		return
	}
	d, err := h.Service.GetDraft(c.Request.Context(), cl, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type draftPatch struct {
	Outline     *brew.Outline    `json:"outline_json"`
	CurrentStep *int             `json:"current_step"`
	ThemeID     *string          `json:"theme_id"`
	Theme       *brew.ThemeStyle `json:"theme"`
	BrandID     *string          `json:"brand_id"`
	Brand       *brew.Brand      `json:"brand"`
}

func (h *Handler) updateDraft(c *gin.Context) {
	cl, _, ok := caller(c)
	if !ok {
		return
	}
	var body draftPatch
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
		return
	}
	d, err := h.Service.UpdateDraft(c.Request.Context(), cl, c.Param("id"), repository.DraftPatch{
		Outline:     body.Outline,
		CurrentStep: body.CurrentStep,
		ThemeID:     body.ThemeID,
		Theme:       body.Theme,
		BrandID:     body.BrandID,
		Brand:       body.Brand,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "draft": d})
}

func (h *Handler) deleteDraft(c *gin.Context) {
	cl, _, ok := caller(c)
	if !ok {
		return
	}
	if err := h.Service.DeleteDraft(c.Request.Context(), cl, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) getPresentation(c *gin.Context) {
	cl, _, ok := caller(c)
	if !ok {
		return
	}
	p, err := h.Service.GetPresentation(c.Request.Context(), cl, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Presentation not found"})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) listRuns(c *gin.Context) {
	cl, _, ok := caller(c)
	if !ok || !h.runsEnabled(c) {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	list, err := h.Runs.ListRecent(c.Request.Context(), cl.WorkspaceID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) getRun(c *gin.Context) {
	cl, _, ok := caller(c)
	if !ok || !h.runsEnabled(c) {
		return
	}
	rec, err := h.Runs.Load(c.Request.Context(), cl.WorkspaceID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// runEvents replays the journaled events of a run the caller's workspace owns.
func (h *Handler) runEvents(c *gin.Context) {
	cl, _, ok := caller(c)
	if !ok || !h.runsEnabled(c) {
		return
	}
	if h.Journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service Unavailable", "message": "Event journal is not configured"})
		return
	}
	if _, err := h.Runs.Load(c.Request.Context(), cl.WorkspaceID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	evs, err := h.Journal.Read(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]json.RawMessage, 0, len(evs))
	for _, e := range evs {
		b, err := events.Encode(e)
		if err != nil {
			continue
		}
		out = append(out, b)
	}
	c.JSON(http.StatusOK, gin.H{"runId": c.Param("id"), "events": out})
}

func (h *Handler) runsEnabled(c *gin.Context) bool {
	if h.Runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service Unavailable", "message": "Run history is not configured"})
		return false
	}
	return true
}
