package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the brew service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>slidecoffee-brew | Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document for the generation and draft endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "slidecoffee-brew", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "QuotaRejection": { "type": "object", "properties": { "error": {"type":"string"}, "message": {"type":"string"}, "limit": {"type":"integer"}, "current": {"type":"integer"}, "upgradeRequired": {"type":"boolean"} } }
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/api/generate-slides-stream": {
      "post": {
        "summary": "Generate a presentation from a topic or plan, streamed as server-sent events",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"topic":{"type":"string","maxLength":500},"presentationPlan":{"type":"object"},"brand":{"type":"object"},"brandId":{"type":"string"},"projectId":{"type":"string"},"enableResearch":{"type":"boolean","default":true},"slideCount":{"type":"integer"}}}}}},
        "responses": {
          "200": { "description": "event stream: start, research_*, outline_*, slide_start, slide_generated, slides_complete, complete | error", "content": { "text/event-stream": {} } },
          "400": { "description": "invalid request" },
          "403": { "description": "quota exceeded", "content": { "application/json": { "schema": { "$ref": "#/components/schemas/QuotaRejection" } } } },
          "429": { "description": "generation rate limit" }
        }
      }
    },
    "/api/brews/generate-from-outline": {
      "post": { "summary": "Generate slides from an edited outline draft (event stream)", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"draftId":{"type":"string"}}}}}}, "responses": { "200": { "description": "event stream" }, "404": { "description": "draft not found" }, "409": { "description": "draft busy or completed" } } }
    },
    "/api/brews/generate-outline": {
      "post": { "summary": "Create an outline draft from a topic", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"topic":{"type":"string","minLength":5,"maxLength":500},"projectId":{"type":"string"},"slideCount":{"type":"integer","default":10}}}}}}, "responses": { "200": { "description": "draft created" } } }
    },
    "/api/brews/analyze-content": {
      "post": { "summary": "Create an outline draft from pasted content", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"content":{"type":"string","minLength":50,"maxLength":50000},"options":{"type":"object"}}}}}}, "responses": { "200": { "description": "draft created" } } }
    },
    "/api/brews/import-file": {
      "post": { "summary": "Import a file into a new outline draft", "requestBody": { "content": { "multipart/form-data": { "schema": {"type":"object","properties":{"file":{"type":"string","format":"binary"}}}}}}, "responses": { "200": { "description": "draft created" } } }
    },
    "/api/brews/outline-drafts": { "get": { "summary": "List outline drafts", "responses": { "200": { "description": "drafts" } } } },
    "/api/brews/outline-drafts/{id}": {
      "get": { "summary": "Get an outline draft", "responses": { "200": { "description": "draft" }, "404": { "description": "not found" } } },
      "patch": { "summary": "Edit outline, theme or step", "responses": { "200": { "description": "updated" }, "403": { "description": "not the creator" } } },
      "delete": { "summary": "Soft delete a draft", "responses": { "200": { "description": "deleted" } } }
    },
    "/api/presentations/{id}": { "get": { "summary": "Get a generated presentation", "responses": { "200": { "description": "presentation" } } } },
    "/api/brews/runs": { "get": { "summary": "Recent generation runs", "responses": { "200": { "description": "runs" } } } },
    "/api/brews/runs/{id}": { "get": { "summary": "Generation run summary", "responses": { "200": { "description": "run" } } } },
    "/api/brews/runs/{id}/events": { "get": { "summary": "Journaled events of a run", "responses": { "200": { "description": "events" } } } },
    "/api/plans": { "get": { "summary": "Plan catalogue with monthly limits", "security": [], "responses": { "200": { "description": "plans" } } } },
    "/health": { "get": { "summary": "Liveness check", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
