package devserver

import (
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
)

// registerDocs serves the API reference: the raw OpenAPI document at
// /openapi.json and the interactive UI under /docs/.
func registerDocs(r *mux.Router) {
	r.HandleFunc("/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(openAPIDoc))
	})
	r.PathPrefix("/docs/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/openapi.json"),
	))
}

const openAPIDoc = `{
  "swagger": "2.0",
  "info": {
    "title": "taskchat dev backend",
    "description": "Development implementation of the taskchat REST surface: projects, tasks, members and per-project chat messages with soft deletes.",
    "version": "0.1.0"
  },
  "basePath": "/v1",
  "paths": {
    "/projects": {
      "get": {"summary": "List projects", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}},
      "post": {"summary": "Create a project", "consumes": ["application/json"], "responses": {"200": {"description": "OK"}, "400": {"description": "validation error"}}}
    },
    "/projects/{id}": {
      "get": {"summary": "Get a project", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "not found"}}},
      "delete": {"summary": "Delete a project", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"204": {"description": "deleted"}}}
    },
    "/projects/{id}/messages": {
      "get": {
        "summary": "List a project's messages (newest-complete window)",
        "parameters": [
          {"name": "id", "in": "path", "required": true, "type": "string"},
          {"name": "offset", "in": "query", "type": "integer", "description": "messages to skip, counted back from the newest"},
          {"name": "limit", "in": "query", "type": "integer", "description": "window size; the window is anchored at the newest message"}
        ],
        "responses": {"200": {"description": "items plus total count; soft-deleted messages are omitted"}}
      },
      "post": {"summary": "Send a message", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "server-confirmed message with assigned id and ts"}, "400": {"description": "validation error"}}}
    },
    "/messages/{id}": {
      "delete": {"summary": "Soft-delete a message", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"204": {"description": "deleted"}, "404": {"description": "not found"}}}
    },
    "/projects/{id}/tasks": {
      "get": {"summary": "List tasks", "responses": {"200": {"description": "OK"}}},
      "post": {"summary": "Create a task", "responses": {"200": {"description": "OK"}, "400": {"description": "validation error"}}}
    },
    "/tasks/{id}": {
      "put": {"summary": "Update a task", "responses": {"200": {"description": "OK"}, "404": {"description": "not found"}}},
      "delete": {"summary": "Delete a task", "responses": {"204": {"description": "deleted"}, "404": {"description": "not found"}}}
    },
    "/projects/{id}/members": {
      "get": {"summary": "List members", "responses": {"200": {"description": "OK"}}},
      "post": {"summary": "Add a member", "responses": {"200": {"description": "OK"}, "400": {"description": "validation error"}}}
    },
    "/projects/{id}/members/{user}": {
      "delete": {"summary": "Remove a member", "responses": {"204": {"description": "removed"}}}
    }
  }
}`
