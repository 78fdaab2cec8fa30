// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with: swag init -g main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/assessments": {
            "get": {"tags": ["assessments"], "summary": "List assessments", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["assessments"], "summary": "Create assessment", "responses": {"201": {"description": "Created"}, "400": {"description": "Validation failed"}, "403": {"description": "Forbidden"}}}
        },
        "/assessments/{id}": {
            "get": {"tags": ["assessments"], "summary": "Get full assessment", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}},
            "put": {"tags": ["assessments"], "summary": "Update assessment", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Not editable"}}},
            "delete": {"tags": ["assessments"], "summary": "Delete assessment", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"204": {"description": "Deleted"}}}
        },
        "/assessments/{id}/publish": {
            "post": {"tags": ["assessments"], "summary": "Publish assessment", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Invalid transition"}, "422": {"description": "Invalid window"}}}
        },
        "/assessments/{id}/unpublish": {
            "post": {"tags": ["assessments"], "summary": "Unpublish assessment", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/assessments/{id}/archive": {
            "post": {"tags": ["assessments"], "summary": "Archive assessment", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/assessments/{id}/take": {
            "get": {"tags": ["delivery"], "summary": "Get safe assessment", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "422": {"description": "Not takeable"}}}
        },
        "/assessments/{id}/stats": {
            "get": {"tags": ["reports"], "summary": "Assessment statistics", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/assessments/{id}/results/export": {
            "get": {"tags": ["reports"], "summary": "Export results", "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"], "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "XLSX file"}}}
        },
        "/assessments/{id}/attempts": {
            "post": {"tags": ["attempts"], "summary": "Start attempt", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"201": {"description": "Created"}, "422": {"description": "Not eligible"}}}
        },
        "/assessments/{id}/attempts/me": {
            "get": {"tags": ["attempts"], "summary": "My attempts", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/attempts/{id}": {
            "get": {"tags": ["attempts"], "summary": "Attempt report", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/attempts/{id}/submit": {
            "post": {"tags": ["attempts"], "summary": "Submit attempt", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "Graded"}, "409": {"description": "Already submitted"}}}
        },
        "/attempts/{id}/integrity/tab-switch": {
            "post": {"tags": ["integrity"], "summary": "Log tab switch", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "Recorded"}}}
        },
        "/question-banks": {
            "get": {"tags": ["question-banks"], "summary": "List question banks", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["question-banks"], "summary": "Create a question bank", "responses": {"201": {"description": "Created"}}}
        },
        "/question-banks/{id}/generate": {
            "post": {"tags": ["question-banks"], "summary": "Generate questions", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"201": {"description": "Created"}, "503": {"description": "Generator not configured"}}}
        },
        "/question-banks/{id}/import/{assessment_id}": {
            "post": {"tags": ["question-banks"], "summary": "Import bank questions", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}, {"type": "integer", "name": "assessment_id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Assessment Engine API",
	Description:      "Authoring, delivery and grading of exams and quizzes.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
