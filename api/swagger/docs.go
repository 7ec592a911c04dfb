// Package swagger registers the OpenAPI document served under /swagger.
// Regenerate with `swag init -g cmd/snip-server/main.go -o api/swagger`.
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Snip Support",
            "url": "https://github.com/mikepea/snip"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/links/shorten": {
            "post": {
                "tags": ["links"],
                "summary": "Shorten a URL",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/links.ShortenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/links.ShortenResponse"}},
                    "400": {"description": "Invalid input or alias already taken", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/links/{short_code}": {
            "get": {
                "tags": ["links"],
                "summary": "Follow a short link",
                "parameters": [
                    {"type": "string", "description": "Short code", "name": "short_code", "in": "path", "required": true}
                ],
                "responses": {
                    "307": {"description": "Temporary Redirect"},
                    "404": {"description": "Link not found", "schema": {"$ref": "#/definitions/Error"}},
                    "410": {"description": "Link has expired", "schema": {"$ref": "#/definitions/Error"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["links"],
                "summary": "Rename a short code",
                "parameters": [
                    {"type": "string", "description": "Current short code", "name": "short_code", "in": "path", "required": true},
                    {"type": "string", "description": "New short code (or JSON body new_code)", "name": "new_code", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/Error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/Error"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/Error"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["links"],
                "summary": "Delete a link",
                "parameters": [
                    {"type": "string", "description": "Short code", "name": "short_code", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/Error"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/Error"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/links/{short_code}/stats": {
            "get": {
                "tags": ["links"],
                "summary": "Link statistics",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Short code", "name": "short_code", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/stats.Snapshot"}},
                    "404": {"description": "Link not found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/links/search/{original_url}": {
            "get": {
                "tags": ["links"],
                "summary": "Find links by original URL",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Original URL", "name": "original_url", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/links.LinkResponse"}}},
                    "404": {"description": "No links for this URL", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/links/delete-unused-links": {
            "post": {
                "tags": ["tasks"],
                "summary": "Archive unused links",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "description": "Idle days (0-36500)", "name": "days", "in": "query", "required": true, "minimum": 0, "maximum": 36500}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/sweeper.TaskResponse"}},
                    "400": {"description": "Invalid days", "schema": {"$ref": "#/definitions/Error"}},
                    "503": {"description": "Task queue full", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/links/task-status/{task_id}": {
            "get": {
                "tags": ["tasks"],
                "summary": "Task status",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Task ID", "name": "task_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/sweeper.TaskResponse"}},
                    "404": {"description": "Task not found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/auth/register": {
            "post": {
                "tags": ["auth"],
                "summary": "Register a new user",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/auth.RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/Error"}},
                    "409": {"description": "Username or email already registered", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Login",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/auth.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/admin/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "System statistics",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/admin/archive": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "List archived links",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "default": 50, "description": "Page size", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        }
    },
    "definitions": {
        "Error": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "links.ShortenRequest": {
            "type": "object",
            "required": ["original_url"],
            "properties": {
                "original_url": {"type": "string", "maxLength": 2048},
                "custom_alias": {"type": "string", "maxLength": 50},
                "expires_at": {"type": "string", "format": "date-time"}
            }
        },
        "links.ShortenResponse": {
            "type": "object",
            "properties": {
                "short_code": {"type": "string"},
                "original_url": {"type": "string"},
                "short_url": {"type": "string"},
                "expires_at": {"type": "string", "format": "date-time"}
            }
        },
        "links.LinkResponse": {
            "type": "object",
            "properties": {
                "short_code": {"type": "string"},
                "original_url": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "expires_at": {"type": "string", "format": "date-time"},
                "clicks": {"type": "integer"},
                "last_used_at": {"type": "string", "format": "date-time"}
            }
        },
        "stats.Snapshot": {
            "type": "object",
            "properties": {
                "original_url": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "clicks": {"type": "integer"},
                "last_used_at": {"type": "string", "format": "date-time"}
            }
        },
        "sweeper.TaskResponse": {
            "type": "object",
            "properties": {
                "task_id": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "running", "done", "failed"]},
                "error": {"type": "string"},
                "result": {"type": "object"}
            }
        },
        "auth.RegisterRequest": {
            "type": "object",
            "required": ["username", "email", "password"],
            "properties": {
                "username": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string", "minLength": 8}
            }
        },
        "auth.LoginRequest": {
            "type": "object",
            "required": ["password"],
            "properties": {
                "username": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT token or API key. Format: \"Bearer {token}\"",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Snip API",
	Description:      "A URL shortener with expiring links, click statistics and archival of unused links.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
