// Package docs registers the OpenAPI document served under /swagger when
// the daemon is built with -tags=swagger. Regenerate with
// `swag init -g cmd/localchatd/docs.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/infer": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/x-ndjson"],
                "tags": ["inference"],
                "summary": "Stream a completion",
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.StreamRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StreamEvent"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/models": {
            "get": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "List available models",
                "parameters": [
                    {"type": "boolean", "in": "query", "name": "debug", "description": "Bypass the cache"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/models/invalidate": {
            "post": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Clear the model cache",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.AckResponse"}}
                }
            }
        },
        "/settings": {
            "get": {
                "produces": ["application/json"],
                "tags": ["settings"],
                "summary": "Read persisted settings",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Settings"}}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["settings"],
                "summary": "Update persisted settings",
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.SettingsPatch"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Settings"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/sessions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "List connected consumers",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SessionsResponse"}}
                }
            }
        },
        "/ws": {
            "get": {
                "tags": ["sessions"],
                "summary": "Consumer session channel",
                "parameters": [
                    {"type": "string", "in": "query", "name": "consumer", "description": "Consumer id (generated when empty)"}
                ],
                "responses": {}
            }
        }
    },
    "definitions": {
        "types.AckResponse": {
            "type": "object",
            "properties": {"ok": {"type": "boolean", "example": true}}
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 400},
                "error": {"type": "string", "example": "invalid JSON body"}
            }
        },
        "types.ModelsResponse": {
            "type": "object",
            "properties": {
                "cached": {"type": "boolean"},
                "fetched_at_ms": {"type": "integer", "example": 1700000000000},
                "models": {"type": "array", "items": {"type": "string"}, "example": ["llama3.1:8b", "mistral:7b"]},
                "ttl_ms": {"type": "integer", "example": 60000}
            }
        },
        "types.SessionInfo": {
            "type": "object",
            "properties": {
                "connected_unix": {"type": "integer", "example": 1700000000},
                "consumer_id": {"type": "string", "example": "tab-42"},
                "state": {"type": "string", "example": "streaming"},
                "streams": {"type": "integer", "example": 3}
            }
        },
        "types.SessionsResponse": {
            "type": "object",
            "properties": {
                "sessions": {"type": "array", "items": {"$ref": "#/definitions/types.SessionInfo"}}
            }
        },
        "types.Settings": {
            "type": "object",
            "properties": {
                "debug": {"type": "boolean"},
                "model": {"type": "string", "example": "mistral:7b"}
            }
        },
        "types.SettingsPatch": {
            "type": "object",
            "properties": {
                "debug": {"type": "boolean"},
                "model": {"type": "string", "example": "mistral:7b"}
            }
        },
        "types.StreamEvent": {
            "type": "object",
            "properties": {
                "data": {"type": "string", "example": "Hello"},
                "error": {"type": "string"},
                "type": {"type": "string", "example": "chunk"}
            }
        },
        "types.StreamRequest": {
            "type": "object",
            "properties": {
                "max_tokens": {"type": "integer", "example": 512},
                "model": {"type": "string", "example": "llama3.1:8b-instruct"},
                "prompt": {"type": "string", "example": "Summarize this page in five bullet points."},
                "system": {"type": "string"},
                "temperature": {"type": "number", "example": 0.3},
                "top_p": {"type": "number", "example": 0.9}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "localchat API",
	Description:      "Streaming chat sessions and model discovery for a local Ollama server.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
