// Package docs holds the swagger document for the HTTP API. It mirrors the
// godoc annotations on the handlers; regenerate with swag init when they change.
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
    "paths": {
        "/health": {
            "get": {
                "description": "Returns the health status of the API, including uptime, the active sync backend and the translation mode",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "Service is healthy", "schema": {"$ref": "#/definitions/health.healthResponse"}},
                    "503": {"description": "Service is unhealthy", "schema": {"$ref": "#/definitions/health.healthResponse"}}
                }
            }
        },
        "/rooms/{roomId}/audit": {
            "get": {
                "description": "Returns the newest audit entries of a room. Only mounted when the audit store is configured.",
                "produces": ["application/json"],
                "tags": ["audit"],
                "summary": "Room audit trail",
                "parameters": [
                    {"type": "string", "description": "Room ID", "name": "roomId", "in": "path", "required": true},
                    {"type": "integer", "description": "Maximum entries (default 50, max 500)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/audit.auditResponse"}},
                    "400": {"description": "Invalid limit", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/rooms/{roomId}/heartbeat": {
            "post": {
                "description": "Keeps the caller's presence record fresh and optionally changes name or language. An expired record is rejoined when a name is supplied.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["rooms"],
                "summary": "Refresh presence",
                "parameters": [
                    {"type": "string", "description": "Room ID", "name": "roomId", "in": "path", "required": true},
                    {"description": "Profile changes", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/rooms.heartbeatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/rooms.memberResponse"}},
                    "400": {"description": "Validation error", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Caller is not in the room", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/rooms/{roomId}/join": {
            "post": {
                "description": "Registers the caller in the room and assigns a role. The first two distinct clients become participants, later ones spectators. Rejoining keeps the role.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["rooms"],
                "summary": "Join a room",
                "parameters": [
                    {"type": "string", "description": "Room ID", "name": "roomId", "in": "path", "required": true},
                    {"description": "Display name and language", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/rooms.joinRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/rooms.joinResponse"}},
                    "400": {"description": "Validation error", "schema": {"type": "object", "additionalProperties": true}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/rooms/{roomId}/leave": {
            "post": {
                "description": "Removes the caller's presence record. Leaving twice is not an error.",
                "tags": ["rooms"],
                "summary": "Leave a room",
                "parameters": [
                    {"type": "string", "description": "Room ID", "name": "roomId", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/rooms/{roomId}/messages": {
            "get": {
                "description": "Returns the room's messages ordered by creation time.",
                "produces": ["application/json"],
                "tags": ["messages"],
                "summary": "List messages",
                "parameters": [
                    {"type": "string", "description": "Room ID", "name": "roomId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/messages.messagesResponse"}}
                }
            },
            "post": {
                "description": "Stores a message from the caller. When the other participant reads another language the message is returned with isTranslating set and the translation follows asynchronously.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["messages"],
                "summary": "Send a message",
                "parameters": [
                    {"type": "string", "description": "Room ID", "name": "roomId", "in": "path", "required": true},
                    {"description": "Message text", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/messages.sendMessageRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.ChatMessage"}},
                    "400": {"description": "Validation error", "schema": {"type": "object", "additionalProperties": true}},
                    "403": {"description": "Spectators are read-only", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Caller is not in the room", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Message failed to send, retry", "schema": {"type": "object", "additionalProperties": true}}
                }
            },
            "delete": {
                "description": "Deletes every message in the room.",
                "tags": ["messages"],
                "summary": "Reset the room",
                "parameters": [
                    {"type": "string", "description": "Room ID", "name": "roomId", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/rooms/{roomId}/messages/{messageId}": {
            "patch": {
                "description": "Switches a message between its translation and the original text.",
                "consumes": ["application/json"],
                "tags": ["messages"],
                "summary": "Toggle original text",
                "parameters": [
                    {"type": "string", "description": "Room ID", "name": "roomId", "in": "path", "required": true},
                    {"type": "string", "description": "Message ID", "name": "messageId", "in": "path", "required": true},
                    {"description": "Display flag", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/messages.updateMessageRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Validation error", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/rooms/{roomId}/presence": {
            "get": {
                "description": "Returns the members seen within the freshness window, participants first.",
                "produces": ["application/json"],
                "tags": ["rooms"],
                "summary": "List room members",
                "parameters": [
                    {"type": "string", "description": "Room ID", "name": "roomId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/rooms.presenceResponse"}}
                }
            },
            "delete": {
                "description": "Administrative reset of every presence record in the room.",
                "tags": ["rooms"],
                "summary": "Clear room members",
                "parameters": [
                    {"type": "string", "description": "Room ID", "name": "roomId", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/rooms/{roomId}/typing": {
            "get": {
                "description": "Returns the indicator while a translation is in progress, otherwise 204.",
                "produces": ["application/json"],
                "tags": ["rooms"],
                "summary": "Typing indicator",
                "parameters": [
                    {"type": "string", "description": "Room ID", "name": "roomId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.TypingIndicator"}},
                    "204": {"description": "No Content"}
                }
            }
        },
        "/rooms/{roomId}/ws": {
            "get": {
                "description": "Upgrades to a WebSocket that streams presence, message and typing snapshots and accepts heartbeat, message.send, message.show_original and leave commands.",
                "tags": ["rooms"],
                "summary": "Subscribe to room changes",
                "parameters": [
                    {"type": "string", "description": "Room ID", "name": "roomId", "in": "path", "required": true}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"},
                    "400": {"description": "Invalid room ID", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/translate": {
            "post": {
                "description": "Runs the translation gateway directly. Always answers 200; when every provider fails the result is the \"[from→to] text\" placeholder.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["translate"],
                "summary": "Translate text",
                "parameters": [
                    {"description": "Text and language pair", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/translate.translateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/translate.translateResponse"}},
                    "400": {"description": "Validation error", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "audit.auditResponse": {
            "type": "object",
            "properties": {
                "logs": {"type": "array", "items": {"$ref": "#/definitions/domain.ChatAuditLog"}}
            }
        },
        "domain.ChatAuditLog": {
            "type": "object",
            "properties": {
                "eventType": {"type": "string"},
                "id": {"type": "string"},
                "metadata": {"type": "object", "additionalProperties": true},
                "roomId": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "domain.ChatMessage": {
            "type": "object",
            "properties": {
                "createdAt": {"type": "string"},
                "id": {"type": "string"},
                "isTranslating": {"type": "boolean"},
                "roomId": {"type": "string"},
                "sender": {"$ref": "#/definitions/domain.Role"},
                "senderName": {"type": "string"},
                "showOriginal": {"type": "boolean"},
                "text": {"type": "string"},
                "translatedText": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "domain.PresenceRecord": {
            "type": "object",
            "properties": {
                "clientId": {"type": "string"},
                "language": {"type": "string"},
                "lastSeen": {"type": "string"},
                "name": {"type": "string"},
                "role": {"$ref": "#/definitions/domain.Role"}
            }
        },
        "domain.Role": {
            "type": "string",
            "enum": ["user1", "user2", "spectator"],
            "x-enum-varnames": ["RoleParticipantA", "RoleParticipantB", "RoleSpectator"]
        },
        "domain.TypingIndicator": {
            "type": "object",
            "properties": {
                "isTyping": {"type": "boolean"},
                "sender": {"$ref": "#/definitions/domain.Role"},
                "timestamp": {"type": "string"}
            }
        },
        "health.healthResponse": {
            "type": "object",
            "properties": {
                "backend": {"type": "string", "enum": ["remote", "local", "polling"], "example": "remote"},
                "status": {"description": "Health status (ok or unhealthy)", "type": "string", "enum": ["ok", "unhealthy"], "example": "ok"},
                "timestamp": {"description": "Current server timestamp in RFC3339 format", "type": "string", "example": "2024-01-01T12:00:00Z"},
                "translation": {"type": "string", "enum": ["primary", "fallback"], "example": "primary"},
                "uptime": {"description": "Server uptime since start", "type": "string", "example": "2h30m45s"}
            }
        },
        "messages.messagesResponse": {
            "type": "object",
            "properties": {
                "messages": {"type": "array", "items": {"$ref": "#/definitions/domain.ChatMessage"}}
            }
        },
        "messages.sendMessageRequest": {
            "type": "object",
            "properties": {
                "text": {"type": "string"}
            }
        },
        "messages.updateMessageRequest": {
            "type": "object",
            "properties": {
                "showOriginal": {"type": "boolean"}
            }
        },
        "rooms.heartbeatRequest": {
            "type": "object",
            "properties": {
                "language": {"type": "string"},
                "name": {"type": "string"}
            }
        },
        "rooms.joinRequest": {
            "type": "object",
            "properties": {
                "language": {"type": "string"},
                "name": {"type": "string"}
            }
        },
        "rooms.joinResponse": {
            "type": "object",
            "properties": {
                "clientId": {"type": "string"},
                "member": {"$ref": "#/definitions/domain.PresenceRecord"},
                "members": {"type": "array", "items": {"$ref": "#/definitions/domain.PresenceRecord"}}
            }
        },
        "rooms.memberResponse": {
            "type": "object",
            "properties": {
                "clientId": {"type": "string"},
                "member": {"$ref": "#/definitions/domain.PresenceRecord"}
            }
        },
        "rooms.presenceResponse": {
            "type": "object",
            "properties": {
                "members": {"type": "array", "items": {"$ref": "#/definitions/domain.PresenceRecord"}}
            }
        },
        "translate.translateRequest": {
            "type": "object",
            "properties": {
                "from": {"type": "string"},
                "text": {"type": "string"},
                "to": {"type": "string"}
            }
        },
        "translate.translateResponse": {
            "type": "object",
            "properties": {
                "translatedText": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Parley API",
	Description:      "Two-party chat with automatic translation, presence and typing indicators.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
