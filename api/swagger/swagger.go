package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Classroom Engagement API",
        "description": "Roster sync from Google Classroom, attendance sessions, leaderboards and student diagnostics",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Google sign-in and roster reconciliation"},
        {"name": "Courses", "description": "Imported courses and rosters"},
        {"name": "Sessions", "description": "Attendance and participation logs"},
        {"name": "Leaderboard", "description": "Course standings and exports"},
        {"name": "Students", "description": "Per-student diagnostics"}
    ],
    "paths": {
        "/auth/google/url": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Provider consent URL",
                "responses": {
                    "200": {"description": "Consent URL and signed state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/google/callback": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Complete sign-in",
                "description": "Exchanges the authorization code, reconciles the caller's rosters and issues a session token",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/SyncRequest"}}
                ],
                "responses": {
                    "200": {"description": "Session token and sync summary", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Missing code or state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "AUTHORIZATION_FAILED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "SYNC_FAILED while persisting", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "SYNC_FAILED while fetching rosters", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current identity",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Identity", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "List my courses",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Courses", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}/students": {
            "get": {
                "tags": ["Courses"],
                "summary": "Course roster",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Roster", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List course sessions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "query", "name": "from", "type": "string", "format": "date"},
                    {"in": "query", "name": "to", "type": "string", "format": "date"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "page_size", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Sessions", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Record a session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/CreateSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Session detail",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Session with records", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Sessions"],
                "summary": "Delete a session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}/leaderboard": {
            "get": {
                "tags": ["Leaderboard"],
                "summary": "Course leaderboard",
                "description": "meta.cache_hit reports whether the standings came from cache",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Leaderboard", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}/leaderboard/export": {
            "get": {
                "tags": ["Leaderboard"],
                "summary": "Export course leaderboard",
                "produces": ["text/csv", "application/pdf"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File download", "schema": {"type": "file"}},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/stats": {
            "get": {
                "tags": ["Students"],
                "summary": "Student engagement diagnostics",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true, "description": "Enrollment ID"}
                ],
                "responses": {
                    "200": {"description": "Diagnostics", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SyncRequest": {
            "type": "object",
            "required": ["code", "state"],
            "properties": {
                "code": {"type": "string"},
                "state": {"type": "string", "description": "Signed state returned by /auth/google/url"}
            }
        },
        "SessionRecordInput": {
            "type": "object",
            "required": ["enrollmentId"],
            "properties": {
                "enrollmentId": {"type": "string", "format": "uuid"},
                "present": {"type": "boolean"},
                "participation": {"type": "integer", "minimum": 0, "maximum": 10},
                "note": {"type": "string"}
            }
        },
        "CreateSessionRequest": {
            "type": "object",
            "required": ["heldOn", "records"],
            "properties": {
                "heldOn": {"type": "string", "format": "date"},
                "topic": {"type": "string"},
                "records": {"type": "array", "items": {"$ref": "#/definitions/SessionRecordInput"}}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
