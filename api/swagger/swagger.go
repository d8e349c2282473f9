package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Access API",
        "description": "Temporary access grant service",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and session info"},
        {"name": "Temporary Access", "description": "Time-bound access grant lifecycle"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Get current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/temporary-access": {
            "get": {
                "tags": ["Temporary Access"],
                "summary": "List temporary access grants",
                "parameters": [
                    {"name": "resourceType", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Temporary Access"],
                "summary": "Grant temporary access",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateAccessRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/temporary-access/statistics": {
            "get": {
                "tags": ["Temporary Access"],
                "summary": "Grant statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/temporary-access/export": {
            "get": {
                "tags": ["Temporary Access"],
                "summary": "Export the grant register",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Exported register"}
                }
            }
        },
        "/temporary-access/cleanup": {
            "post": {
                "tags": ["Temporary Access"],
                "summary": "Deactivate expired grants",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/temporary-access/{id}": {
            "get": {
                "tags": ["Temporary Access"],
                "summary": "Get one grant",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Temporary Access"],
                "summary": "Revoke a grant",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/RevokeAccessRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already revoked"}
                }
            }
        },
        "/temporary-access/{id}/extend": {
            "patch": {
                "tags": ["Temporary Access"],
                "summary": "Extend a grant's expiry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExtendAccessRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Grant revoked or concurrently modified"}
                }
            }
        },
        "/temporary-access/{id}/events": {
            "get": {
                "tags": ["Temporary Access"],
                "summary": "Grant lifecycle history",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/temporary-access/user/{userId}": {
            "delete": {
                "tags": ["Temporary Access"],
                "summary": "Revoke every active grant of a user",
                "parameters": [
                    {"name": "userId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "TemporaryAccess": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "user_id": {"type": "string"},
                "user_name": {"type": "string"},
                "user_email": {"type": "string"},
                "resource_type": {"type": "string", "enum": ["EXAM", "CLASS", "MATERIAL"]},
                "resource_id": {"type": "string"},
                "granted_by": {"type": "string"},
                "grantor_name": {"type": "string"},
                "reason": {"type": "string"},
                "start_date": {"type": "string"},
                "expires_at": {"type": "string"},
                "revoked_at": {"type": "string"},
                "revoked_note": {"type": "string"},
                "active": {"type": "boolean"},
                "status": {"type": "string", "enum": ["SCHEDULED", "ACTIVE", "EXPIRED", "REVOKED"]},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "AccessEvent": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "access_id": {"type": "string"},
                "type": {"type": "string", "enum": ["CREATED", "EXTENDED", "REVOKED"]},
                "actor_id": {"type": "string"},
                "reason": {"type": "string"},
                "previous_expires_at": {"type": "string"},
                "new_expires_at": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "AccessStatistics": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "active": {"type": "integer"},
                "expired": {"type": "integer"},
                "revoked": {"type": "integer"},
                "by_resource_type": {"type": "object"},
                "generated_at": {"type": "string"}
            }
        },
        "CreateAccessRequest": {
            "type": "object",
            "properties": {
                "user_id": {"type": "string"},
                "resource_type": {"type": "string", "enum": ["EXAM", "CLASS", "MATERIAL"]},
                "resource_id": {"type": "string"},
                "reason": {"type": "string"},
                "start_date": {"type": "string"},
                "expires_at": {"type": "string"}
            },
            "required": ["user_id", "resource_type", "resource_id", "start_date", "expires_at", "reason"]
        },
        "ExtendAccessRequest": {
            "type": "object",
            "properties": {
                "expires_at": {"type": "string"},
                "reason": {"type": "string"}
            },
            "required": ["expires_at", "reason"]
        },
        "RevokeAccessRequest": {
            "type": "object",
            "properties": {
                "note": {"type": "string"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
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
