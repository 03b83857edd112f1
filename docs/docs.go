// Package docs registers the status API document with swag. Paths mirror
// the annotations on the handlers in internal/handlers.
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
        "/api/v1/faults": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Faults journaled before past restarts, newest first. Operator only.",
                "produces": ["application/json"],
                "tags": ["gateway"],
                "summary": "Recent faults",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Maximum number of records (default 20, max 100)",
                        "name": "limit",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {"description": "count, faults", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/logs": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Filter logs by date (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD'). If 'to' is date-only, it is treated as end-of-day inclusive (23:59:59.999999999Z).",
                "produces": ["application/json"],
                "tags": ["logs"],
                "summary": "List logs",
                "parameters": [
                    {"type": "string", "example": "2025-08-01", "description": "Start of range", "name": "from", "in": "query"},
                    {"type": "string", "example": "2025-08-31", "description": "End of range. Date-only treated as end of day.", "name": "to", "in": "query"},
                    {"enum": ["START", "DROP", "FAULT"], "type": "string", "description": "Event type", "name": "type", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "count, events", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/readings": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Last payload published on each topic",
                "produces": ["application/json"],
                "tags": ["gateway"],
                "summary": "Latest readings",
                "responses": {
                    "200": {"description": "count, readings", "schema": {"type": "object", "additionalProperties": true}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/users": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Operator only.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Add a viewer account",
                "parameters": [
                    {"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.authCredentials"}}
                ],
                "responses": {
                    "200": {"description": "id, role", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/status": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Packet counters, last RSSI and radio diagnostics of the running gateway",
                "produces": ["application/json"],
                "tags": ["gateway"],
                "summary": "Gateway status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.GatewayStatus"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/auth/sign-in": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Sign in",
                "parameters": [
                    {"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.authCredentials"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/auth/enroll": {
            "post": {
                "description": "Creates the single operator account. Requires the boot ID logged at startup.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Enroll the gateway operator",
                "parameters": [
                    {"description": "Credentials and boot ID", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.operatorEnrollment"}}
                ],
                "responses": {
                    "200": {"description": "id, role", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "409": {"description": "Conflict", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "handlers.authCredentials": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {
                "password": {"type": "string"},
                "username": {"type": "string"}
            }
        },
        "handlers.operatorEnrollment": {
            "type": "object",
            "required": ["boot_id", "password", "username"],
            "properties": {
                "boot_id": {"type": "string"},
                "password": {"type": "string"},
                "username": {"type": "string"}
            }
        },
        "models.GatewayStatus": {
            "type": "object",
            "properties": {
                "boot_id": {"type": "string"},
                "broker": {"type": "string"},
                "indicator_on": {"type": "boolean"},
                "last_packet_at": {"type": "string"},
                "last_rssi": {"type": "integer"},
                "packets_dropped": {"type": "integer"},
                "packets_published": {"type": "integer"},
                "packets_received": {"type": "integer"},
                "radio": {"$ref": "#/definitions/models.RadioInfo"},
                "started_at": {"type": "string"}
            }
        },
        "models.RadioInfo": {
            "type": "object",
            "properties": {
                "bitrate_bps": {"type": "number"},
                "frequency_deviation_hz": {"type": "number"},
                "frequency_mhz": {"type": "number"},
                "temperature_c": {"type": "number"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Radio sensor gateway status API",
	Description:      "View of the radio to broker gateway: counters, latest readings, event log and, for the operator, the fault journal.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
