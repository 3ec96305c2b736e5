// Package docs holds the OpenAPI description served at /swagger.
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
        "/plan": {
            "get": {
                "produces": ["application/json"],
                "tags": ["plan"],
                "summary": "Active quit plan",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Plan"}},
                    "404": {"description": "No active plan"}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["plan"],
                "summary": "Create or replace the quit plan",
                "parameters": [{"in": "body", "name": "plan", "required": true, "schema": {"$ref": "#/definitions/domain.Plan"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Plan"}},
                    "400": {"description": "Invalid plan"},
                    "409": {"description": "Version conflict"}
                }
            }
        },
        "/checkins/{date}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["checkins"],
                "summary": "Local check-in for a day",
                "parameters": [{"type": "string", "description": "YYYY-MM-DD", "name": "date", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.CheckinRecord"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["checkins"],
                "summary": "Enter or edit the day's count as a draft",
                "parameters": [
                    {"type": "string", "description": "YYYY-MM-DD", "name": "date", "in": "path", "required": true},
                    {"in": "body", "name": "checkin", "required": true, "schema": {
                        "type": "object",
                        "properties": {
                            "actual_cigarettes": {"type": "integer", "minimum": 0},
                            "notes": {"type": "string"}
                        }
                    }}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.CheckinRecord"}},
                    "400": {"description": "Invalid input"}
                }
            }
        },
        "/checkins/{date}/commit": {
            "post": {
                "produces": ["application/json"],
                "tags": ["checkins"],
                "summary": "Save the day's draft to the remote store",
                "parameters": [
                    {"type": "string", "description": "YYYY-MM-DD", "name": "date", "in": "path", "required": true},
                    {"type": "boolean", "description": "queue the save instead of waiting", "name": "async", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Committed"},
                    "202": {"description": "Kept as draft or queued"},
                    "404": {"description": "No draft for that day"}
                }
            }
        },
        "/progress/series": {
            "get": {
                "produces": ["application/json"],
                "tags": ["progress"],
                "summary": "Reconciled per-day series",
                "parameters": [
                    {"type": "string", "description": "YYYY-MM-DD", "name": "from", "in": "query"},
                    {"type": "string", "description": "YYYY-MM-DD", "name": "to", "in": "query"},
                    {"type": "string", "description": "IANA timezone", "name": "tz", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.SeriesResult"}},
                    "400": {"description": "Invalid range"}
                }
            }
        },
        "/progress/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["progress"],
                "summary": "Cumulative statistics",
                "parameters": [
                    {"type": "string", "description": "YYYY-MM-DD", "name": "as_of", "in": "query"},
                    {"type": "string", "description": "IANA timezone", "name": "tz", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.StatsResult"}}
                }
            }
        }
    },
    "definitions": {
        "domain.WeekPhase": {
            "type": "object",
            "properties": {
                "index": {"type": "integer"},
                "target_daily_cigarettes": {"type": "integer"}
            }
        },
        "domain.Plan": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "start_date": {"type": "string", "example": "2024-03-01"},
                "initial_daily_cigarettes": {"type": "integer"},
                "phases": {"type": "array", "items": {"$ref": "#/definitions/domain.WeekPhase"}},
                "pack_price": {"type": "number"},
                "currency": {"type": "string"},
                "version": {"type": "integer"}
            }
        },
        "domain.CheckinRecord": {
            "type": "object",
            "properties": {
                "user_id": {"type": "string"},
                "date": {"type": "string", "example": "2024-03-01"},
                "target_cigarettes": {"type": "integer"},
                "actual_cigarettes": {"type": "integer"},
                "notes": {"type": "string"},
                "origin": {"type": "string", "enum": ["local", "remote"]},
                "state": {"type": "string", "enum": ["draft", "committed"]},
                "version": {"type": "integer"}
            }
        },
        "domain.ReconciledDay": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "target": {"type": "integer"},
                "actual": {"type": "integer", "x-nullable": true},
                "saved": {"type": "integer"},
                "source": {"type": "string", "enum": ["remote", "local", "draft", "none"]},
                "pending_draft": {"type": "boolean"}
            }
        },
        "domain.HealthMilestone": {
            "type": "object",
            "properties": {
                "threshold_days": {"type": "integer"},
                "label": {"type": "string"},
                "achieved": {"type": "boolean"}
            }
        },
        "domain.Statistics": {
            "type": "object",
            "properties": {
                "days_tracked": {"type": "integer"},
                "cigarettes_avoided": {"type": "integer"},
                "cigarettes_smoked": {"type": "integer"},
                "average_daily": {"type": "number"},
                "money_saved": {"type": "number"},
                "currency": {"type": "string"},
                "current_streak": {"type": "integer"},
                "longest_streak": {"type": "integer"},
                "elapsed_days": {"type": "integer"},
                "health_milestones": {"type": "array", "items": {"$ref": "#/definitions/domain.HealthMilestone"}}
            }
        },
        "services.SeriesResult": {
            "type": "object",
            "properties": {
                "days": {"type": "array", "items": {"$ref": "#/definitions/domain.ReconciledDay"}},
                "warnings": {"type": "array", "items": {"type": "string"}},
                "degraded": {"type": "boolean"}
            }
        },
        "services.StatsResult": {
            "type": "object",
            "properties": {
                "statistics": {"$ref": "#/definitions/domain.Statistics"},
                "warnings": {"type": "array", "items": {"type": "string"}},
                "degraded": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Kanso Quit Engine API",
	Description:      "Quit-plan progress reconciliation and statistics.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
