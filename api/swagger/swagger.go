package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Elim Assembly Attendance API",
        "description": "Attendance recording, deduplication and absentee follow-up engine",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Members", "description": "Member and dependant registration"},
        {"name": "Attendance", "description": "Single and bulk check-in"},
        {"name": "Absentees", "description": "Absentee follow-up workflow"},
        {"name": "Statistics", "description": "Attendance aggregation"}
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
        "/api/v1/members": {
            "post": {
                "tags": ["Members"],
                "summary": "Register a member with a generated membership identifier",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error"}
                }
            },
            "get": {
                "tags": ["Members"],
                "summary": "List persons",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/members/dependants": {
            "post": {
                "tags": ["Members"],
                "summary": "Register a dependant linked to a member",
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/api/v1/members/by-identifier/{id}": {
            "get": {
                "tags": ["Members"],
                "summary": "Resolve a membership identifier to a member",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Malformed identifier"},
                    "404": {"description": "No member holds that identifier"}
                }
            }
        },
        "/api/v1/attendance/check-in": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Check in a person with optional dependants",
                "responses": {
                    "200": {"description": "Per-entry admission outcomes"}
                }
            }
        },
        "/api/v1/attendance/bulk-check-in": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Check in a batch of persons for one occurrence",
                "responses": {
                    "200": {"description": "Successful, duplicate and error counts"}
                }
            }
        },
        "/api/v1/attendance": {
            "get": {
                "tags": ["Attendance"],
                "summary": "List attendance records",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/absentees": {
            "post": {
                "tags": ["Absentees"],
                "summary": "Mark a person absent for a service occurrence",
                "responses": {
                    "200": {"description": "Upserted record"}
                }
            },
            "get": {
                "tags": ["Absentees"],
                "summary": "List absentee records",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/absentees/notifications": {
            "post": {
                "tags": ["Absentees"],
                "summary": "Dispatch follow-up notifications to selected absentees",
                "responses": {
                    "200": {"description": "Sent and failed tallies"}
                }
            }
        },
        "/api/v1/absentees/{id}/follow-up": {
            "post": {
                "tags": ["Absentees"],
                "summary": "Close the follow-up loop for one record",
                "responses": {
                    "204": {"description": "No content"}
                }
            }
        },
        "/api/v1/stats/attendance": {
            "get": {
                "tags": ["Statistics"],
                "summary": "Aggregate attendance over a date window",
                "responses": {
                    "200": {"description": "Totals by gender, age bracket and group"}
                }
            }
        },
        "/api/v1/stats/attendance/export": {
            "get": {
                "tags": ["Statistics"],
                "summary": "Download the aggregated stats as a PDF report",
                "responses": {
                    "200": {"description": "PDF report"}
                }
            }
        }
    },
    "definitions": {
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
