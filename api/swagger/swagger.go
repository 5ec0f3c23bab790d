package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Billing API",
        "description": "Billing obligation ledger for school administration",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and session info"},
        {"name": "Billing", "description": "Billing policies, obligation generation and overdue sweeps"},
        {"name": "Payments", "description": "Payment settlement and invoices"},
        {"name": "Reports", "description": "Statements and collection statistics"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/billing-configs": {
            "get": {
                "tags": ["Billing"],
                "summary": "List billing configs",
                "parameters": [
                    {"name": "school_id", "in": "query", "type": "string"},
                    {"name": "cycle_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "scope", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Billing"],
                "summary": "Create billing config",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBillingConfigRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/billing-configs/{id}": {
            "get": {
                "tags": ["Billing"],
                "summary": "Get billing config",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Billing"],
                "summary": "Update billing config",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBillingConfigRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Billing"],
                "summary": "Deactivate billing config",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/billing-configs/{id}/generate": {
            "post": {
                "tags": ["Billing"],
                "summary": "Generate obligations",
                "description": "Materialize billing records for every student the policy targets. Safe to repeat: existing records are skipped.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/billing-configs/{id}/sweep": {
            "post": {
                "tags": ["Billing"],
                "summary": "Sweep overdue records",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/billing-configs/{id}/stats": {
            "get": {
                "tags": ["Reports"],
                "summary": "Policy collection stats",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/settle": {
            "post": {
                "tags": ["Payments"],
                "summary": "Settle payment",
                "description": "Apply a confirmed payment event. Replays of the same payment_intent_ref return the recorded outcome.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SettleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Precondition Failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/{id}": {
            "get": {
                "tags": ["Payments"],
                "summary": "Get payment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/{id}/invoice": {
            "post": {
                "tags": ["Payments"],
                "summary": "Attach invoice",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AttachInvoiceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/statement": {
            "get": {
                "tags": ["Reports"],
                "summary": "Student statement",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/statement/export": {
            "get": {
                "tags": ["Reports"],
                "summary": "Export student statement",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "CreateBillingConfigRequest": {
            "type": "object",
            "properties": {
                "school_id": {"type": "string"},
                "cycle_id": {"type": "string"},
                "name": {"type": "string"},
                "amount": {"type": "string"},
                "scope": {"type": "string", "enum": ["all_students", "specific_groups", "specific_grades", "specific_students"]},
                "target_group_ids": {"type": "array", "items": {"type": "string"}},
                "target_grades": {"type": "array", "items": {"type": "string"}},
                "target_student_ids": {"type": "array", "items": {"type": "string"}},
                "status": {"type": "string", "enum": ["required", "optional", "inactive"]},
                "recurrence": {"type": "string", "enum": ["one_time", "monthly", "termly", "yearly"]},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"},
                "rule_description": {"type": "string"}
            },
            "required": ["school_id", "cycle_id", "name", "amount", "scope", "status", "recurrence"]
        },
        "SettleRequest": {
            "type": "object",
            "properties": {
                "payment_intent_ref": {"type": "string"},
                "billing_record_id": {"type": "string"},
                "student_id": {"type": "string"},
                "amount": {"type": "string"},
                "method": {"type": "string", "enum": ["card", "transfer", "cash"]},
                "charge_ref": {"type": "string"},
                "transfer_ref": {"type": "string"}
            },
            "required": ["payment_intent_ref", "billing_record_id", "student_id", "amount", "method"]
        },
        "AttachInvoiceRequest": {
            "type": "object",
            "properties": {
                "invoice_ref": {"type": "string"}
            },
            "required": ["invoice_ref"]
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
