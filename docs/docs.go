// Package docs registers the OpenAPI description of the HTTP API with swag,
// for the Swagger UI served at /swagger. Keep it in step with the handler
// annotations; `swag init -g cmd/server/main.go` regenerates it.
package docs

import "github.com/swaggo/swag/v2"

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
        "/export/warranty-cards": {
            "post": {
                "operationId": "createExportWarrantyCard",
                "summary": "Export a warranty card as PNG",
                "description": "Renders the card, trims the surrounding margin and stores the image",
                "tags": [
                    "export"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "description": "Tenant ID (configured default when absent)",
                        "name": "X-Tenant-ID",
                        "in": "header"
                    },
                    {
                        "description": "Warranty card",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/exportapp.ExportWarrantyCardRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/handler.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/exportapp.JobResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handler.ErrorResponse"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/handler.ErrorResponse"
                        }
                    },
                    "429": {
                        "description": "Too Many Requests",
                        "schema": {
                            "$ref": "#/definitions/handler.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/export/html": {
            "post": {
                "operationId": "createExportHTML",
                "summary": "Export an HTML fragment as PNG",
                "tags": [
                    "export"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "description": "Tenant ID (configured default when absent)",
                        "name": "X-Tenant-ID",
                        "in": "header"
                    },
                    {
                        "description": "Markup to export",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/exportapp.ExportHTMLRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/handler.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/exportapp.JobResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handler.ErrorResponse"
                        }
                    },
                    "413": {
                        "description": "Request Entity Too Large",
                        "schema": {
                            "$ref": "#/definitions/handler.ErrorResponse"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/handler.ErrorResponse"
                        }
                    },
                    "429": {
                        "description": "Too Many Requests",
                        "schema": {
                            "$ref": "#/definitions/handler.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/export/preview": {
            "post": {
                "operationId": "previewExport",
                "summary": "Render markup to PNG without storing it",
                "tags": [
                    "export"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "image/png"
                ],
                "parameters": [
                    {
                        "description": "Markup to render",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/exportapp.PreviewRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "file"
                        },
                        "headers": {
                            "X-Export-Width": {
                                "type": "integer"
                            },
                            "X-Export-Height": {
                                "type": "integer"
                            },
                            "X-Export-Source-Size": {
                                "type": "string"
                            },
                            "X-Export-Trimmed": {
                                "type": "boolean"
                            },
                            "X-Export-Cache": {
                                "type": "string"
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handler.ErrorResponse"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/handler.ErrorResponse"
                        }
                    },
                    "429": {
                        "description": "Too Many Requests",
                        "schema": {
                            "$ref": "#/definitions/handler.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/export/jobs": {
            "get": {
                "operationId": "listExportJobs",
                "summary": "List export jobs",
                "tags": [
                    "export"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "description": "Tenant ID (configured default when absent)",
                        "name": "X-Tenant-ID",
                        "in": "header"
                    },
                    {
                        "type": "integer",
                        "default": 1,
                        "description": "Page number",
                        "name": "page",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "default": 20,
                        "description": "Page size",
                        "name": "page_size",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "default": "created_at",
                        "description": "Order by field",
                        "name": "order_by",
                        "in": "query"
                    },
                    {
                        "enum": [
                            "asc",
                            "desc"
                        ],
                        "type": "string",
                        "default": "desc",
                        "description": "Order direction",
                        "name": "order_dir",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "Filter by status",
                        "name": "status",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "Filter by artifact type",
                        "name": "artifact_type",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "Filter by reference",
                        "name": "reference",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "Reference substring",
                        "name": "search",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/handler.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "type": "array",
                                            "items": {
                                                "$ref": "#/definitions/exportapp.JobResponse"
                                            }
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handler.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/export/jobs/{id}": {
            "get": {
                "operationId": "getExportJob",
                "summary": "Get an export job",
                "tags": [
                    "export"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "description": "Tenant ID (configured default when absent)",
                        "name": "X-Tenant-ID",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "format": "uuid",
                        "description": "Job ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/handler.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/exportapp.JobResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handler.ErrorResponse"
                        }
                    }
                }
            },
            "delete": {
                "operationId": "deleteExportJob",
                "summary": "Delete a finished export job and its image",
                "tags": [
                    "export"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "description": "Tenant ID (configured default when absent)",
                        "name": "X-Tenant-ID",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "format": "uuid",
                        "description": "Job ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handler.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/handler.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/export/jobs/{id}/download": {
            "get": {
                "operationId": "downloadExportJob",
                "summary": "Download the exported PNG",
                "tags": [
                    "export"
                ],
                "produces": [
                    "image/png"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "description": "Tenant ID (configured default when absent)",
                        "name": "X-Tenant-ID",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "format": "uuid",
                        "description": "Job ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "file"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handler.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/handler.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/export/jobs/{id}/thumbnail": {
            "get": {
                "operationId": "thumbnailExportJob",
                "summary": "Downsized copy of the exported PNG",
                "tags": [
                    "export"
                ],
                "produces": [
                    "image/png"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "description": "Tenant ID (configured default when absent)",
                        "name": "X-Tenant-ID",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "format": "uuid",
                        "description": "Job ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "integer",
                        "default": 240,
                        "description": "Maximum width",
                        "name": "width",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "file"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handler.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/handler.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/system/info": {
            "get": {
                "operationId": "getSystemSystemInfo",
                "summary": "Get system information",
                "description": "Returns basic system information including version and uptime",
                "tags": [
                    "system"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/handler.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/handler.SystemInfoResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    }
                }
            }
        },
        "/system/ping": {
            "get": {
                "operationId": "pingSystem",
                "summary": "Ping the API",
                "tags": [
                    "system"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/handler.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/handler.PingResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    }
                }
            }
        },
        "/health": {
            "get": {
                "operationId": "getSystemHealth",
                "summary": "Dependency health",
                "description": "Runs every registered check; 503 when any fails",
                "tags": [
                    "system"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/handler.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/handler.HealthResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/handler.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/handler.HealthResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "dto.ErrorInfo": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "request_id": {
                    "type": "string"
                },
                "details": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/dto.ValidationDetail"
                    }
                }
            }
        },
        "dto.ValidationDetail": {
            "type": "object",
            "properties": {
                "field": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                }
            }
        },
        "dto.Meta": {
            "type": "object",
            "properties": {
                "total": {
                    "type": "integer"
                },
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_pages": {
                    "type": "integer"
                }
            }
        },
        "handler.APIResponse": {
            "description": "Standard API response wrapper with typed data field",
            "type": "object",
            "properties": {
                "success": {
                    "type": "boolean"
                },
                "data": {},
                "error": {
                    "$ref": "#/definitions/dto.ErrorInfo"
                },
                "meta": {
                    "$ref": "#/definitions/dto.Meta"
                }
            }
        },
        "handler.ErrorResponse": {
            "description": "Standard error response",
            "type": "object",
            "properties": {
                "success": {
                    "type": "boolean",
                    "example": false
                },
                "error": {
                    "$ref": "#/definitions/dto.ErrorInfo"
                }
            }
        },
        "handler.SystemInfoResponse": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string",
                    "example": "Storefront Export API"
                },
                "version": {
                    "type": "string",
                    "example": "1.0.0"
                },
                "go_version": {
                    "type": "string",
                    "example": "go1.25.5"
                },
                "uptime": {
                    "type": "string",
                    "example": "1h30m45s"
                }
            }
        },
        "handler.PingResponse": {
            "type": "object",
            "properties": {
                "message": {
                    "type": "string",
                    "example": "pong"
                },
                "timestamp": {
                    "type": "string",
                    "example": "2026-01-23T12:00:00Z"
                }
            }
        },
        "handler.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string",
                    "example": "ok"
                },
                "checks": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "string"
                    }
                }
            }
        },
        "exportapp.RenderOptionsDTO": {
            "type": "object",
            "properties": {
                "scale": {
                    "type": "number"
                },
                "padding": {
                    "type": "integer"
                },
                "white_threshold": {
                    "type": "integer"
                },
                "sample_step": {
                    "type": "integer"
                },
                "background": {
                    "type": "string"
                }
            }
        },
        "exportapp.RenderOptionsResponse": {
            "type": "object",
            "properties": {
                "scale": {
                    "type": "number"
                },
                "padding": {
                    "type": "integer"
                },
                "white_threshold": {
                    "type": "integer"
                },
                "sample_step": {
                    "type": "integer"
                },
                "background": {
                    "type": "string"
                }
            }
        },
        "exportapp.ExportWarrantyCardRequest": {
            "type": "object",
            "required": [
                "store_name",
                "card_number",
                "customer_name",
                "product_name",
                "purchase_date",
                "warranty_months"
            ],
            "properties": {
                "store_name": {
                    "type": "string"
                },
                "card_number": {
                    "type": "string"
                },
                "customer_name": {
                    "type": "string"
                },
                "customer_phone": {
                    "type": "string"
                },
                "product_name": {
                    "type": "string"
                },
                "product_sku": {
                    "type": "string"
                },
                "serial_number": {
                    "type": "string"
                },
                "purchase_date": {
                    "type": "string",
                    "example": "2026-03-01"
                },
                "warranty_months": {
                    "type": "integer",
                    "minimum": 1,
                    "maximum": 120
                },
                "purchase_price": {
                    "type": "string",
                    "example": "1299.00"
                },
                "notes": {
                    "type": "string"
                },
                "options": {
                    "$ref": "#/definitions/exportapp.RenderOptionsDTO"
                }
            }
        },
        "exportapp.ExportHTMLRequest": {
            "type": "object",
            "required": [
                "reference",
                "html"
            ],
            "properties": {
                "reference": {
                    "type": "string"
                },
                "html": {
                    "type": "string"
                },
                "selector": {
                    "type": "string"
                },
                "title": {
                    "type": "string"
                },
                "options": {
                    "$ref": "#/definitions/exportapp.RenderOptionsDTO"
                }
            }
        },
        "exportapp.PreviewRequest": {
            "type": "object",
            "required": [
                "html"
            ],
            "properties": {
                "html": {
                    "type": "string"
                },
                "selector": {
                    "type": "string"
                },
                "title": {
                    "type": "string"
                },
                "options": {
                    "$ref": "#/definitions/exportapp.RenderOptionsDTO"
                }
            }
        },
        "exportapp.JobResponse": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "tenant_id": {
                    "type": "string"
                },
                "artifact_type": {
                    "type": "string"
                },
                "reference": {
                    "type": "string"
                },
                "selector": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                },
                "options": {
                    "$ref": "#/definitions/exportapp.RenderOptionsResponse"
                },
                "fingerprint": {
                    "type": "string"
                },
                "width": {
                    "type": "integer"
                },
                "height": {
                    "type": "integer"
                },
                "size_bytes": {
                    "type": "integer"
                },
                "artifact_url": {
                    "type": "string"
                },
                "from_cache": {
                    "type": "boolean"
                },
                "error_message": {
                    "type": "string"
                },
                "requested_by": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string"
                },
                "updated_at": {
                    "type": "string"
                },
                "completed_at": {
                    "type": "string"
                }
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
	Title:            "Storefront Export API",
	Description:      "Renders storefront documents to trimmed PNG images",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
