// Package docs registers the OpenAPI description of the catalog API.
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
        "/catalogs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["catalogs"],
                "summary": "List catalog jobs",
                "responses": {"200": {"description": "Jobs"}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["catalogs"],
                "summary": "Create a catalog job",
                "parameters": [
                    {"in": "body", "name": "job", "required": true, "schema": {"$ref": "#/definitions/model.CatalogJobSpec"}}
                ],
                "responses": {
                    "202": {"description": "Job accepted"},
                    "400": {"description": "Invalid job"}
                }
            }
        },
        "/catalogs/{id}": {
            "get": {
                "tags": ["catalogs"],
                "summary": "Get a catalog job",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Job"}, "404": {"description": "Job not found"}}
            },
            "delete": {
                "tags": ["catalogs"],
                "summary": "Delete a catalog job",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Deleted"}, "404": {"description": "Job not found"}, "409": {"description": "Job is running"}}
            }
        },
        "/catalogs/{id}/errors": {
            "get": {
                "tags": ["catalogs"],
                "summary": "Get catalog job errors",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Errors"}, "404": {"description": "Job not found"}}
            }
        },
        "/catalogs/{id}/summary": {
            "get": {
                "tags": ["catalogs"],
                "summary": "Get catalog summary",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Summary", "schema": {"$ref": "#/definitions/model.CatalogSummary"}}, "404": {"description": "No summary"}}
            }
        },
        "/catalogs/{id}/download": {
            "get": {
                "produces": ["application/octet-stream"],
                "tags": ["catalogs"],
                "summary": "Download catalog",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Catalog", "schema": {"type": "file"}}, "404": {"description": "Not found"}}
            }
        },
        "/catalogs/{id}/retry": {
            "post": {
                "tags": ["catalogs"],
                "summary": "Retry a catalog job",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"202": {"description": "Retry started"}, "404": {"description": "Job not found"}, "409": {"description": "Job is running"}}
            }
        },
        "/catalogs/{id}/cancel": {
            "post": {
                "tags": ["catalogs"],
                "summary": "Cancel a catalog job",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Cancelled"}, "409": {"description": "Job is not running"}}
            }
        },
        "/capabilities": {
            "get": {
                "tags": ["meta"],
                "summary": "List catalog capabilities",
                "responses": {"200": {"description": "Capabilities"}}
            }
        }
    },
    "definitions": {
        "model.CatalogJobSpec": {
            "type": "object",
            "properties": {
                "catalog": {"type": "string", "example": "stars"},
                "source": {"$ref": "#/definitions/model.Source"},
                "observation": {"$ref": "#/definitions/model.ObservationContext"},
                "columns": {"type": "array", "items": {"type": "string"}},
                "transformations": {"type": "object", "additionalProperties": {"type": "string"}},
                "lightCurves": {
                    "type": "object",
                    "properties": {"dir": {"type": "string"}, "db": {"type": "string"}}
                },
                "onError": {"type": "string", "enum": ["skip", "abort"]},
                "export": {
                    "type": "object",
                    "properties": {
                        "file": {"type": "string"},
                        "db": {"type": "string"},
                        "table": {"type": "string"},
                        "delimiter": {"type": "string"},
                        "batchSize": {"type": "integer"}
                    }
                },
                "concurrency": {
                    "type": "object",
                    "properties": {
                        "workers": {
                            "type": "object",
                            "properties": {"validation": {"type": "integer"}, "resolve": {"type": "integer"}}
                        },
                        "batchSize": {"type": "integer"},
                        "channelBufferSize": {"type": "integer"},
                        "jobTimeout": {"type": "string", "example": "5m"},
                        "sourceRetry": {"type": "integer"}
                    }
                },
                "logging": {"type": "boolean"}
            }
        },
        "model.Source": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["csv", "json", "sqlite", "postgres"]},
                "url": {"type": "string"},
                "table": {"type": "string"},
                "idColumn": {"type": "string"},
                "raColumn": {"type": "string"},
                "decColumn": {"type": "string"}
            }
        },
        "model.ObservationContext": {
            "type": "object",
            "properties": {
                "pointingRA": {"type": "number"},
                "pointingDec": {"type": "number"},
                "boundType": {"type": "string", "enum": ["circle", "box"]},
                "boundLength": {"type": "number"},
                "mjd": {"type": "number"}
            }
        },
        "model.CatalogSummary": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "rows_emitted": {"type": "integer"},
                "rows_skipped": {"type": "integer"},
                "columns": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "column": {"type": "string"},
                            "count": {"type": "integer"},
                            "min": {"type": "number"},
                            "max": {"type": "number"},
                            "mean": {"type": "number"}
                        }
                    }
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
	Title:            "Instance Catalog API",
	Description:      "Generates instance catalogs with resolved columns and light curve variability.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
