// Package docs holds the OpenAPI description served under /swagger/.
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
        "/clear-votes": {
            "post": {
                "description": "Zeroes every counter, forgets every voter and broadcasts the empty tally.",
                "produces": ["application/json"],
                "tags": ["control"],
                "summary": "Clear all votes",
                "parameters": [
                    {"type": "string", "description": "Control plane token", "name": "X-Admin-Token", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.ClearVotesResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.HealthResponse"}}
                }
            }
        },
        "/start-voting": {
            "post": {
                "description": "Opens the activation gate so votes are accepted.",
                "produces": ["application/json"],
                "tags": ["control"],
                "summary": "Open the poll",
                "parameters": [
                    {"type": "string", "description": "Control plane token", "name": "X-Admin-Token", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.PollStateResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/stop-voting": {
            "post": {
                "description": "Closes the activation gate; votes are rejected until it is opened again.",
                "produces": ["application/json"],
                "tags": ["control"],
                "summary": "Close the poll",
                "parameters": [
                    {"type": "string", "description": "Control plane token", "name": "X-Admin-Token", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.PollStateResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/tally": {
            "get": {
                "description": "Returns the current per-option counts, the poll state and the number of live sessions.",
                "produces": ["application/json"],
                "tags": ["tally"],
                "summary": "Current tally",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.TallyResponse"}}
                }
            }
        }
    },
    "definitions": {
        "http.ClearVotesResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "totalVotes": {"type": "integer"},
                "votingPolls": {"type": "object", "additionalProperties": {"type": "integer"}}
            }
        },
        "http.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "http.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"}
            }
        },
        "http.PollStateResponse": {
            "type": "object",
            "properties": {
                "changed": {"type": "boolean"},
                "message": {"type": "string"},
                "pollActive": {"type": "boolean"}
            }
        },
        "http.TallyResponse": {
            "type": "object",
            "properties": {
                "connectedSessions": {"type": "integer"},
                "pollActive": {"type": "boolean"},
                "revision": {"type": "integer"},
                "totalVotes": {"type": "integer"},
                "votingPolls": {"type": "object", "additionalProperties": {"type": "integer"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "pollcast API",
	Description:      "Control plane and tally read model of the live polling service. Votes travel over the /ws websocket.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
