// Package docs holds the OpenAPI document served at /swagger/ and
// /api/openapi.json. Regenerate with `swag init -g internal/http/doc.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "keygate"
        },
        "license": {
            "name": "MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/keys/reissue": {
            "post": {
                "description": "Generate a fresh API key for the account with the given email. Any previous key stops working immediately. The key is returned once and never stored in plaintext.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Keys"],
                "summary": "Reissue an API key",
                "parameters": [
                    {
                        "description": "Account email",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/emailRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "New API key", "schema": {"$ref": "#/definitions/issuedKey"}},
                    "400": {"description": "Missing or invalid email", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "404": {"description": "Unknown account", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/rateLimited"}},
                    "503": {"description": "Rate limiter unavailable", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/api/verify/nonce": {
            "post": {
                "description": "Issue a nonce to include in a public tweet. Replaces any outstanding nonce for the account.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Verification"],
                "summary": "Request a verification nonce",
                "parameters": [
                    {
                        "description": "Account email",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/emailRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Nonce and expiry", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Unknown account", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/rateLimited"}}
                }
            }
        },
        "/api/verify/promo": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Verification"],
                "summary": "Verify with a promo code",
                "parameters": [
                    {
                        "description": "Email and promo code",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "properties": {
                                "email": {"type": "string"},
                                "code": {"type": "string"}
                            }
                        }
                    }
                ],
                "responses": {
                    "200": {"description": "Verified", "schema": {"$ref": "#/definitions/verification"}},
                    "403": {"description": "Code not accepted", "schema": {"$ref": "#/definitions/verification"}}
                }
            }
        },
        "/api/verify/tweet": {
            "post": {
                "description": "Check that the public tweet at tweet_url contains the account's outstanding nonce. On success the nonce is consumed and the author handle recorded.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Verification"],
                "summary": "Verify with a tweet",
                "parameters": [
                    {
                        "description": "Email and tweet URL",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "properties": {
                                "email": {"type": "string"},
                                "tweet_url": {"type": "string"}
                            }
                        }
                    }
                ],
                "responses": {
                    "200": {"description": "Verified", "schema": {"$ref": "#/definitions/verification"}},
                    "403": {"description": "Nonce missing, expired or not found in tweet", "schema": {"$ref": "#/definitions/verification"}}
                }
            }
        },
        "/api/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Keys"],
                "summary": "Describe the calling key",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Bearer API key",
                        "name": "Authorization",
                        "in": "header",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "Account bound to the key", "schema": {"type": "object", "additionalProperties": true}},
                    "401": {"description": "Missing or invalid key", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/api/admin/accounts": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "List accounts",
                "description": "List accounts newest first. Keys are shown by prefix only.",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Admin secret",
                        "name": "X-Admin-Secret",
                        "in": "header",
                        "required": true
                    },
                    {
                        "type": "integer",
                        "default": 50,
                        "description": "Page size (1-200)",
                        "name": "limit",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "default": 0,
                        "description": "Offset",
                        "name": "offset",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {"description": "Accounts and total count", "schema": {"type": "object", "additionalProperties": true}},
                    "401": {"description": "Invalid admin secret", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Provision an account",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Admin secret",
                        "name": "X-Admin-Secret",
                        "in": "header",
                        "required": true
                    },
                    {
                        "description": "Account email",
                        "name": "account",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/emailRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Account created", "schema": {"type": "object", "additionalProperties": true}},
                    "401": {"description": "Invalid admin secret", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "409": {"description": "Email already registered", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/api/admin/delete-account": {
            "post": {
                "description": "Delete an account together with its key and any outstanding nonce.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Delete an account",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Admin secret",
                        "name": "X-Admin-Secret",
                        "in": "header",
                        "required": true
                    },
                    {
                        "description": "Account to delete",
                        "name": "account",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/emailRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Account deleted", "schema": {"type": "object", "additionalProperties": {"type": "boolean"}}},
                    "401": {"description": "Invalid admin secret", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "404": {"description": "Account not found", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/api/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Stats"],
                "summary": "Get service statistics",
                "responses": {
                    "200": {"description": "Account, verification and key counts", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "emailRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"}
            }
        },
        "issuedKey": {
            "type": "object",
            "properties": {
                "api_key": {"type": "string"},
                "key_prefix": {"type": "string"},
                "issued_at": {"type": "string"}
            }
        },
        "verification": {
            "type": "object",
            "properties": {
                "verified": {"type": "boolean"},
                "via": {"type": "string"},
                "handle": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"}
            }
        },
        "rateLimited": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"},
                "retry_after": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "API key from /api/keys/reissue, sent as \"Bearer kg_...\"",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "keygate API",
	Description:      "Bearer API key issuance gated by possession proofs and rate limits.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
