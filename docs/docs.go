// Package docs 由 swag 生成的 OpenAPI 描述（swag init -g cmd/server/main.go）
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
        "/api/locker/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["锁柜"],
                "summary": "锁柜状态",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/locker.Status"}}}
            }
        },
        "/api/locker/cells": {
            "get": {
                "produces": ["application/json"],
                "tags": ["锁柜"],
                "summary": "全部格口",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/cell.Cell"}}}}
            }
        },
        "/api/locker/cells/available": {
            "get": {
                "produces": ["application/json"],
                "tags": ["锁柜"],
                "summary": "可用格口",
                "parameters": [{"type": "string", "description": "S|M|L|XL", "name": "size", "in": "query"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/cell.Cell"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/api/locker/cells/open-available": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["锁柜"],
                "summary": "按尺寸开门",
                "parameters": [{"description": "尺寸与原因", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/api.OpenAvailableRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/locker.OpenResult"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/api/locker/cells/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["锁柜"],
                "summary": "单个格口",
                "parameters": [{"type": "string", "description": "格口ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/cell.Cell"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/api/locker/cells/{id}/open": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["锁柜"],
                "summary": "打开指定格口",
                "parameters": [
                    {"type": "string", "description": "格口ID", "name": "id", "in": "path", "required": true},
                    {"description": "开门原因", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/api.OpenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/locker.OpenResult"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/api/locker/cells/{id}/reserve": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["锁柜"],
                "summary": "预约格口",
                "parameters": [
                    {"type": "string", "description": "格口ID", "name": "id", "in": "path", "required": true},
                    {"description": "订单号", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.ReserveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.SuccessResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/api/locker/cells/{id}/release": {
            "post": {
                "produces": ["application/json"],
                "tags": ["锁柜"],
                "summary": "释放格口",
                "parameters": [{"type": "string", "description": "格口ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/api.SuccessResponse"}}}
            }
        },
        "/api/locker/cells/{id}/led": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["锁柜"],
                "summary": "设置格口指示灯",
                "parameters": [
                    {"type": "string", "description": "格口ID", "name": "id", "in": "path", "required": true},
                    {"description": "off|green|red|blue|blink", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.LEDRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.SuccessResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/api/locker/cells/{id}/weight": {
            "get": {
                "produces": ["application/json"],
                "tags": ["锁柜"],
                "summary": "读取格口重量",
                "parameters": [{"type": "string", "description": "格口ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/api.WeightResponse"}}}
            }
        },
        "/api/locker/events": {
            "get": {
                "produces": ["text/event-stream"],
                "tags": ["锁柜"],
                "summary": "门事件流",
                "responses": {"200": {"description": "event stream", "schema": {"type": "string"}}}
            }
        }
    },
    "definitions": {
        "api.ErrorResponse": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "error": {"type": "boolean"}, "message": {"type": "string"}}
        },
        "api.LEDRequest": {"type": "object", "required": ["color"], "properties": {"color": {"type": "string"}}},
        "api.OpenAvailableRequest": {"type": "object", "properties": {"reason": {"type": "string"}, "size": {"type": "string"}}},
        "api.OpenRequest": {"type": "object", "properties": {"reason": {"type": "string"}}},
        "api.ReserveRequest": {"type": "object", "required": ["orderId"], "properties": {"orderId": {"type": "string"}}},
        "api.SuccessResponse": {"type": "object", "properties": {"success": {"type": "boolean"}}},
        "api.WeightResponse": {"type": "object", "properties": {"weight": {"type": "integer"}}},
        "cell.Cell": {
            "type": "object",
            "properties": {
                "doorOpen": {"type": "boolean"},
                "hasItems": {"type": "boolean"},
                "id": {"type": "string"},
                "number": {"type": "integer"},
                "orderId": {"type": "string"},
                "size": {"type": "string", "enum": ["S", "M", "L", "XL"]},
                "status": {"type": "string", "enum": ["available", "occupied", "reserved", "open", "error"]},
                "weight": {"type": "integer"}
            }
        },
        "locker.OpenResult": {
            "type": "object",
            "properties": {
                "cellId": {"type": "string"},
                "cellNumber": {"type": "integer"},
                "success": {"type": "boolean"},
                "timeout": {"type": "integer"}
            }
        },
        "locker.Status": {
            "type": "object",
            "properties": {
                "address": {"type": "integer"},
                "cells": {"type": "array", "items": {"$ref": "#/definitions/cell.Cell"}},
                "connected": {"type": "boolean"},
                "degraded": {"type": "boolean"},
                "firmwareVersion": {"type": "string"},
                "mode": {"type": "string"},
                "totalCells": {"type": "integer"}
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
	Title:            "KZ004 Locker Gateway API",
	Description:      "智能锁柜串口网关：格口查询、开门、预约与门事件流",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
