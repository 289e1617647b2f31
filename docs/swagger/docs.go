// Package swagger регистрирует описание API для fiber-swagger
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Состояние сервиса",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/workspaces": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["workspaces"],
                "summary": "Открыть рабочее пространство муниципалитета",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.OpenWorkspaceRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/dto.WorkspaceResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/api/v1/workspaces/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["workspaces"],
                "summary": "Состояние рабочего пространства",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "active_phase", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.WorkspaceResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["workspaces"],
                "summary": "Закрыть рабочее пространство",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/api/v1/workspaces/{id}/hubs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["workspaces"],
                "summary": "Хабы муниципалитета",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/workspaces/{id}/selection": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["selection"],
                "summary": "Заменить выбор",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.SelectionRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.WorkspaceResponse"}}}
            }
        },
        "/api/v1/workspaces/{id}/selection/hubs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["selection"],
                "summary": "Выбранные хабы",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "active_phase", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/workspaces/{id}/drawing/mode": {
            "put": {
                "consumes": ["application/json"],
                "tags": ["drawing"],
                "summary": "Режим рисования",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.DrawingModeRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/workspaces/{id}/drawing/features": {
            "post": {
                "consumes": ["application/json"],
                "tags": ["drawing"],
                "summary": "Добавить нарисованный полигон",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.DrawnFeatureRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/workspaces/{id}/drawing/pieces": {
            "post": {
                "tags": ["drawing"],
                "summary": "Добавить свободный кусок границы муниципалитета",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/workspaces/{id}/drawing/save": {
            "post": {
                "security": [{"edit_token": []}],
                "consumes": ["application/json"],
                "tags": ["drawing"],
                "summary": "Сохранить рисунок как хаб",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "request", "schema": {"$ref": "#/definitions/dto.SaveDrawingRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/workspaces/{id}/actions": {
            "post": {
                "security": [{"edit_token": []}],
                "consumes": ["application/json"],
                "tags": ["lifecycle"],
                "summary": "Выполнить действие над выбором",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.ExecuteActionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.WorkspaceResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "428": {"description": "Confirmation required", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/api/v1/workspaces/{id}/import/preprocess": {
            "post": {
                "consumes": ["application/geo+json", "multipart/form-data"],
                "tags": ["import"],
                "summary": "Разобрать пакет геометрий",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "file", "name": "file", "in": "formData"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/workspaces/{id}/import/confirm": {
            "post": {
                "security": [{"edit_token": []}],
                "consumes": ["application/json"],
                "tags": ["import"],
                "summary": "Импортировать выбранные зоны",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.ConfirmImportRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/hubs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["hubs"],
                "summary": "Хабы муниципалитета",
                "parameters": [
                    {"type": "string", "name": "municipality", "in": "query", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "security": [{"edit_token": []}],
                "consumes": ["application/json"],
                "tags": ["hubs"],
                "summary": "Создать или обновить хаб",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/hubs/commit": {
            "post": {
                "security": [{"edit_token": []}],
                "consumes": ["application/json"],
                "tags": ["hubs"],
                "summary": "Зафиксировать концепты",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.GeographyIDsRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/hubs/make-concept": {
            "post": {
                "security": [{"edit_token": []}],
                "consumes": ["application/json"],
                "tags": ["hubs"],
                "summary": "Вернуть в концепт",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.GeographyIDsRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/hubs/derive-concept": {
            "post": {
                "security": [{"edit_token": []}],
                "consumes": ["application/json"],
                "tags": ["hubs"],
                "summary": "Создать новый концепт из live-хаба",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.GeographyIDsRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/hubs/propose-retirement": {
            "post": {
                "security": [{"edit_token": []}],
                "consumes": ["application/json"],
                "tags": ["hubs"],
                "summary": "Предложить вывод из эксплуатации",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.GeographyIDsRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/hubs/import/preprocess": {
            "post": {
                "consumes": ["application/geo+json"],
                "tags": ["hubs"],
                "summary": "Разобрать пакет геометрий",
                "parameters": [
                    {"type": "string", "name": "municipality", "in": "query", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/hubs/import": {
            "post": {
                "security": [{"edit_token": []}],
                "consumes": ["application/json"],
                "tags": ["hubs"],
                "summary": "Импортировать зоны",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.ImportRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/borders/{municipality}": {
            "put": {
                "security": [{"edit_token": []}],
                "consumes": ["application/json"],
                "tags": ["borders"],
                "summary": "Сохранить границу муниципалитета",
                "parameters": [
                    {"type": "string", "name": "municipality", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.SaveBorderRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "errors.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "message": {"type": "string"},
                        "details": {"type": "object"}
                    }
                }
            }
        },
        "dto.OpenWorkspaceRequest": {
            "type": "object",
            "required": ["municipality"],
            "properties": {"municipality": {"type": "string", "example": "GM0599"}}
        },
        "dto.SelectionRequest": {
            "type": "object",
            "properties": {
                "selection": {"type": "array", "items": {"type": "string"}}
            }
        },
        "dto.DrawingModeRequest": {
            "type": "object",
            "required": ["mode"],
            "properties": {"mode": {"type": "string", "enum": ["none", "polygon", "edit"]}}
        },
        "dto.DrawnFeatureRequest": {
            "type": "object",
            "required": ["geometry"],
            "properties": {"geometry": {"type": "object"}}
        },
        "dto.SaveDrawingRequest": {
            "type": "object",
            "properties": {
                "active_phase": {"type": "string"},
                "name": {"type": "string"},
                "geography_type": {"type": "string"}
            }
        },
        "dto.ExecuteActionRequest": {
            "type": "object",
            "required": ["action"],
            "properties": {
                "action": {"type": "string", "enum": ["commit", "revert", "derive_new_concept", "propose_retirement", "add_polygon_piece", "save_drawing"]},
                "active_phase": {"type": "string"},
                "confirmed": {"type": "boolean"}
            }
        },
        "dto.ConfirmImportRequest": {
            "type": "object",
            "required": ["geography_ids"],
            "properties": {"geography_ids": {"type": "array", "items": {"type": "string"}}}
        },
        "dto.GeographyIDsRequest": {
            "type": "object",
            "required": ["geography_ids"],
            "properties": {"geography_ids": {"type": "array", "items": {"type": "string"}}}
        },
        "dto.ImportRequest": {
            "type": "object",
            "required": ["municipality", "zones"],
            "properties": {
                "municipality": {"type": "string"},
                "zones": {"type": "array", "items": {"type": "object"}}
            }
        },
        "dto.SaveBorderRequest": {
            "type": "object",
            "required": ["area"],
            "properties": {
                "name": {"type": "string"},
                "area": {"type": "object"}
            }
        },
        "dto.WorkspaceResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "municipality": {"type": "string"},
                "selection": {"type": "array", "items": {"type": "string"}},
                "drawing_mode": {"type": "string"},
                "active_phase": {"type": "string"},
                "eligible_actions": {"type": "array", "items": {"type": "string"}},
                "refetch_count": {"type": "integer"},
                "stale": {"type": "boolean"}
            }
        }
    },
    "securityDefinitions": {
        "edit_token": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Policy Hub API",
	Description:      "Жизненный цикл хабов мобильности: рабочие пространства, переходы фаз и импорт геометрий.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
