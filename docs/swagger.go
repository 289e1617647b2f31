// Package docs Policy Hub API.
//
// Сервис жизненного цикла хабов мобильности: рабочие пространства дашборда,
// выбор и рисование зон, переходы фаз (commit, make concept, propose
// retirement) и импорт пакетов геометрий.
//
//	Schemes: http, https
//	BasePath: /
//	Version: 1.0.0
//
//	Consumes:
//	- application/json
//	- application/geo+json
//	- multipart/form-data
//
//	Produces:
//	- application/json
//
//	Security:
//	- edit_token:
//
//	SecurityDefinitions:
//	edit_token:
//	     type: apiKey
//	     name: Authorization
//	     in: header
//
// swagger:meta
package docs
