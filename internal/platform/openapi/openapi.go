// Package openapi describes the portal API as an OpenAPI 3.0 document built
// from the routes registered on the echo instance.
package openapi

import (
	"net/http"
	"sort"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"
)

// RouteLister is satisfied by *echo.Echo.
type RouteLister interface {
	Routes() []*echo.Route
}

// Generator builds the document on demand, so routes registered after
// the generator was created are still listed.
type Generator struct {
	routes  RouteLister
	prefix  string
	version string
	public  func(path string) bool
}

// NewGenerator documents every route under prefix. public reports which
// paths are served without a bearer token; it may be nil.
func NewGenerator(routes RouteLister, prefix, version string, public func(string) bool) *Generator {
	if public == nil {
		public = func(string) bool { return false }
	}
	return &Generator{routes: routes, prefix: prefix, version: version, public: public}
}

// GenerateSpec produces the OpenAPI 3.0 spec as a map.
func (g *Generator) GenerateSpec() map[string]interface{} {
	paths := make(map[string]map[string]interface{})
	tagSet := make(map[string]bool)

	for _, r := range g.routes.Routes() {
		if !strings.HasPrefix(r.Path, g.prefix+"/") || strings.HasSuffix(r.Path, "/*") {
			continue
		}
		method := strings.ToLower(r.Method)
		if method != "get" && method != "post" && method != "put" && method != "patch" && method != "delete" {
			continue
		}

		tag := resourceTag(strings.TrimPrefix(r.Path, g.prefix))
		tagSet[tag] = true

		op := map[string]interface{}{
			"operationId": operationID(r.Name),
			"summary":     summary(operationID(r.Name)),
			"tags":        []string{tag},
			"responses":   responsesFor(method),
		}
		if params := pathParams(r.Path); len(params) > 0 {
			op["parameters"] = params
		}
		if method == "post" || method == "put" || method == "patch" {
			op["requestBody"] = map[string]interface{}{
				"required": true,
				"content": map[string]interface{}{
					"application/json": map[string]interface{}{
						"schema": map[string]string{"type": "object"},
					},
				},
			}
		}
		if g.public(r.Path) {
			op["security"] = []map[string][]string{}
		}

		p := toOpenAPIPath(r.Path)
		if paths[p] == nil {
			paths[p] = make(map[string]interface{})
		}
		paths[p][method] = op
	}

	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	tagDefs := make([]map[string]string, len(tags))
	for i, t := range tags {
		tagDefs[i] = map[string]string{"name": t}
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "Hospital Portal API",
			"version":     g.version,
			"description": "Scheduling, medical records, prescriptions and patient history",
		},
		"servers": []map[string]string{
			{"url": g.prefix},
		},
		"tags":  tagDefs,
		"paths": paths,
		"security": []map[string][]string{
			{"bearerAuth": {}},
		},
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]string{
					"type":         "http",
					"scheme":       "bearer",
					"bearerFormat": "JWT",
				},
			},
			"schemas": map[string]interface{}{
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"message": map[string]string{"type": "string"},
					},
				},
			},
		},
	}
}

// resourceTag is the first path segment, e.g. "appointments".
func resourceTag(path string) string {
	seg := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)[0]
	if seg == "" {
		return "default"
	}
	return seg
}

// toOpenAPIPath rewrites echo's ":id" parameters as "{id}".
func toOpenAPIPath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, ":") {
			parts[i] = "{" + p[1:] + "}"
		}
	}
	return strings.Join(parts, "/")
}

func pathParams(path string) []map[string]interface{} {
	var params []map[string]interface{}
	for _, p := range strings.Split(path, "/") {
		if !strings.HasPrefix(p, ":") {
			continue
		}
		params = append(params, map[string]interface{}{
			"name":     p[1:],
			"in":       "path",
			"required": true,
			"schema":   map[string]string{"type": "string"},
		})
	}
	return params
}

// operationID turns a handler name such as
// "example.com/x/scheduling.(*Handler).GetAvailability-fm" into
// "GetAvailability".
func operationID(handlerName string) string {
	name := strings.TrimSuffix(handlerName, "-fm")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// summary splits a CamelCase identifier into words.
func summary(id string) string {
	var b strings.Builder
	for i, r := range id {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func responsesFor(method string) map[string]interface{} {
	errResp := map[string]interface{}{
		"description": "Error",
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]string{"$ref": "#/components/schemas/Error"},
			},
		},
	}
	ok := "200"
	if method == "post" {
		ok = "201"
	}
	if method == "delete" {
		ok = "204"
	}
	return map[string]interface{}{
		ok:        map[string]string{"description": "Success"},
		"default": errResp,
	}
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Hospital Portal API - Swagger UI</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" >
  <style>
    html { box-sizing: border-box; overflow-y: scroll; }
    *, *:before, *:after { box-sizing: inherit; }
    body { margin: 0; background: #fafafa; }
  </style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/api/v1/openapi.json",
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [
        SwaggerUIBundle.presets.apis,
        SwaggerUIBundle.SwaggerUIStandalonePreset
      ],
      layout: "BaseLayout"
    })
  </script>
</body>
</html>`

// RegisterRoutes registers the OpenAPI endpoints.
func (g *Generator) RegisterRoutes(apiGroup *echo.Group) {
	apiGroup.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec())
	})
	apiGroup.GET("/docs", func(c echo.Context) error {
		return c.HTML(http.StatusOK, swaggerUIHTML)
	})
}
