// Package api carries the HTTP contract of the intake service. The handlers
// in internal/adapters/http are written against openapi.yaml, and a router
// test keeps both in step.
package api

import _ "embed"

//go:generate go run github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen@v2.5.0 -generate types -package api -o types.gen.go openapi.yaml

// Spec is the OpenAPI 3 document served at /openapi.yaml.
//
//go:embed openapi.yaml
var Spec []byte
