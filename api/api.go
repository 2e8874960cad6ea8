// Package api holds the published HTTP contract of the payment service.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
