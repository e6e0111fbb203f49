// Package migrations embebe el esquema de Postgres en formato goose.
package migrations

import "embed"

// FS contiene las migraciones SQL.
//
//go:embed *.sql
var FS embed.FS

// Dir es el directorio dentro de FS donde viven las migraciones.
const Dir = "."
