// Package migrations embeds the goose SQL migrations for the shared schema.
// Tenant partitions are created separately by repository.EnsurePartition.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
