// Package migrations holds the SQL schema migrations, embedded so the
// server and the migrate CLI do not depend on the working directory.
package migrations

import "embed"

// FS contains every *.sql migration in this directory
//
//go:embed *.sql
var FS embed.FS
