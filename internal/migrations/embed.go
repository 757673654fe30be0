package migrations

import "embed"

// Files 保存按顺序执行的 goose SQL 迁移
//
//go:embed *.sql
var Files embed.FS
