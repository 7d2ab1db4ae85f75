// Package migrations 内嵌意图历史表的 SQL 迁移脚本。
package migrations

import "embed"

// Files 按版本号顺序承载全部迁移脚本。
//
//go:embed *.sql
var Files embed.FS
