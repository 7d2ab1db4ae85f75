package history

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"IntentChain/deploy/migrations"
)

// migration 是一份已解析的迁移脚本，version 取文件名中首个下划线之前的前缀。
type migration struct {
	version string
	name    string
	script  string
}

// runMigrations 依版本号顺序补齐尚未应用的迁移。已应用版本记录在
// schema_migrations 表中，重复执行是安全的。
func (s *SQLRepository) runMigrations(ctx context.Context) error {
	const versionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
        version VARCHAR(32) NOT NULL PRIMARY KEY,
        applied_at BIGINT NOT NULL
)`
	if _, err := s.db.ExecContext(ctx, versionTable); err != nil {
		return fmt.Errorf("创建 schema_migrations 表失败: %w", err)
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return err
	}
	pending, err := pendingMigrations(applied)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := s.apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLRepository) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("查询 schema_migrations 失败: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("解析 schema_migrations 失败: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历 schema_migrations 失败: %w", err)
	}
	return applied, nil
}

// apply 在单个事务中执行迁移脚本并登记版本号。
func (s *SQLRepository) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启迁移事务失败: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(m.script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("执行迁移 %s 失败: %w", m.name, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		m.version, time.Now().Unix()); err != nil {
		return fmt.Errorf("记录迁移版本失败: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交迁移事务失败: %w", err)
	}
	return nil
}

func pendingMigrations(applied map[string]bool) ([]migration, error) {
	names, err := fs.Glob(migrations.Files, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("枚举迁移脚本失败: %w", err)
	}
	sort.Strings(names)

	var pending []migration
	for _, name := range names {
		version, _, _ := strings.Cut(name, "_")
		if applied[version] {
			continue
		}
		content, err := migrations.Files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("读取迁移脚本 %s 失败: %w", name, err)
		}
		pending = append(pending, migration{version: version, name: name, script: string(content)})
	}
	return pending, nil
}
