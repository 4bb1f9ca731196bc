package ledger

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	xerrors "plugintree/internal/errors"
)

// SQLStore 使用关系型数据库记录加载流水。
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLStore 连接数据库并执行内嵌的迁移脚本。
func OpenSQLStore(ctx context.Context, driver, dsn string, pool PoolConfig) (*SQLStore, error) {
	dialect, err := LookupDialect(driver)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "流水存储配置错误")
	}
	db, err := openDatabase(ctx, dialect, dsn, pool)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "打开流水数据库失败")
	}
	store, err := NewSQLStore(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore 基于已有连接创建 SQLStore 并执行迁移。
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if db == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "数据库连接不能为空")
	}
	store := &SQLStore{db: db, dialect: dialect}
	if err := store.runMigrations(ctx); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "执行流水迁移失败")
	}
	return store, nil
}

const insertEntrySQL = `INSERT INTO plugin_ledger
    (id, action, plugin_id, name, module, manager, recorded_at)
    VALUES (?, ?, ?, ?, ?, ?, ?)`

// Append 实现 Store 接口。
func (s *SQLStore) Append(ctx context.Context, entry Entry) error {
	if err := entry.validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(insertEntrySQL),
		entry.ID, string(entry.Action), entry.PluginID, entry.Name, entry.Module, entry.Manager, entry.At.UnixNano())
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEntryConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入流水失败")
	}
	return nil
}

// List 实现 Store 接口。
func (s *SQLStore) List(ctx context.Context, opts ...ListOption) ([]Entry, error) {
	options := buildListOptions(opts)
	query, args := buildListQuery(options)

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询流水失败")
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var (
			e      Entry
			action string
			at     int64
		)
		if err := rows.Scan(&e.ID, &action, &e.PluginID, &e.Name, &e.Module, &e.Manager, &at); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析流水失败")
		}
		e.Action = Action(action)
		e.At = time.Unix(0, at).UTC()
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历流水失败")
	}
	return result, nil
}

func buildListQuery(options ListOptions) (string, []any) {
	var (
		b     strings.Builder
		conds []string
		args  []any
	)
	b.WriteString(`SELECT id, action, plugin_id, name, module, manager, recorded_at FROM plugin_ledger`)
	if options.PluginID != "" {
		conds = append(conds, "plugin_id = ?")
		args = append(args, options.PluginID)
	}
	if !options.Since.IsZero() {
		conds = append(conds, "recorded_at >= ?")
		args = append(args, options.Since.UnixNano())
	}
	if len(options.Actions) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(options.Actions)), ", ")
		conds = append(conds, "action IN ("+placeholders+")")
		for _, action := range options.Actions {
			args = append(args, string(action))
		}
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	if options.Order == SortOldestFirst {
		b.WriteString(" ORDER BY recorded_at ASC, id ASC")
	} else {
		b.WriteString(" ORDER BY recorded_at DESC, id DESC")
	}
	b.WriteString(" LIMIT ?")
	args = append(args, options.Limit)
	return b.String(), args
}

// Close 关闭数据库连接。
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if stdErrors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
