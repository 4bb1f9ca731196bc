package ledger

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql" // registers "mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

// Dialect 描述一种受支持的 SQL 后端。
type Dialect struct {
	// Name 是配置中使用的驱动名。
	Name string
	// DriverName 是 database/sql 注册的驱动名。
	DriverName string
	// numbered 为 true 时占位符写作 $1, $2 ...
	numbered bool
}

var (
	DialectMySQL    = Dialect{Name: "mysql", DriverName: "mysql"}
	DialectPostgres = Dialect{Name: "postgres", DriverName: "pgx", numbered: true}
	DialectSQLite   = Dialect{Name: "sqlite", DriverName: "sqlite"}
)

// LookupDialect 根据配置中的驱动名返回方言。
func LookupDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql":
		return DialectMySQL, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return Dialect{}, fmt.Errorf("不支持的流水存储驱动: %s", name)
	}
}

// Rebind 将 ? 占位符改写为方言对应的形式。
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
