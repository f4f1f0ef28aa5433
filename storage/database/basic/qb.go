package basic

import (
	"strconv"
	"strings"
)

// SelectBuilder 最小 SELECT 构建器，参数使用 ? 占位
type SelectBuilder struct {
	cols  []string
	table string
	where []string
	args  []any
	order []string
	limit int
}

func NewSelect(columns ...string) *SelectBuilder {
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	return &SelectBuilder{cols: columns}
}

func (b *SelectBuilder) From(table string) *SelectBuilder { b.table = table; return b }

// Where 多个条件以 AND 连接，空条件被忽略
func (b *SelectBuilder) Where(cond string, args ...any) *SelectBuilder {
	if cond != "" {
		b.where = append(b.where, cond)
		b.args = append(b.args, args...)
	}
	return b
}

func (b *SelectBuilder) OrderBy(col string, desc bool) *SelectBuilder {
	if col != "" {
		if desc {
			col += " DESC"
		}
		b.order = append(b.order, col)
	}
	return b
}

func (b *SelectBuilder) Limit(n int) *SelectBuilder { b.limit = n; return b }

func (b *SelectBuilder) Build() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(b.cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)
	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	if len(b.order) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.order, ", "))
	}
	if b.limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(b.limit))
	}
	return sb.String(), b.args
}
