package repository

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// psql builds statements with PostgreSQL $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func normalisePage(page, size int) (int, int, uint64) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return page, size, uint64((page - 1) * size)
}

func sortOrder(raw, fallback string) string {
	order := strings.ToUpper(strings.TrimSpace(raw))
	if order != "ASC" && order != "DESC" {
		return fallback
	}
	return order
}

func likePattern(search string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.TrimSpace(search)) + "%"
}
