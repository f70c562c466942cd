package repository

import (
	"fmt"
	"strings"

	"github.com/noah-isme/edu-crm-api/internal/models"
)

const (
	defaultPageSize = 25
	maxPageSize     = 1000
)

// listColumns maps the shared ListFilter onto one entity table.
type listColumns struct {
	search  []string
	status  string
	country string
	agency  string
	user    string
	date    string
	sorts   map[string]string
	sortBy  string
}

// where builds the WHERE body and its positional args. Enum columns compare trimmed.
func (c listColumns) where(filter models.ListFilter) (string, []interface{}) {
	conditions := []string{"1=1"}
	var args []interface{}

	if term := strings.TrimSpace(filter.Search); term != "" && len(c.search) > 0 {
		placeholder := len(args) + 1
		parts := make([]string, 0, len(c.search))
		for _, col := range c.search {
			parts = append(parts, fmt.Sprintf("LOWER(%s) LIKE $%d", col, placeholder))
		}
		conditions = append(conditions, "("+strings.Join(parts, " OR ")+")")
		args = append(args, "%"+strings.ToLower(term)+"%")
	}
	if v := filterValue(filter.Status); v != "" && c.status != "" {
		conditions = append(conditions, fmt.Sprintf("TRIM(%s) = $%d", c.status, len(args)+1))
		args = append(args, v)
	}
	if v := filterValue(filter.Country); v != "" && c.country != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(TRIM(%s)) = $%d", c.country, len(args)+1))
		args = append(args, strings.ToLower(v))
	}
	if v := strings.TrimSpace(filter.AgencyID); v != "" && c.agency != "" {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", c.agency, len(args)+1))
		args = append(args, v)
	}
	if v := strings.TrimSpace(filter.UserID); v != "" && c.user != "" {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", c.user, len(args)+1))
		args = append(args, v)
	}
	if c.date != "" {
		if filter.From != nil {
			conditions = append(conditions, fmt.Sprintf("%s >= $%d", c.date, len(args)+1))
			args = append(args, *filter.From)
		}
		if filter.To != nil {
			conditions = append(conditions, fmt.Sprintf("%s <= $%d", c.date, len(args)+1))
			args = append(args, *filter.To)
		}
	}

	return strings.Join(conditions, " AND "), args
}

// order resolves the sort column from the allow-list. Keys match case-insensitively
// with or without underscores, so "createdAt" and "created_at" are the same key.
func (c listColumns) order(filter models.ListFilter) string {
	column, ok := c.sorts[sortKey(filter.SortBy)]
	if !ok {
		column = c.sortBy
	}
	order := strings.ToUpper(strings.TrimSpace(filter.SortOrder))
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return column + " " + order
}

// window clamps page and size and returns the offset.
func window(page, size int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size, (page - 1) * size
}

func sortKey(raw string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "")
}

// filterValue treats "all" as no filter.
func filterValue(raw string) string {
	v := strings.TrimSpace(raw)
	if strings.EqualFold(v, "all") {
		return ""
	}
	return v
}
