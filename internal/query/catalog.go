package query

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/vvka-141/sfdash/pkg/sfdash"
)

var queryNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Catalog is an immutable set of named SQL statements.
type Catalog struct {
	queries map[string]string
}

// NewCatalog validates and copies queries. Names must be lower-case
// letters, digits, '-' or '_'; statements must not be empty.
func NewCatalog(queries map[string]string) (*Catalog, error) {
	c := &Catalog{queries: make(map[string]string, len(queries))}
	for name, sql := range queries {
		if !queryNamePattern.MatchString(name) {
			return nil, fmt.Errorf("query name %q must match %s: %w", name, queryNamePattern, sfdash.ErrInvalidConfig)
		}
		sql = strings.TrimSpace(sql)
		if sql == "" {
			return nil, fmt.Errorf("query %q has no SQL: %w", name, sfdash.ErrInvalidConfig)
		}
		c.queries[name] = sql
	}
	return c, nil
}

// Lookup returns the statement registered under name.
func (c *Catalog) Lookup(name string) (string, error) {
	if c != nil {
		if sql, ok := c.queries[name]; ok {
			return sql, nil
		}
	}
	return "", fmt.Errorf("%q: %w", name, sfdash.ErrQueryNotFound)
}

// Names returns the registered names in sorted order.
func (c *Catalog) Names() []string {
	if c == nil {
		return []string{}
	}
	names := make([]string, 0, len(c.queries))
	for name := range c.queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered statements.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.queries)
}
