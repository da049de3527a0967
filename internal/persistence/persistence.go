// Package persistence describes the storage layouts an identity server can
// be deployed with, validates persistence settings, and provides the small
// clients the readiness probes need to inspect those stores.
package persistence

import (
	"fmt"
	"strings"

	"github.com/systmms/containerlib/pkg/backend"
)

// Persistence types
const (
	TypeLDAP      = "ldap"
	TypeCouchbase = "couchbase"
	TypeHybrid    = "hybrid"
	TypeSpanner   = "spanner"
	TypeSQL       = "sql"
)

// Types lists the supported persistence types in display order
var Types = []string{TypeLDAP, TypeCouchbase, TypeHybrid, TypeSpanner, TypeSQL}

// LDAPMappings lists the data groups that can be kept in LDAP when the
// persistence type is hybrid.
var LDAPMappings = []string{"default", "user", "site", "cache", "token", "session"}

// SQL dialects
const (
	DialectMySQL    = "mysql"
	DialectPostgres = "pgsql"
)

// SQLDialects lists the supported SQL dialects
var SQLDialects = []string{DialectMySQL, DialectPostgres}

// ValidationError reports an unsupported persistence setting
type ValidationError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *ValidationError) Error() string {
	allowed := strings.Join(e.Allowed, ", ")
	if e.Field == "sql dialect" {
		return fmt.Sprintf("Unsupported persistence sql dialect %s; please choose one of %s", e.Value, allowed)
	}
	return fmt.Sprintf("Unsupported persistence %s %s; please choose one of %s", e.Field, e.Value, allowed)
}

// Is matches backend.ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == backend.ErrValidation
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// ValidateType checks the persistence type
func ValidateType(typ string) error {
	if !contains(Types, typ) {
		return &ValidationError{Field: "type", Value: typ, Allowed: Types}
	}
	return nil
}

// ValidateLDAPMapping checks the LDAP mapping. Only the hybrid type splits
// data between stores, so other types accept any value.
func ValidateLDAPMapping(typ, mapping string) error {
	if typ == TypeHybrid && !contains(LDAPMappings, mapping) {
		return &ValidationError{Field: "ldap mapping", Value: mapping, Allowed: LDAPMappings}
	}
	return nil
}

// ValidateSQLDialect checks the SQL dialect
func ValidateSQLDialect(dialect string) error {
	if !contains(SQLDialects, dialect) {
		return &ValidationError{Field: "sql dialect", Value: dialect, Allowed: SQLDialects}
	}
	return nil
}
