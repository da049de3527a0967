package persistence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/containerlib/pkg/backend"
)

func TestValidateType(t *testing.T) {
	t.Parallel()

	for _, typ := range Types {
		assert.NoError(t, ValidateType(typ), typ)
	}

	err := ValidateType("redis")
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrValidation)
	assert.Equal(t, "Unsupported persistence type redis; please choose one of ldap, couchbase, hybrid, spanner, sql", err.Error())
}

func TestValidateLDAPMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		typ     string
		mapping string
		wantErr bool
	}{
		{"hybrid default", TypeHybrid, "default", false},
		{"hybrid session", TypeHybrid, "session", false},
		{"hybrid unknown", TypeHybrid, "statistic", true},
		{"ldap ignores mapping", TypeLDAP, "statistic", false},
		{"couchbase ignores mapping", TypeCouchbase, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateLDAPMapping(tt.typ, tt.mapping)
			if tt.wantErr {
				assert.ErrorIs(t, err, backend.ErrValidation)
				assert.Contains(t, err.Error(), "Unsupported persistence ldap mapping "+tt.mapping)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateSQLDialect(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateSQLDialect("mysql"))
	assert.NoError(t, ValidateSQLDialect("pgsql"))

	err := ValidateSQLDialect("sqlite")
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "sqlite", vErr.Value)
	assert.Equal(t, []string{"mysql", "pgsql"}, vErr.Allowed)
}

func TestCouchbaseMappings(t *testing.T) {
	t.Parallel()

	names := func(ms []CouchbaseMapping) []string {
		out := make([]string, 0, len(ms))
		for _, m := range ms {
			out = append(out, m.Name)
		}
		return out
	}

	assert.Equal(t, []string{"default", "user", "cache", "site", "token", "session"}, names(CouchbaseMappings(TypeCouchbase, "user", "gluu")))
	assert.Equal(t, []string{"default", "cache", "site", "token", "session"}, names(CouchbaseMappings(TypeHybrid, "user", "gluu")))
	assert.Equal(t, []string{"user", "cache", "site", "token", "session"}, names(CouchbaseMappings(TypeHybrid, "default", "gluu")))
}

func TestCouchbaseMappingsFollowBucketPrefix(t *testing.T) {
	t.Parallel()

	buckets := func(ms []CouchbaseMapping) []string {
		out := make([]string, 0, len(ms))
		for _, m := range ms {
			out = append(out, m.Bucket)
		}
		return out
	}

	assert.Equal(t, []string{"gluu", "gluu_user", "gluu_cache", "gluu_site", "gluu_token", "gluu_session"},
		buckets(CouchbaseMappings(TypeCouchbase, "default", "gluu")))
	assert.Equal(t, []string{"acme_user", "acme_cache", "acme_site", "acme_token", "acme_session"},
		buckets(CouchbaseMappings(TypeHybrid, "default", "acme")))

	for _, typ := range []string{TypeCouchbase, TypeHybrid} {
		for _, mapping := range []string{"default", "user"} {
			target := CouchbaseTargetFor(typ, mapping, "acme")
			assert.Contains(t, buckets(CouchbaseMappings(typ, mapping, "acme")), target.Bucket, "%s/%s", typ, mapping)
		}
	}
}

func TestLDAPTargetFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, LDAPTarget{BaseDN: "o=gluu", Filter: "(objectClass=gluuConfiguration)"}, LDAPTargetFor("default"))
	assert.Equal(t, LDAPTarget{BaseDN: "ou=cache-refresh,o=site", Filter: "(ou=people)"}, LDAPTargetFor("site"))
	assert.Equal(t, LDAPTargetFor("default"), LDAPTargetFor("unknown"))
}

func TestCouchbaseTargetFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CouchbaseTarget{Bucket: "gluu_user", Key: "groups_60B7"}, CouchbaseTargetFor(TypeHybrid, "default", "gluu"))
	assert.Equal(t, CouchbaseTarget{Bucket: "gluu", Key: "configuration_oxtrust"}, CouchbaseTargetFor(TypeHybrid, "user", "gluu"))
	assert.Equal(t, CouchbaseTarget{Bucket: "acme", Key: "configuration_oxtrust"}, CouchbaseTargetFor(TypeCouchbase, "default", "acme"))
}
