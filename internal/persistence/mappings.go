package persistence

// CouchbaseMapping names the bucket holding a data group and the LDAP
// subtrees stored in it.
type CouchbaseMapping struct {
	Name    string
	Bucket  string
	Mapping string
}

var couchbaseMappings = []CouchbaseMapping{
	{Name: "default", Mapping: ""},
	{Name: "user", Mapping: "people, groups, authorizations"},
	{Name: "cache", Mapping: "cache"},
	{Name: "site", Mapping: "cache-refresh"},
	{Name: "token", Mapping: "tokens"},
	{Name: "session", Mapping: "sessions"},
}

// CouchbaseBucket names the bucket of a data group: the prefix itself for
// the default group, <prefix>_<group> for the others.
func CouchbaseBucket(bucketPrefix, name string) string {
	if name == "default" {
		return bucketPrefix
	}
	return bucketPrefix + "_" + name
}

// CouchbaseMappings returns the data groups kept in Couchbase. For hybrid
// persistence the group assigned to LDAP is left out.
func CouchbaseMappings(typ, ldapMapping, bucketPrefix string) []CouchbaseMapping {
	out := make([]CouchbaseMapping, 0, len(couchbaseMappings))
	for _, m := range couchbaseMappings {
		if typ == TypeHybrid && m.Name == ldapMapping {
			continue
		}
		m.Bucket = CouchbaseBucket(bucketPrefix, m.Name)
		out = append(out, m)
	}
	return out
}

// LDAPTarget is the search the full LDAP readiness check runs for a mapping
type LDAPTarget struct {
	BaseDN string
	Filter string
}

var ldapTargets = map[string]LDAPTarget{
	"default": {BaseDN: "o=gluu", Filter: "(objectClass=gluuConfiguration)"},
	"user":    {BaseDN: "o=gluu", Filter: "(objectClass=gluuGroup)"},
	"site":    {BaseDN: "ou=cache-refresh,o=site", Filter: "(ou=people)"},
	"cache":   {BaseDN: "o=gluu", Filter: "(ou=cache)"},
	"token":   {BaseDN: "ou=tokens,o=gluu", Filter: "(ou=tokens)"},
	"session": {BaseDN: "ou=sessions,o=gluu", Filter: "(ou=sessions)"},
}

// LDAPTargetFor returns the search for mapping, falling back to default
func LDAPTargetFor(mapping string) LDAPTarget {
	if t, ok := ldapTargets[mapping]; ok {
		return t
	}
	return ldapTargets["default"]
}

// CouchbaseTarget is the document the full Couchbase readiness check reads
type CouchbaseTarget struct {
	Bucket string
	Key    string
}

// CouchbaseTargetFor picks the bucket and document that exist once the
// initial data import has finished. With hybrid persistence and the default
// group in LDAP, the configuration document lives in LDAP, so a user group
// entry is checked instead.
func CouchbaseTargetFor(typ, ldapMapping, bucketPrefix string) CouchbaseTarget {
	if typ == TypeHybrid && ldapMapping == "default" {
		return CouchbaseTarget{Bucket: CouchbaseBucket(bucketPrefix, "user"), Key: "groups_60B7"}
	}
	return CouchbaseTarget{Bucket: CouchbaseBucket(bucketPrefix, "default"), Key: "configuration_oxtrust"}
}
