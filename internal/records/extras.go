package records

// ExtraNamespace declares one extras blob family: opaque key/value state not
// covered by typed collections (draft buffers, cached layouts, rate tables).
// Per-user namespaces store one blob per user under "<namespace>.<userId>";
// global namespaces store a single blob under the namespace itself.
//
// The registry is the complete classification rule. Backup and restore only
// ever touch keys derivable from it, never arbitrary store keys.
type ExtraNamespace struct {
	Namespace string
	PerUser   bool
}

// ExtrasRegistry lists every known extras namespace.
var ExtrasRegistry = []ExtraNamespace{
	{Namespace: "journalDrafts", PerUser: true},
	{Namespace: "dashboardLayout", PerUser: true},
	{Namespace: "habitStreaks", PerUser: true},
	{Namespace: "exchangeRates", PerUser: false},
	{Namespace: "appMeta", PerUser: false},
}

// ExtraKeyFor returns the store key for a namespace, scoped to userID when
// the namespace is per-user.
func ExtraKeyFor(ns ExtraNamespace, userID string) string {
	if ns.PerUser {
		return ns.Namespace + "." + userID
	}
	return ns.Namespace
}

// GlobalExtraKeys returns the keys of every global namespace — the allowlist
// of extras included in user-scoped backups alongside the user's own blobs.
func GlobalExtraKeys() []string {
	var keys []string
	for _, ns := range ExtrasRegistry {
		if !ns.PerUser {
			keys = append(keys, ns.Namespace)
		}
	}
	return keys
}

// UserExtraKeys returns the per-user extras keys for userID.
func UserExtraKeys(userID string) []string {
	var keys []string
	for _, ns := range ExtrasRegistry {
		if ns.PerUser {
			keys = append(keys, ExtraKeyFor(ns, userID))
		}
	}
	return keys
}
