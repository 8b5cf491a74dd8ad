// Package store keeps per-resource item lists in sync with a REST API.
//
// A Factory builds one Module per resource name from a shared naming table.
// Each module holds its items and exposes the same set of typed operations:
//
//	Actions:   Read, Create, Update, Destroy, SetAll
//	Getters:   ReadAll, ReadByID
//	Mutations: MutationSetAll, MutationDelete
//
// The Service registers modules and routes every call through them. An
// operation addressed to an unregistered name fails with a
// ModuleNotFoundError before anything is sent or changed.
//
// Besides explicit reads, the Service installs a response middleware on the
// HTTP client. Every successful response is evaluated against the sync
// rules, and a rule whose JSONPath yields an array replaces that resource's
// items. Registering a module adds the rule for its top-level key, so
//
//	GET /dashboard -> {"users": [...], "roles": [...]}
//
// refreshes both the users and roles modules. Both paths end in the same
// replace mutation: the last write wins and nothing is merged.
//
// Create never changes local state; the created item appears after the next
// read or a response that a sync rule picks up.
package store
