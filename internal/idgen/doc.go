// Package idgen wraps the UUID generator so that process and node
// identifiers can be stubbed in tests. Callers treat identifiers as opaque
// strings.
package idgen
