// Package meta loads node configuration documents from local or remote
// storage.
package meta
