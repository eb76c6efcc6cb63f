// Package testutil contains fluent builders for the messages and states used
// across tests. They are not intended for production usage.
package testutil
