// Package types defines the data shared across burrow: runtime identities,
// plugin descriptors, broker events and brokering attempt records.
package types
