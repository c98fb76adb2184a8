// Package domain holds the core model types and the interfaces between
// the karma engine and its collaborators (ledger store, reply sink,
// token source). No package outside domain may be imported by it.
package domain
