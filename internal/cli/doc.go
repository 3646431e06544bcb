// Package cli wires configuration, storage, providers, and analytics into
// the ledgerd command tree: serve, collect, and report.
package cli
