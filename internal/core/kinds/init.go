// Package kinds registers the built-in import kinds with the core registry.
// Import this package to ensure all kinds are registered.
package kinds
