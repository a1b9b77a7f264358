// Package cmd implements the command-line interface of litemap. It provides
// commands to work with the records of a store and to inspect its operation
// queue.
//
// The package is organized into several subpackages:
//
//   - kv: Record operations on one namespace (add, get, update, keys, export, del, clear, info)
//     and the perf benchmark
//   - demo: Seeds sample users into several stores
//   - stats: Runs a workload and prints the queue metrics
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set through an environment variable with the prefix
// LITEMAP_ (e.g. LITEMAP_STORE, LITEMAP_LOG_LEVEL) or in a .env / .env.local file.
//
// See litemap -help for a list of all commands.
package cmd
