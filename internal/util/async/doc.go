// Package async provides utilities for parallel task execution with
// error collection.
//
// [RunParallel] executes independent operations concurrently, optionally
// bounded, and returns every failure joined together. Certificate pairs are
// generated through it.
package async
