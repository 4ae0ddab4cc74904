// Package storage provides buffered file streams opened through a
// FileSystem, with open semantics of the device storage service.
package storage
