// Package platform maps the running operating system to a release asset and to
// the file handling its loader expects. Windows resolves a process image by
// its .exe suffix; Unix-like systems need the execute bit set explicitly
// because release archives do not reliably preserve it. Every platform
// specific decision the updater makes goes through a Kind method.
package platform
