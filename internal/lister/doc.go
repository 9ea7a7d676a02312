// Package lister enumerates a single directory level on an agent.
//
// Entries are classified as directories, plain files, or skipped entries
// (symlinks, devices, sockets, pipes). Symlinks are never followed, so a
// walk over the listing cannot escape the tree or loop through a link.
//
// The FS implementation is backed by go-billy: osfs for real agents and
// memfs for tests and synthetic trees.
package lister
