// Package dedupe provides a bounded seen-set used to drop repeated keys.
//
// The walk engine uses it to make sure a directory reached through two
// different remapped paths is listed only once.
package dedupe
