// Package logcache memoizes durable log pages.
//
// A LogCache sits between a log and its block medium. Reads go to the page
// store first, then to the log's live tail, then to durable storage. Tail
// pages are mutable and are never stored; only full pages below the high
// address are memoized.
//
// SeparateCache is the only LogCache implementation. It owns one PageStore
// chosen by Options:
//
//	NonBlocking=false Soft=false  LRU under one mutex
//	NonBlocking=false Soft=true   CLOCK under one mutex, reclaimable
//	NonBlocking=true  Soft=false  set-associative array of atomic pointers
//	NonBlocking=true  Soft=true   as above, reclaimable
//
// Soft stores implement Reclaimer: entries may vanish at any time and are
// re-read transparently.
package logcache
