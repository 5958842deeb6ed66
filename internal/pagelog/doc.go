// Package pagelog is a page-aligned, append-only log over rotating blocks.
//
// A Log owns an ordered run of blocks on a blockio medium. The writer keeps
// the page being filled (the tail) in memory and hands it to the medium when
// the next page starts or on Sync. Readers see an immutable Tip and read
// pages through a logcache.LogCache; the tail is served from memory and never
// cached.
//
// A Log opened without a writer is a follower: TryUpdate re-lists the medium
// and extends its view while another Log appends to the same blocks.
//
// Block lifecycle events are delivered synchronously, in registration order,
// to BlockListeners. The first listener error stops delivery and is returned
// from the operation that triggered it as a *ListenerError. A failing
// BeforeBlockDeleted aborts the deletion.
package pagelog
