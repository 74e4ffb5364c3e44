// Package content maps the flat backing rows of the site into the shapes the
// public pages and the admin editors consume.
//
// The core pieces are:
//   - [Fold] and [Flatten]: the pure mapping between (section, field, value)
//     rows and a nested [Bundle], with per-section defaults supplied by the caller
//   - [Service]: the read and write accessors for content, SEO, ventures,
//     timeline and leads over a [store.Backend]
//   - [NormalizeVertical]: permissive folding of venture verticals on read
//
// Writes are last-write-wins. Nothing here spans rows in a transaction, so a
// bulk save that partially fails leaves the successful writes in place and
// reports the failed keys.
package content
