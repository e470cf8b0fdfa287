// Package organizer renames screenshots in place once the naming service has
// suggested a name.
//
// The suggestion is slugified, the original extension is kept verbatim, and
// collisions are resolved by probing numbered suffixes. The move itself is a
// single rename within the same directory; on Linux the kernel is asked not to
// replace an existing destination, so a file that appears between the existence check
// and the move is never overwritten.
package organizer
