// Package apikeys issues and validates bot API keys.
//
// Keys look like "root_" followed by 48 alphanumerics. They are stored as
// bcrypt hashes, which are salted, so validation cannot look a key up
// directly: it loads every key and verifies each hash in turn. The cost is
// linear in the number of keys times the bcrypt work factor, which is
// acceptable while only a handful of bots exist.
package apikeys
