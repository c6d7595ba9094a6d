/*
Package session orchestrates session lifecycle on top of a session
store: lazy creation with CSRF token minting, shallow-merge updates,
and explicit destruction.

Whole records are written back on every update, so concurrent writers
to the same session are last-write-wins. Connections cache their
session after the first load, which keeps a single request internally
consistent without any cross-process locking.
*/
package session
