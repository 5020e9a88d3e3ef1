// Package state keeps the volatile per-chat conversation sessions.
// Nothing here is persisted; a restart puts every chat back to StateNone.
package state
