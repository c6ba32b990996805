/*
Package session owns the per-user conversation sessions.

The Manager wraps a ports.ContextStore with per-user locks, so turns of the
same user are serialized while different users proceed in parallel. Sessions
are created lazily on first use and removed by an EvictionPolicy, either on
demand (EvictIdle) or by a background janitor (RunJanitor).
*/
package session
