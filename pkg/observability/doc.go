/*
Package observability turns session lifecycle hooks into telemetry.

Metrics exposes Prometheus collectors fed by domain.LifecycleHooks, and
LogHooks writes the same events to a structured logger. Both return plain
hooks, so they compose with each other and with application hooks through
LifecycleHooks.Merge.
*/
package observability
