/*
Package session runs assessments.

A Session owns one run: it drives the navigator, validates answers, records
async results and emits a snapshot to its StateStore after every committed
transition. Resume restarts a persisted run; Open reattaches to it for a single
request.

The Manager serializes access to sessions by ID. It keeps reference-counted
in-process locks and, when a DistributedLocker is configured, coordinates
replicas sharing one store.
*/
package session
