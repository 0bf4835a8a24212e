/*
Package ports defines the driven ports (interfaces) of the quire engine.

These interfaces decouple the navigation core from external implementations, allowing
the engine to work with various storage backends, definition sources and transports.

# Key Interfaces

  - DefinitionLoader: Supplies assessment definitions (e.g., from Loam or Memory).
  - StateStore: Persists and loads run snapshots.
  - DistributedLocker: Provides distributed locking for concurrent session access.
  - AsyncRecorder: Background collaborators writing async action results.
  - Engine: The session-addressed surface consumed by transports.
*/
package ports
