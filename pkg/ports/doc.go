/*
Package ports defines the interfaces (ports) between the flowbuild
orchestrator and the outside world, following Hexagonal Architecture.

  - EngineAPI: the remote flow-execution engine (order resolution,
    build, event delivery, cancellation).
  - ResultStore: session-retained storage of per-vertex build results.

Implementations live under pkg/adapters.
*/
package ports
