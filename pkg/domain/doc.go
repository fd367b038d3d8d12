/*
Package domain contains the core domain models for the flowbuild
orchestrator.

It defines the fundamental entities of a build attempt, such as vertex
statuses, the layered execution order, delivery events and per-vertex
results. This package is kept pure and free of external dependencies
like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - Vertex: one executable component instance in a flow graph.
  - ExecutionOrder: the layered plan for one attempt, plus its run id.
  - Event: the tagged union of wire events describing build progress.
  - VertexBuildResult: the immutable outcome of one vertex build.
  - VertexOutcome: the Built/Errored/Inactive sum consumed by observers.
  - BuildHooks: the observer capability set emitted to by the orchestrator.
*/
package domain
