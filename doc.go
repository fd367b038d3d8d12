/*
Package flowbuild orchestrates builds of AI-component flows against a
remote flow-execution engine.

A flow is a dependency graph of components (vertices). Building it
means asking the engine's planner for a dependency-respecting order,
driving execution, and consuming the engine's real-time event stream
to keep a consistent per-vertex status model.

The Client facade wraps the orchestrator:

	client, err := flowbuild.New("http://localhost:7860",
		flowbuild.WithAPIKey(key),
	)
	if err != nil {
		...
	}
	summary, err := client.BuildAndWait(ctx, flowbuild.BuildSpec{
		FlowID:     flowID,
		InputValue: "hello",
	})

Build events are observed through BuildHooks (per-vertex outcomes,
chat messages, streamed tokens, errors), and the live status table of
an attempt can be read concurrently while the build runs. Event
delivery falls back transparently from a direct response stream to
job-based streaming to polling, depending on what the engine supports.

Subpackages expose the moving parts for direct use: pkg/domain holds
the shared types, pkg/events the wire decoder, pkg/adapters/api the
HTTP engine client, and pkg/adapters/{memory,redis} the session result
stores.
*/
package flowbuild
