package domain

// BuildStatus represents the lifecycle state of a vertex within one
// build attempt.
type BuildStatus string

const (
	// StatusToBuild marks a vertex selected to run but not yet started.
	StatusToBuild BuildStatus = "TO_BUILD"
	// StatusBuilding marks a vertex whose build request is in flight.
	StatusBuilding BuildStatus = "BUILDING"
	// StatusBuilt marks a vertex that finished with a valid result.
	StatusBuilt BuildStatus = "BUILT"
	// StatusError marks a vertex that finished with an invalid result.
	StatusError BuildStatus = "ERROR"
	// StatusInactive marks a vertex outside the scope of the current
	// attempt. Inactive vertices are never transitioned further.
	StatusInactive BuildStatus = "INACTIVE"
)

// Terminal reports whether the status is final for the attempt.
func (s BuildStatus) Terminal() bool {
	return s == StatusBuilt || s == StatusError || s == StatusInactive
}

// Vertex is one executable component instance in a flow graph.
type Vertex struct {
	// ID uniquely identifies the vertex within its flow.
	ID string `json:"id"`
	// ReferenceID points at the vertex this one stands in for when it
	// is an alias or group member. Defaults to ID.
	ReferenceID string `json:"reference_id,omitempty"`
}

// NewVertex creates a vertex whose reference defaults to itself.
func NewVertex(id string) Vertex {
	return Vertex{ID: id, ReferenceID: id}
}

// ExecutionOrder is the layered plan for one build attempt. Every
// dependency of a vertex appears in a strictly earlier layer.
type ExecutionOrder struct {
	// RunID correlates all events of this attempt.
	RunID string `json:"run_id"`
	// Layers is the ordered sequence of dependency layers.
	Layers [][]string `json:"layers"`
	// VerticesToRun is the subset of vertex ids that must actually
	// execute for the requested start/stop scope.
	VerticesToRun []string `json:"vertices_to_run"`
}

// ShouldRun reports whether the given vertex id is in scope for this
// attempt.
func (o *ExecutionOrder) ShouldRun(id string) bool {
	for _, v := range o.VerticesToRun {
		if v == id {
			return true
		}
	}
	return false
}

// FlatIDs returns every vertex id in layer order.
func (o *ExecutionOrder) FlatIDs() []string {
	var ids []string
	for _, layer := range o.Layers {
		ids = append(ids, layer...)
	}
	return ids
}
