package domain

// FlowData is an explicit node/edge override sent with order and build
// requests. When present the engine builds from this payload instead
// of the stored flow. Node and edge shapes are owned by the editor and
// passed through opaquely.
type FlowData struct {
	Nodes []map[string]any `json:"nodes"`
	Edges []map[string]any `json:"edges"`
}
