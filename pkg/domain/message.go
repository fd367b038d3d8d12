package domain

// Message is one entry in the conversational output sink. Messages are
// pass-through for the orchestrator: they carry chat text, streaming
// token targets and user-visible errors, but never affect vertex
// status.
type Message struct {
	ID         string `json:"id" mapstructure:"id"`
	FlowID     string `json:"flow_id,omitempty" mapstructure:"flow_id"`
	SessionID  string `json:"session_id,omitempty" mapstructure:"session_id"`
	Sender     string `json:"sender,omitempty" mapstructure:"sender"`
	SenderName string `json:"sender_name,omitempty" mapstructure:"sender_name"`
	Text       string `json:"text" mapstructure:"text"`
	// IsError marks user-visible error messages emitted by the engine.
	IsError bool `json:"error,omitempty" mapstructure:"error"`
	// Category distinguishes chat messages from error banners.
	Category string `json:"category,omitempty" mapstructure:"category"`
}

// BuildError is an attempt-level error reported by the engine. Source
// is empty when the error is not attributable to one vertex; such
// errors are raised as build-level failures.
type BuildError struct {
	// Source is the originating vertex id, when known.
	Source string
	// Message is the user-visible error message.
	Message Message
}

// AttemptLevel reports whether the error lacks an originating vertex.
func (e *BuildError) AttemptLevel() bool {
	return e.Source == ""
}

func (e *BuildError) Error() string {
	if e.Source != "" {
		return "build error in " + e.Source + ": " + e.Message.Text
	}
	return "build error: " + e.Message.Text
}
