package cli

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/langflow-ai/flowbuild/internal/mockengine"
)

// DemoOptions configures the demo command.
type DemoOptions struct {
	// Delivery forces one delivery strategy against the demo engine.
	Delivery string
	// Fail makes the model vertex fail, demonstrating error handling.
	Fail    bool
	Debug   bool
	NoColor bool
}

// Demo runs a scripted build against an in-process engine. It
// exercises the full wire protocol without any external service.
func Demo(opts DemoOptions) error {
	engine := mockengine.New()
	engine.Register(demoFlow(opts.Fail))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("starting demo engine: %w", err)
	}
	srv := &http.Server{Handler: engine.Handler()}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	return Run(RunOptions{
		EngineURL:  "http://" + ln.Addr().String(),
		FlowID:     "demo",
		InputValue: "Tell me about flow orchestration.",
		Delivery:   opts.Delivery,
		Debug:      opts.Debug,
		NoColor:    opts.NoColor,
	})
}

func demoFlow(fail bool) mockengine.Flow {
	model := mockengine.Vertex{
		ID:      "model",
		Next:    []string{"output"},
		Delay:   400 * time.Millisecond,
		Message: "**Flows** are built layer by layer: each component runs once its dependencies finish.",
	}
	if fail {
		model = mockengine.Vertex{
			ID:        "model",
			Next:      []string{"output"},
			Delay:     400 * time.Millisecond,
			Fail:      true,
			ErrorText: "model provider rejected the request",
		}
	}
	return mockengine.Flow{
		ID:     "demo",
		Layers: [][]string{{"input"}, {"retriever", "prompt"}, {"model"}, {"output"}},
		Vertices: map[string]mockengine.Vertex{
			"input":     {ID: "input", Next: []string{"retriever", "prompt"}},
			"retriever": {ID: "retriever", Next: []string{"model"}, Delay: 200 * time.Millisecond},
			"prompt":    {ID: "prompt", Next: []string{"model"}},
			"model":     model,
			"output":    {ID: "output"},
		},
	}
}
