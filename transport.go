package formlink

import "github.com/wagiedev/formlink-go/internal/config"

// Transport defines the interface to an engine process.
// Implement this to drive an engine some other way, or to fake one in tests.
//
// The default implementation launches the engine as a subprocess over pipes.
// Custom transports are injected with WithTransport.
type Transport = config.Transport

// Channel identifies one of the engine's output streams.
type Channel = config.Channel

const (
	// ChannelOutput carries printed results.
	ChannelOutput = config.ChannelOutput
	// ChannelDiagnostic carries the banner, warnings and errors.
	ChannelDiagnostic = config.ChannelDiagnostic
)
