package codec

// Content-type constants used as registry keys and as the Format string
// representation in pkg/protocol.
const (
    ContentUnknown = "application/octet-stream"
    ContentCBOR    = "application/cbor"
    ContentJSON    = "application/json"
)

// Codec defines a simple interface for marshaling typed messages.
// Implementations should be deterministic and safe for cross-node exchange.
type Codec interface {
    ContentType() string
    Marshal(v any) ([]byte, error)
    Unmarshal(data []byte, v any) error
}

// Registry maps format/content type aliases to codecs.
type Registry struct{ byType map[string]Codec }

// NewRegistry constructs a registry preloaded with the JSON codec, the only
// built-in that needs no error-prone initialization. CBOR is added
// explicitly via Register(CBOR()).
func NewRegistry() *Registry {
    r := &Registry{byType: make(map[string]Codec)}
    r.Register(JSON())
    return r
}

// Register adds a codec.
func (r *Registry) Register(c Codec) { r.byType[c.ContentType()] = c }

// Get returns a codec by content type, or nil.
func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }
