package core

// Principal is the authenticated identity a request acts as, resolved
// from the directory after credential verification. The gate only ever
// reads principals; it never creates or mutates them.
type Principal struct {
	// ID is the stable subject identifier (the token's sub claim).
	ID string `yaml:"id" json:"id"`

	// Name is a human-readable display name.
	Name string `yaml:"name" json:"name,omitempty"`

	// Attributes are additional directory-provided properties.
	Attributes map[string]any `yaml:"attributes" json:"attributes,omitempty"`
}
