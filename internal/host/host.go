package host

// Package host abstracts the capabilities a hosting environment must provide
// to the engine: testing for the presence of a referenced page element,
// making a resource declaration live, and best-effort removal of storage
// keys. The contract is the interception point, not the mechanism: a browser
// embedding intercepts construction/insertion primitives, a server-side
// renderer wraps its template pipeline, the fake below simulates a page.

// ResourceKind distinguishes the ways a resource declaration can carry its
// payload.
type ResourceKind string

const (
	KindScript ResourceKind = "script"
	KindPixel  ResourceKind = "pixel"
	KindFrame  ResourceKind = "frame"
)

// Anchor is the insertion position of a resource: an opaque parent reference
// plus the opaque reference of the next sibling at interception time. Both
// are owned by the host environment; the engine only carries them so a
// released resource lands back at its original position.
type Anchor struct {
	Parent      string
	NextSibling string
}

// Resource is a pending resource declaration about to become live. It must be
// fully reconstructable: the original location or inline payload, the full
// attribute set, and the insertion anchor are all preserved verbatim.
type Resource struct {
	Kind     ResourceKind
	Location string
	Inline   string
	Attrs    map[string]string
	Anchor   Anchor
	// FromSubtree marks resources observed as part of a larger inserted
	// block. These may already have begun executing by the time they are
	// seen; interception is best effort for them.
	FromSubtree bool
}

// Clone returns a deep copy so queued resources cannot be mutated by the host
// after interception.
func (r Resource) Clone() Resource {
	out := r
	if r.Attrs != nil {
		out.Attrs = make(map[string]string, len(r.Attrs))
		for k, v := range r.Attrs {
			out.Attrs[k] = v
		}
	}
	return out
}

// Page is the capability surface a hosting environment implements.
type Page interface {
	// ElementExists reports whether the element referenced by the selector
	// is currently present.
	ElementExists(selector string) bool
	// Materialize makes a resource live at its anchor. Called by the gate
	// when a category is released.
	Materialize(res Resource) error
	// RemoveStorageKeys best-effort deletes the given storage keys and
	// returns how many were actually present.
	RemoveStorageKeys(keys []string) int
}

// URL-bearing attribute consulted for the per-resource category override.
const (
	// OverrideAttr names an explicit category for a resource, winning over
	// pattern classification.
	OverrideAttr = "data-consent-category"
	// NecessaryValue marks a resource that is never blocked.
	NecessaryValue = "necessary"
)
