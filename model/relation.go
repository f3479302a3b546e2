package model

import "time"

// RelTag is the typed kind of a graph edge.
type RelTag string

const (
	RelAccountRole RelTag = "AccountRole" // account -> role
	RelAccountApp  RelTag = "AccountApp"  // account -> app
	RelResRole     RelTag = "ResRole"     // resource (api/menu/ele) -> role
	RelResApi      RelTag = "ResApi"      // menu/ele resource -> api resource
)

// PermanentValidityYears is the window applied when a caller supplies no
// validity, making the edge effectively permanent without null handling.
const PermanentValidityYears = 100

// Validity is the [start, end] unix-second window during which an edge
// authorizes.
type Validity struct {
	StartTs int64 `json:"start_ts"`
	EndTs   int64 `json:"end_ts"`
}

// Live reports whether the window covers the given instant.
func (v Validity) Live(now int64) bool {
	return v.StartTs <= now && v.EndTs >= now
}

// AttrOp is the operator of an attribute constraint.
type AttrOp string

const (
	AttrOpEq   AttrOp = "eq"
	AttrOpNeq  AttrOp = "neq"
	AttrOpIn   AttrOp = "in"
	AttrOpLike AttrOp = "like"
)

// RelAttr narrows which concrete subject instances an edge applies to,
// e.g. {Name: "tenant", Op: eq, Value: "t1"}.
type RelAttr struct {
	Name  string `json:"name" validate:"required"`
	Op    AttrOp `json:"op" validate:"required,oneof=eq neq in like"`
	Value string `json:"value"`
}

// Relation is a directed typed edge between two items. Edges are created and
// deleted atomically with their validity and attribute rows, never updated
// in place.
type Relation struct {
	ID          string    `json:"id"`
	Tag         RelTag    `json:"tag"`
	FromID      string    `json:"from_id"`
	ToID        string    `json:"to_id"`
	ToOwnPaths  string    `json:"to_own_paths"`
	ToIsOutside bool      `json:"to_is_outside"`
	Validity    Validity  `json:"validity"`
	Attrs       []RelAttr `json:"attrs,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RelAddReq is the request to link two items.
type RelAddReq struct {
	Tag      RelTag    `json:"tag" validate:"required"`
	FromID   string    `json:"from_id" validate:"required"`
	ToID     string    `json:"to_id" validate:"required"`
	Validity *Validity `json:"validity,omitempty"`
	Attrs    []RelAttr `json:"attrs,omitempty"`
}

// RelQuery selects edges by tag and either endpoint. An empty CallerPaths
// disables visibility filtering (internal recomputation view).
type RelQuery struct {
	Tag         RelTag
	FromID      string
	ToID        string
	CallerPaths string
}

// RelBone is the simple-record variant of a related item: just enough for a
// listing row.
type RelBone struct {
	RelID  string `json:"rel_id"`
	ItemID string `json:"item_id"`
	Name   string `json:"name"`
}

// IDPage is one page of related item ids.
type IDPage struct {
	Records    []string `json:"records"`
	Total      int64    `json:"total"`
	PageNumber int      `json:"page_number"`
	PageSize   int      `json:"page_size"`
}
