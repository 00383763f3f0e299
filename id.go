package harberger

import "github.com/openlots/harberger/id"

// ID is the primary identifier type for all Harberger entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
