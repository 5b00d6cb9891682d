package store

import "github.com/google/uuid"

// newEventID and newRelationshipID mint internal primary keys for rows
// spec.md leaves unspecified (only Instance.id and the derived review id
// have a wire format — see internal/idgen). The pack's evalgo-org-eve,
// goadesign-goa-ai, jordigilh-kubernaut, and nickmisasi-mattermost-plugin-
// cursor all reach for google/uuid for exactly this.
func newEventID() string        { return uuid.New().String() }
func newRelationshipID() string { return uuid.New().String() }
