package sequencer

import "github.com/rs/xid"

// NewUID returns new unique id value.
func NewUID() string {
	return xid.New().String()
}
