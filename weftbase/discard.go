package weftbase

import (
	"github.com/weftlog/weft/weftat"
)

// Discard is the built-in no-op collector. It is the active collector
// before any default has been installed and the inert end of layer
// chains.
var Discard Collector = discard{}

type discard struct{}

func (discard) ID() string                          { return "discard" }
func (discard) Enabled(*weftat.Metadata) bool       { return false }
func (discard) NewSpan(*Attributes) ID              { return 0 }
func (discard) Record(ID, []Field)                  {}
func (discard) RecordFollowsFrom(ID, ID)            {}
func (discard) Event(*EventData)                    {}
func (discard) Enter(ID)                            {}
func (discard) Exit(ID)                             {}
func (discard) TryClose(ID) bool                    { return true }
func (discard) ReferencesKept() bool                { return false }
