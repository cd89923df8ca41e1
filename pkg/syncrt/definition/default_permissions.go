package definition

import "github.com/nwillc/syncrt/pkg/syncrt/types"

// DefaultPermissions grants read and write to everyone, matching §6.3's
// documented default.
type DefaultPermissions struct{}

func (DefaultPermissions) Read(types.DocID, types.Identity) bool  { return true }
func (DefaultPermissions) Write(types.DocID, types.Identity) bool { return true }

var _ types.Permissions = DefaultPermissions{}
