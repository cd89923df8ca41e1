package types

// Permissions gates both outbound sends and inbound acceptance of document
// bytes (§3 Invariant 2, §7 point 3). Denials are silent by design: the
// core never distinguishes "no such document" from "exists but you can't
// read it" on the wire.
type Permissions interface {
	Read(doc DocID, peer Identity) bool
	Write(doc DocID, peer Identity) bool
}
