// Package domain: mesh node identities as produced by the topology builder.
package domain

// Role is the function a node plays in the mesh.
type Role string

const (
	RoleClient Role = "client"
	RoleRelay  Role = "relay"
	RoleServer Role = "server"
)

// NodeSpec describes one simulated WireGuard interface.
// Keys are opaque strings; the simulator never checks them cryptographically.
type NodeSpec struct {
	Name            string `json:"name" yaml:"name"`
	IP              string `json:"ip" yaml:"ip"`
	Role            Role   `json:"role" yaml:"role"`
	PublicKey       string `json:"public_key" yaml:"public_key"`
	PrivateKey      string `json:"-" yaml:"private_key"`
	EnableIPForward bool   `json:"enable_ip_forward,omitempty" yaml:"enable_ip_forward,omitempty"`
}

// IsRelay reports whether the node is expected to sit on multi-hop paths.
func (n NodeSpec) IsRelay() bool {
	return n.Role == RoleRelay || n.EnableIPForward
}
