// Package topofile reads the flat node and peer lists a simulation is built from.
//
// Files are YAML or JSON:
//
//	name: lab
//	nodes:
//	  - name: relay-us-1
//	    wireguard_ip: 10.10.0.1
//	    role: relay
//	    public_key: ...
//	peers:
//	  - from: client-eu-1
//	    to: relay-us-1
//	    allowed_ips: [10.10.0.0/24]
//
// Only presence checks are made; graph consistency is checked when the
// network is built.
package topofile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tutu-network/wgsim/internal/domain"
)

// Topology is a parsed topology file.
type Topology struct {
	Name  string
	Nodes []domain.NodeSpec
	Peers []domain.PeerSpec
}

// NodeNames returns node names in file order.
func (t Topology) NodeNames() []string {
	names := make([]string, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		names = append(names, n.Name)
	}
	return names
}

type fileTopology struct {
	Name  string     `yaml:"name,omitempty"`
	Nodes []fileNode `yaml:"nodes"`
	Peers []filePeer `yaml:"peers"`
}

type fileNode struct {
	Name            string `yaml:"name"`
	WireguardIP     string `yaml:"wireguard_ip,omitempty"`
	IP              string `yaml:"ip,omitempty"`
	Role            string `yaml:"role,omitempty"`
	PublicKey       string `yaml:"public_key,omitempty"`
	PrivateKey      string `yaml:"private_key,omitempty"`
	EnableIPForward bool   `yaml:"enable_ip_forward,omitempty"`
}

type filePeer struct {
	From       string     `yaml:"from"`
	To         string     `yaml:"to"`
	AllowedIPs stringList `yaml:"allowed_ips,omitempty"`
	Endpoint   string     `yaml:"endpoint,omitempty"`
}

// stringList accepts a sequence or a single comma-separated scalar.
type stringList []string

func (s *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var out []string
		for _, part := range strings.Split(value.Value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*s = out
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := value.Decode(&out); err != nil {
			return err
		}
		*s = out
		return nil
	default:
		return fmt.Errorf("line %d: allowed_ips must be a string or a list", value.Line)
	}
}

// Load reads and parses a .yaml, .yml or .json topology file.
// A file without a name field is named after its base name.
func Load(path string) (Topology, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return Topology{}, fmt.Errorf("%w: %s", domain.ErrUnknownInput, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Topology{}, err
	}
	topo, err := Parse(data)
	if err != nil {
		return Topology{}, fmt.Errorf("%s: %w", path, err)
	}
	if topo.Name == "" {
		topo.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return topo, nil
}

// Parse decodes YAML or JSON topology data and validates it.
func Parse(data []byte) (Topology, error) {
	var raw fileTopology
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Topology{}, fmt.Errorf("decode topology: %w", err)
	}

	topo := Topology{Name: raw.Name}
	for _, n := range raw.Nodes {
		ip := n.WireguardIP
		if ip == "" {
			ip = n.IP
		}
		role := domain.Role(strings.ToLower(n.Role))
		if role == "" {
			role = domain.RoleClient
			if n.EnableIPForward {
				role = domain.RoleRelay
			}
		}
		topo.Nodes = append(topo.Nodes, domain.NodeSpec{
			Name:            n.Name,
			IP:              ip,
			Role:            role,
			PublicKey:       n.PublicKey,
			PrivateKey:      n.PrivateKey,
			EnableIPForward: n.EnableIPForward,
		})
	}
	for _, p := range raw.Peers {
		topo.Peers = append(topo.Peers, domain.PeerSpec{
			From:       p.From,
			To:         p.To,
			AllowedIPs: p.AllowedIPs,
			Endpoint:   p.Endpoint,
		})
	}

	if err := Validate(topo); err != nil {
		return Topology{}, err
	}
	return topo, nil
}

// Validate performs minimal validation for required fields.
func Validate(t Topology) error {
	if len(t.Nodes) == 0 {
		return domain.ErrNoNodes
	}
	for i, n := range t.Nodes {
		if n.Name == "" {
			return fmt.Errorf("nodes[%d]: %w", i, domain.ErrEmptyName)
		}
	}
	for i, p := range t.Peers {
		if p.From == "" || p.To == "" {
			return fmt.Errorf("peers[%d]: %w", i, domain.ErrInvalidPeer)
		}
	}
	return nil
}

// Save writes t as YAML.
func Save(path string, t Topology) error {
	raw := fileTopology{Name: t.Name}
	for _, n := range t.Nodes {
		raw.Nodes = append(raw.Nodes, fileNode{
			Name:            n.Name,
			WireguardIP:     n.IP,
			Role:            string(n.Role),
			PublicKey:       n.PublicKey,
			PrivateKey:      n.PrivateKey,
			EnableIPForward: n.EnableIPForward,
		})
	}
	for _, p := range t.Peers {
		raw.Peers = append(raw.Peers, filePeer{
			From:       p.From,
			To:         p.To,
			AllowedIPs: p.AllowedIPs,
			Endpoint:   p.Endpoint,
		})
	}

	data, err := yaml.Marshal(&raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
