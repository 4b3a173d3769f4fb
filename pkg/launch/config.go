// Package launch runs QEMU virtual machines on local or remote hosts from a
// declarative host configuration.
package launch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Display modes for a VM.
const (
	DisplayBackground = "background"
	DisplayTerminal   = "terminal"
	DisplayGraphic    = "graphic"
)

// Guest interface types.
const (
	IfaceMacvtap = "macvtap"
	IfaceTap     = "tap"
	IfaceUser    = "user"
)

// Host network device types.
const (
	NetBridge  = "bridge"
	NetMacvlan = "macvlan"
)

// Config is the top-level launch configuration: one entry per host.
type Config []HostConfig

// HostConfig describes the VMs to run on a single host.
type HostConfig struct {
	Host        string      `json:"host" yaml:"host"`
	HostNetwork []NetDevice `json:"host_network" yaml:"host_network"`
	SSH         *SSHConfig  `json:"ssh_config" yaml:"ssh_config"`
	VMs         []VMConfig  `json:"vms" yaml:"vms"`
}

// Name returns the host name, defaulting to localhost.
func (h *HostConfig) Name() string {
	if h.Host == "" {
		return "localhost"
	}
	return h.Host
}

// Local reports whether the host entry targets the local machine.
func (h *HostConfig) Local() bool {
	return h.Name() == "localhost" || h.SSH == nil
}

// SSHConfig holds the connection settings for a remote host.
type SSHConfig struct {
	Host    string `json:"host" yaml:"host"`
	User    string `json:"user" yaml:"user"`
	Port    int    `json:"port" yaml:"port"`
	KeyPath string `json:"key_path" yaml:"key_path"`
}

// NetDevice is a host-side network device created before launching VMs.
type NetDevice struct {
	Type    string `json:"type" yaml:"type"`
	Name    string `json:"name" yaml:"name"`
	Parent  string `json:"parent" yaml:"parent"`   // link device for macvlan
	Address string `json:"address" yaml:"address"` // optional CIDR to assign
}

// Interface is a guest NIC.
type Interface struct {
	Type    string `json:"type" yaml:"type"`
	Name    string `json:"name" yaml:"name"`       // host-side device name
	Parent  string `json:"parent" yaml:"parent"`   // parent link for macvtap
	Bridge  string `json:"bridge" yaml:"bridge"`   // bridge to attach a tap to
	MAC     string `json:"mac" yaml:"mac"`         // optional fixed MAC
	HostFwd string `json:"hostfwd" yaml:"hostfwd"` // user-mode port forward spec
}

// DiskImage pairs a local image with its path on the VM host.
type DiskImage struct {
	LocalPath  string `json:"local_disk_image_path" yaml:"local_disk_image_path"`
	RemotePath string `json:"remote_disk_image_path" yaml:"remote_disk_image_path"`
}

// VMConfig describes a single VM.
type VMConfig struct {
	Name        string      `json:"name" yaml:"name"`
	Memory      int         `json:"memory" yaml:"memory"` // MiB
	CPUCount    int         `json:"cpu_count" yaml:"cpu_count"`
	VirtfsPath  string      `json:"virtfs_path" yaml:"virtfs_path"` // "{pwd}" expands to the working directory
	Interfaces  []Interface `json:"interfaces" yaml:"interfaces"`
	DisplayMode string      `json:"display_mode" yaml:"display_mode"`

	RemotePath      string      `json:"remote_disk_image_path" yaml:"remote_disk_image_path"`
	LocalPath       string      `json:"local_disk_image_path" yaml:"local_disk_image_path"`
	AdditionalDisks []DiskImage `json:"additional_disk_images" yaml:"additional_disk_images"`
}

// LoadConfig reads and validates a launch configuration. YAML is selected by
// file extension; everything else parses as JSON.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration before any host is touched: required
// image paths, known interface types, known display modes.
func (c Config) Validate() error {
	for _, host := range c {
		for _, dev := range host.HostNetwork {
			switch dev.Type {
			case NetBridge, NetMacvlan:
			default:
				return fmt.Errorf("host %s: unknown host network type %q (supported: bridge, macvlan)", host.Name(), dev.Type)
			}
			if dev.Name == "" {
				return fmt.Errorf("host %s: host network device needs a name", host.Name())
			}
		}

		for vi, vm := range host.VMs {
			label := vm.Name
			if label == "" {
				label = fmt.Sprintf("vms[%d]", vi)
			}

			if vm.RemotePath == "" {
				return fmt.Errorf("host %s, %s: 'remote_disk_image_path' is required", host.Name(), label)
			}

			switch vm.DisplayMode {
			case "", DisplayBackground, DisplayTerminal, DisplayGraphic:
			default:
				return fmt.Errorf("host %s, %s: unknown display mode %q", host.Name(), label, vm.DisplayMode)
			}

			for _, iface := range vm.Interfaces {
				switch iface.Type {
				case IfaceMacvtap, IfaceTap, IfaceUser:
				default:
					return fmt.Errorf("host %s, %s: unknown interface type %q (supported: macvtap, tap, user)", host.Name(), label, iface.Type)
				}
			}

			for di, disk := range vm.AdditionalDisks {
				if disk.RemotePath == "" {
					return fmt.Errorf("host %s, %s: additional disk %d needs 'remote_disk_image_path'", host.Name(), label, di)
				}
			}
		}
	}

	return nil
}
