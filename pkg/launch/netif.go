package launch

import (
	"context"
	"fmt"
	"strings"
)

// sudoPrefix runs a privileged command with the password read from stdin.
// -S keeps sudo from opening the controlling terminal, which a runner
// session does not have; with passwordless sudo the stdin is simply unused.
const sudoPrefix = "sudo -S -p ''"

// deviceCommands returns the shell commands that create a host network
// device. Creation is idempotent per run: an existing device is reused.
func deviceCommands(dev *NetDevice) ([]string, error) {
	var cmds []string

	switch dev.Type {
	case NetBridge:
		cmds = append(cmds,
			fmt.Sprintf("ip link show %s >/dev/null 2>&1 || %s ip link add name %s type bridge", dev.Name, sudoPrefix, dev.Name))

	case NetMacvlan:
		if dev.Parent == "" {
			return nil, fmt.Errorf("macvlan device %s needs a parent link", dev.Name)
		}
		cmds = append(cmds,
			fmt.Sprintf("ip link show %s >/dev/null 2>&1 || %s ip link add %s link %s type macvlan mode bridge", dev.Name, sudoPrefix, dev.Name, dev.Parent))

	default:
		return nil, fmt.Errorf("unknown host network type %q", dev.Type)
	}

	if dev.Address != "" {
		cmds = append(cmds, fmt.Sprintf("%s ip addr replace %s dev %s", sudoPrefix, dev.Address, dev.Name))
	}
	cmds = append(cmds, fmt.Sprintf("%s ip link set %s up", sudoPrefix, dev.Name))

	return cmds, nil
}

// ifaceCommands returns the shell commands that prepare the host side of a
// guest NIC. User-mode NICs need no host setup.
func ifaceCommands(iface *Interface) ([]string, error) {
	switch iface.Type {
	case IfaceMacvtap:
		if iface.Parent == "" {
			return nil, fmt.Errorf("macvtap interface %s needs a parent link", iface.Name)
		}
		return []string{
			fmt.Sprintf("ip link show %s >/dev/null 2>&1 || %s ip link add link %s name %s type macvtap mode bridge", iface.Name, sudoPrefix, iface.Parent, iface.Name),
			fmt.Sprintf("%s ip link set %s up", sudoPrefix, iface.Name),
		}, nil

	case IfaceTap:
		cmds := []string{
			fmt.Sprintf("ip link show %s >/dev/null 2>&1 || %s ip tuntap add dev %s mode tap", iface.Name, sudoPrefix, iface.Name),
		}
		if iface.Bridge != "" {
			cmds = append(cmds, fmt.Sprintf("%s ip link set %s master %s", sudoPrefix, iface.Name, iface.Bridge))
		}
		cmds = append(cmds, fmt.Sprintf("%s ip link set %s up", sudoPrefix, iface.Name))
		return cmds, nil

	case IfaceUser:
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown interface type %q", iface.Type)
	}
}

// runPrivileged runs one sudo-prefixed command, feeding the password on
// stdin when one was collected.
func runPrivileged(ctx context.Context, r Runner, command, password string) error {
	opts := RunOptions{}
	if password != "" {
		opts.Stdin = strings.NewReader(password + "\n")
	}
	return r.Run(ctx, command, opts)
}

// SetupHostNetwork creates the host-side network devices on the runner.
func SetupHostNetwork(ctx context.Context, r Runner, devices []NetDevice, sudoPassword string) error {
	for i := range devices {
		cmds, err := deviceCommands(&devices[i])
		if err != nil {
			return err
		}
		for _, cmd := range cmds {
			if err := runPrivileged(ctx, r, cmd, sudoPassword); err != nil {
				return fmt.Errorf("failed to set up %s %s: %w", devices[i].Type, devices[i].Name, err)
			}
		}
	}
	return nil
}

// setupInterfaces prepares the host side of every NIC a VM declares.
func setupInterfaces(ctx context.Context, r Runner, ifaces []Interface, sudoPassword string) error {
	for i := range ifaces {
		cmds, err := ifaceCommands(&ifaces[i])
		if err != nil {
			return err
		}
		for _, cmd := range cmds {
			if err := runPrivileged(ctx, r, cmd, sudoPassword); err != nil {
				return fmt.Errorf("failed to set up %s interface %s: %w", ifaces[i].Type, ifaces[i].Name, err)
			}
		}
	}
	return nil
}

// needsSudo reports whether launching the host's VMs requires privileged
// network setup. Hosts with only user-mode networking never do.
func needsSudo(host *HostConfig) bool {
	if len(host.HostNetwork) > 0 {
		return true
	}
	for _, vm := range host.VMs {
		for _, iface := range vm.Interfaces {
			if iface.Type == IfaceMacvtap || iface.Type == IfaceTap {
				return true
			}
		}
	}
	return false
}
