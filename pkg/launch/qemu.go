package launch

import (
	"fmt"
	"strings"
)

// qemuBinary is the hypervisor the launcher drives.
const qemuBinary = "qemu-system-x86_64"

// netdev indices below 4 are reserved for qemu's implicit devices.
const firstNetdevIndex = 4

// BuildArgs assembles the qemu-system-x86_64 argument list for a VM. workDir
// substitutes the literal "{pwd}" in virtfs_path. The list is deterministic:
// flags appear in config declaration order, drives indexed as declared.
func BuildArgs(vm *VMConfig, workDir string) ([]string, error) {
	args := []string{"-accel", "kvm", "-cpu", "max"}

	if vm.Memory > 0 {
		args = append(args, "-m", fmt.Sprintf("%d", vm.Memory))
	}

	if vm.CPUCount > 0 {
		args = append(args, "-smp", fmt.Sprintf("%d", vm.CPUCount))
	}

	if vm.VirtfsPath != "" {
		path := vm.VirtfsPath
		if path == "{pwd}" {
			path = workDir
		}
		args = append(args, "-virtfs",
			"local,path="+path+",security_model=mapped-xattr,mount_tag=share,id=share")
	}

	index := firstNetdevIndex
	userIndex := 0
	for _, iface := range vm.Interfaces {
		switch iface.Type {
		case IfaceMacvtap, IfaceTap:
			ifaceArgs, err := tapArgs(&iface, index)
			if err != nil {
				return nil, err
			}
			args = append(args, ifaceArgs...)
			index++

		case IfaceUser:
			args = append(args, userArgs(&iface, userIndex)...)
			userIndex++

		default:
			return nil, fmt.Errorf("unknown interface type %q (supported: macvtap, tap, user)", iface.Type)
		}
	}

	displayArgs, err := displayModeArgs(vm.DisplayMode)
	if err != nil {
		return nil, err
	}
	args = append(args, displayArgs...)

	driveIndex := 0
	args = append(args, driveArgs(vm.RemotePath, driveIndex)...)
	driveIndex++

	for _, disk := range vm.AdditionalDisks {
		args = append(args, driveArgs(disk.RemotePath, driveIndex)...)
		driveIndex++
	}

	return args, nil
}

// Command renders the full shell command for a VM.
func Command(vm *VMConfig, workDir string) (string, error) {
	args, err := BuildArgs(vm, workDir)
	if err != nil {
		return "", err
	}
	return qemuBinary + " " + strings.Join(args, " "), nil
}

// tapArgs builds the netdev/device pair for a tap-backed NIC. These consume
// netdev indices; user-mode NICs number separately.
func tapArgs(iface *Interface, index int) ([]string, error) {
	name := iface.Name
	if name == "" {
		return nil, fmt.Errorf("%s interface needs a device name", iface.Type)
	}
	id := fmt.Sprintf("net%d", index)
	device := "virtio-net-pci,netdev=" + id
	if iface.MAC != "" {
		device += ",mac=" + iface.MAC
	}
	return []string{
		"-netdev", fmt.Sprintf("tap,id=%s,ifname=%s,script=no,downscript=no", id, name),
		"-device", device,
	}, nil
}

// userArgs builds the netdev/device pair for a user-mode NIC.
func userArgs(iface *Interface, index int) []string {
	id := fmt.Sprintf("usernet%d", index)
	netdev := "user,id=" + id
	if iface.HostFwd != "" {
		netdev += ",hostfwd=" + iface.HostFwd
	}
	return []string{
		"-netdev", netdev,
		"-device", "virtio-net-pci,netdev=" + id,
	}
}

// displayModeArgs maps a display mode onto qemu display flags.
func displayModeArgs(mode string) ([]string, error) {
	switch mode {
	case DisplayBackground:
		return []string{"-vga", "none", "-serial", "none", "-nographic"}, nil
	case "", DisplayTerminal:
		return []string{"-vga", "none", "-nographic"}, nil
	case DisplayGraphic:
		return []string{"-vga", "virtio"}, nil
	default:
		return nil, fmt.Errorf("unknown display mode %q", mode)
	}
}

// driveArgs builds the flags for one qcow2 virtio drive.
func driveArgs(path string, index int) []string {
	return []string{
		"-drive",
		fmt.Sprintf("file=%s,format=qcow2,if=virtio,index=%d,media=disk", path, index),
	}
}

// Detached reports whether the VM runs detached from the invoking terminal.
func Detached(mode string) bool {
	return mode == DisplayBackground || mode == DisplayGraphic
}
