package doctor

import "runtime"

// groupDefinitions defines the check groups with their metadata.
var groupDefinitions = map[string]struct {
	Name        string
	Description string
	Platform    string
	CheckIDs    []string
}{
	GroupPython: {
		Name:        "Python runtime",
		Description: "Required to run the installed launch-vms payload",
		Platform:    "", // Works on both platforms
		CheckIDs:    []string{IDPython3, IDPyModules},
	},
	GroupVCS: {
		Name:        "Version control",
		Description: "Required to bootstrap the ssh-utils dependency repository",
		Platform:    "",
		CheckIDs:    []string{IDGit},
	},
	GroupQemu: {
		Name:        "QEMU",
		Description: "Required on hosts that actually run the VMs",
		Platform:    "",
		CheckIDs:    []string{IDQemu, IDQemuImg},
	},
	GroupSSH: {
		Name:        "SSH",
		Description: "Required to reach remote VM hosts",
		Platform:    "",
		CheckIDs:    []string{IDSSH},
	},
}

// GetGroups returns all check groups applicable to the current platform.
func GetGroups() []CheckGroup {
	platform := runtime.GOOS
	var groups []CheckGroup

	for _, groupID := range GetAllGroupIDs() {
		def := groupDefinitions[groupID]

		// Skip if group is for a different platform
		if def.Platform != "" && def.Platform != platform {
			continue
		}

		groups = append(groups, CheckGroup{
			ID:          groupID,
			Name:        def.Name,
			Description: def.Description,
			Platform:    def.Platform,
		})
	}

	return groups
}

// GetGroupDefinition returns the definition for a specific group.
func GetGroupDefinition(groupID string) (struct {
	Name        string
	Description string
	Platform    string
	CheckIDs    []string
}, bool) {
	def, ok := groupDefinitions[groupID]
	return def, ok
}

// GetAllGroupIDs returns all group IDs in display order.
func GetAllGroupIDs() []string {
	return []string{GroupPython, GroupVCS, GroupQemu, GroupSSH}
}
