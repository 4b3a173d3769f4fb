package launch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validJSON = `[
  {
    "host": "builder.lan",
    "ssh_config": {"user": "ops", "key_path": "/home/ops/.ssh/id_ed25519"},
    "host_network": [
      {"type": "bridge", "name": "br0", "address": "10.0.0.1/24"}
    ],
    "vms": [
      {
        "name": "worker-1",
        "memory": 4096,
        "cpu_count": 4,
        "display_mode": "background",
        "remote_disk_image_path": "/var/lib/vms/worker-1.qcow2",
        "local_disk_image_path": "./images/base.qcow2",
        "interfaces": [
          {"type": "tap", "name": "tap0", "bridge": "br0"}
        ]
      }
    ]
  }
]`

func TestLoadConfig_JSON(t *testing.T) {
	path := writeConfig(t, "vms.json", validJSON)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Len(t, cfg, 1)
	host := cfg[0]
	assert.Equal(t, "builder.lan", host.Name())
	assert.False(t, host.Local())
	require.Len(t, host.VMs, 1)
	assert.Equal(t, 4096, host.VMs[0].Memory)
	assert.Equal(t, "tap0", host.VMs[0].Interfaces[0].Name)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeConfig(t, "vms.yaml", `
- host: builder.lan
  ssh_config:
    user: ops
    key_path: /home/ops/.ssh/id_ed25519
  vms:
    - name: worker-1
      memory: 2048
      cpu_count: 2
      remote_disk_image_path: /var/lib/vms/worker-1.qcow2
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Len(t, cfg, 1)
	assert.Equal(t, 2048, cfg[0].VMs[0].Memory)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadConfig_BadJSON(t *testing.T) {
	path := writeConfig(t, "vms.json", "{not json")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate_MissingRemoteImagePath(t *testing.T) {
	cfg := Config{{
		VMs: []VMConfig{{Name: "worker-1"}},
	}}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "'remote_disk_image_path' is required")
}

func TestValidate_UnknownInterfaceType(t *testing.T) {
	cfg := Config{{
		VMs: []VMConfig{{
			RemotePath: "/var/lib/vms/a.qcow2",
			Interfaces: []Interface{{Type: "bonded"}},
		}},
	}}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown interface type "bonded"`)
}

func TestValidate_UnknownDisplayMode(t *testing.T) {
	cfg := Config{{
		VMs: []VMConfig{{
			RemotePath:  "/var/lib/vms/a.qcow2",
			DisplayMode: "curses",
		}},
	}}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown display mode "curses"`)
}

func TestValidate_UnknownHostNetworkType(t *testing.T) {
	cfg := Config{{
		HostNetwork: []NetDevice{{Type: "vxlan", Name: "vx0"}},
	}}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown host network type "vxlan"`)
}

func TestHostConfig_Defaults(t *testing.T) {
	host := HostConfig{}

	assert.Equal(t, "localhost", host.Name())
	assert.True(t, host.Local())
}
