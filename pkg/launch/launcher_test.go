package launch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records commands and serves scripted filesystem state.
type fakeRunner struct {
	mu       sync.Mutex
	commands []string
	detached []string
	stdinFed []string
	uploads  map[string]string
	existing map[string]bool
	runErr   error
	outputs  map[string]string
	closed   bool
}

func (f *fakeRunner) Run(_ context.Context, command string, opts RunOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, command)
	if opts.Detach {
		f.detached = append(f.detached, command)
	}
	if opts.Stdin != nil {
		f.stdinFed = append(f.stdinFed, command)
	}
	return f.runErr
}

func (f *fakeRunner) Output(_ context.Context, command string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if out, ok := f.outputs[command]; ok {
		return out, nil
	}
	return "", nil
}

func (f *fakeRunner) FileExists(_ context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[path], nil
}

func (f *fakeRunner) Upload(_ context.Context, localPath, remotePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploads == nil {
		f.uploads = make(map[string]string)
	}
	f.uploads[remotePath] = localPath
	return nil
}

func (f *fakeRunner) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newTestLauncher(runner *fakeRunner) *Launcher {
	return &Launcher{
		WorkDir: "/work",
		Out:     &bytes.Buffer{},
		NewRunner: func(host *HostConfig) (Runner, error) {
			return runner, nil
		},
	}
}

func localImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "base.qcow2")
	require.NoError(t, os.WriteFile(path, []byte("qcow2"), 0o644))
	return path
}

func TestRun_LaunchesAllVMs(t *testing.T) {
	image := localImage(t)
	runner := &fakeRunner{}
	launcher := newTestLauncher(runner)

	cfg := Config{{
		VMs: []VMConfig{
			{Name: "a", RemotePath: "/vms/a.qcow2", LocalPath: image, DisplayMode: DisplayBackground},
			{Name: "b", RemotePath: "/vms/b.qcow2", LocalPath: image, DisplayMode: DisplayBackground},
		},
	}}

	err := launcher.Run(context.Background(), cfg)
	require.NoError(t, err)

	var launches int
	for _, cmd := range runner.commands {
		if strings.HasPrefix(cmd, qemuBinary) {
			launches++
		}
	}
	assert.Equal(t, 2, launches)
	assert.Len(t, runner.detached, 2, "background VMs launch detached")
	assert.True(t, runner.closed)
}

func TestRun_UploadsMissingImages(t *testing.T) {
	image := localImage(t)
	runner := &fakeRunner{}
	launcher := newTestLauncher(runner)

	cfg := Config{{
		VMs: []VMConfig{{Name: "a", RemotePath: "/vms/a.qcow2", LocalPath: image, DisplayMode: DisplayBackground}},
	}}

	require.NoError(t, launcher.Run(context.Background(), cfg))

	assert.Equal(t, image, runner.uploads["/vms/a.qcow2"])
}

func TestRun_SkipsUploadWhenRemoteExists(t *testing.T) {
	runner := &fakeRunner{existing: map[string]bool{"/vms/a.qcow2": true}}
	launcher := newTestLauncher(runner)

	cfg := Config{{
		VMs: []VMConfig{{Name: "a", RemotePath: "/vms/a.qcow2", DisplayMode: DisplayBackground}},
	}}

	require.NoError(t, launcher.Run(context.Background(), cfg))

	assert.Empty(t, runner.uploads)
}

func TestRun_OverwriteForcesUpload(t *testing.T) {
	image := localImage(t)
	runner := &fakeRunner{existing: map[string]bool{"/vms/a.qcow2": true}}
	launcher := newTestLauncher(runner)
	launcher.Overwrite = true

	cfg := Config{{
		VMs: []VMConfig{{Name: "a", RemotePath: "/vms/a.qcow2", LocalPath: image, DisplayMode: DisplayBackground}},
	}}

	require.NoError(t, launcher.Run(context.Background(), cfg))

	assert.Equal(t, image, runner.uploads["/vms/a.qcow2"])
}

func TestRun_ImageInUseFails(t *testing.T) {
	runner := &fakeRunner{
		existing: map[string]bool{"/vms/a.qcow2": true},
		outputs: map[string]string{
			"pgrep -a qemu-system-x86_64 || true": "4242 qemu-system-x86_64 -drive file=/vms/a.qcow2",
		},
	}
	launcher := newTestLauncher(runner)

	cfg := Config{{
		VMs: []VMConfig{{Name: "a", RemotePath: "/vms/a.qcow2", DisplayMode: DisplayBackground}},
	}}

	err := launcher.Run(context.Background(), cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "in use by another qemu process")
}

func TestRun_HostNetworkBeforeVMs(t *testing.T) {
	image := localImage(t)
	runner := &fakeRunner{}
	launcher := newTestLauncher(runner)

	cfg := Config{{
		HostNetwork: []NetDevice{{Type: NetBridge, Name: "br0"}},
		VMs:         []VMConfig{{Name: "a", RemotePath: "/vms/a.qcow2", LocalPath: image, DisplayMode: DisplayBackground}},
	}}

	require.NoError(t, launcher.Run(context.Background(), cfg))

	require.NotEmpty(t, runner.commands)
	assert.Contains(t, runner.commands[0], "br0")
}

func TestRun_OneHostFailingDoesNotHideOthers(t *testing.T) {
	image := localImage(t)
	good := &fakeRunner{}
	bad := &fakeRunner{runErr: errors.New("connection reset")}

	launcher := &Launcher{
		WorkDir: "/work",
		Out:     &bytes.Buffer{},
		NewRunner: func(host *HostConfig) (Runner, error) {
			if host.Name() == "bad.lan" {
				return bad, nil
			}
			return good, nil
		},
	}

	cfg := Config{
		{VMs: []VMConfig{{Name: "a", RemotePath: "/vms/a.qcow2", LocalPath: image, DisplayMode: DisplayBackground}}},
		{Host: "bad.lan", VMs: []VMConfig{{Name: "b", RemotePath: "/vms/b.qcow2", LocalPath: image, DisplayMode: DisplayBackground}}},
	}

	err := launcher.Run(context.Background(), cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	// The good host still launched its VM.
	var launched bool
	for _, cmd := range good.commands {
		if strings.HasPrefix(cmd, qemuBinary) {
			launched = true
		}
	}
	assert.True(t, launched)
}

func TestRun_RunnerFactoryFailure(t *testing.T) {
	launcher := &Launcher{
		WorkDir: "/work",
		Out:     &bytes.Buffer{},
		NewRunner: func(host *HostConfig) (Runner, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}

	cfg := Config{{Host: "unreachable.lan"}}

	err := launcher.Run(context.Background(), cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable.lan")
}

func TestRun_PromptsSudoPasswordOnlyForHostsThatNeedIt(t *testing.T) {
	image := localImage(t)
	runner := &fakeRunner{}

	var prompted []string
	launcher := newTestLauncher(runner)
	launcher.SudoPassword = func(host string) (string, error) {
		prompted = append(prompted, host)
		return "hunter2", nil
	}

	cfg := Config{
		{
			Host:        "net.lan",
			SSH:         &SSHConfig{KeyPath: "/dev/null"},
			HostNetwork: []NetDevice{{Type: NetBridge, Name: "br0"}},
			VMs:         []VMConfig{{Name: "a", RemotePath: "/vms/a.qcow2", LocalPath: image, DisplayMode: DisplayBackground}},
		},
		{
			VMs: []VMConfig{{Name: "b", RemotePath: "/vms/b.qcow2", LocalPath: image, DisplayMode: DisplayBackground}},
		},
	}

	require.NoError(t, launcher.Run(context.Background(), cfg))

	assert.Equal(t, []string{"net.lan"}, prompted, "only the host with privileged setup prompts")

	var sudoFed int
	for _, cmd := range runner.stdinFed {
		if strings.Contains(cmd, "sudo -S") {
			sudoFed++
		}
	}
	assert.NotZero(t, sudoFed, "privileged commands receive the password on stdin")
}

func TestRun_SudoPromptFailureStopsLaunch(t *testing.T) {
	image := localImage(t)
	runner := &fakeRunner{}

	launcher := newTestLauncher(runner)
	launcher.SudoPassword = func(host string) (string, error) {
		return "", errors.New("input closed")
	}

	cfg := Config{{
		HostNetwork: []NetDevice{{Type: NetBridge, Name: "br0"}},
		VMs:         []VMConfig{{Name: "a", RemotePath: "/vms/a.qcow2", LocalPath: image, DisplayMode: DisplayBackground}},
	}}

	err := launcher.Run(context.Background(), cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "input closed")
	assert.Empty(t, runner.commands, "no host is touched when the prompt fails")
}

func TestGenerateVMName_Unique(t *testing.T) {
	a := generateVMName()
	b := generateVMName()

	assert.True(t, strings.HasPrefix(a, "vm-"))
	assert.NotEqual(t, a, b)
}
