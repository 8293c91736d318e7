package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvquang/netprobe/internal/scan"
)

func TestCollectHostEntriesSplitsCommaLists(t *testing.T) {
	entries, err := collectHostEntries([]string{"a.example,b.example", " c.example "}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.example", "b.example", "c.example"}, entries)
}

func TestReadHostsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts.txt")
	content := "# staging fleet\nweb1.example\n\nweb2.example:8443\n  # indented comment is a comment\ndb.example\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	hosts, err := readHostsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"web1.example", "web2.example:8443", "db.example"}, hosts)
}

func TestReadHostsFileMissing(t *testing.T) {
	_, err := readHostsFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestBuildTargetsPortPrecedence(t *testing.T) {
	scanFlags.ports = "22,25"
	scanFlags.commonPorts = false
	defer func() { scanFlags.ports = "" }()

	targets, err := buildTargets([]string{"plain.example", "explicit.example:8080"})
	require.NoError(t, err)
	require.Len(t, targets, 2)

	// --port applies when the entry has no port of its own
	assert.Equal(t, scan.Target{Host: "plain.example", Ports: []uint16{22, 25}}, targets[0])
	// an explicit host:port wins over --port
	assert.Equal(t, scan.Target{Host: "explicit.example", Ports: []uint16{8080}}, targets[1])
}

func TestBuildTargetsDefaults(t *testing.T) {
	scanFlags.ports = ""
	scanFlags.commonPorts = false

	targets, err := buildTargets([]string{"h.example"})
	require.NoError(t, err)
	assert.Equal(t, []uint16{80, 443}, targets[0].Ports)
}

func TestBuildTargetsCommonPorts(t *testing.T) {
	scanFlags.ports = ""
	scanFlags.commonPorts = true
	defer func() { scanFlags.commonPorts = false }()

	targets, err := buildTargets([]string{"h.example"})
	require.NoError(t, err)
	assert.Equal(t, scan.CommonPorts(), targets[0].Ports)
}

func TestBuildTargetsRejectsInvalidHost(t *testing.T) {
	scanFlags.ports = ""
	_, err := buildTargets([]string{"-bad-.example"})
	assert.Error(t, err)
}

func TestBuildTargetsRejectsBadPortSpec(t *testing.T) {
	scanFlags.ports = "99999"
	defer func() { scanFlags.ports = "" }()

	_, err := buildTargets([]string{"h.example"})
	assert.Error(t, err)
}
