package state

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameValidator(t *testing.T) {
	assert.NoError(t, NameValidator("node-1.alpha_test"))
	assert.Error(t, NameValidator("Node1"))
	assert.Error(t, NameValidator("node 1"))
	assert.Error(t, NameValidator(""))
	assert.Error(t, NameValidator(strings.Repeat("a", 101)))
}

func TestBindValidator(t *testing.T) {
	assert.NoError(t, BindValidator("127.0.0.1:57190"))
	assert.Error(t, BindValidator("localhost:57190"))
	assert.Error(t, BindValidator("127.0.0.1"))
}

func TestLocalConfigValidator(t *testing.T) {
	valid := LocalCfg{
		Id:        "node1",
		DebugBind: "127.0.0.1:57190",
		Sim: &SimCfg{
			Peers: []SimPeerCfg{
				{Name: "peer-a", FailRate: 0.5},
				{Name: "peer-b"},
			},
		},
	}
	assert.NoError(t, LocalConfigValidator(&valid))

	bad := valid
	bad.Id = "Node!"
	assert.Error(t, LocalConfigValidator(&bad))

	bad = valid
	bad.DebugBind = "nonsense"
	assert.Error(t, LocalConfigValidator(&bad))

	bad = valid
	bad.Sim = &SimCfg{Peers: []SimPeerCfg{{Name: "peer-a"}, {Name: "peer-a"}}}
	assert.Error(t, LocalConfigValidator(&bad))

	bad = valid
	bad.Sim = &SimCfg{Peers: []SimPeerCfg{{Name: "peer-a", FailRate: 1.5}}}
	assert.Error(t, LocalConfigValidator(&bad))
}
