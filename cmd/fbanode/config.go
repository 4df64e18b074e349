package main

// Config file format and decoding, grounded on cmd/lunch/main.go's
// TOML-via-BurntSushi/toml nodeconf map, generalized from the
// reference's flat [][]NodeID slices to the nested QuorumSet tree of
// spec §3, and extended with the peer address list cmd/lunch folded
// into its ad hoc in-process channel instead.

import (
	"io/ioutil"

	"github.com/BurntSushi/toml"
	"github.com/DavidCanHelpMe/stellar-core/quorum"
	"github.com/pkg/errors"
)

// qsetConfig is the TOML shape of a recursive quorum.QuorumSet.
type qsetConfig struct {
	Threshold  uint32
	Validators []string
	InnerSets  []qsetConfig
}

func (c qsetConfig) toQuorumSet() *quorum.QuorumSet {
	q := &quorum.QuorumSet{Threshold: c.Threshold}
	for _, v := range c.Validators {
		q.Validators = append(q.Validators, quorum.NodeIDFromBytes([]byte(v)))
	}
	for _, inner := range c.InnerSets {
		q.InnerSets = append(q.InnerSets, inner.toQuorumSet())
	}
	return q
}

// nodeConfig is one [nodes.<id>] table: this node's own identity, its
// quorum set, and the addresses of the peers it dials.
type nodeConfig struct {
	QSet qsetConfig
	Peers []string
	ListenAddr string
}

type fileConfig struct {
	Nodes map[string]nodeConfig
}

func loadConfig(path string) (*fileConfig, error) {
	bits, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}
	var conf fileConfig
	if _, err := toml.Decode(string(bits), &conf); err != nil {
		return nil, errors.Wrap(err, "parsing config file")
	}
	if len(conf.Nodes) == 0 {
		return nil, errors.New("config file names no nodes")
	}
	return &conf, nil
}
