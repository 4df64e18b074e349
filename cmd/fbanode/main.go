// Command fbanode runs one FBA consensus node: it loads a TOML quorum
// topology (cmd/lunch's config format), signs and verifies envelopes
// with Ed25519 (cmd/scptxvm's signing convention), and exchanges
// envelopes with its peers over HTTP (cmd/scptxvm's transport),
// nominating a new toy value for each slot once the previous one
// externalizes (cmd/lunch's slot loop).
package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/DavidCanHelpMe/stellar-core/crypto"
	"github.com/DavidCanHelpMe/stellar-core/engine"
	"github.com/DavidCanHelpMe/stellar-core/internal/logctx"
	"github.com/DavidCanHelpMe/stellar-core/internal/metrics"
	"github.com/DavidCanHelpMe/stellar-core/quorum"
	"github.com/DavidCanHelpMe/stellar-core/scp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	confPath := flag.String("conf", "", "path to TOML config file")
	nodeName := flag.String("node", "", "this node's name, a key in the config's [nodes] table")
	listenAddr := flag.String("listen", "", "address to listen on for inbound envelopes and /metrics")
	seed := flag.Int64("seed", 1, "RNG seed for toy value selection")
	flag.Parse()

	if *confPath == "" || *nodeName == "" {
		log.Fatal("usage: fbanode -conf FILE -node NAME -listen ADDR")
	}
	rand.Seed(*seed)

	conf, err := loadConfig(*confPath)
	if err != nil {
		log.Fatal(err)
	}
	nconf, ok := conf.Nodes[*nodeName]
	if !ok {
		log.Fatalf("config names no node %q", *nodeName)
	}
	addr := *listenAddr
	if addr == "" {
		addr = nconf.ListenAddr
	}
	localQSet := nconf.QSet.toQuorumSet()
	if err := localQSet.Validate(); err != nil {
		log.Fatal(err)
	}

	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		log.Fatal(err)
	}
	localID := crypto.NodeIDFromPublicKey(priv.Public().(ed25519.PublicKey))
	signer := crypto.NewEd25519Signer(priv, knownKeys(localID, priv))

	qsets := map[quorum.Hash]*quorum.QuorumSet{}
	if h, err := quorum.HashQuorumSet(localQSet); err == nil {
		qsets[h] = localQSet
	}
	// EXTERNALIZE statements name the implicit singleton commit qset
	// (see quorum.Singleton, SPEC_FULL §13); register it too so a peer
	// echoing our own EXTERNALIZE back to us resolves cleanly.
	if h, err := quorum.HashQuorumSet(quorum.Singleton(localID)); err == nil {
		qsets[h] = quorum.Singleton(localID)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	logger := logctx.New(nil, "fbanode")

	host := newDemoHost(signer, nconf.Peers, qsets, logger, m)
	eng, err := engine.New(localID, localQSet, host)
	if err != nil {
		log.Fatal(err)
	}

	go host.runBroadcastLoop()
	go serveHTTP(addr, eng, host, reg, logger)
	runSlotLoop(eng, host, logger)
}

func knownKeys(self scp.NodeID, priv ed25519.PrivateKey) map[scp.NodeID]ed25519.PublicKey {
	return map[scp.NodeID]ed25519.PublicKey{self: priv.Public().(ed25519.PublicKey)}
}

func serveHTTP(addr string, eng *engine.Engine, host *demoHost, reg *prometheus.Registry, log logctx.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/envelope", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		defer r.Body.Close()
		body, err := ioutil.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		env, err := decodeEnvelope(host, string(body))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		state, err := eng.ReceiveEnvelope(env)
		if err != nil {
			log.Logf("receiving envelope: %s", err)
		}
		if state == engine.EnvelopeInvalid {
			http.Error(w, "invalid envelope", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	log.Logf("listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Logf("http server exited: %s", err)
	}
}

func decodeEnvelope(host *demoHost, body string) (*scp.Envelope, error) {
	parts := strings.SplitN(body, ".", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed envelope body")
	}
	payload, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, err
	}
	sig, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, err
	}
	stmt, err := host.UnmarshalStatement(payload)
	if err != nil {
		return nil, err
	}
	return &scp.Envelope{Statement: stmt, Signature: sig}, nil
}

// runSlotLoop nominates one new toy value per slot, waiting for the
// previous slot to externalize before advancing -- the same
// sequential slot progression cmd/lunch/main.go's "for slotID := ...;
// ; slotID++" loop drives, generalized from its in-process channel
// synchronization to polling demoHost.IsExternalized since this host's
// externalize notification runs on a different goroutine.
func runSlotLoop(eng *engine.Engine, host *demoHost, log logctx.Logger) {
	for slotIndex := scp.SlotIndex(1); ; slotIndex++ {
		val := foods[rand.Intn(len(foods))]
		if _, err := eng.Nominate(slotIndex, val, false); err != nil {
			log.Logf("nominate slot %d: %s", slotIndex, err)
		}

		roundTimer := time.NewTicker(5 * time.Second)
		for !host.IsExternalized(slotIndex) {
			<-roundTimer.C
			if host.IsExternalized(slotIndex) {
				break
			}
			if _, err := eng.Nominate(slotIndex, val, true); err != nil {
				log.Logf("nominate timeout slot %d: %s", slotIndex, err)
			}
		}
		roundTimer.Stop()
		log.Logf("slot %d composite candidate: %s", slotIndex, eng.GetLatestCompositeCandidate(slotIndex))
	}
}
