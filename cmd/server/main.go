package main

import (
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"gamebridge/bridge"
	"gamebridge/config"
	"gamebridge/custody"
	"gamebridge/events"
	"gamebridge/identity"
	"gamebridge/metrics"
	"gamebridge/oracle"
	"gamebridge/proof"
	"gamebridge/redis"
	"gamebridge/settlement"
	"gamebridge/settlement/repository"
	"gamebridge/types"
	"gamebridge/workers"
	"gamebridge/workers/handlers"

	"github.com/ethereum/go-ethereum/common"
)

// in-process custody account for local mode
var custodyAccount = common.BytesToAddress([]byte("gamebridge custody"))

func main() {
	log.Print("Starting gaming asset bridge")

	f, err := os.OpenFile(fmt.Sprintf("logs/log_%s.txt", time.Now().Format("2006-01-02")), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file for writing: %v", err)
	}
	defer f.Close()

	log.SetOutput(f)

	config.Init()

	// connect to Redis, without persistence do not continue
	redis.Init()
	store := redis.NewStore()

	bus := events.NewBus(store)
	collector := metrics.NewCollector()
	resolver := identity.NewResolver(
		config.Config.Auth.AdminKeys,
		config.Config.Auth.ConfirmerKeys,
		config.Config.Auth.ResolverKeys,
	)

	var assets custody.Ledger
	if url := config.Config.Collaborators.AssetLedgerURL; url != "" {
		assets = custody.NewRPCLedger(url)
	} else {
		assets = custody.NewMemoryLedger(custodyAccount)
	}
	custodian := bridge.NewCustodian(assets)

	var feeOracle oracle.FeeOracle
	static := &oracle.StaticOracle{
		Bridge:  mustBig(config.Config.Bridge.BridgeFee),
		Dispute: mustBig(config.Config.Settlement.DisputeFee),
	}
	if url := config.Config.Collaborators.FeeOracleURL; url != "" {
		feeOracle = oracle.NewRPCOracle(url, static)
	} else {
		feeOracle = static
	}

	chains := bridge.NewChainRegistry(config.Config.Bridge.HomeChainID, store, bus)
	for _, params := range config.SeedChains {
		chains.Restore(&types.ChainConfig{
			ChainID:          params.ChainID,
			Name:             params.Name,
			IsSupported:      true,
			IsActive:         true,
			MinConfirmations: params.MinConfirmations,
			MaxThroughput:    params.MaxThroughput,
			BridgeFee:        mustBig(params.BridgeFee),
		})
	}

	relayers := bridge.NewRelayerRegistry(mustBig(config.Config.Relayer.MinimumStake), store, bus)

	processor := bridge.NewProcessor(bridge.ProcessorOptions{
		Chains:    chains,
		Relayers:  relayers,
		Custodian: custodian,
		Oracle:    feeOracle,
		Store:     store,
		Bus:       bus,
		Collector: collector,
		MaxAmount: mustBig(config.Config.Bridge.MaxTransferAmount),
	})

	var archive settlement.Archive
	if dsn := config.Config.Postgres.DSN; dsn != "" {
		repo := repository.NewRepository()
		if err := repo.ConnectDB(dsn); err != nil {
			log.Fatalf("error connecting to settlement archive: %v", err)
		}
		archive = repo
	}

	ledger := settlement.NewLedger(settlement.LedgerOptions{
		Custodian: custodian,
		Verifier:  proof.MerkleVerifier{},
		Store:     store,
		Archive:   archive,
		Bus:       bus,
		Collector: collector,
		Window:    time.Duration(config.Config.Settlement.DisputeWindowSec) * time.Second,
		MaxAmount: mustBig(config.Config.Settlement.MaxAmount),
	})
	disputes := settlement.NewResolver(ledger, feeOracle)

	restoreState(processor, ledger, chains, relayers, store)

	h := handlers.New(handlers.Handler{
		Processor: processor,
		Chains:    chains,
		Relayers:  relayers,
		Ledger:    ledger,
		Resolver:  disputes,
		Identity:  resolver,
		Bus:       bus,
	})

	// two worker threads:
	// * fee pool snapshot / gauge refresh
	// * API serving HTTP(S) server (serves as main worker thread)
	go workers.Worker_monitor(processor, collector, store)

	workers.Worker_HTTP(h, collector)
}

// restoreState reloads everything that survived a restart. Chains load after
// the config seed so operator changes win over the static seed list.
func restoreState(processor *bridge.Processor, ledger *settlement.Ledger, chains *bridge.ChainRegistry, relayers *bridge.RelayerRegistry, store *redis.Store) {
	ccs, err := store.LoadChains()
	if err != nil {
		log.Fatalf("error loading chains: %v", err)
	}
	for _, cc := range ccs {
		chains.Restore(cc)
	}

	rels, err := store.LoadRelayers()
	if err != nil {
		log.Fatalf("error loading relayers: %v", err)
	}
	for _, rel := range rels {
		relayers.Restore(rel)
	}

	reqs, err := store.LoadBridgeRequests()
	if err != nil {
		log.Fatalf("error loading bridge requests: %v", err)
	}
	for _, req := range reqs {
		processor.Restore(req)
	}

	sts, err := store.LoadSettlements()
	if err != nil {
		log.Fatalf("error loading settlements: %v", err)
	}
	for _, st := range sts {
		ledger.Restore(st)
	}

	pool, err := store.GetFeePool()
	if err != nil {
		log.Fatalf("error loading fee pool: %v", err)
	}
	processor.RestoreFeePool(mustBig(pool))

	log.Printf("Restored %d chains, %d relayers, %d bridge requests, %d settlements", len(ccs), len(rels), len(reqs), len(sts))
}

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		log.Fatalf("invalid decimal amount in config: %q", s)
	}
	return v
}
