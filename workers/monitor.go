package workers

import (
	"log"
	"time"

	"gamebridge/bridge"
	"gamebridge/metrics"
	"gamebridge/redis"
)

// Worker_monitor keeps the fee pool gauge fresh and snapshots it to Redis so an
// operator restart does not lose fee accounting between requests.
func Worker_monitor(proc *bridge.Processor, collector *metrics.Collector, store *redis.Store) {
	for !WorkerShutdown.Load() {
		time.Sleep(15 * time.Second)

		pool := proc.FeePool()
		collector.SetFeePool(pool)

		if store != nil {
			if err := store.SetFeePool(pool.String()); err != nil {
				log.Printf("Error persisting fee pool snapshot: %v", err)
			}
		}
	}
	log.Printf("Monitor worker exiting")
}
