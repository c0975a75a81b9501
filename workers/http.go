package workers

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"gamebridge/config"
	"gamebridge/metrics"
	"gamebridge/workers/handlers"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
)

// WorkerShutdown is flipped once on SIGINT/SIGTERM; background workers poll it.
var WorkerShutdown atomic.Bool

func Worker_HTTP(h *handlers.Handler, collector *metrics.Collector) {
	log.Printf("Starting HTTP service")

	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Options("/*", CORSHeaders)

	r.Get("/state", h.State)
	r.Get("/events", h.RecentEvents)

	r.Post("/bridge/requests", h.CreateRequest)
	r.Post("/bridge/requests/{id}/process", h.ProcessRequest)
	r.Post("/bridge/requests/{id}/cancel", h.CancelRequest)
	r.Get("/bridge/requests/{id}", h.GetRequest)
	r.Get("/bridge/requests", h.ListRequests)
	r.Post("/bridge/fees/withdraw", h.WithdrawFees)

	r.Post("/relayers", h.RegisterRelayer)
	r.Post("/relayers/stake", h.AddStake)
	r.Post("/relayers/stake/withdraw", h.WithdrawStake)
	r.Post("/relayers/{address}/deactivate", h.DeactivateRelayer)
	r.Get("/relayers/{address}", h.GetRelayer)

	r.Post("/chains", h.AddChain)
	r.Post("/chains/{id}/active", h.SetChainActive)
	r.Get("/chains/{id}", h.GetChain)
	r.Get("/chains", h.ListChains)

	r.Post("/settlements", h.CreateSettlement)
	r.Post("/settlements/{id}/confirm", h.ConfirmSettlement)
	r.Post("/settlements/{id}/dispute", h.InitiateDispute)
	r.Post("/settlements/{id}/resolve", h.ResolveDispute)
	r.Get("/settlements/{id}", h.GetSettlement)
	r.Get("/settlements/{id}/dispute", h.GetDispute)

	r.Get("/metrics", collector.Handler().ServeHTTP)

	var server *http.Server

	if config.Config.Server.UseSSL {
		cert, _ := tls.LoadX509KeyPair("certchain.pem", "privatekey.pem")
		server = &http.Server{
			Addr:    ":443",
			Handler: r,
			TLSConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			},
		}
	} else {
		server = &http.Server{
			Addr:    fmt.Sprintf(":%d", config.Config.Server.Port),
			Handler: r,
		}
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if config.Config.Server.UseSSL {
			if err := server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
				log.Fatalf("error listening to: %s", err)
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("error listening to: %s", err)
			}
		}
	}()
	log.Print("HTTP service started")

	<-done
	log.Print("HTTP service stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer func() {
		cancel()
	}()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP service shutdown error: %+v", err)
	}
	log.Print("HTTP service shutdown normal")

	// send signal to other threads/workers to exit
	WorkerShutdown.Store(true)
}

func CORSHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
	w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, Origin, X-Requested-With")
}
