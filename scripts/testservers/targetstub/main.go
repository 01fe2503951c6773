// Command targetstub is a local stand-in for the service ratesweep drives.
// It accepts POST {"prompt": ...} requests and answers with a JSON body, with
// configurable artificial latency and failure injection so sweep behavior can
// be exercised without a real backend:
//
//	go run ./scripts/testservers/targetstub -port 8080 -latency 50ms -error-rate 0.05
//	ratesweep --target http://localhost:8080/generate --tag local --rates 10,50
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"
)

func main() {
	port := flag.Int("port", 8080, "Listening port")
	latency := flag.Duration("latency", 25*time.Millisecond, "Base processing latency")
	jitter := flag.Duration("jitter", 10*time.Millisecond, "Uniform latency jitter added on top")
	errorRate := flag.Float64("error-rate", 0, "Fraction of requests answered with 503")
	hangRate := flag.Float64("hang-rate", 0, "Fraction of requests that never answer (timeout fodder)")
	flag.Parse()

	var served atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "served": served.Load()})
	})
	mux.HandleFunc("/generate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "POST only"})
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]any{"error": "unreadable body"})
			return
		}
		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := json.Unmarshal(body, &req); err != nil || req.Prompt == "" {
			respondJSON(w, http.StatusBadRequest, map[string]any{"error": "prompt is required"})
			return
		}

		if *hangRate > 0 && rand.Float64() < *hangRate {
			<-r.Context().Done()
			return
		}

		delay := *latency
		if *jitter > 0 {
			delay += time.Duration(rand.Int63n(int64(*jitter)))
		}
		start := time.Now()
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}

		if *errorRate > 0 && rand.Float64() < *errorRate {
			respondJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "injected failure"})
			return
		}

		served.Add(1)
		respondJSON(w, http.StatusOK, map[string]any{
			"result": fmt.Sprintf("processed %d prompt bytes", len(req.Prompt)),
			"timing": time.Since(start).Seconds(),
		})
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("target stub listening on %s (latency=%s jitter=%s error-rate=%.2f hang-rate=%.2f)",
		addr, *latency, *jitter, *errorRate, *hangRate)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
