package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

func main() {
	targetURL := flag.String("url", "http://localhost:8080/api/v1/branding", "Target URL; the Host header is set per request")
	rootDomain := flag.String("root-domain", "example.com", "Root domain clinic subdomains live under")
	subdomains := flag.String("subdomains", "clinic1,clinic2,clinic3", "Comma-separated clinic subdomains to spread load across")
	unknownRatio := flag.Float64("unknown-ratio", 0.05, "Fraction of requests sent to a subdomain that does not exist")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 1000, "Requests per second limit")
	flag.Parse()

	hosts := strings.Split(*subdomains, ",")
	for i, s := range hosts {
		hosts[i] = strings.TrimSpace(s) + "." + *rootDomain
	}

	log.Printf("Starting load test on %s across %d clinics", *targetURL, len(hosts))
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	var wg sync.WaitGroup
	var errorCount atomic.Int64
	var mu sync.Mutex
	byStatus := make(map[int]int64)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 100) // Allow bursts up to 100

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{
				Timeout: 5 * time.Second,
			}

			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				host := hosts[rand.Intn(len(hosts))]
				if rand.Float64() < *unknownRatio {
					host = fmt.Sprintf("ghost-%d.%s", workerID, *rootDomain)
				}

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, *targetURL, nil)
				if err != nil {
					continue
				}
				req.Host = host

				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() == nil {
						errorCount.Add(1)
					}
					continue
				}
				resp.Body.Close()

				mu.Lock()
				byStatus[resp.StatusCode]++
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()

	var total int64
	codes := make([]int, 0, len(byStatus))
	for code, n := range byStatus {
		codes = append(codes, code)
		total += n
	}
	sort.Ints(codes)

	log.Println("Load test finished.")
	log.Printf("Total Responses: %d", total)
	for _, code := range codes {
		log.Printf("  %d %s: %d", code, http.StatusText(code), byStatus[code])
	}
	log.Printf("Transport Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", float64(total)/duration.Seconds())
}
