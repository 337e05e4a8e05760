package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

// SettleResponse espelha o corpo devolvido pelo endpoint de liquidação
type SettleResponse struct {
	Deducted bool   `json:"deducted"`
	Count    int    `json:"count"`
	Reason   string `json:"reason"`
}

// Dispara N chamadas concorrentes de liquidação para o MESMO pedido e confere
// que exatamente uma devolve deducted=true e as demais already_deducted.
func main() {
	baseURL := getEnv("SETTLEMENT_URL", "http://localhost:8080")
	orderID := getEnvInt("ORDER_ID", 1)
	actorUserID := getEnvInt("ACTOR_USER_ID", 1)
	totalRequests := int(getEnvInt("TOTAL_REQUESTS", 50))

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60 * time.Second)

	var (
		deducted  atomic.Int32
		duplicate atomic.Int32
		failed    atomic.Int32
	)

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			var result SettleResponse
			resp, err := client.R().
				SetBody(map[string]int64{"actor_user_id": actorUserID}).
				SetResult(&result).
				Post(fmt.Sprintf("/api/orders/%d/settle", orderID))
			if err != nil || resp.IsError() {
				failed.Add(1)
				return
			}

			if result.Deducted {
				deducted.Add(1)
			} else {
				duplicate.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("========== SETTLEMENT BENCHMARK ==========")
	fmt.Printf("Order ID:         %d\n", orderID)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Deducted:         %d\n", deducted.Load())
	fmt.Printf("Already Deducted: %d\n", duplicate.Load())
	fmt.Printf("Failed:           %d\n", failed.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if deducted.Load() == 1 && duplicate.Load() == int32(totalRequests)-1 {
		fmt.Println("PASS: Exactly one call deducted stock, the rest were no-ops")
	} else {
		fmt.Printf("FAIL: Expected 1 deduction and %d no-ops, got %d/%d\n",
			totalRequests-1, deducted.Load(), duplicate.Load())
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			log.Fatalf("invalid %s: %v", key, err)
		}
		return parsed
	}
	return defaultValue
}
