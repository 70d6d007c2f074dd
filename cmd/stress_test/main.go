package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/rl1809/storefront-checkout/internal/adapter/handler"
	"github.com/rl1809/storefront-checkout/internal/core/domain"
)

const (
	defaultHTTPAddr = "http://localhost:8080"
	defaultGRPCAddr = "localhost:50051"
	totalRequests   = 50
)

// Fills one checkout session up to the payment step, then submits the final step
// concurrently. Exactly one submission may place the order.
func main() {
	httpAddr := envOr("CHECKOUT_HTTP", defaultHTTPAddr)
	grpcAddr := envOr("CHECKOUT_GRPC", defaultGRPCAddr)
	cartID := os.Getenv("CART_ID")
	if cartID == "" {
		log.Fatal("CART_ID is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to connect grpc: %v", err)
	}
	defer conn.Close()
	client := handler.NewCheckoutClient(conn)

	view, err := client.StartSession(ctx, &handler.StartSessionRequest{
		CartID:    cartID,
		CartToken: os.Getenv("CART_TOKEN"),
	})
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}
	sessionID := view.ID
	log.Printf("session %s started", sessionID)

	base := httpAddr + "/api/checkout/sessions/" + sessionID
	mustPut(ctx, base+"/user-data", domain.UserDataFields{
		FirstName: "Stress", LastName: "Test", Phone: "0888123456", Email: "stress@example.com",
	})
	if _, err := client.Next(ctx, &handler.SessionRequest{SessionID: sessionID}); err != nil {
		log.Fatalf("personal info step: %v", err)
	}
	mustPut(ctx, base+"/shipping-address", domain.ShippingAddressFields{
		Address: "1 Vitosha Blvd", Locality: "Sofia", PostalCode: "1000",
	})
	if _, err := client.Next(ctx, &handler.SessionRequest{SessionID: sessionID}); err != nil {
		log.Fatalf("shipping step: %v", err)
	}
	mustPut(ctx, base+"/payment", handler.SelectPaymentRequest{Method: "iou_example"})

	// Counters
	var successCount, rejectedCount, failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := client.Next(ctx, &handler.SessionRequest{SessionID: sessionID})
			switch status.Code(err) {
			case codes.OK:
				successCount.Add(1)
			case codes.Aborted, codes.NotFound, codes.FailedPrecondition:
				rejectedCount.Add(1)
			default:
				failCount.Add(1)
				log.Printf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	rejected := rejectedCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Session:          %s\n", sessionID)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Placed:           %d\n", success)
	fmt.Printf("Rejected:         %d\n", rejected)
	fmt.Printf("Errors:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == 1 && fail == 0 {
		fmt.Println("PASS: exactly one order placed")
	} else {
		fmt.Printf("FAIL: expected 1 placement and 0 errors, got %d/%d\n", success, fail)
	}
}

func mustPut(ctx context.Context, url string, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Fatalf("marshal %s: %v", url, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		log.Fatalf("request %s: %v", url, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("PUT %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("PUT %s: status %d", url, resp.StatusCode)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
