package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ReserveResult struct {
	Buyer        int           `json:"buyer"`
	StatusCode   int           `json:"status_code"`
	ErrorCode    string        `json:"error_code,omitempty"`
	TicketID     string        `json:"ticket_id,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
}

type RaceSuite struct {
	BaseURL      string
	TicketTypeID string
	Client       *http.Client
	Results      []ReserveResult
}

type apiResponse struct {
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Errors     json.RawMessage `json:"errors"`
}

func main() {
	baseURL := flag.String("base-url", "http://localhost:8080/api/v1", "API base URL")
	ticketTypeID := flag.String("ticket-type", "", "ticket type to race for")
	buyers := flag.Int("buyers", 50, "number of concurrent reservations")
	output := flag.String("out", "racecheck_results.json", "file for detailed results")
	flag.Parse()

	if _, err := uuid.Parse(*ticketTypeID); err != nil {
		log.Fatalf("❌ -ticket-type must be a ticket type UUID: %v", err)
	}

	suite := &RaceSuite{
		BaseURL:      *baseURL,
		TicketTypeID: *ticketTypeID,
		Client:       &http.Client{Timeout: 30 * time.Second},
	}

	fmt.Println("🧪 Starting reservation race check...")
	fmt.Println("=====================================")

	before, err := suite.availability()
	if err != nil {
		log.Fatalf("❌ Availability check failed: %v", err)
	}
	fmt.Printf("✅ Available before: %d\n", before)

	suite.race(*buyers)

	after, err := suite.availability()
	if err != nil {
		log.Fatalf("❌ Availability check failed: %v", err)
	}

	if !suite.report(before, after, *output) {
		os.Exit(1)
	}
	fmt.Println("\n🎉 Reservation race check complete!")
}

func (s *RaceSuite) race(buyers int) {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		start = make(chan struct{})
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(buyer int) {
			defer wg.Done()
			<-start
			result := s.reserve(buyer)
			mu.Lock()
			s.Results = append(s.Results, result)
			mu.Unlock()
		}(i)
	}
	close(start)
	wg.Wait()
}

func (s *RaceSuite) reserve(buyer int) ReserveResult {
	body, _ := json.Marshal(map[string]string{
		"ticket_type_id": s.TicketTypeID,
		"customer_email": fmt.Sprintf("racer-%d@example.com", buyer),
		"customer_name":  fmt.Sprintf("Race Buyer %d", buyer),
	})

	start := time.Now()
	resp, err := s.Client.Post(s.BaseURL+"/tickets/reserve", "application/json", bytes.NewReader(body))
	if err != nil {
		return ReserveResult{Buyer: buyer, ResponseTime: time.Since(start), Error: err.Error()}
	}
	defer resp.Body.Close()

	result := ReserveResult{
		Buyer:        buyer,
		StatusCode:   resp.StatusCode,
		ResponseTime: time.Since(start),
	}

	var parsed apiResponse
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &parsed); err != nil {
		result.Error = fmt.Sprintf("HTTP %d: unreadable body", resp.StatusCode)
		return result
	}

	if resp.StatusCode == http.StatusCreated {
		var ticket struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(parsed.Data, &ticket)
		result.TicketID = ticket.ID
		return result
	}

	var detail struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(parsed.Errors, &detail); err == nil {
		result.ErrorCode = detail.Code
	}
	return result
}

func (s *RaceSuite) availability() (int, error) {
	resp, err := s.Client.Get(s.BaseURL + "/tickets/availability/" + s.TicketTypeID)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, err
	}
	var availability struct {
		AvailableQuantity int `json:"available_quantity"`
	}
	if err := json.Unmarshal(parsed.Data, &availability); err != nil {
		return 0, err
	}
	return availability.AvailableQuantity, nil
}

// report prints the summary and returns false when more units were handed out
// than were available.
func (s *RaceSuite) report(before, after int, output string) bool {
	fmt.Println("\n📊 RESERVATION RACE REPORT")
	fmt.Println("==========================")

	reserved := 0
	codes := make(map[string]int)
	var totalTime time.Duration
	for _, result := range s.Results {
		totalTime += result.ResponseTime
		switch {
		case result.TicketID != "":
			reserved++
		case result.ErrorCode != "":
			codes[result.ErrorCode]++
		default:
			codes["TRANSPORT_ERROR"]++
		}
	}

	fmt.Printf("Buyers: %d\n", len(s.Results))
	fmt.Printf("Reserved: %d\n", reserved)
	for code, n := range codes {
		fmt.Printf("Rejected %s: %d\n", code, n)
	}
	if len(s.Results) > 0 {
		fmt.Printf("Average Response Time: %v\n", totalTime/time.Duration(len(s.Results)))
	}
	fmt.Printf("Available: %d -> %d\n", before, after)

	// The availability read may be served from a cache up to its TTL old, so
	// only the reservation count is judged.
	ok := reserved <= before
	if ok {
		fmt.Println("✅ No overselling detected")
	} else {
		fmt.Printf("❌ Oversold: %d reservations against %d units\n", reserved, before)
	}

	reportData, err := json.MarshalIndent(map[string]interface{}{
		"summary": map[string]interface{}{
			"buyers":           len(s.Results),
			"reserved":         reserved,
			"rejections":       codes,
			"available_before": before,
			"available_after":  after,
		},
		"results": s.Results,
	}, "", "  ")
	if err == nil {
		if err := os.WriteFile(output, reportData, 0o644); err != nil {
			log.Printf("Warning: could not write %s: %v", output, err)
		} else {
			fmt.Printf("\n💾 Detailed results saved to %s\n", output)
		}
	}

	return ok
}
