// Benchmark tool for the shopcore product listing.
//
// Usage:
//
//	go run cmd/benchmark/main.go -csv /path/to/catalogue.csv -url http://localhost:8080
//
// This tool:
//  1. Reads a product catalogue CSV (id, name, price, manufacturer, category)
//  2. Imports every product through the admin API, visible in one sales channel
//  3. Requests the listing of each category concurrently, page by page
//  4. Compares listing totals with the imported catalogue and reports latency
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// CatalogueRow represents a row of the catalogue CSV.
type CatalogueRow struct {
	ID           string
	ParentID     string
	Name         string
	Price        float64
	Manufacturer string
	Category     string
}

// ProductRequest is the shopcore admin API product format.
type ProductRequest struct {
	ID             string       `json:"id"`
	ParentID       *string      `json:"parentId,omitempty"`
	ProductNumber  string       `json:"productNumber"`
	Name           string       `json:"name"`
	Active         bool         `json:"active"`
	Price          float64      `json:"price"`
	ManufacturerID string       `json:"manufacturerId,omitempty"`
	CategoryIDs    []string     `json:"categoryIds"`
	Visibilities   []Visibility `json:"visibilities"`
}

type Visibility struct {
	SalesChannelID string `json:"salesChannelId"`
	Visibility     int    `json:"visibility"`
}

// ListingResponse is the part of the listing result the benchmark reads.
type ListingResponse struct {
	Total    int `json:"total"`
	Elements []struct {
		ID string `json:"id"`
	} `json:"elements"`
}

// Job is one listing page request.
type Job struct {
	Category string
	Page     int
	Expected int
}

// Metrics tracks benchmark results
type Metrics struct {
	Imported     int64
	ImportErrors int64

	Requests       int64
	RequestErrors  int64
	TotalMatches   int64 // listing total equals the imported count
	TotalMismatch  int64
	ProcessingTime int64 // milliseconds
	MaxLatency     int64 // milliseconds
}

func main() {
	csvPath := flag.String("csv", "", "Path to catalogue CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "shopcore base URL")
	salesChannel := flag.String("sales-channel", "benchmark", "Sales channel the products are visible in")
	limit := flag.Int("limit", 10000, "Maximum products to import (0 = all)")
	pageSize := flag.Int("page-size", 24, "Listing page size")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	skipImport := flag.Bool("skip-import", false, "Assume the catalogue is already imported")
	verbose := flag.Bool("verbose", false, "Print each listing result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/catalogue.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("SHOPCORE BENCHMARK - Product Listing")
	fmt.Printf("\nCSV File:      %s\n", *csvPath)
	fmt.Printf("shopcore URL:  %s\n", *baseURL)
	fmt.Printf("Sales Channel: %s\n", *salesChannel)
	fmt.Printf("Workers:       %d\n", *workers)
	fmt.Printf("Limit:         %d\n", *limit)
	fmt.Printf("Page Size:     %d\n", *pageSize)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: shopcore not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure shopcore is running:")
		fmt.Println("  go run cmd/shopcore/main.go")
		os.Exit(1)
	}
	fmt.Println("shopcore is healthy")

	fmt.Printf("\nReading catalogue from %s...\n", *csvPath)
	rows, err := readCatalogueCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d products\n", len(rows))

	metrics := &Metrics{}
	client := &http.Client{Timeout: 10 * time.Second}

	if !*skipImport {
		fmt.Printf("\nImporting with %d workers...\n", *workers)
		importCatalogue(client, *baseURL, *salesChannel, rows, *workers, metrics)
		fmt.Printf("Imported %d products (%d errors)\n", metrics.Imported, metrics.ImportErrors)
	}

	jobs := listingJobs(rows, *pageSize)
	fmt.Printf("\nRunning %d listing requests with %d workers...\n", len(jobs), *workers)
	startTime := time.Now()
	runListings(client, *baseURL, *salesChannel, *pageSize, jobs, *workers, *verbose, metrics)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readCatalogueCSV(path string, limit int) ([]CatalogueRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{"id", "name", "price", "category"} {
		if _, ok := colIndex[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	column := func(record []string, name string) string {
		i, ok := colIndex[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []CatalogueRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		price, _ := strconv.ParseFloat(column(record, "price"), 64)
		row := CatalogueRow{
			ID:           column(record, "id"),
			ParentID:     column(record, "parent"),
			Name:         column(record, "name"),
			Price:        price,
			Manufacturer: column(record, "manufacturer"),
			Category:     column(record, "category"),
		}
		if row.ID == "" || row.Name == "" {
			continue
		}
		rows = append(rows, row)

		if limit > 0 && len(rows) >= limit {
			break
		}
	}

	return rows, nil
}

func importCatalogue(client *http.Client, baseURL, salesChannel string, rows []CatalogueRow, numWorkers int, metrics *Metrics) {
	// Parents first, variants reference them.
	var parents, variants []CatalogueRow
	for _, row := range rows {
		if row.ParentID == "" {
			parents = append(parents, row)
		} else {
			variants = append(variants, row)
		}
	}
	importRows(client, baseURL, salesChannel, parents, numWorkers, metrics)
	importRows(client, baseURL, salesChannel, variants, numWorkers, metrics)
}

func importRows(client *http.Client, baseURL, salesChannel string, rows []CatalogueRow, numWorkers int, metrics *Metrics) {
	work := make(chan CatalogueRow, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range work {
				if err := importProduct(client, baseURL, salesChannel, row); err != nil {
					atomic.AddInt64(&metrics.ImportErrors, 1)
					fmt.Printf("ERROR: import %s -> %v\n", row.ID, err)
					continue
				}
				atomic.AddInt64(&metrics.Imported, 1)
			}
		}()
	}

	for _, row := range rows {
		work <- row
	}
	close(work)

	wg.Wait()
}

func importProduct(client *http.Client, baseURL, salesChannel string, row CatalogueRow) error {
	req := ProductRequest{
		ID:             row.ID,
		ProductNumber:  row.ID,
		Name:           row.Name,
		Active:         true,
		Price:          row.Price,
		ManufacturerID: row.Manufacturer,
		CategoryIDs:    []string{row.Category},
		Visibilities:   []Visibility{{SalesChannelID: salesChannel, Visibility: 30}},
	}
	if row.ParentID != "" {
		req.ParentID = &row.ParentID
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/api/product", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// listingJobs requests every page of every category once.
func listingJobs(rows []CatalogueRow, pageSize int) []Job {
	perCategory := make(map[string]int)
	for _, row := range rows {
		perCategory[row.Category]++
	}

	categories := make([]string, 0, len(perCategory))
	for c := range perCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var jobs []Job
	for _, c := range categories {
		pages := (perCategory[c] + pageSize - 1) / pageSize
		for p := 1; p <= pages; p++ {
			jobs = append(jobs, Job{Category: c, Page: p, Expected: perCategory[c]})
		}
	}
	return jobs
}

func runListings(client *http.Client, baseURL, salesChannel string, pageSize int, jobs []Job, numWorkers int, verbose bool, metrics *Metrics) {
	work := make(chan Job, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range work {
				start := time.Now()
				result, err := loadListing(client, baseURL, salesChannel, pageSize, job)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTime, elapsed)
				atomic.AddInt64(&metrics.Requests, 1)
				for {
					cur := atomic.LoadInt64(&metrics.MaxLatency)
					if elapsed <= cur || atomic.CompareAndSwapInt64(&metrics.MaxLatency, cur, elapsed) {
						break
					}
				}

				if err != nil {
					atomic.AddInt64(&metrics.RequestErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s page %d -> %v\n", job.Category, job.Page, err)
					}
					continue
				}

				ok := result.Total == job.Expected
				if ok {
					atomic.AddInt64(&metrics.TotalMatches, 1)
				} else {
					atomic.AddInt64(&metrics.TotalMismatch, 1)
				}

				if verbose {
					status := "ok"
					if !ok {
						status = "MISMATCH"
					}
					fmt.Printf("%-8s %-20s | page %3d | %3d items | total %5d (expected %5d) | %4d ms\n",
						status, job.Category, job.Page, len(result.Elements), result.Total, job.Expected, elapsed)
				}
			}
		}()
	}

	for _, job := range jobs {
		work <- job
	}
	close(work)

	wg.Wait()
}

func loadListing(client *http.Client, baseURL, salesChannel string, pageSize int, job Job) (*ListingResponse, error) {
	body, err := json.Marshal(map[string]any{"limit": pageSize, "p": job.Page})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/store-api/product-listing/"+job.Category, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("sw-access-key", salesChannel)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ListingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\nBENCHMARK RESULTS")

	fmt.Printf("\nIMPORT\n")
	fmt.Printf("   Imported:         %d\n", m.Imported)
	fmt.Printf("   Errors:           %d\n", m.ImportErrors)

	fmt.Printf("\nLISTING\n")
	fmt.Printf("   Requests:         %d\n", m.Requests)
	fmt.Printf("   Errors:           %d\n", m.RequestErrors)
	fmt.Printf("   Totals matching:  %d\n", m.TotalMatches)
	fmt.Printf("   Totals off:       %d\n", m.TotalMismatch)

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.Requests > 0 {
		avgMs := float64(m.ProcessingTime) / float64(m.Requests)
		rps := float64(m.Requests) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Max Latency:      %d ms\n", m.MaxLatency)
		fmt.Printf("   Throughput:       %.2f req/sec\n", rps)
	}

	fmt.Println()
	if m.TotalMismatch > 0 {
		fmt.Println("   Listing totals differ from the imported catalogue.")
		fmt.Println("   Products already present in the sales channel are counted too.")
	}
}
