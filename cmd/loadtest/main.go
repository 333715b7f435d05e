package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ahmadzakiakmal/ecommerce/client"
	"github.com/ahmadzakiakmal/ecommerce/shoperr"
	"github.com/spf13/pflag"
)

func main() {
	baseURL := pflag.String("url", "http://127.0.0.1:8080", "Shop base URL")
	workers := pflag.Int("workers", 10, "Number of concurrent buyers")
	duration := pflag.Duration("duration", 30*time.Second, "Test duration")
	stock := pflag.Int64("stock", 1_000_000, "Stock of the product under load")
	recordsDir := pflag.String("records", "./records", "Directory receiving the CSV record")
	pflag.Parse()

	if *workers < 1 {
		fmt.Fprintln(os.Stderr, "--workers must be at least 1")
		os.Exit(2)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(*recordsDir, fmt.Sprintf("checkout_%s_w%d_d%s.csv", timestamp, *workers, *duration))

	fmt.Println("========================================")
	fmt.Println("   CHECKOUT LOAD TEST")
	fmt.Println("========================================")
	fmt.Printf("Shop URL:   %s\n", *baseURL)
	fmt.Printf("Workers:    %d\n", *workers)
	fmt.Printf("Duration:   %s\n", *duration)
	fmt.Printf("Output:     %s\n", filename)
	fmt.Println("========================================")

	c := client.NewClient(*baseURL, 30*time.Second)
	ctx := context.Background()
	if _, err := c.HealthCheck(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Shop not ready: %v\n", err)
		os.Exit(1)
	}

	stats, err := Run(ctx, c, Options{
		Workers:  *workers,
		Duration: *duration,
		Stock:    *stock,
		Funds:    *stock,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Load test failed: %v\n", err)
		os.Exit(1)
	}

	printStats(stats)

	if err := writeRecord(filename, *workers, *duration, stats); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing record: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nResults saved to: %s\n", filename)
}

func printStats(stats *Stats) {
	fmt.Println("\n========================================")
	fmt.Println("   LOAD TEST RESULTS")
	fmt.Println("========================================")
	fmt.Printf("Total Checkouts:   %d\n", stats.Total)
	if stats.Total > 0 {
		fmt.Printf("Successful:        %d (%.2f%%)\n", stats.Succeeded, float64(stats.Succeeded)/float64(stats.Total)*100)
		fmt.Printf("Failed:            %d (%.2f%%)\n", stats.Failed, float64(stats.Failed)/float64(stats.Total)*100)
	}
	fmt.Printf("Duration:          %v\n", stats.Elapsed)
	fmt.Printf("Throughput (TPS):  %.2f\n", stats.TPS())
	fmt.Printf("Avg Latency:       %v\n", stats.AvgLatency())
	fmt.Printf("Min Latency:       %v\n", stats.MinLatency)
	fmt.Printf("Max Latency:       %v\n", stats.MaxLatency)

	codes := make([]shoperr.Code, 0, len(stats.Failures))
	for code := range stats.Failures {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	for _, code := range codes {
		fmt.Printf("  %-26s %d\n", code, stats.Failures[code])
	}
	fmt.Println("========================================")
}

func writeRecord(filename string, workers int, duration time.Duration, stats *Stats) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Write([]string{
		"Workers", "Duration_s",
		"Total_Checkouts", "Successful", "Failed",
		"TPS", "Avg_Latency_ms", "Min_Latency_ms", "Max_Latency_ms",
	})
	writer.Write([]string{
		fmt.Sprintf("%d", workers),
		fmt.Sprintf("%.0f", duration.Seconds()),
		fmt.Sprintf("%d", stats.Total),
		fmt.Sprintf("%d", stats.Succeeded),
		fmt.Sprintf("%d", stats.Failed),
		fmt.Sprintf("%.2f", stats.TPS()),
		fmt.Sprintf("%.2f", float64(stats.AvgLatency().Microseconds())/1000),
		fmt.Sprintf("%.2f", float64(stats.MinLatency.Microseconds())/1000),
		fmt.Sprintf("%.2f", float64(stats.MaxLatency.Microseconds())/1000),
	})
	writer.Flush()
	return errors.Join(writer.Error(), file.Sync())
}
