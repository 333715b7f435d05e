package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ahmadzakiakmal/ecommerce/client"
	"github.com/ahmadzakiakmal/ecommerce/repository"
	"github.com/ahmadzakiakmal/ecommerce/repository/models"
	"github.com/ahmadzakiakmal/ecommerce/shoperr"
	"github.com/google/uuid"
)

// Options shapes a load run
type Options struct {
	Workers  int
	Duration time.Duration
	// Stock is the stock of the product every worker buys
	Stock int64
	// Funds is credited to every buyer before the run
	Funds int64
}

type workflowResult struct {
	latency time.Duration
	err     error
}

// Stats aggregates the checkout workflows of a run
type Stats struct {
	Total      int64
	Succeeded  int64
	Failed     int64
	Elapsed    time.Duration
	MinLatency time.Duration
	MaxLatency time.Duration
	Failures   map[shoperr.Code]int64

	totalLatency time.Duration
}

func newStats() *Stats {
	return &Stats{Failures: make(map[shoperr.Code]int64)}
}

func (s *Stats) record(r workflowResult) {
	s.Total++
	if r.err != nil {
		s.Failed++
		s.Failures[shoperr.CodeOf(r.err)]++
		return
	}
	s.Succeeded++
	s.totalLatency += r.latency
	if s.MinLatency == 0 || r.latency < s.MinLatency {
		s.MinLatency = r.latency
	}
	if r.latency > s.MaxLatency {
		s.MaxLatency = r.latency
	}
}

// AvgLatency is the mean latency of the successful workflows
func (s *Stats) AvgLatency() time.Duration {
	if s.Succeeded == 0 {
		return 0
	}
	return s.totalLatency / time.Duration(s.Succeeded)
}

// TPS is the number of workflows per second, failed ones included
func (s *Stats) TPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Total) / s.Elapsed.Seconds()
}

// fixture is the seller and product shared by the workers
type fixture struct {
	runID     string
	sellerID  int64
	productID int64
}

func setup(ctx context.Context, c *client.Client, opts Options) (*fixture, error) {
	f := &fixture{runID: uuid.NewString()[:8]}

	var err error
	f.sellerID, err = c.Login(ctx, "loadtest-seller-"+f.runID, models.RoleSeller)
	if err != nil {
		return nil, fmt.Errorf("seller login: %w", err)
	}
	product, err := c.AddProduct(ctx, f.sellerID, repository.ProductInput{
		Name:        "loadtest-" + f.runID,
		UnitPrice:   1,
		Stock:       opts.Stock,
		Description: "load test product",
	})
	if err != nil {
		return nil, fmt.Errorf("add product: %w", err)
	}
	f.productID = product.ID
	return f, nil
}

// Run drives opts.Workers concurrent buyers, each looping add-to-cart and
// checkout until opts.Duration elapses
func Run(ctx context.Context, c *client.Client, opts Options) (*Stats, error) {
	f, err := setup(ctx, c, opts)
	if err != nil {
		return nil, err
	}

	buyers := make([]int64, opts.Workers)
	for i := range buyers {
		buyers[i], err = c.Login(ctx, fmt.Sprintf("loadtest-buyer-%s-%d", f.runID, i), models.RoleBuyer)
		if err != nil {
			return nil, fmt.Errorf("buyer %d login: %w", i, err)
		}
		if _, err := c.AdjustBalance(ctx, buyers[i], models.RoleBuyer, opts.Funds); err != nil {
			return nil, fmt.Errorf("fund buyer %d: %w", i, err)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	resultsChan := make(chan workflowResult, opts.Workers*10)
	var wg sync.WaitGroup
	for _, buyerID := range buyers {
		wg.Add(1)
		go worker(runCtx, c, f, buyerID, resultsChan, &wg)
	}

	stats := newStats()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for result := range resultsChan {
			stats.record(result)
		}
	}()

	start := time.Now()
	wg.Wait()
	stats.Elapsed = time.Since(start)
	close(resultsChan)
	<-done

	// best effort, the run is over either way
	for _, buyerID := range buyers {
		_ = c.ClearCart(ctx, buyerID)
		_ = c.Logout(ctx, buyerID, models.RoleBuyer)
	}
	_ = c.Logout(ctx, f.sellerID, models.RoleSeller)

	return stats, nil
}

func worker(ctx context.Context, c *client.Client, f *fixture, buyerID int64, resultsChan chan<- workflowResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for ctx.Err() == nil {
		start := time.Now()
		err := runWorkflow(ctx, c, f, buyerID)
		// cut short by the end of the run
		if ctx.Err() != nil {
			return
		}
		resultsChan <- workflowResult{latency: time.Since(start), err: err}
	}
}

func runWorkflow(ctx context.Context, c *client.Client, f *fixture, buyerID int64) error {
	// 1. Add to cart
	if _, err := c.AddToCart(ctx, buyerID, f.productID, 1); err != nil {
		return fmt.Errorf("add to cart: %w", err)
	}

	// 2. Checkout
	if _, err := c.Checkout(ctx, buyerID, "Load Test Street 1"); err != nil {
		// a failed checkout leaves the line behind
		_ = c.ClearCart(ctx, buyerID)
		return fmt.Errorf("checkout: %w", err)
	}
	return nil
}
