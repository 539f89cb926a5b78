package worker

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/incidentlens/internal/model"
	"github.com/ppiankov/incidentlens/internal/pipeline"
)

// Runner runs a single filter request
type Runner interface {
	Filter(ctx context.Context, req model.FilterRequest) (*pipeline.FilterResponse, error)
}

// NamedRequest is one entry of a batch file
type NamedRequest struct {
	Name      string          `yaml:"name"`
	Filters   model.FilterSet `yaml:"filters"`
	Threshold *float64        `yaml:"threshold,omitempty"`
	Limit     *int            `yaml:"limit,omitempty"`
}

// BatchFile is the on-disk batch format
type BatchFile struct {
	Requests []NamedRequest `yaml:"requests"`
}

// FilterResult is the outcome of one named request
type FilterResult struct {
	Index    int
	Name     string
	Response *pipeline.FilterResponse
	Error    error
}

// filterTask runs one named request. Batch runs never call the language
// model, so analysis is always disabled.
func filterTask(runner Runner, index int, req NamedRequest) Task[*FilterResult] {
	return func(ctx context.Context) *FilterResult {
		resp, err := runner.Filter(ctx, model.FilterRequest{
			Filters:   req.Filters,
			Threshold: req.Threshold,
			Limit:     req.Limit,
			Analysis:  []model.Analysis{},
		})
		return &FilterResult{Index: index, Name: req.Name, Response: resp, Error: err}
	}
}

// BatchProcessor runs many filter requests concurrently
type BatchProcessor struct {
	runner      Runner
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(runner Runner, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		runner:      runner,
		concurrency: concurrency,
	}
}

// ProcessRequests runs every request and returns the results in input order
func (b *BatchProcessor) ProcessRequests(ctx context.Context, requests []NamedRequest) []*FilterResult {
	if len(requests) == 0 {
		return []*FilterResult{}
	}

	pool := NewPool[*FilterResult](ctx, b.concurrency)
	pool.Start()

	for i, req := range requests {
		if _, ok := pool.Submit(filterTask(b.runner, i, req)); !ok {
			break
		}
	}

	results := pool.Wait()
	for len(results) < len(requests) {
		results = append(results, nil)
	}

	// requests dropped by cancellation still get a result
	for i, r := range results {
		if r != nil {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		results[i] = &FilterResult{Index: i, Name: requests[i].Name, Error: err}
	}
	return results
}

// ProcessFile reads requests from a YAML file and runs them
func (b *BatchProcessor) ProcessFile(ctx context.Context, fs afero.Fs, filePath string) ([]*FilterResult, error) {
	requests, err := ReadRequestsFromFile(fs, filePath)
	if err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}

	return b.ProcessRequests(ctx, requests), nil
}

// ReadRequestsFromFile parses a batch file. Unnamed requests are named
// by position.
func ReadRequestsFromFile(fs afero.Fs, filePath string) ([]NamedRequest, error) {
	data, err := afero.ReadFile(fs, filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	var file BatchFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}

	for i := range file.Requests {
		if file.Requests[i].Name == "" {
			file.Requests[i].Name = fmt.Sprintf("request-%d", i+1)
		}
	}
	return file.Requests, nil
}
