package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/datacite/akita/internal/model"
)

// Claimer claims one work
type Claimer interface {
	ClaimWork(ctx context.Context, doi string) (model.Claim, error)
}

// ClaimJob claims a single DOI
type ClaimJob struct {
	DOI     string
	Claimer Claimer
}

// Execute executes the claim job
func (j *ClaimJob) Execute(ctx context.Context) Result {
	start := time.Now()
	claim, err := j.Claimer.ClaimWork(ctx, j.DOI)
	return &ClaimResult{
		DOI:      j.DOI,
		Claim:    claim,
		Duration: time.Since(start),
		Error:    err,
	}
}

// ClaimResult is the outcome of one claim job
type ClaimResult struct {
	DOI      string
	Claim    model.Claim
	Duration time.Duration
	Error    error
}

// GetError returns the error from the claim result
func (r *ClaimResult) GetError() error {
	return r.Error
}

// BatchProcessor claims many works concurrently
type BatchProcessor struct {
	claimer     Claimer
	concurrency int
	progress    func(*ClaimResult)
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(claimer Claimer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		claimer:     claimer,
		concurrency: concurrency,
	}
}

// OnResult registers fn to be called for each result as it arrives
func (b *BatchProcessor) OnResult(fn func(*ClaimResult)) {
	b.progress = fn
}

// ProcessDOIs claims every DOI and returns the results in input order
func (b *BatchProcessor) ProcessDOIs(ctx context.Context, dois []string) []*ClaimResult {
	if len(dois) == 0 {
		return []*ClaimResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()
	defer pool.Shutdown()

	go func() {
		for _, doi := range dois {
			if !pool.Submit(&ClaimJob{DOI: doi, Claimer: b.claimer}) {
				break
			}
		}
		pool.Close()
	}()

	byDOI := make(map[string]*ClaimResult, len(dois))
	for result := range pool.Results() {
		r := result.(*ClaimResult)
		byDOI[r.DOI] = r
		if b.progress != nil {
			b.progress(r)
		}
	}

	results := make([]*ClaimResult, 0, len(dois))
	for _, doi := range dois {
		r, ok := byDOI[doi]
		if !ok {
			cause := context.Cause(ctx)
			if cause == nil {
				cause = context.Canceled
			}
			r = &ClaimResult{DOI: doi, Error: fmt.Errorf("not processed: %w", cause)}
		}
		results = append(results, r)
	}
	return results
}

// ProcessFile reads DOIs from a file and claims them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ClaimResult, error) {
	dois, err := ReadDOIsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read DOIs: %w", err)
	}

	return b.ProcessDOIs(ctx, dois), nil
}

// ReadDOIsFromFile reads DOIs from a file, one per line. Blank lines and
// lines starting with # are skipped, doi.org URL prefixes are stripped and
// duplicates are dropped case-insensitively.
func ReadDOIsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var dois []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		doi := NormalizeDOI(line)
		key := strings.ToLower(doi)
		if !seen[key] {
			seen[key] = true
			dois = append(dois, doi)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return dois, nil
}

// NormalizeDOI strips resolver prefixes from a DOI
func NormalizeDOI(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			return s[len(prefix):]
		}
	}
	return s
}
