package core

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pipeline parses, filters and expands a collection of raw records.
type Pipeline struct {
	concurrency int
}

// NewPipeline creates a pipeline that parses at most concurrency records at
// once. Zero or negative values use GOMAXPROCS.
func NewPipeline(concurrency int) *Pipeline {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return &Pipeline{concurrency: concurrency}
}

// Run returns the phonebook rows for records, in input order.
func (p *Pipeline) Run(ctx context.Context, records []RawRecord) ([]Row, error) {
	res, err := p.Transform(ctx, records)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// Transform is Run with counts of what was kept and dropped.
//
// Every record is parsed before any is filtered. If any record fails, the
// ParseError of the lowest failing index is returned and no rows are produced.
func (p *Pipeline) Transform(ctx context.Context, records []RawRecord) (Result, error) {
	contacts, err := p.parseAll(ctx, records)
	if err != nil {
		return Result{}, err
	}

	res := Result{Records: len(records)}
	for _, c := range contacts {
		if !IsIndividual(c) {
			res.Groups++
			continue
		}
		res.Contacts++
		res.Rows = append(res.Rows, Expand(c)...)
	}
	return res, nil
}

// parseAll dispatches one task per record and joins them in index order.
func (p *Pipeline) parseAll(ctx context.Context, records []RawRecord) ([]Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contacts := make([]Contact, len(records))
	failures := make([]error, len(records))

	// A failure does not cancel siblings, so the lowest failing index is
	// always found.
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, rec := range records {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := parse(rec.Data)
			if err != nil {
				failures[i] = &ParseError{Index: i, Path: rec.Path, Err: err}
				return failures[i]
			}
			contacts[i] = c
			return nil
		})
	}
	waitErr := g.Wait()

	for _, err := range failures {
		if err != nil {
			return nil, err
		}
	}
	if waitErr != nil {
		return nil, waitErr
	}
	return contacts, nil
}
