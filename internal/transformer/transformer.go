// Package transformer defines the record-shaping contract used by the record
// builder. A Transformer receives the records produced by the previous stage
// and returns the records for the next one; the first error aborts the chain
// so a record is never loaded half-transformed.
package transformer

import "loginetl/pkg/records"

type Transformer interface {
	Apply(in []records.Record) ([]records.Record, error)
}

// Func adapts a plain function to Transformer.
type Func func(in []records.Record) ([]records.Record, error)

func (f Func) Apply(in []records.Record) ([]records.Record, error) { return f(in) }

// Chain is an ordered list of transformers.
type Chain []Transformer

func (c Chain) Apply(in []records.Record) ([]records.Record, error) {
	out := in
	for _, t := range c {
		var err error
		if out, err = t.Apply(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
