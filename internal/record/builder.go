// Package record turns one raw queue body into the normalized rows the
// loader stages.
package record

import (
	"go.uber.org/zap"

	"loginetl/internal/event"
	"loginetl/internal/transformer"
	"loginetl/internal/transformer/builtin"
	"loginetl/pkg/records"
)

// Output column names that differ from the body fields.
const (
	ColumnMaskedIP       = "masked_ip"
	ColumnMaskedDeviceID = "masked_device_id"
)

// Columns lists the staging columns in insert order.
var Columns = []string{
	event.FieldUserID,
	event.FieldDeviceType,
	ColumnMaskedIP,
	ColumnMaskedDeviceID,
	event.FieldLocale,
	event.FieldAppVersion,
}

// Builder applies the masking, version coercion, renaming and sentinel
// normalization steps to decoded events.
type Builder struct {
	chain transformer.Chain
	nulls builtin.NullSentinels
	log   *zap.Logger
}

// NewBuilder returns a Builder that normalizes with the given sentinel
// tokens, or builtin.DefaultSentinels when none are given.
func NewBuilder(sentinels ...string) *Builder {
	nulls := builtin.NewNullSentinels(sentinels...)
	return &Builder{nulls: nulls, log: zap.NewNop(), chain: transformer.Chain{
		builtin.Mask{Field: event.FieldIP, Fn: builtin.MaskIP},
		builtin.Mask{Field: event.FieldDeviceID, Fn: builtin.MaskDeviceID},
		builtin.CoerceVersionField{Field: event.FieldAppVersion},
		builtin.Rename{
			event.FieldIP:       ColumnMaskedIP,
			event.FieldDeviceID: ColumnMaskedDeviceID,
		},
		nulls,
	}}
}

// WithLogger sets the logger that receives data-quality warnings.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	if log != nil {
		b.log = log
	}
	return b
}

// Build decodes body and returns exactly one normalized record. Errors
// match etlerr.MalformedPayload or etlerr.InvalidVersionFormat; no partial
// record is ever returned.
func (b *Builder) Build(body []byte) ([]records.Record, error) {
	ev, err := event.Decode(body)
	if err != nil {
		return nil, err
	}
	for _, note := range ev.Notes(b.nulls.IsSentinel) {
		b.log.Warn("suspicious field value", zap.String("note", note))
	}
	return b.chain.Apply([]records.Record{ev.Fields()})
}
