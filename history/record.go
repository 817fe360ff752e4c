package history

import (
	"fmt"
	"maps"

	"github.com/mohae/deepcopy"
)

// Record is a plain field name to value mapping.
//
// Instances of tracked models and history rows are both exchanged as Records.
type Record map[string]any

// Valuer is implemented by host instances that can expose their current field values.
type Valuer interface {
	Values() Record
}

// Clone returns a deep copy of the record, nothing is shared with the receiver.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}

	clone := make(Record, len(r))
	for key, value := range r {
		clone[key] = deepcopy.Copy(value)
	}

	return clone
}

func cloneRecords(records []Record) []Record {
	clones := make([]Record, len(records))
	for i, record := range records {
		clones[i] = record.Clone()
	}

	return clones
}

// Pick returns a deep copy of the record restricted to the given field names.
// Names missing in the record are set to nil.
func (r Record) Pick(names []string) Record {
	picked := make(Record, len(names))
	for _, name := range names {
		picked[name] = deepcopy.Copy(r[name])
	}

	return picked
}

// Merge returns a shallow copy of the record with the given values layered on top.
func (r Record) Merge(values Record) Record {
	merged := make(Record, len(r)+len(values))
	maps.Copy(merged, r)
	maps.Copy(merged, values)

	return merged
}

// ToRecords normalizes a hook payload into an ordered sequence of records.
// A single instance is wrapped into a one element sequence.
func ToRecords(payload any) ([]Record, error) {
	switch p := payload.(type) {
	case nil:
		return []Record{}, nil
	case Record:
		return []Record{p}, nil
	case *Record:
		if p == nil {
			return []Record{}, nil
		}
		return []Record{*p}, nil
	case map[string]any:
		return []Record{p}, nil
	case []Record:
		return p, nil
	case []map[string]any:
		records := make([]Record, 0, len(p))
		for _, m := range p {
			records = append(records, m)
		}
		return records, nil
	case Valuer:
		return []Record{p.Values()}, nil
	case []Valuer:
		records := make([]Record, 0, len(p))
		for _, v := range p {
			records = append(records, v.Values())
		}
		return records, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedPayload, payload)
	}
}
