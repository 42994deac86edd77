// Package atomicdb owns the atomic-map catalog: one SQLite row per
// (observation, wafer, frequency-channel) unit, built from per-observation
// metadata side-car files and queried by the filter driver.
package atomicdb

import "strconv"

// ColumnType is the declared SQLite affinity of a catalog column.
type ColumnType string

const (
	TypeText    ColumnType = "TEXT"
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
)

// Column is one declared field of the atomic table.
type Column struct {
	Name string
	Type ColumnType
}

// Schema lists the atomic table columns in declaration order. Every side-car
// file must provide every one of these keys.
var Schema = []Column{
	{"obs_id", TypeText},
	{"telescope", TypeText},
	{"freq_channel", TypeText},
	{"wafer", TypeText},
	{"ctime", TypeInteger},
	{"split_label", TypeText},
	{"split_detail", TypeText},
	{"prefix_path", TypeText},
	{"elevation", TypeReal},
	{"azimuth", TypeReal},
	{"RA_ref_start", TypeReal},
	{"RA_ref_stop", TypeReal},
	{"pwv", TypeReal},
	{"total_weight_qu", TypeReal},
	{"median_weight_qu", TypeReal},
	{"mean_weight_qu", TypeReal},
}

// Record is one catalog row, typed per the declared schema.
type Record struct {
	ObsID          string
	Telescope      string
	FreqChannel    string
	Wafer          string
	Ctime          int64
	SplitLabel     string
	SplitDetail    string
	PrefixPath     string
	Elevation      float64
	Azimuth        float64
	RARefStart     float64
	RARefStop      float64
	PWV            float64
	TotalWeightQU  float64
	MedianWeightQU float64
	MeanWeightQU   float64
}

// values returns the record fields in schema declaration order.
func (r *Record) values() []any {
	return []any{
		r.ObsID, r.Telescope, r.FreqChannel, r.Wafer,
		r.Ctime, r.SplitLabel, r.SplitDetail, r.PrefixPath,
		r.Elevation, r.Azimuth, r.RARefStart, r.RARefStop,
		r.PWV, r.TotalWeightQU, r.MedianWeightQU, r.MeanWeightQU,
	}
}

// fields returns scan destinations in schema declaration order.
func (r *Record) fields() []any {
	return []any{
		&r.ObsID, &r.Telescope, &r.FreqChannel, &r.Wafer,
		&r.Ctime, &r.SplitLabel, &r.SplitDetail, &r.PrefixPath,
		&r.Elevation, &r.Azimuth, &r.RARefStart, &r.RARefStop,
		&r.PWV, &r.TotalWeightQU, &r.MedianWeightQU, &r.MeanWeightQU,
	}
}

// Strings renders the record fields in schema declaration order, for
// tabular output.
func (r *Record) Strings() []string {
	out := make([]string, len(Schema))
	for i, v := range r.values() {
		switch t := v.(type) {
		case string:
			out[i] = t
		case int64:
			out[i] = strconv.FormatInt(t, 10)
		case float64:
			out[i] = strconv.FormatFloat(t, 'g', -1, 64)
		}
	}
	return out
}

// set assigns a coerced side-car value to the field declared at index i.
func (r *Record) set(i int, v any) {
	switch f := r.fields()[i].(type) {
	case *string:
		*f = v.(string)
	case *int64:
		*f = v.(int64)
	case *float64:
		*f = v.(float64)
	}
}
