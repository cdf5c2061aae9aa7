package rules

import (
	"exportwatch/internal/mover"
	"exportwatch/internal/yearparser"
)

// DefaultRules returns the built-in export catalog in evaluation order.
// Fixed-marker exports come first, then the year-bearing time-series exports.
// Year-bearing rules match on the export marker alone; the date groups are
// checked by the year extractor, so a marker without a usable date fails
// extraction instead of falling through as unmatched.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "SCRPA_CAD",
			Fragment:    "SCRPA_CAD_Export",
			Destination: "_CAD/SCRPA",
			Extensions:  []string{"xlsx"},
			Overwrite:   mover.TimestampPrefix,
			OutputName:  "{timestamp}_SCRPA_CAD{ext}",
		},
		{
			Name:        "SCRPA_RMS",
			Fragment:    "SCRPA_RMS_Export",
			Destination: "_RMS/SCRPA",
			Extensions:  []string{"xlsx"},
			Overwrite:   mover.TimestampPrefix,
			OutputName:  "{timestamp}_SCRPA_RMS{ext}",
		},
		{
			Name:        "OTActivity",
			Fragment:    "OTActivity",
			Destination: "_POSS_EXPORT/OVERTIME_EXPORT",
			Extensions:  []string{"xlsx"},
			Overwrite:   mover.TimestampPrefix,
		},
		{
			Name:        "TimeOffActivity",
			Fragment:    "TimeOffActivity",
			Destination: "_POSS_EXPORT/TIME_OFF_EXPORT",
			Extensions:  []string{"xlsx"},
			Overwrite:   mover.TimestampPrefix,
		},
		{
			Name:        "E_Ticket",
			Fragment:    "e_ticket",
			Destination: "_Summons/E_Ticket",
			Extensions:  []string{"csv", "xlsx", "xls"},
			Overwrite:   mover.TimestampPrefix,
		},
		{
			Name:        "Backtrace_Arrests",
			Fragment:    "Backtracet_Arrests_Export",
			Destination: "_BACKTRACE_ARRESTS",
			Extensions:  []string{"xlsx"},
			Overwrite:   mover.TimestampPrefix,
		},
		{
			Name:        "Vehicle_Pursuit",
			Fragment:    "vehicle-pursuit-reports",
			Destination: "Benchmark/vehicle_pursuit",
			Extensions:  []string{"csv"},
			Overwrite:   mover.OverwriteReplace,
		},
		{
			Name:         "Monthly_CAD",
			Fragment:     "Monthly_CAD",
			Destination:  "_CAD/monthly_export",
			YearStrategy: yearparser.FilenamePrefix,
			Extensions:   []string{"xlsx"},
			Overwrite:    mover.TimestampPrefix,
		},
		{
			Name:         "Monthly_RMS",
			Fragment:     "Monthly_RMS",
			Destination:  "_RMS/monthly_export",
			YearStrategy: yearparser.FilenamePrefix,
			Extensions:   []string{"xlsx"},
			Overwrite:    mover.TimestampPrefix,
		},
		{
			Name:         "Rolling13_CAD",
			Fragment:     "Rolling13_CAD",
			Destination:  "_CAD/rolling_13",
			YearStrategy: yearparser.RangeEnd,
			Extensions:   []string{"xlsx"},
			Overwrite:    mover.TimestampPrefix,
		},
		{
			Name:         "Rolling13_RMS",
			Fragment:     "Rolling13_RMS",
			Destination:  "_RMS/rolling_13",
			YearStrategy: yearparser.RangeEnd,
			Extensions:   []string{"xlsx"},
			Overwrite:    mover.TimestampPrefix,
		},
		{
			Name:         "ResponseTime_CAD",
			Fragment:     "ResponseTime_CAD",
			Destination:  "_CAD/response_time",
			YearStrategy: yearparser.RangeEnd,
			Extensions:   []string{"xlsx"},
			Overwrite:    mover.TimestampPrefix,
		},
		{
			Name:         "ResponseTime_RMS",
			Fragment:     "ResponseTime_RMS",
			Destination:  "_RMS/response_time",
			YearStrategy: yearparser.RangeEnd,
			Extensions:   []string{"xlsx"},
			Overwrite:    mover.TimestampPrefix,
		},
		{
			Name:         "LawsoftArrest",
			Fragment:     "LAWSOFT_ARREST",
			Destination:  "_Arrest",
			YearStrategy: yearparser.FilenamePrefix,
			Extensions:   []string{"xlsx", "csv"},
			Overwrite:    mover.TimestampPrefix,
		},
	}
}

// Default returns a table holding DefaultRules.
func Default() *Table {
	t, err := NewTable(DefaultRules()...)
	if err != nil {
		panic("rules: invalid default catalog: " + err.Error())
	}
	return t
}
