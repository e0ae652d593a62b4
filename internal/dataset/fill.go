package dataset

import "fmt"

// FillMissing applies the configured missing-value method in place.
// Grouping always follows series identity; the groupCols parameter is
// kept for request compatibility but any value other than the identity
// column is already collapsed into ItemID by canonicalization.
func FillMissing(ds *Dataset, method string, groupCols []string) error {
	switch method {
	case "", "none":
		return nil
	case "zero":
		for i := range ds.Records {
			if ds.Records[i].Missing {
				ds.Records[i].Target = 0
				ds.Records[i].Missing = false
			}
		}
		return nil
	case "mean":
		fillMean(ds)
		return nil
	case "ffill":
		fillDirectional(ds, true)
		return nil
	case "bfill":
		fillDirectional(ds, false)
		return nil
	default:
		return fmt.Errorf("unknown fill method %q", method)
	}
}

// fillMean replaces missing targets with their series' mean of observed
// values. Series with no observed value at all are left missing.
func fillMean(ds *Dataset) {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, rec := range ds.Records {
		if !rec.Missing {
			sums[rec.ItemID] += rec.Target
			counts[rec.ItemID]++
		}
	}

	for i := range ds.Records {
		rec := &ds.Records[i]
		if rec.Missing && counts[rec.ItemID] > 0 {
			rec.Target = sums[rec.ItemID] / float64(counts[rec.ItemID])
			rec.Missing = false
		}
	}
}

// fillDirectional carries observed values forward (or backward) within
// each series in timestamp order.
func fillDirectional(ds *Dataset, forward bool) {
	order, groups := ds.GroupByItem()

	filled := make([]Record, 0, len(ds.Records))
	for _, id := range order {
		g := groups[id]
		if forward {
			var last float64
			var has bool
			for i := range g {
				if g[i].Missing {
					if has {
						g[i].Target = last
						g[i].Missing = false
					}
				} else {
					last = g[i].Target
					has = true
				}
			}
		} else {
			var next float64
			var has bool
			for i := len(g) - 1; i >= 0; i-- {
				if g[i].Missing {
					if has {
						g[i].Target = next
						g[i].Missing = false
					}
				} else {
					next = g[i].Target
					has = true
				}
			}
		}
		filled = append(filled, g...)
	}

	ds.Records = filled
}
