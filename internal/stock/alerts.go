package stock

// AlertBucket classifies an item against its reorder threshold.
type AlertBucket string

const (
	BucketCritical AlertBucket = "critical"
	BucketOK       AlertBucket = "ok"
	BucketNoAlert  AlertBucket = "no_alert"
)

// Classification is the alert outcome for one item. StockPercentage is
// informational and may exceed 100.
type Classification struct {
	Bucket          AlertBucket `json:"bucket"`
	NeedsRestock    bool        `json:"needs_restock"`
	StockPercentage float64     `json:"stock_percentage"`
}

// Classify places a stock figure into exactly one bucket. The threshold is inclusive.
func Classify(current, threshold float64) Classification {
	if threshold <= 0 {
		return Classification{Bucket: BucketNoAlert}
	}
	c := Classification{StockPercentage: current / threshold * 100}
	if current <= threshold+epsilon {
		c.Bucket = BucketCritical
		c.NeedsRestock = true
	} else {
		c.Bucket = BucketOK
	}
	return c
}

// AlertEntry is a classified item in the alerts listing.
type AlertEntry struct {
	ItemStock
}

// Alerts partitions the catalog by bucket.
type Alerts struct {
	Critical []AlertEntry `json:"critical"`
	OK       []AlertEntry `json:"ok"`
	NoAlert  []AlertEntry `json:"no_alert"`
}

// Count returns the number of classified items.
func (a Alerts) Count() int {
	return len(a.Critical) + len(a.OK) + len(a.NoAlert)
}

// BuildAlerts aggregates and classifies every item. Input order is kept within each bucket.
func BuildAlerts(rows []ItemTotals) (Alerts, error) {
	out := Alerts{Critical: []AlertEntry{}, OK: []AlertEntry{}, NoAlert: []AlertEntry{}}
	for _, row := range rows {
		detail, err := detailFor(row)
		if err != nil {
			return Alerts{}, err
		}
		entry := AlertEntry{ItemStock: detail}
		switch detail.Bucket {
		case BucketCritical:
			out.Critical = append(out.Critical, entry)
		case BucketOK:
			out.OK = append(out.OK, entry)
		default:
			out.NoAlert = append(out.NoAlert, entry)
		}
	}
	return out, nil
}

func detailFor(row ItemTotals) (ItemStock, error) {
	level, err := Aggregate(row.Item, row.Totals)
	if err != nil {
		return ItemStock{}, itemErr(row.Item.ID, err)
	}
	return ItemStock{
		Item:           row.Item,
		Level:          level,
		Classification: Classify(level.CurrentStock, row.Item.ReorderThreshold),
	}, nil
}
