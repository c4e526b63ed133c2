package wordstat

import "time"

// Period selects the bucketing of a dynamics series.
type Period string

// Period values accepted by the dynamics endpoint.
const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Device values accepted by the topRequests and dynamics endpoints.
const (
	DeviceAll     = "all"
	DeviceDesktop = "desktop"
	DevicePhone   = "phone"
	DeviceTablet  = "tablet"
)

// DateLayout is the wire format for all Wordstat dates.
const DateLayout = "2006-01-02"

// RegionNode is one node of the region tree returned by getRegionsTree.
// A node carries a region iff Value is present; children are traversed
// regardless.
type RegionNode struct {
	Value    *int64       `json:"value,omitempty"`
	Label    string       `json:"label,omitempty"`
	Children []RegionNode `json:"children,omitempty"`
}

// Region is one flattened entry of the region catalog.
type Region struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// TopItem is one related phrase with its impression count.
type TopItem struct {
	Phrase string `json:"phrase"`
	Count  int64  `json:"count"`
}

// TopResult is the parsed body of a topRequests response.
type TopResult struct {
	TotalCount  int64     `json:"totalCount"`
	TopRequests []TopItem `json:"topRequests"`
}

// DynamicsPoint is one time bucket of a dynamics response. Date keeps the
// wire format; parsing happens at ingestion.
type DynamicsPoint struct {
	Date  string  `json:"date"`
	Count int64   `json:"count"`
	Share float64 `json:"share"`
}

// DynamicsResult is the parsed body of a dynamics response.
type DynamicsResult struct {
	Dynamics []DynamicsPoint `json:"dynamics"`
}

// DynamicsQuery captures everything needed for one dynamics call.
// ToDate, Regions and Devices are optional and omitted from the request
// payload when empty.
type DynamicsQuery struct {
	Phrase   string   `json:"phrase"`
	Period   Period   `json:"period"`
	FromDate string   `json:"fromDate"`
	ToDate   string   `json:"toDate,omitempty"`
	Regions  []int64  `json:"regions,omitempty"`
	Devices  []string `json:"devices,omitempty"`
}

// TopOptions are the shared request parameters of a topRequests batch.
type TopOptions struct {
	Regions []int64
	Devices []string
}

// DynamicsOptions are the shared request parameters of a dynamics batch.
type DynamicsOptions struct {
	Period   Period
	FromDate string
	ToDate   string
	Regions  []int64
	Devices  []string
}

// TopOutcome is the per-phrase result of a topRequests batch: either a
// payload or the error that kept it from being fetched.
type TopOutcome struct {
	Phrase string
	Result TopResult
	Err    error
}

// DynamicsOutcome is the per-phrase result of a dynamics batch.
type DynamicsOutcome struct {
	Phrase string
	Result DynamicsResult
	Err    error
}

// Counters tracks success/failure stats for one batch run.
type Counters struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// TopBatch is the aggregate result of a topRequests batch. Phrases keeps
// the input order; Results is keyed by phrase.
type TopBatch struct {
	Phrases  []string
	Results  map[string]TopOutcome
	Counters Counters
}

// DynamicsBatch is the aggregate result of a dynamics batch.
type DynamicsBatch struct {
	Phrases  []string
	Results  map[string]DynamicsOutcome
	Counters Counters
}

// Batch request methods accepted by RunRequests.
const (
	MethodTopRequests = "topRequests"
	MethodDynamics    = "dynamics"
)

// BatchRequest is one item of a heterogeneous batch: a method name plus
// its payload.
type BatchRequest struct {
	Method  string         `json:"method"`
	Payload RequestPayload `json:"payload"`
}

// RequestPayload carries the union of topRequests and dynamics parameters;
// dynamics-only fields are ignored for topRequests items.
type RequestPayload struct {
	Phrase   string   `json:"phrase"`
	Period   Period   `json:"period,omitempty"`
	FromDate string   `json:"fromDate,omitempty"`
	ToDate   string   `json:"toDate,omitempty"`
	Regions  []int64  `json:"regions,omitempty"`
	Devices  []string `json:"devices,omitempty"`
}

// BatchOutcome is the positional result of one heterogeneous batch item.
type BatchOutcome struct {
	Method   string
	Phrase   string
	Top      *TopResult
	Dynamics *DynamicsResult
	Err      error
}

// SnapshotRecord is one top-requests capture ready for persistence.
// WindowStart/WindowEnd bound the dedup check: a snapshot with the same
// phrase/region/device whose RequestedAt falls inside [WindowStart,
// WindowEnd) makes this record a no-op.
type SnapshotRecord struct {
	Phrase      string
	RegionID    *int64
	Device      *string
	RequestedAt time.Time
	WindowStart time.Time
	WindowEnd   time.Time
	TotalCount  int64
	Items       []TopItem
}

// SeriesPoint is one parsed bucket of a dynamics series.
type SeriesPoint struct {
	Date  time.Time
	Count int64
	Share float64
}

// SeriesRecord is one dynamics series ready for persistence.
type SeriesRecord struct {
	Phrase      string
	RegionID    *int64
	Device      *string
	RequestedAt time.Time
	Period      Period
	FromDate    time.Time
	ToDate      time.Time
	Points      []SeriesPoint
}
