package metrics

import (
	"sync"
	"time"
)

// Direction of an identity lookup.
type Direction string

const (
	DirectionProductToOffer Direction = "product_to_offer"
	DirectionOfferToProduct Direction = "offer_to_product"
)

// CallerContext identifies the service on whose behalf a lookup or skip
// happened.
type CallerContext string

const (
	ContextStock   CallerContext = "stock"
	ContextOrder   CallerContext = "order"
	ContextWebhook CallerContext = "webhook"
)

// recentErrorLimit bounds the in-memory error log.
const recentErrorLimit = 50

// LookupCounts holds per-direction lookup outcome counters.
type LookupCounts struct {
	Success  int64 `json:"success"`
	NotFound int64 `json:"not_found"`
	Error    int64 `json:"error"`
}

// ErrorEntry is one logged sync/webhook error kept in the bounded recent
// list. Identifiers only, never credentials.
type ErrorEntry struct {
	At        time.Time `json:"at"`
	Class     string    `json:"class"`
	Message   string    `json:"message"`
	ProductID string    `json:"product_id,omitempty"`
	OfferID   string    `json:"offer_id,omitempty"`
	OrderID   string    `json:"order_id,omitempty"`
}

// Snapshot is the full read-only view served to the reporting surface.
type Snapshot struct {
	Lookups         map[Direction]LookupCounts `json:"lookups"`
	MissesByContext map[CallerContext]int64    `json:"misses_by_context"`
	Skipped         map[CallerContext]int64    `json:"skipped"`
	RecentErrors    []ErrorEntry               `json:"recent_errors"`
	MappingCount    int                        `json:"mapping_count"`
	MappingLoadedAt time.Time                  `json:"mapping_loaded_at"`
}

// Summary is the compact dashboard-oriented view.
type Summary struct {
	TotalLookups    int64     `json:"total_lookups"`
	TotalSuccess    int64     `json:"total_success"`
	TotalNotFound   int64     `json:"total_not_found"`
	TotalErrors     int64     `json:"total_errors"`
	TotalSkipped    int64     `json:"total_skipped"`
	MappingCount    int       `json:"mapping_count"`
	MappingLoadedAt time.Time `json:"mapping_loaded_at"`
}

// Recorder is the process metrics state. It is constructor-injected into
// every consumer; tests use their own instances. Reset is explicit only.
type Recorder struct {
	mu              sync.Mutex
	lookups         map[Direction]*LookupCounts
	missesByContext map[CallerContext]int64
	skipped         map[CallerContext]int64
	recent          []ErrorEntry
	mappingCount    int
	mappingLoadedAt time.Time
}

// NewRecorder creates an empty metrics recorder
func NewRecorder() *Recorder {
	r := &Recorder{}
	r.init()
	return r
}

func (r *Recorder) init() {
	r.lookups = map[Direction]*LookupCounts{
		DirectionProductToOffer: {},
		DirectionOfferToProduct: {},
	}
	r.missesByContext = make(map[CallerContext]int64)
	r.skipped = make(map[CallerContext]int64)
	r.recent = nil
}

// RecordLookupSuccess counts a lookup hit for one direction.
func (r *Recorder) RecordLookupSuccess(dir Direction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts(dir).Success++
}

// RecordLookupMiss counts a lookup miss for one direction, attributed to
// the calling context.
func (r *Recorder) RecordLookupMiss(dir Direction, caller CallerContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts(dir).NotFound++
	r.missesByContext[caller]++
}

// RecordLookupError counts a lookup that failed outright (e.g. no mapping
// document loaded yet).
func (r *Recorder) RecordLookupError(dir Direction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts(dir).Error++
}

// RecordSkip counts an item skipped by a sync pass for the given context.
func (r *Recorder) RecordSkip(caller CallerContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped[caller]++
}

// RecordError appends to the bounded recent-error list, evicting the
// oldest entry past the limit.
func (r *Recorder) RecordError(entry ErrorEntry) {
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recent = append(r.recent, entry)
	if len(r.recent) > recentErrorLimit {
		r.recent = r.recent[len(r.recent)-recentErrorLimit:]
	}
}

// SetMappingInfo publishes the mapping count and load timestamp after a
// successful (re)load.
func (r *Recorder) SetMappingInfo(count int, loadedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappingCount = count
	r.mappingLoadedAt = loadedAt
}

// Reset clears all counters and the error list. Administrative action only.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.init()
	r.mappingCount = 0
	r.mappingLoadedAt = time.Time{}
}

// Snapshot returns a copy of the full recorder state.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Lookups:         make(map[Direction]LookupCounts, len(r.lookups)),
		MissesByContext: make(map[CallerContext]int64, len(r.missesByContext)),
		Skipped:         make(map[CallerContext]int64, len(r.skipped)),
		RecentErrors:    make([]ErrorEntry, len(r.recent)),
		MappingCount:    r.mappingCount,
		MappingLoadedAt: r.mappingLoadedAt,
	}
	for dir, c := range r.lookups {
		snap.Lookups[dir] = *c
	}
	for caller, n := range r.missesByContext {
		snap.MissesByContext[caller] = n
	}
	for caller, n := range r.skipped {
		snap.Skipped[caller] = n
	}
	copy(snap.RecentErrors, r.recent)
	return snap
}

// Summary returns the compact aggregate view. Its totals are always the
// sums of the detailed per-direction counters.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	sum := Summary{
		MappingCount:    r.mappingCount,
		MappingLoadedAt: r.mappingLoadedAt,
	}
	for _, c := range r.lookups {
		sum.TotalSuccess += c.Success
		sum.TotalNotFound += c.NotFound
		sum.TotalErrors += c.Error
	}
	sum.TotalLookups = sum.TotalSuccess + sum.TotalNotFound + sum.TotalErrors
	for _, n := range r.skipped {
		sum.TotalSkipped += n
	}
	return sum
}

func (r *Recorder) counts(dir Direction) *LookupCounts {
	c, ok := r.lookups[dir]
	if !ok {
		c = &LookupCounts{}
		r.lookups[dir] = c
	}
	return c
}
