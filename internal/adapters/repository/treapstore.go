// Package repository defines the rating store interface and errors.
package repository

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/agon/internal/domain/model"
	"github.com/okian/agon/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: rating DESC, then deviation ASC, then id ASC (deterministic).
// We implement a BST comparator where "less" means ranks earlier
// (i.e., higher rating ranks earlier, and on equal ratings the more
// settled rating ranks earlier). This makes in-order traversal produce
// the leaderboard from best to worst.

// ratingScale controls fixed-point scaling from float64.
const ratingScale = 1_000_000_000_000 // 12 decimal places for better precision

// Background goroutine cadence.
const (
	defaultSnapshotInterval = 1 * time.Second
	defaultTopCacheSize     = 500
	metricsUpdateInterval   = 5 * time.Second
)

type ratingFP int64

func toFixedPoint(x float64) ratingFP {
	// Handle special cases
	if math.IsNaN(x) {
		return 0
	}
	if math.IsInf(x, 1) {
		return ratingFP(math.MaxInt64)
	}
	if math.IsInf(x, -1) {
		return ratingFP(math.MinInt64)
	}

	scaled := x * ratingScale
	if scaled > float64(math.MaxInt64) {
		return ratingFP(math.MaxInt64)
	}
	if scaled < float64(math.MinInt64) {
		return ratingFP(math.MinInt64)
	}
	return ratingFP(math.Round(scaled))
}

// nodeKey is the leaderboard sort key for one competitor.
type nodeKey struct {
	rating    ratingFP
	deviation ratingFP
	id        string
}

func keyOf(c model.Competitor) nodeKey {
	return nodeKey{
		rating:    toFixedPoint(c.Rating),
		deviation: toFixedPoint(c.Deviation),
		id:        c.ID,
	}
}

// less returns true if a should appear before b on the leaderboard
// (higher ranks first).
func (a nodeKey) less(b nodeKey) bool {
	if a.rating != b.rating {
		return a.rating > b.rating // higher rating ranks earlier
	}
	if a.deviation != b.deviation {
		return a.deviation < b.deviation // more settled rating wins the tie
	}
	return a.id < b.id // tie-breaker by id asc
}

// Snapshot represents an immutable snapshot of the leaderboard state.
type Snapshot struct {
	// Rank and rating in O(1) for reads
	RankByID   map[string]int
	RatingByID map[string]float64

	// Fast Top-K cache up to M items
	TopCache []Entry // leaderboard order (M ≪ N_total)
}

// treap node
type node struct {
	key   nodeKey
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// insert adds a node with the given key and heap priority.
// Priorities come from the store's rng; random priorities keep the
// expected depth logarithmic for any insertion order.
func insert(n *node, key nodeKey, prio uint64) *node {
	if n == nil {
		return &node{key: key, prio: prio, size: 1}
	}
	if key.less(n.key) {
		n.left = insert(n.left, key, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, key, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, key nodeKey) *node {
	if n == nil {
		return nil
	}
	if key == n.key {
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, key)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, key)
		}
	} else if key.less(n.key) {
		n.left = deleteNode(n.left, key)
	} else {
		n.right = deleteNode(n.right, key)
	}
	fix(n)
	return n
}

// rankOf returns the 1-based leaderboard position of key, or 0 when the
// key is not in the tree. Subtree sizes make the descent O(log n).
func rankOf(n *node, key nodeKey) int {
	rank := 1
	for n != nil {
		switch {
		case key == n.key:
			return rank + nsize(n.left)
		case key.less(n.key):
			n = n.left
		default:
			rank += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// collectTopN appends up to limit entries in leaderboard order.
func collectTopN(n *node, limit int, byID map[string]model.Competitor, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}

	// Traverse left subtree first (earlier leaderboard positions)
	collectTopN(n.left, limit, byID, out)

	// Add current node if we haven't reached the limit
	if len(*out) < limit {
		if c, exists := byID[n.key.id]; exists {
			*out = append(*out, entryFor(0 /* fix later */, c))
		}
	}

	// Traverse right subtree (later positions) if we still need more
	if len(*out) < limit {
		collectTopN(n.right, limit, byID, out)
	}
}

// collectAll appends all entries in leaderboard order.
func collectAll(n *node, byID map[string]model.Competitor, out *[]Entry) {
	if n == nil {
		return
	}
	collectAll(n.left, byID, out)
	if c, ok := byID[n.key.id]; ok {
		*out = append(*out, entryFor(0, c))
	}
	collectAll(n.right, byID, out)
}

// collectCompetitors appends all competitors in leaderboard order.
func collectCompetitors(n *node, byID map[string]model.Competitor, out *[]model.Competitor) {
	if n == nil {
		return
	}
	collectCompetitors(n.left, byID, out)
	if c, ok := byID[n.key.id]; ok {
		*out = append(*out, c)
	}
	collectCompetitors(n.right, byID, out)
}

func entryFor(rank int, c model.Competitor) Entry {
	return Entry{
		Rank:       rank,
		ID:         c.ID,
		Rating:     c.Rating,
		Deviation:  c.Deviation,
		Volatility: c.Volatility,
		Matches:    c.Matches(),
		Wins:       c.Wins,
		Losses:     c.Losses,
		Draws:      c.Draws,
		WinRate:    c.WinRate(),
	}
}

// TreapStore keeps the committed rating state in a treap keyed by the
// leaderboard order, plus a lock-free snapshot for hot read paths.
type TreapStore struct {
	mu               sync.RWMutex
	root             *node
	byID             map[string]model.Competitor
	prioRng          *rand.Rand // guarded by the write lock
	snapshotInterval time.Duration
	topCacheSize     int

	// snapshot is an atomic pointer to the last published Snapshot.
	// Round commits republish before releasing the write lock, so a
	// loaded snapshot always reflects a fully committed round.
	snapshot atomic.Pointer[Snapshot]

	// Periodic snapshot management
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		snapshotInterval: defaultSnapshotInterval,
		topCacheSize:     defaultTopCacheSize,
		byID:             make(map[string]model.Competitor),
		prioRng:          rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // balance randomness, not security
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	// Initialize stop channel and start background goroutines
	s.stopChan = make(chan struct{})
	s.startPeriodicSnapshots(ctx)
	s.startMetricsUpdater(ctx)

	// Initialize metrics
	metrics.UpdatePopulationSize(0)

	return s
}

// startPeriodicSnapshots starts a background goroutine that publishes
// snapshots at the configured interval. Commits publish synchronously;
// the ticker bounds staleness after registrations.
func (s *TreapStore) startPeriodicSnapshots(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.snapshotInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.publishSnapshot()
			}
		}
	}()
}

// publishSnapshot rebuilds and publishes a new snapshot.
func (s *TreapStore) publishSnapshot() {
	s.mu.RLock()
	s.publishSnapshotInternal()
	s.mu.RUnlock()
}

// Close gracefully shuts down the background goroutines.
func (s *TreapStore) Close() error {
	select {
	case <-s.stopChan:
		// Channel already closed
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// Register implements Store.Register with O(log n) expected time.
func (s *TreapStore) Register(ctx context.Context, c model.Competitor) error {
	s.mu.Lock()
	if _, ok := s.byID[c.ID]; ok {
		s.mu.Unlock()
		metrics.RecordErrorByComponent("store", "already_registered")
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, c.ID)
	}
	s.byID[c.ID] = c
	s.root = insert(s.root, keyOf(c), s.prioRng.Uint64())
	count := len(s.byID)
	s.mu.Unlock()

	metrics.UpdatePopulationSize(count)
	return nil
}

// Get implements Store.Get.
func (s *TreapStore) Get(ctx context.Context, id string) (model.Competitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("store", "unknown_competitor")
		return model.Competitor{}, fmt.Errorf("%w: %s", ErrUnknownCompetitor, id)
	}
	return c, nil
}

// Competitors implements Store.Competitors.
func (s *TreapStore) Competitors(ctx context.Context) []model.Competitor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Competitor, 0, len(s.byID))
	collectCompetitors(s.root, s.byID, &out)
	return out
}

// ApplyRoundUpdate implements Store.ApplyRoundUpdate.
// The whole batch lands under one write lock and the snapshot is
// republished before the lock is released, so concurrent readers move
// from the previous round's state to this one with nothing in between.
func (s *TreapStore) ApplyRoundUpdate(ctx context.Context, updates []model.Competitor) error {
	if len(updates) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.RecordStoreCommitDuration(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before touching anything.
	for i := range updates {
		if _, ok := s.byID[updates[i].ID]; !ok {
			metrics.RecordErrorByComponent("store", "unknown_competitor")
			return fmt.Errorf("%w: %s", ErrUnknownCompetitor, updates[i].ID)
		}
	}

	for i := range updates {
		c := updates[i]
		oldKey := keyOf(s.byID[c.ID])
		newKey := keyOf(c)
		if oldKey != newKey {
			s.root = deleteNode(s.root, oldKey)
			s.root = insert(s.root, newKey, s.prioRng.Uint64())
		}
		s.byID[c.ID] = c
	}

	s.publishSnapshotInternal()
	return nil
}

// Rank returns the current rank and rating fields for a competitor in O(log n).
func (s *TreapStore) Rank(ctx context.Context, id string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("store", "unknown_competitor")
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownCompetitor, id)
	}

	rank := rankOf(s.root, keyOf(c))
	if rank == 0 {
		metrics.RecordErrorByComponent("store", "unknown_competitor")
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownCompetitor, id)
	}
	return entryFor(rank, c), nil
}

// TopN returns the top N entries in leaderboard order.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("store", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	// Serve small reads from the last published snapshot without locking.
	if snap := s.snapshot.Load(); snap != nil && n <= s.topCacheSize {
		k := n
		if k > len(snap.TopCache) {
			k = len(snap.TopCache)
		}
		out := make([]Entry, k)
		copy(out, snap.TopCache[:k])
		return out, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, n)
	collectTopN(s.root, n, s.byID, &out)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

// Count returns the total number of registered competitors.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// publishSnapshotInternal rebuilds and publishes a new snapshot
// (assumes at least a read lock is held).
func (s *TreapStore) publishSnapshotInternal() {
	// Build Top-M cache for fast leaderboard queries
	topCache := make([]Entry, 0, s.topCacheSize)
	collectTopN(s.root, s.topCacheSize, s.byID, &topCache)
	for i := range topCache {
		topCache[i].Rank = i + 1
	}

	// Build full rank and rating maps
	rankByID := make(map[string]int, len(s.byID))
	ratingByID := make(map[string]float64, len(s.byID))

	allEntries := make([]Entry, 0, len(s.byID))
	collectAll(s.root, s.byID, &allEntries)
	for i := range allEntries {
		rankByID[allEntries[i].ID] = i + 1
		ratingByID[allEntries[i].ID] = allEntries[i].Rating
	}

	snapshot := &Snapshot{
		RankByID:   rankByID,
		RatingByID: ratingByID,
		TopCache:   topCache,
	}

	s.snapshot.Store(snapshot)
	metrics.RecordStoreSnapshot()

	if len(allEntries) > 0 {
		metrics.UpdateTopRating(allEntries[0].Rating)
	}
}

// startMetricsUpdater starts a background goroutine that refreshes
// population gauges.
func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

// updateMetrics refreshes population-level gauges.
func (s *TreapStore) updateMetrics() {
	s.mu.RLock()
	count := len(s.byID)
	var deviationSum float64
	for _, c := range s.byID {
		deviationSum += c.Deviation
	}
	s.mu.RUnlock()

	metrics.UpdatePopulationSize(count)
	if count > 0 {
		metrics.UpdateMeanDeviation(deviationSum / float64(count))
	}
}
