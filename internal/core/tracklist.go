package core

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"

	"github.com/austinkregel/local-media/mpdd/internal/types"
)

// Options are the tracklist playback modes
type Options struct {
	Consume bool `json:"consume"`
	Random  bool `json:"random"`
	Repeat  bool `json:"repeat"`
	Single  bool `json:"single"`
}

// Tracklist is the shared play queue. It is not safe for concurrent use; all
// access goes through the Core executor.
type Tracklist struct {
	bus       Publisher
	logger    *log.Logger
	tlTracks  []types.TlTrack
	nextTLID  int
	version   int
	opts      Options
	shuffled  []types.TlTrack // pending random order, consumed from the head
	maxLength int
	rng       *rand.Rand

	// onVersionChange runs after every mutation, before listeners hear
	// about it. The playback controller uses it to drop a stale current track.
	onVersionChange func()
}

// NewTracklist creates an empty tracklist. maxLength <= 0 means unlimited.
func NewTracklist(bus Publisher, maxLength int, logger *log.Logger) *Tracklist {
	return &Tracklist{
		bus:       bus,
		logger:    logger,
		tlTracks:  make([]types.TlTrack, 0),
		nextTLID:  1,
		maxLength: maxLength,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Version is incremented on every mutation
func (t *Tracklist) Version() int {
	return t.version
}

// Length returns the number of tracks
func (t *Tracklist) Length() int {
	return len(t.tlTracks)
}

// TlTracks returns a copy of all tracklist slots in order
func (t *Tracklist) TlTracks() []types.TlTrack {
	out := make([]types.TlTrack, len(t.tlTracks))
	copy(out, t.tlTracks)
	return out
}

// Slice returns a copy of positions [start,end)
func (t *Tracklist) Slice(start, end int) []types.TlTrack {
	if start < 0 {
		start = 0
	}
	if end > len(t.tlTracks) || end < 0 {
		end = len(t.tlTracks)
	}
	if start >= end {
		return nil
	}
	out := make([]types.TlTrack, end-start)
	copy(out, t.tlTracks[start:end])
	return out
}

// At returns the slot at the position, or nil
func (t *Tracklist) At(pos int) *types.TlTrack {
	if pos < 0 || pos >= len(t.tlTracks) {
		return nil
	}
	tl := t.tlTracks[pos]
	return &tl
}

// Index returns the position of the slot with the given tlid, or -1
func (t *Tracklist) Index(tlid int) int {
	for i, tl := range t.tlTracks {
		if tl.TLID == tlid {
			return i
		}
	}
	return -1
}

// FilterTLID returns the slot with the given tlid, or nil
func (t *Tracklist) FilterTLID(tlid int) *types.TlTrack {
	return t.At(t.Index(tlid))
}

// FilterURI returns every slot holding one of the URIs
func (t *Tracklist) FilterURI(uris ...string) []types.TlTrack {
	want := make(map[string]bool, len(uris))
	for _, u := range uris {
		want[u] = true
	}
	var out []types.TlTrack
	for _, tl := range t.tlTracks {
		if want[tl.Track.URI] {
			out = append(out, tl)
		}
	}
	return out
}

// Options returns the current playback modes
func (t *Tracklist) Options() Options {
	return t.opts
}

// SetConsume enables removal of tracks once played
func (t *Tracklist) SetConsume(v bool) {
	if t.opts.Consume == v {
		return
	}
	t.opts.Consume = v
	t.bus.Publish(Event{Type: EventOptionsChanged})
}

// SetRepeat enables wrap-around at the end of the tracklist
func (t *Tracklist) SetRepeat(v bool) {
	if t.opts.Repeat == v {
		return
	}
	t.opts.Repeat = v
	t.bus.Publish(Event{Type: EventOptionsChanged})
}

// SetSingle stops (or, with repeat, replays) after the current track
func (t *Tracklist) SetSingle(v bool) {
	if t.opts.Single == v {
		return
	}
	t.opts.Single = v
	t.bus.Publish(Event{Type: EventOptionsChanged})
}

// SetRandom enables random order. Enabling it builds a fresh shuffle order.
func (t *Tracklist) SetRandom(v bool) {
	if t.opts.Random == v {
		return
	}
	t.opts.Random = v
	if v {
		t.reshuffle()
	}
	t.bus.Publish(Event{Type: EventOptionsChanged})
}

// reshuffle rebuilds the pending random order from the whole tracklist
func (t *Tracklist) reshuffle() {
	t.shuffled = make([]types.TlTrack, len(t.tlTracks))
	copy(t.shuffled, t.tlTracks)
	// Fisher-Yates shuffle
	for i := len(t.shuffled) - 1; i > 0; i-- {
		j := t.rng.Intn(i + 1)
		t.shuffled[i], t.shuffled[j] = t.shuffled[j], t.shuffled[i]
	}
}

// shuffleIn places newly added slots at random positions of the pending order
func (t *Tracklist) shuffleIn(added []types.TlTrack) {
	if !t.opts.Random {
		return
	}
	for _, tl := range added {
		i := t.rng.Intn(len(t.shuffled) + 1)
		t.shuffled = append(t.shuffled, types.TlTrack{})
		copy(t.shuffled[i+1:], t.shuffled[i:])
		t.shuffled[i] = tl
	}
}

// pruneShuffle drops pending slots that are no longer in the tracklist
func (t *Tracklist) pruneShuffle() {
	if len(t.shuffled) == 0 {
		return
	}
	present := make(map[int]bool, len(t.tlTracks))
	for _, tl := range t.tlTracks {
		present[tl.TLID] = true
	}
	kept := t.shuffled[:0]
	for _, tl := range t.shuffled {
		if present[tl.TLID] {
			kept = append(kept, tl)
		}
	}
	t.shuffled = kept
}

func (t *Tracklist) dropFromShuffle(tl *types.TlTrack) {
	if tl == nil || !t.opts.Random {
		return
	}
	for i, s := range t.shuffled {
		if s.TLID == tl.TLID {
			t.shuffled = append(t.shuffled[:i], t.shuffled[i+1:]...)
			return
		}
	}
}

// NextTrack returns the slot an explicit "next" moves to from current
func (t *Tracklist) NextTrack(current *types.TlTrack) *types.TlTrack {
	if len(t.tlTracks) == 0 {
		return nil
	}

	if t.opts.Random && len(t.shuffled) == 0 {
		if t.opts.Repeat || current == nil {
			t.reshuffle()
		}
	}

	if t.opts.Random {
		if len(t.shuffled) == 0 {
			return nil
		}
		tl := t.shuffled[0]
		return &tl
	}

	next := 0
	if current != nil {
		if idx := t.Index(current.TLID); idx >= 0 {
			next = idx + 1
		}
	}

	if t.opts.Repeat {
		// The only track is about to be consumed, nothing can follow it
		if current != nil && t.opts.Consume && len(t.tlTracks) == 1 {
			return nil
		}
		next %= len(t.tlTracks)
	} else if next >= len(t.tlTracks) {
		return nil
	}

	return t.At(next)
}

// PreviousTrack returns the slot an explicit "previous" moves to
func (t *Tracklist) PreviousTrack(current *types.TlTrack) *types.TlTrack {
	if t.opts.Repeat || t.opts.Consume || t.opts.Random {
		return current
	}
	if current == nil {
		return nil
	}
	idx := t.Index(current.TLID)
	if idx <= 0 {
		return nil
	}
	return t.At(idx - 1)
}

// EOTTrack returns the slot to continue with when current ends by itself
func (t *Tracklist) EOTTrack(current *types.TlTrack) *types.TlTrack {
	if t.opts.Single && t.opts.Repeat {
		return current
	}
	if t.opts.Single {
		return nil
	}
	return t.NextTrack(current)
}

// MarkPlaying records that the slot started playing
func (t *Tracklist) MarkPlaying(tl *types.TlTrack) {
	t.dropFromShuffle(tl)
}

// MarkUnplayable records that the backend refused to play the slot
func (t *Tracklist) MarkUnplayable(tl *types.TlTrack) {
	if tl == nil {
		return
	}
	t.logger.Warn("track is not playable", "uri", tl.Track.URI, "tlid", tl.TLID)
	t.dropFromShuffle(tl)
}

// MarkPlayed records that the slot finished. With consume on it is removed.
func (t *Tracklist) MarkPlayed(tl *types.TlTrack) bool {
	if tl == nil || !t.opts.Consume {
		return false
	}
	t.Remove([]int{tl.TLID})
	return true
}

// Add inserts tracks at position at, or appends them when at is negative.
// Each track gets a fresh tlid.
func (t *Tracklist) Add(tracks []types.Track, at int) ([]types.TlTrack, error) {
	if len(tracks) == 0 {
		return nil, nil
	}
	if t.maxLength > 0 && len(t.tlTracks)+len(tracks) > t.maxLength {
		return nil, fmt.Errorf("%w: limit is %d tracks", ErrTracklistFull, t.maxLength)
	}
	if at < 0 || at > len(t.tlTracks) {
		at = len(t.tlTracks)
	}

	added := make([]types.TlTrack, len(tracks))
	for i, track := range tracks {
		added[i] = types.TlTrack{TLID: t.nextTLID, Track: track}
		t.nextTLID++
	}

	rest := append([]types.TlTrack{}, t.tlTracks[at:]...)
	t.tlTracks = append(append(t.tlTracks[:at], added...), rest...)
	t.shuffleIn(added)

	t.increaseVersion()
	return added, nil
}

// Clear removes every slot
func (t *Tracklist) Clear() {
	t.tlTracks = make([]types.TlTrack, 0)
	t.increaseVersion()
}

// Remove deletes the slots with the given tlids and returns what was removed
func (t *Tracklist) Remove(tlids []int) []types.TlTrack {
	drop := make(map[int]bool, len(tlids))
	for _, id := range tlids {
		drop[id] = true
	}

	var removed []types.TlTrack
	kept := make([]types.TlTrack, 0, len(t.tlTracks))
	for _, tl := range t.tlTracks {
		if drop[tl.TLID] {
			removed = append(removed, tl)
			continue
		}
		kept = append(kept, tl)
	}
	t.tlTracks = kept

	t.increaseVersion()
	return removed
}

// Move relocates positions [start,end) so they begin at to, counted in the
// list with the moved slots taken out.
func (t *Tracklist) Move(start, end, to int) error {
	n := len(t.tlTracks)
	switch {
	case start < 0:
		return fmt.Errorf("%w: start must be at least zero", ErrInvalidRange)
	case start >= end:
		return fmt.Errorf("%w: start must be smaller than end", ErrInvalidRange)
	case end > n:
		return fmt.Errorf("%w: end can not be larger than tracklist length", ErrInvalidRange)
	case to < 0:
		return fmt.Errorf("%w: position must be at least zero", ErrInvalidRange)
	case to > n:
		return fmt.Errorf("%w: position can not be larger than tracklist length", ErrInvalidRange)
	}

	moved := append([]types.TlTrack{}, t.tlTracks[start:end]...)
	remaining := append(append([]types.TlTrack{}, t.tlTracks[:start]...), t.tlTracks[end:]...)
	if to > len(remaining) {
		to = len(remaining)
	}

	result := make([]types.TlTrack, 0, n)
	result = append(result, remaining[:to]...)
	result = append(result, moved...)
	result = append(result, remaining[to:]...)
	t.tlTracks = result

	t.increaseVersion()
	return nil
}

// Swap exchanges the slots at two positions
func (t *Tracklist) Swap(a, b int) error {
	n := len(t.tlTracks)
	if a < 0 || a >= n || b < 0 || b >= n {
		return fmt.Errorf("%w: position out of bounds", ErrInvalidRange)
	}
	t.tlTracks[a], t.tlTracks[b] = t.tlTracks[b], t.tlTracks[a]
	t.increaseVersion()
	return nil
}

// Shuffle permutes positions [start,end). A negative end means the end of
// the list.
func (t *Tracklist) Shuffle(start, end int) error {
	n := len(t.tlTracks)
	if end < 0 {
		end = n
	}
	if start < 0 || end > n || (n > 0 && start >= end) {
		return fmt.Errorf("%w: invalid shuffle range %d:%d", ErrInvalidRange, start, end)
	}

	part := t.tlTracks[start:end]
	for i := len(part) - 1; i > 0; i-- {
		j := t.rng.Intn(i + 1)
		part[i], part[j] = part[j], part[i]
	}

	t.increaseVersion()
	return nil
}

// restore replaces the whole state, used when loading a saved tracklist
func (t *Tracklist) restore(tlTracks []types.TlTrack, nextTLID int, opts Options) {
	t.tlTracks = append(make([]types.TlTrack, 0, len(tlTracks)), tlTracks...)
	for _, tl := range tlTracks {
		if tl.TLID >= nextTLID {
			nextTLID = tl.TLID + 1
		}
	}
	if nextTLID > t.nextTLID {
		t.nextTLID = nextTLID
	}
	t.opts = opts
	t.shuffled = nil
	if opts.Random {
		t.reshuffle()
	}
	t.bus.Publish(Event{Type: EventOptionsChanged})
	t.increaseVersion()
}

func (t *Tracklist) increaseVersion() {
	t.version++
	if t.onVersionChange != nil {
		t.onVersionChange()
	}
	if t.opts.Random {
		t.pruneShuffle()
	} else {
		t.shuffled = nil
	}
	t.bus.Publish(Event{Type: EventTracklistChanged})
}
