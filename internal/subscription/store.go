// Package subscription implements FileSubscriptionStore: a single JSON
// file, guarded by a mutex, that co-locates subscription records with
// their watermark ("last seen entry id"), matching the persisted layout in
// spec §6.
package subscription

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"x2discord/internal/model"
	"x2discord/internal/normalize"
)

// record is the on-disk shape of one subscription, including the legacy
// interval_minutes field accepted on read.
type record struct {
	Account         string   `json:"account"`
	IntervalSeconds *int     `json:"interval_seconds,omitempty"`
	IntervalMinutes *float64 `json:"interval_minutes,omitempty"`
	IncludeReposts  bool     `json:"include_reposts"`
	IncludeQuotes   bool     `json:"include_quotes"`
	IncludeKeywords []string `json:"include_keywords,omitempty"`
	ExcludeKeywords []string `json:"exclude_keywords,omitempty"`
	LastTweetID     string   `json:"last_tweet_id,omitempty"`
	ThreadID        int64    `json:"thread_id,omitempty"`
}

type document struct {
	Subscriptions map[string][]record `json:"subscriptions"`
}

// FileSubscriptionStore implements both model.SubStore and
// model.WatermarkStore against one JSON file.
type FileSubscriptionStore struct {
	mu                  sync.Mutex
	path                string
	defaultIntervalSecs int
	minIntervalSecs     int
	doc                 document
}

// Load reads path (creating an empty document if it does not exist yet)
// and returns a ready-to-use store.
func Load(path string, defaultIntervalSeconds, minIntervalSeconds int) (*FileSubscriptionStore, error) {
	s := &FileSubscriptionStore{
		path:                path,
		defaultIntervalSecs: defaultIntervalSeconds,
		minIntervalSecs:     minIntervalSeconds,
		doc:                 document{Subscriptions: make(map[string][]record)},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSubscriptionStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("subscription: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("subscription: parse %s: %w", s.path, err)
	}
	if doc.Subscriptions == nil {
		doc.Subscriptions = make(map[string][]record)
	}
	s.doc = doc
	return nil
}

func (s *FileSubscriptionStore) saveLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("subscription: marshal: %w", err)
	}
	return os.WriteFile(s.path, data, 0o644)
}

// List returns a snapshot of every subscription across all channels, not
// live references.
func (s *FileSubscriptionStore) List() ([]model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channelIDs := make([]string, 0, len(s.doc.Subscriptions))
	for id := range s.doc.Subscriptions {
		channelIDs = append(channelIDs, id)
	}
	sort.Strings(channelIDs)

	out := make([]model.Subscription, 0, len(s.doc.Subscriptions))
	for _, idStr := range channelIDs {
		channelID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		for _, rec := range s.doc.Subscriptions[idStr] {
			out = append(out, toSubscription(channelID, rec, s.defaultIntervalSecs, s.minIntervalSecs))
		}
	}
	return out, nil
}

func toSubscription(channelID int64, rec record, defaultIntervalSecs, minIntervalSecs int) model.Subscription {
	interval := defaultIntervalSecs
	switch {
	case rec.IntervalSeconds != nil:
		interval = *rec.IntervalSeconds
	case rec.IntervalMinutes != nil:
		interval = int(*rec.IntervalMinutes * 60)
	}
	if interval < minIntervalSecs {
		interval = minIntervalSecs
	}
	return model.Subscription{
		ChannelID:       channelID,
		ThreadID:        rec.ThreadID,
		Account:         rec.Account,
		IntervalSeconds: interval,
		IncludeReposts:  rec.IncludeReposts,
		IncludeQuotes:   rec.IncludeQuotes,
		IncludeKeywords: rec.IncludeKeywords,
		ExcludeKeywords: rec.ExcludeKeywords,
		LastTweetID:     rec.LastTweetID,
	}
}

// Get returns the persisted watermark for (channelID, account).
func (s *FileSubscriptionStore) Get(channelID int64, account string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idStr := strconv.FormatInt(channelID, 10)
	for _, rec := range s.doc.Subscriptions[idStr] {
		if rec.Account == account {
			if rec.LastTweetID == "" {
				return "", false, nil
			}
			return rec.LastTweetID, true, nil
		}
	}
	return "", false, nil
}

// Set durably writes the watermark for (channelID, account).
func (s *FileSubscriptionStore) Set(channelID int64, account string, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idStr := strconv.FormatInt(channelID, 10)
	recs := s.doc.Subscriptions[idStr]
	for i := range recs {
		if recs[i].Account == account {
			recs[i].LastTweetID = entryID
			s.doc.Subscriptions[idStr] = recs
			return s.saveLocked()
		}
	}
	return fmt.Errorf("subscription: no subscription for channel %d account %q", channelID, account)
}

// Add registers a new (channel, account) subscription, normalizing account
// first (see normalize.Account). Returns an error if the account normalizes
// to empty, the pair already exists (accounts compared case-insensitively),
// or the interval is below minIntervalSecs.
func (s *FileSubscriptionStore) Add(channelID int64, threadID int64, account string, intervalSeconds int, includeReposts, includeQuotes bool, includeKeywords, excludeKeywords []string) error {
	account, err := normalize.Account(account)
	if err != nil {
		return err
	}
	if intervalSeconds < s.minIntervalSecs {
		return fmt.Errorf("subscription: interval_seconds %d below floor %d", intervalSeconds, s.minIntervalSecs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idStr := strconv.FormatInt(channelID, 10)
	for _, rec := range s.doc.Subscriptions[idStr] {
		if strings.EqualFold(rec.Account, account) {
			return fmt.Errorf("subscription: channel %d already subscribed to %q", channelID, account)
		}
	}
	s.doc.Subscriptions[idStr] = append(s.doc.Subscriptions[idStr], record{
		Account:         account,
		IntervalSeconds: &intervalSeconds,
		IncludeReposts:  includeReposts,
		IncludeQuotes:   includeQuotes,
		IncludeKeywords: includeKeywords,
		ExcludeKeywords: excludeKeywords,
		ThreadID:        threadID,
	})
	return s.saveLocked()
}

// Remove deletes the (channel, account) subscription, if present.
func (s *FileSubscriptionStore) Remove(channelID int64, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idStr := strconv.FormatInt(channelID, 10)
	recs := s.doc.Subscriptions[idStr]
	for i, rec := range recs {
		if rec.Account == account {
			s.doc.Subscriptions[idStr] = append(recs[:i], recs[i+1:]...)
			return s.saveLocked()
		}
	}
	return fmt.Errorf("subscription: no subscription for channel %d account %q", channelID, account)
}
