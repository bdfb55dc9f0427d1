package pubsub

import (
	"errors"
	"path/filepath"
	"sort"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	"github.com/timshannon/badgerhold/v4"
)

const subscriptionsDir = "subscriptions"

type store struct {
	db *badgerhold.Store
}

// newStore opens the subscriptions db under the given base directory, or an
// in-memory one if baseDir is empty.
func newStore(baseDir string, logger badger.Logger) (*store, error) {
	var dbDir string
	if len(baseDir) > 0 {
		dbDir = filepath.Join(baseDir, subscriptionsDir)
	}

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger
	if len(dbDir) <= 0 {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}
	return &store{db}, nil
}

func (s *store) add(sub Subscription) error {
	err := s.db.Insert(sub.ID, sub)
	// the generated id is random enough to assume that a subscription with the
	// same id is the same subscription.
	if errors.Is(err, badgerhold.ErrKeyExists) {
		return nil
	}
	return err
}

func (s *store) remove(id string) error {
	err := s.db.Delete(id, Subscription{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return ErrSubscriptionNotFound
	}
	return err
}

func (s *store) listForTopic(topic string) (subscriptions, error) {
	var query *badgerhold.Query
	if len(topic) > 0 {
		query = badgerhold.Where("Event").Eq(topic).Index("Event")
	}

	var subs subscriptions
	if err := s.db.Find(&subs, query); err != nil {
		return nil, err
	}
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}

func (s *store) close() error {
	return s.db.Close()
}
