package ledger

import (
	"sort"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	"github.com/timshannon/badgerhold/v4"
)

type journalStore struct {
	db *badgerhold.Store
}

func newJournalStore(dbDir string, logger badger.Logger) (*journalStore, error) {
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger
	opts.Compression = options.ZSTD

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}
	return &journalStore{db}, nil
}

func (s *journalStore) add(entry Entry) error {
	return s.db.Insert(entry.Key, entry)
}

// entries returns the whole journal in the order it was recorded.
func (s *journalStore) entries() ([]Entry, error) {
	var entries []Entry
	if err := s.db.Find(&entries, nil); err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Seq < entries[j].Seq
	})
	return entries, nil
}

func (s *journalStore) close() error {
	return s.db.Close()
}
