// Package badgerstore provides an embedded BadgerDB implementation of the
// playlist repository port. Records are msgpack encoded.
package badgerstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
	"github.com/ewilliams-labs/moodlist/internal/core/ports"
)

const (
	playlistKeyPrefix = "playlist:"
	sequenceKey       = "seq:playlist"
)

var _ ports.PlaylistRepository = (*Store)(nil)

type songRecord struct {
	Title     string `msgpack:"t"`
	Artist    string `msgpack:"a,omitempty"`
	URL       string `msgpack:"u,omitempty"`
	YouTubeID string `msgpack:"y,omitempty"`
}

type playlistRecord struct {
	Seq       uint64       `msgpack:"seq"`
	ID        string       `msgpack:"id"`
	Name      string       `msgpack:"name"`
	Language  string       `msgpack:"lang"`
	Emotion   string       `msgpack:"emo"`
	CreatedAt int64        `msgpack:"created"`
	Songs     []songRecord `msgpack:"songs"`
}

func (r *playlistRecord) toDomain() domain.Playlist {
	p := domain.Playlist{
		ID:        r.ID,
		Name:      r.Name,
		Language:  r.Language,
		Emotion:   r.Emotion,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
		Songs:     make([]domain.Song, 0, len(r.Songs)),
	}
	for _, s := range r.Songs {
		p.Songs = append(p.Songs, domain.Song{Title: s.Title, Artist: s.Artist, URL: s.URL, YouTubeID: s.YouTubeID})
	}
	return p
}

func newRecord(p domain.Playlist, seq uint64) playlistRecord {
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	r := playlistRecord{
		Seq:       seq,
		ID:        p.ID,
		Name:      p.Name,
		Language:  p.Language,
		Emotion:   domain.NormalizeEmotion(p.Emotion),
		CreatedAt: created.UTC().UnixNano(),
		Songs:     make([]songRecord, 0, len(p.Songs)),
	}
	for _, s := range p.Songs {
		r.Songs = append(r.Songs, songRecord{Title: s.Title, Artist: s.Artist, URL: s.URL, YouTubeID: s.YouTubeID})
	}
	return r
}

// Store keeps playlists in BadgerDB.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens (or creates) a store at dir. An empty dir keeps everything in
// memory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	s, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database. Close releases the database too.
func New(db *badger.DB) (*Store, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), 64)
	if err != nil {
		return nil, fmt.Errorf("get sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

func (s *Store) Close() error {
	err := s.seq.Release()
	return errors.Join(err, s.db.Close())
}

func playlistKey(id string) []byte {
	return []byte(playlistKeyPrefix + id)
}

// Query scans all playlists and keeps those matching q, ordered by creation
// time and then insertion sequence.
func (s *Store) Query(ctx context.Context, q ports.PlaylistQuery) ([]domain.Playlist, error) {
	langs := make(map[string]bool, len(q.Languages))
	for _, l := range q.Languages {
		langs[l] = true
	}
	emotion := domain.NormalizeEmotion(q.Emotion)

	var matched []playlistRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(playlistKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec playlistRecord
			if err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if len(langs) > 0 && !langs[rec.Language] {
				continue
			}
			if emotion != "" && rec.Emotion != emotion {
				continue
			}
			matched = append(matched, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query playlists: %w", err)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt != matched[j].CreatedAt {
			return matched[i].CreatedAt < matched[j].CreatedAt
		}
		return matched[i].Seq < matched[j].Seq
	})

	if len(matched) == 0 {
		return nil, nil
	}
	out := make([]domain.Playlist, 0, len(matched))
	for i := range matched {
		out = append(out, matched[i].toDomain())
	}
	return out, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (domain.Playlist, error) {
	var rec playlistRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(playlistKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get playlist: %w", err)
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return domain.Playlist{}, err
	}
	return rec.toDomain(), nil
}

// Save upserts a playlist. An existing playlist keeps its position.
func (s *Store) Save(ctx context.Context, p domain.Playlist) error {
	return s.db.Update(func(txn *badger.Txn) error {
		seq, err := s.existingSeq(txn, p.ID)
		if err != nil {
			return err
		}
		return s.put(txn, p, seq)
	})
}

// ReplaceAll deletes every playlist and writes the new catalog in one
// transaction.
func (s *Store) ReplaceAll(ctx context.Context, playlists []domain.Playlist) error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		prefix := []byte(playlistKeyPrefix)
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, bytes.Clone(it.Item().Key()))
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		for _, p := range playlists {
			if err := s.put(txn, p, 0); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) existingSeq(txn *badger.Txn, id string) (uint64, error) {
	item, err := txn.Get(playlistKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get playlist: %w", err)
	}
	var rec playlistRecord
	if err := item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, &rec)
	}); err != nil {
		return 0, fmt.Errorf("decode playlist: %w", err)
	}
	return rec.Seq, nil
}

// put writes p; seq zero allocates a new sequence number.
func (s *Store) put(txn *badger.Txn, p domain.Playlist, seq uint64) error {
	if seq == 0 {
		next, err := s.seq.Next()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		seq = next + 1
	}
	data, err := msgpack.Marshal(newRecord(p, seq))
	if err != nil {
		return fmt.Errorf("encode playlist: %w", err)
	}
	if err := txn.Set(playlistKey(p.ID), data); err != nil {
		return fmt.Errorf("set playlist: %w", err)
	}
	return nil
}
