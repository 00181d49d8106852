package monitoring

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/genesis-run/genesis/internal/generrors"
)

var (
	bucketNodes = []byte("nodes")
	bucketEdges = []byte("edges")
)

// BoltGraphStore is a GraphStore backed by an embedded bbolt database, used
// when the Monitoring Plane's graph service needs its projection to survive
// a process restart without depending on Redis.
type BoltGraphStore struct {
	db *bolt.DB
}

// NewBoltGraphStore opens (creating if absent) a bbolt database at path.
func NewBoltGraphStore(path string) (*BoltGraphStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, generrors.Wrap(generrors.KindDegraded, "open graph store", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketNodes, bucketEdges} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, generrors.Wrap(generrors.KindDegraded, "init graph store buckets", err)
	}
	return &BoltGraphStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *BoltGraphStore) Close() error {
	return s.db.Close()
}

func (s *BoltGraphStore) UpsertNode(n Node) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketNodes).Put([]byte(n.ElementID), data)
	})
}

func (s *BoltGraphStore) UpsertEdge(e Edge) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketEdges).Put([]byte(e.ElementID), data)
	})
}

func (s *BoltGraphStore) DeleteNode(elementID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).Delete([]byte(elementID))
	})
}

func (s *BoltGraphStore) DeleteEdge(elementID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEdges).Delete([]byte(elementID))
	})
}

func (s *BoltGraphStore) Nodes() ([]Node, error) {
	var nodes []Node
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(k, v []byte) error {
			var n Node
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			nodes = append(nodes, n)
			return nil
		})
	})
	return nodes, err
}

func (s *BoltGraphStore) Edges() ([]Edge, error) {
	var edges []Edge
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEdges).ForEach(func(k, v []byte) error {
			var e Edge
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			edges = append(edges, e)
			return nil
		})
	})
	return edges, err
}
