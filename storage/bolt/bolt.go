/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package bolt is a storage.Storage backed by a bbolt file with a
// bucket per crew.
package bolt

import (
	"context"
	"time"

	"github.com/Comcast/tempo/core"
	"github.com/Comcast/tempo/storage"
	"github.com/Comcast/tempo/util"

	bolt "go.etcd.io/bbolt"
)

type Storage struct {
	Debug    bool
	filename string
	db       *bolt.DB
}

func NewStorage(filename string) (*Storage, error) {
	return &Storage{
		filename: filename,
	}, nil
}

func (s *Storage) Open(ctx context.Context) error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *Storage) Close(ctx context.Context) error {
	return s.db.Close()
}

func (s *Storage) logf(format string, args ...interface{}) {
	if s.Debug {
		util.Logger.Debug().Str("storage", s.filename).Msgf(format, args...)
	}
}

func (s *Storage) MakeCrew(ctx context.Context, crew string) error {
	s.logf("MakeCrew %s", crew)
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucket([]byte(crew))
		return err
	})
}

func (s *Storage) RemCrew(ctx context.Context, crew string) error {
	s.logf("RemCrew %s", crew)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.DeleteBucket([]byte(crew))
	})
}

func (s *Storage) GetCrew(ctx context.Context, crew string) ([]*storage.Variable, error) {
	s.logf("GetCrew %s", crew)
	vs := make([]*storage.Variable, 0, 32)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(crew))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for name, js := c.First(); name != nil; name, js = c.Next() {
			v, err := storage.Decode(js)
			if err != nil {
				return err
			}
			vs = append(vs, &storage.Variable{
				Name:  string(name),
				Value: v,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logf("GetCrew %s found %d variables", crew, len(vs))

	if len(vs) == 0 {
		return nil, nil
	}

	return vs, nil
}

func (s *Storage) Get(ctx context.Context, crew, name string) (core.Value, error) {
	var js []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(crew))
		if b == nil {
			return storage.NotFound
		}
		// The slice is only valid during the transaction.
		got := b.Get([]byte(name))
		if got == nil {
			return storage.NotFound
		}
		js = append([]byte(nil), got...)
		return nil
	})
	if err != nil {
		return core.Value{}, err
	}
	return storage.Decode(js)
}

func (s *Storage) WriteState(ctx context.Context, crew string, vs []*storage.Variable) error {
	if 0 == len(vs) {
		return nil
	}

	vals := make(map[string][]byte, len(vs))

	for _, v := range vs {
		if v.Deleted {
			vals[v.Name] = nil
			continue
		}
		js, err := storage.Encode(v.Value)
		if err != nil {
			return err
		}
		s.logf("WriteState %s %s=%s", crew, v.Name, js)
		vals[v.Name] = js
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(crew))
		if err != nil {
			return err
		}
		for name, js := range vals {
			var (
				key = []byte(name)
				err error
			)
			if js == nil {
				err = b.Delete(key)
			} else {
				err = b.Put(key, js)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}
