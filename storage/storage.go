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

// Package storage defines persistence for the global variables of a
// crew.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Comcast/tempo/core"
)

// NotFound is returned by Get for a variable that isn't stored.
var NotFound = errors.New("not found")

// Variable is a global variable as stored in a Storage system.
type Variable struct {
	Name  string
	Value core.Value

	// Deleted means WriteState should remove the variable.
	Deleted bool
}

// Storage is a persistence interface that's suitable for Crews.
type Storage interface {
	Open(ctx context.Context) error

	Close(ctx context.Context) error

	MakeCrew(ctx context.Context, crew string) error

	RemCrew(ctx context.Context, crew string) error

	// GetCrew returns all variables of the crew.
	GetCrew(ctx context.Context, crew string) ([]*Variable, error)

	// Get returns NotFound if there's no such variable.
	Get(ctx context.Context, crew, name string) (core.Value, error)

	WriteState(ctx context.Context, crew string, vs []*Variable) error
}

// Encode renders a value as JSON.  Errors can't be stored.
func Encode(v core.Value) ([]byte, error) {
	switch {
	case v.IsNumber():
		return json.Marshal(v.NumberValue())
	case v.IsString():
		return json.Marshal(v.StringValue())
	case v.IsNull():
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("can't store %s", v)
	}
}

// Decode is the inverse of Encode.
func Decode(js []byte) (core.Value, error) {
	var x interface{}
	if err := json.Unmarshal(js, &x); err != nil {
		return core.Value{}, err
	}
	switch vv := x.(type) {
	case nil:
		return core.NullValue("stored null"), nil
	case float64:
		return core.Number(vv), nil
	case string:
		return core.String(vv), nil
	default:
		return core.Value{}, fmt.Errorf("bad stored value %s", js)
	}
}

// Memory is a Storage that forgets everything when the process
// exits.
type Memory struct {
	sync.Mutex
	crews map[string]map[string][]byte
}

// NewMemory makes an empty Memory.
func NewMemory() *Memory {
	return &Memory{
		crews: make(map[string]map[string][]byte),
	}
}

func (s *Memory) Open(ctx context.Context) error {
	return nil
}

func (s *Memory) Close(ctx context.Context) error {
	return nil
}

func (s *Memory) MakeCrew(ctx context.Context, crew string) error {
	s.Lock()
	defer s.Unlock()
	if _, have := s.crews[crew]; have {
		return fmt.Errorf("crew '%s' exists", crew)
	}
	s.crews[crew] = make(map[string][]byte)
	return nil
}

func (s *Memory) RemCrew(ctx context.Context, crew string) error {
	s.Lock()
	delete(s.crews, crew)
	s.Unlock()
	return nil
}

func (s *Memory) GetCrew(ctx context.Context, crew string) ([]*Variable, error) {
	s.Lock()
	defer s.Unlock()
	names := make([]string, 0, len(s.crews[crew]))
	for name := range s.crews[crew] {
		names = append(names, name)
	}
	sort.Strings(names)
	var acc []*Variable
	for _, name := range names {
		v, err := Decode(s.crews[crew][name])
		if err != nil {
			return nil, err
		}
		acc = append(acc, &Variable{
			Name:  name,
			Value: v,
		})
	}
	return acc, nil
}

func (s *Memory) Get(ctx context.Context, crew, name string) (core.Value, error) {
	s.Lock()
	js, have := s.crews[crew][name]
	s.Unlock()
	if !have {
		return core.Value{}, NotFound
	}
	return Decode(js)
}

func (s *Memory) WriteState(ctx context.Context, crew string, vs []*Variable) error {
	vals := make(map[string][]byte, len(vs))
	for _, v := range vs {
		if v.Deleted {
			vals[v.Name] = nil
			continue
		}
		js, err := Encode(v.Value)
		if err != nil {
			return err
		}
		vals[v.Name] = js
	}

	s.Lock()
	defer s.Unlock()
	m, have := s.crews[crew]
	if !have {
		m = make(map[string][]byte)
		s.crews[crew] = m
	}
	for name, js := range vals {
		if js == nil {
			delete(m, name)
		} else {
			m[name] = js
		}
	}
	return nil
}
