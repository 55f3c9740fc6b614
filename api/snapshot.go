// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package api

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Snapshot is every record fetched for one inspection, in wire form. It can
// be written to disk and served again by the replay server.
type Snapshot struct {
	AssertionHash common.Hash                       `json:"assertionHash"`
	Block         uint64                            `json:"block"`
	Assertions    []*JsonAssertion                  `json:"assertions"`
	Edges         []*JsonEdge                       `json:"edges"`
	MiniStakes    []*JsonMiniStakes                 `json:"miniStakes,omitempty"`
	Tracked       []*JsonEdgesByChallengedAssertion `json:"tracked,omitempty"`
}

// Validate checks every record of the snapshot.
func (s *Snapshot) Validate() error {
	for _, a := range s.Assertions {
		if a == nil {
			return errors.Wrap(ErrMalformedRecord, "nil assertion in snapshot")
		}
		if err := a.Validate(); err != nil {
			return err
		}
	}
	for _, e := range s.Edges {
		if e == nil {
			return errors.Wrap(ErrMalformedRecord, "nil edge in snapshot")
		}
		if err := e.Validate(); err != nil {
			return err
		}
	}
	for _, t := range s.Tracked {
		if t == nil {
			return errors.Wrap(ErrMalformedRecord, "nil tracked challenge in snapshot")
		}
		for _, e := range t.RoyalEdges {
			if e == nil {
				return errors.Wrapf(ErrMalformedRecord, "nil tracked edge for assertion %#x", t.AssertionHash)
			}
			if err := e.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	s := &Snapshot{}
	if err := json.NewDecoder(r).Decode(s); err != nil {
		return nil, errors.Wrap(ErrMalformedRecord, err.Error())
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Snapshot) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func LoadSnapshot(path string) (*Snapshot, error) {
	//#nosec G304
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := ReadSnapshot(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading snapshot %s", path)
	}
	return s, nil
}

func (s *Snapshot) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	//#nosec G304
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
