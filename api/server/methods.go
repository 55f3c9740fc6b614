// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"

	"github.com/offchainlabs/bold-verifier/api/db"
	"github.com/offchainlabs/bold-verifier/protocol"
)

var contentType = "application/json"

// Healthz checks if the API server is ready to serve queries. Returns 200 if it is ready.
//
// method:
// - GET
// - /api/v1/healthz
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ListAssertions in the snapshot.
//
// method:
// - GET
// - /api/v1/assertions
//
// request query params:
//   - limit: the max number of items in the response
//   - offset: the offset index in the DB
//   - inbox_max_count: assertions that have a specified value for InboxMaxCount
//   - from_block_number: items that were created since a specific block number
//   - to_block_number: caps the response to assertions up to and including a block number
//   - challenged: fetch only assertions that have been challenged
//   - force_update: accepted and ignored, a snapshot never changes
//
// response:
// - []*JsonAssertion
func (s *Server) ListAssertions(w http.ResponseWriter, r *http.Request) {
	opts := make([]db.AssertionOption, 0)
	query := r.URL.Query()
	if val, ok := query["limit"]; ok && len(val) > 0 {
		if v, err := strconv.Atoi(val[0]); err == nil {
			opts = append(opts, db.WithAssertionLimit(v))
		}
	}
	if val, ok := query["offset"]; ok && len(val) > 0 {
		if v, err := strconv.Atoi(val[0]); err == nil {
			opts = append(opts, db.WithAssertionOffset(v))
		}
	}
	if val, ok := query["inbox_max_count"]; ok && len(val) > 0 {
		opts = append(opts, db.WithInboxMaxCount(strings.Join(val, "")))
	}
	if val, ok := query["from_block_number"]; ok && len(val) > 0 {
		if v, err := strconv.ParseUint(val[0], 10, 64); err == nil {
			opts = append(opts, db.FromAssertionCreationBlock(v))
		}
	}
	if val, ok := query["to_block_number"]; ok && len(val) > 0 {
		if v, err := strconv.ParseUint(val[0], 10, 64); err == nil {
			opts = append(opts, db.ToAssertionCreationBlock(v))
		}
	}
	if _, ok := query["challenged"]; ok {
		opts = append(opts, db.WithChallenge())
	}
	if _, ok := query["force_update"]; ok {
		opts = append(opts, db.WithAssertionForceUpdate())
	}
	assertions, err := s.backend.GetAssertions(opts...)
	if err != nil {
		http.Error(w, fmt.Sprintf("Could not get assertions from backend: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, assertions)
}

// AssertionByIdentifier fetches a single assertion.
//
// method:
// - GET
// - /api/v1/assertions/<identifier>
//
// identifier options:
// - an assertion hash (0x-prefixed): gets the assertion by hash
// - "latest-confirmed": gets the latest confirmed assertion
//
// response:
// - *JsonAssertion
func (s *Server) AssertionByIdentifier(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	identifier := vars["identifier"]

	if identifier == protocol.LatestConfirmedIdentifier {
		a, err := s.backend.LatestConfirmedAssertion()
		if err != nil {
			http.Error(w, fmt.Sprintf("Could not get latest confirmed assertion: %v", err), http.StatusNotFound)
			return
		}
		writeJSONResponse(w, a)
		return
	}
	hash, err := hexutil.Decode(identifier)
	if err != nil {
		http.Error(w, fmt.Sprintf("Could not parse assertion hash: %v", err), http.StatusBadRequest)
		return
	}
	assertions, err := s.backend.GetAssertions(
		db.WithAssertionHash(protocol.AssertionHash{Hash: common.BytesToHash(hash)}),
		db.WithAssertionLimit(1),
	)
	if err != nil {
		http.Error(w, fmt.Sprintf("Could not get assertions from backend: %v", err), http.StatusInternalServerError)
		return
	}
	if len(assertions) == 0 {
		http.Error(w, fmt.Sprintf("No assertion with hash %s", identifier), http.StatusNotFound)
		return
	}
	writeJSONResponse(w, assertions[0])
}

// AllChallengeEdges fetches all the edges corresponding to a challenged
// assertion with a specific hash.
//
// method:
// - GET
// - /api/v1/challenge/<assertion-hash>/edges
//
// request query params:
// - limit: the max number of items in the response
// - offset: the offset index in the DB
// - status: filter edges that have status "confirmed", "confirmable", or "pending"
// - royal: boolean true or false to get royal edges. If not set, fetches all edges in the challenge.
// - root_edges: filter out only root edges (those that have a claim_id)
// - rivaled: boolean true or false to get only rivaled edges
// - has_length_one_rival: get only edges that have a length one rival
// - only_subchallenged_edges: get only edges that have a subchallenge claiming them
// - from_block_number: items that were created since a specific block number.
// - to_block_number: caps the response to edges up to a block number
// - path_timer_geq: edges with a cumulative path timer greater than some N number of blocks
// - origin_id: edges that have a 0x-prefixed origin id
// - mutual_id: edges that have a 0x-prefixed mutual id
// - claim_id: edges that have a 0x-prefixed claim id
// - start_height: edges with a start height
// - end_height: edges with an end height
// - start_commitment: edges with a start history commitment of format "height:hash", such as 32:0xdeadbeef
// - end_commitment: edges with an end history commitment of format "height:hash", such as 32:0xdeadbeef
// - challenge_level: edges in a specific challenge level. level 0 is the block challenge level
//
// response:
// - []*JsonEdge
func (s *Server) AllChallengeEdges(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	hash, err := hexutil.Decode(vars["assertion-hash"])
	if err != nil {
		http.Error(w, fmt.Sprintf("Could not parse assertion hash: %v", err), http.StatusBadRequest)
		return
	}
	opts := []db.EdgeOption{
		db.WithEdgeAssertionHash(protocol.AssertionHash{Hash: common.BytesToHash(hash)}),
	}
	query := r.URL.Query()
	if val, ok := query["limit"]; ok && len(val) > 0 {
		if v, err2 := strconv.Atoi(val[0]); err2 == nil {
			opts = append(opts, db.WithLimit(v))
		}
	}
	if val, ok := query["offset"]; ok && len(val) > 0 {
		if v, err2 := strconv.Atoi(val[0]); err2 == nil {
			opts = append(opts, db.WithOffset(v))
		}
	}
	if val, ok := query["status"]; ok && len(val) > 0 {
		status, err2 := protocol.ParseEdgeStatus(strings.Join(val, ""))
		if err2 != nil {
			http.Error(w, fmt.Sprintf("Could not parse status: %v", err2), http.StatusBadRequest)
			return
		}
		opts = append(opts, db.WithEdgeStatus(status))
	}
	if val, ok := query["royal"]; ok {
		if v, ok := parseBool(val); ok {
			opts = append(opts, db.WithRoyal(v))
		}
	}
	if _, ok := query["has_length_one_rival"]; ok {
		opts = append(opts, db.WithLengthOneRival())
	}
	if val, ok := query["rivaled"]; ok {
		if v, ok := parseBool(val); ok {
			opts = append(opts, db.WithRival(v))
		}
	}
	if _, ok := query["only_subchallenged_edges"]; ok {
		opts = append(opts, db.WithSubchallenge())
	}
	if _, ok := query["root_edges"]; ok {
		opts = append(opts, db.WithRootEdges())
	}
	if _, ok := query["force_update"]; ok {
		opts = append(opts, db.WithEdgeForceUpdate())
	}
	uintParams := []struct {
		name string
		opt  func(uint64) db.EdgeOption
	}{
		{"from_block_number", db.FromEdgeCreationBlock},
		{"to_block_number", db.ToEdgeCreationBlock},
		{"start_height", db.WithStartHeight},
		{"end_height", db.WithEndHeight},
		{"path_timer_geq", db.WithPathTimerGreaterOrEq},
	}
	for _, p := range uintParams {
		if val, ok := query[p.name]; ok && len(val) > 0 {
			if v, err2 := strconv.ParseUint(val[0], 10, 64); err2 == nil {
				opts = append(opts, p.opt(v))
			}
		}
	}
	hashParams := []struct {
		name string
		opt  func(common.Hash) db.EdgeOption
	}{
		{"origin_id", func(h common.Hash) db.EdgeOption { return db.WithOriginId(protocol.OriginId(h)) }},
		{"mutual_id", func(h common.Hash) db.EdgeOption { return db.WithMutualId(protocol.MutualId(h)) }},
		{"claim_id", func(h common.Hash) db.EdgeOption { return db.WithClaimId(protocol.ClaimId(h)) }},
	}
	for _, p := range hashParams {
		if val, ok := query[p.name]; ok && len(val) > 0 {
			h, err2 := hexutil.Decode(strings.Join(val, ""))
			if err2 != nil {
				http.Error(w, fmt.Sprintf("Could not parse %s: %v", p.name, err2), http.StatusBadRequest)
				return
			}
			opts = append(opts, p.opt(common.BytesToHash(h)))
		}
	}
	if val, ok := query["start_commitment"]; ok && len(val) > 0 {
		c, err2 := protocol.ParseCommitment(strings.Join(val, ""))
		if err2 != nil {
			http.Error(w, fmt.Sprintf("Could not parse start commitment: %v", err2), http.StatusBadRequest)
			return
		}
		opts = append(opts, db.WithStartHistoryCommitment(c))
	}
	if val, ok := query["end_commitment"]; ok && len(val) > 0 {
		c, err2 := protocol.ParseCommitment(strings.Join(val, ""))
		if err2 != nil {
			http.Error(w, fmt.Sprintf("Could not parse end commitment: %v", err2), http.StatusBadRequest)
			return
		}
		opts = append(opts, db.WithEndHistoryCommitment(c))
	}
	if val, ok := query["challenge_level"]; ok && len(val) > 0 {
		if v, err2 := strconv.ParseUint(val[0], 10, 8); err2 == nil {
			opts = append(opts, db.WithChallengeLevel(uint8(v)))
		}
	}
	edges, err := s.backend.GetEdges(opts...)
	if err != nil {
		http.Error(w, fmt.Sprintf("Could not get edges from backend: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, edges)
}

func parseBool(val []string) (bool, bool) {
	switch strings.Join(val, "") {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// EdgeByIdentifier fetches an edge by its specific id in a challenge.
//
// method:
// - GET
// - /api/v1/challenge/<assertion-hash>/edges/id/<edge-id>
//
// response:
// - *JsonEdge
func (s *Server) EdgeByIdentifier(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	hash, err := hexutil.Decode(vars["assertion-hash"])
	if err != nil {
		http.Error(w, fmt.Sprintf("Could not parse assertion hash: %v", err), http.StatusBadRequest)
		return
	}
	id, err := hexutil.Decode(vars["edge-id"])
	if err != nil {
		http.Error(w, fmt.Sprintf("Could not parse edge id: %v", err), http.StatusBadRequest)
		return
	}
	edges, err := s.backend.GetEdges(
		db.WithLimit(1),
		db.WithEdgeAssertionHash(protocol.AssertionHash{Hash: common.BytesToHash(hash)}),
		db.WithId(protocol.EdgeId{Hash: common.BytesToHash(id)}),
	)
	if err != nil {
		http.Error(w, fmt.Sprintf("Could not get edges from backend: %v", err), http.StatusInternalServerError)
		return
	}
	if len(edges) == 0 {
		http.Error(w, fmt.Sprintf("No edge with id %s", vars["edge-id"]), http.StatusNotFound)
		return
	}
	writeJSONResponse(w, edges[0])
}

// RoyalTrackedChallengeEdges dumps the tracked royal edges recorded in the snapshot.
//
// method:
// - GET
// - /api/v1/tracked/royal-edges
func (s *Server) RoyalTrackedChallengeEdges(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, s.backend.TrackedRoyalEdges())
}

// MiniStakes fetches all the mini-stakes present in a single challenged assertion.
//
// method:
// - GET
// - /api/v1/challenge/<assertion-hash>/ministakes
//
// request query params:
// - limit: the max number of items in the response
// - offset: the offset index in the DB
// - challenge_level: items in a specific challenge level. level 0 is the block challenge level
//
// response:
// - *JsonMiniStakes
func (s *Server) MiniStakes(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	hash, err := hexutil.Decode(vars["assertion-hash"])
	if err != nil {
		http.Error(w, fmt.Sprintf("Could not parse assertion hash: %v", err), http.StatusBadRequest)
		return
	}
	query := r.URL.Query()
	opts := make([]db.EdgeOption, 0)
	if val, ok := query["limit"]; ok && len(val) > 0 {
		if v, err2 := strconv.Atoi(val[0]); err2 == nil {
			opts = append(opts, db.WithLimit(v))
		}
	}
	if val, ok := query["offset"]; ok && len(val) > 0 {
		if v, err2 := strconv.Atoi(val[0]); err2 == nil {
			opts = append(opts, db.WithOffset(v))
		}
	}
	if val, ok := query["challenge_level"]; ok && len(val) > 0 {
		if v, err2 := strconv.ParseUint(val[0], 10, 8); err2 == nil {
			opts = append(opts, db.WithChallengeLevel(uint8(v)))
		}
	}
	miniStakes, err := s.backend.GetMiniStakes(protocol.AssertionHash{Hash: common.BytesToHash(hash)}, opts...)
	if err != nil {
		http.Error(w, fmt.Sprintf("Could not get ministakes from backend: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, miniStakes)
}

func writeJSONResponse(w http.ResponseWriter, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		http.Error(w, fmt.Sprintf("Could not write response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err = w.Write(body); err != nil {
		srvlog.Error("could not write response body", "err", err, "status", http.StatusInternalServerError)
	}
}
