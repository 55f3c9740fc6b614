// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package report

import (
	"fmt"

	"github.com/emicklei/dot"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/offchainlabs/bold-verifier/assertions"
)

// RenderAssertionChain returns a graphviz description of the assertion tree,
// with edges pointing from child to parent. Challenged assertions are filled.
func RenderAssertionChain(chain *assertions.Chain) string {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "RL")
	graph.Attr("labeljust", "l")

	nodes := make(map[string]dot.Node, chain.Len())
	for _, a := range chain.All() {
		label := fmt.Sprintf(
			"hash: %#x\n inbox max count: %s\n status: %s",
			a.Hash.Bytes()[:4],
			a.InboxMaxCount,
			a.Status,
		)
		n := graph.Node(hexutil.Encode(a.Hash.Bytes())).Box().Attr("label", label)
		if a.Challenged() {
			n.Attr("style", "filled").Attr("fillcolor", "lightcoral")
		} else if a.IsConfirmed() {
			n.Attr("style", "filled").Attr("fillcolor", "palegreen")
		}
		nodes[hexutil.Encode(a.Hash.Bytes())] = n
	}

	// Only draw an edge when the parent is part of the snapshot.
	for _, a := range chain.All() {
		if a.ParentHash.IsNone() {
			continue
		}
		parent, ok := nodes[hexutil.Encode(a.ParentHash.Unwrap().Bytes())]
		if !ok {
			continue
		}
		graph.Edge(nodes[hexutil.Encode(a.Hash.Bytes())], parent)
	}
	return graph.String()
}
