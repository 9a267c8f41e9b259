package stubs

import (
	"fmt"

	"socialgraph/src/domain"

	"github.com/brianvoe/gofakeit/v6"
)

type NodeStub struct {
	node domain.NodeRef
}

func NewNodeStub() NodeStub {
	return NodeStub{
		node: domain.NodeRef{
			Kind: "user",
			ID:   fmt.Sprintf("user_%s_%d", gofakeit.Username(), gofakeit.Number(1, 1000000)),
		},
	}
}

func (ns NodeStub) WithKind(kind string) NodeStub {
	ns.node.Kind = kind
	return ns
}

func (ns NodeStub) WithID(id string) NodeStub {
	ns.node.ID = id
	return ns
}

func (ns NodeStub) Get() domain.NodeRef {
	return ns.node
}

// NewAttributesStub builds a small random attribute map of the shape edges
// usually carry.
func NewAttributesStub() map[string]any {
	return map[string]any{
		"source":   gofakeit.RandomString([]string{"api", "import", "backfill"}),
		"weight":   gofakeit.Number(1, 100),
		"verified": gofakeit.Bool(),
	}
}
