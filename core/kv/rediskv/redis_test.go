package rediskv_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/triage/core/kv"
	"basegraph.app/triage/core/kv/rediskv"
)

var _ = Describe("LexBounds", func() {
	DescribeTable("maps ranges to ZRANGEBYLEX arguments",
		func(r kv.Range, min, max string) {
			gotMin, gotMax := rediskv.LexBounds(r)
			Expect(gotMin).To(Equal(min))
			Expect(gotMax).To(Equal(max))
		},
		Entry("unbounded", kv.Range{}, "-", "+"),
		Entry("inclusive start, exclusive end",
			kv.Range{Start: []byte("idx:a"), End: []byte("idx:b"), IncludeStart: true},
			"[idx:a", "(idx:b"),
		Entry("exclusive start, inclusive end",
			kv.Range{Start: []byte("a"), End: []byte("z"), IncludeEnd: true},
			"(a", "[z"),
		Entry("prefix range", kv.PrefixRange([]byte("ticket:")), "[ticket:", "(ticket;"),
	)
})
