// Package kvtest holds shared ginkgo specs every kv.Store backend must pass.
package kvtest

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/triage/core/kv"
)

// DescribeConformance registers the ordered-store contract against stores
// produced by newStore. Call it from a Describe block of the backend suite.
func DescribeConformance(newStore func() kv.Store) {
	var (
		ctx   context.Context
		store kv.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newStore()
		DeferCleanup(func() {
			Expect(store.Close()).To(Succeed())
		})
	})

	keys := func(pairs []kv.Pair) []string {
		out := make([]string, len(pairs))
		for i, p := range pairs {
			out[i] = string(p.Key)
		}
		return out
	}

	seed := func(ks ...string) {
		for _, k := range ks {
			Expect(store.Put(ctx, []byte(k), []byte("v:"+k))).To(Succeed())
		}
	}

	It("returns absent for unknown keys", func() {
		_, found, err := store.Get(ctx, []byte("missing"))
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})

	It("overwrites and deletes values", func() {
		Expect(store.Put(ctx, []byte("a"), []byte("1"))).To(Succeed())
		Expect(store.Put(ctx, []byte("a"), []byte("2"))).To(Succeed())

		value, found, err := store.Get(ctx, []byte("a"))
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(string(value)).To(Equal("2"))

		Expect(store.Delete(ctx, []byte("a"))).To(Succeed())
		_, found, err = store.Get(ctx, []byte("a"))
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})

	It("treats deleting an absent key as a no-op", func() {
		Expect(store.Delete(ctx, []byte("nope"))).To(Succeed())
	})

	It("scans in ascending key order", func() {
		seed("b", "d", "a", "c")

		pairs, err := kv.Collect(ctx, store, kv.Range{})
		Expect(err).NotTo(HaveOccurred())
		Expect(keys(pairs)).To(Equal([]string{"a", "b", "c", "d"}))
		Expect(string(pairs[0].Value)).To(Equal("v:a"))
	})

	It("honours inclusive and exclusive bounds", func() {
		seed("a", "b", "c", "d")

		pairs, err := kv.Collect(ctx, store, kv.Range{Start: []byte("b"), End: []byte("d"), IncludeStart: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(keys(pairs)).To(Equal([]string{"b", "c"}))

		pairs, err = kv.Collect(ctx, store, kv.Range{Start: []byte("b"), End: []byte("d"), IncludeEnd: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(keys(pairs)).To(Equal([]string{"c", "d"}))
	})

	It("scans a prefix without leaking neighbours", func() {
		seed("idx:a:1", "idx:a:2", "idx:b:1", "ticket:1")

		pairs, err := kv.Collect(ctx, store, kv.PrefixRange([]byte("idx:a:")))
		Expect(err).NotTo(HaveOccurred())
		Expect(keys(pairs)).To(Equal([]string{"idx:a:1", "idx:a:2"}))
	})

	It("stops early on ErrStopScan", func() {
		seed("a", "b", "c")

		var seen []string
		err := store.Scan(ctx, kv.Range{}, func(key, _ []byte) error {
			seen = append(seen, string(key))
			if len(seen) == 2 {
				return kv.ErrStopScan
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(Equal([]string{"a", "b"}))
	})

	It("allows store writes from inside a scan callback", func() {
		seed("a", "b")

		err := store.Scan(ctx, kv.Range{}, func(key, _ []byte) error {
			return store.Delete(ctx, key)
		})
		Expect(err).NotTo(HaveOccurred())

		pairs, err := kv.Collect(ctx, store, kv.Range{})
		Expect(err).NotTo(HaveOccurred())
		Expect(pairs).To(BeEmpty())
	})
}
