package scoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/openai/openai-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/triage/common/llm"
)

var _ = Describe("firstJSONObject", func() {
	DescribeTable("locates the first well-formed object",
		func(text, expected string, found bool) {
			raw, ok := firstJSONObject(text)
			Expect(ok).To(Equal(found))
			if found {
				Expect(string(raw)).To(Equal(expected))
			}
		},
		Entry("bare object", `{"a":1}`, `{"a":1}`, true),
		Entry("surrounded by prose", `here: {"a":1} done`, `{"a":1}`, true),
		Entry("skips a broken brace", `{oops {"a":1}`, `{"a":1}`, true),
		Entry("nested object kept whole", `{"a":{"b":2}}`, `{"a":{"b":2}}`, true),
		Entry("none", `no json here`, ``, false),
		Entry("unterminated", `{"a":1`, ``, false),
	)
})

var _ = Describe("parseAdjustment", func() {
	It("rejects non-numeric adjustments", func() {
		_, ok := parseAdjustment(`{"adjustment": "up"}`)
		Expect(ok).To(BeFalse())
	})

	It("accepts an explicit zero", func() {
		adj, ok := parseAdjustment(`{"adjustment": 0}`)
		Expect(ok).To(BeTrue())
		Expect(adj.Adjustment).To(BeZero())
	})
})

// apiError builds an openai.Error whose Error method can render.
func apiError(status int) *openai.Error {
	return &openai.Error{
		StatusCode: status,
		Request:    httptest.NewRequest(http.MethodPost, "https://api.openai.test/v1/chat/completions", nil),
		Response:   &http.Response{StatusCode: status},
	}
}

type fakeClient struct {
	errs  []error
	calls int
	reply string
}

func (f *fakeClient) Complete(_ context.Context, _ llm.Request) (*llm.Response, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return nil, f.errs[f.calls-1]
	}
	return &llm.Response{Content: f.reply}, nil
}

func (f *fakeClient) Model() string { return "fake" }

var _ = Describe("LLMBackend", func() {
	newBackend := func(client llm.Client, retries int) *LLMBackend {
		b := NewLLMBackend(client, retries)
		b.baseDelay = time.Millisecond
		return b
	}

	It("retries transient failures", func() {
		client := &fakeClient{
			errs:  []error{apiError(503), errors.New("connection reset")},
			reply: `{"adjustment": 0.05}`,
		}

		reply, err := newBackend(client, 2).Adjust(context.Background(), "prompt")
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal(`{"adjustment": 0.05}`))
		Expect(client.calls).To(Equal(3))
	})

	It("gives up on client errors", func() {
		client := &fakeClient{errs: []error{apiError(400)}}

		_, err := newBackend(client, 5).Adjust(context.Background(), "prompt")
		Expect(err).To(HaveOccurred())
		Expect(client.calls).To(Equal(1))
	})

	It("stops after the retry budget", func() {
		client := &fakeClient{errs: []error{
			apiError(429),
			apiError(429),
			apiError(429),
		}}

		_, err := newBackend(client, 1).Adjust(context.Background(), "prompt")
		Expect(err).To(HaveOccurred())
		Expect(client.calls).To(Equal(2))
	})
})
