package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/anthropics/anthropic-sdk-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/openai/openai-go"
)

type adjustmentReply struct {
	Adjustment float64  `json:"adjustment"`
	Summary    string   `json:"summary"`
	Tags       []string `json:"tags"`
}

func openaiError(status int) *openai.Error {
	return &openai.Error{
		StatusCode: status,
		Request:    httptest.NewRequest(http.MethodPost, "https://api.openai.test/v1/chat/completions", nil),
		Response:   &http.Response{StatusCode: status},
	}
}

func anthropicError(status int) *anthropic.Error {
	return &anthropic.Error{
		StatusCode: status,
		Request:    httptest.NewRequest(http.MethodPost, "https://api.anthropic.test/v1/messages", nil),
		Response:   &http.Response{StatusCode: status},
	}
}

var _ = Describe("New", func() {
	It("requires an API key", func() {
		_, err := New(Config{Provider: ProviderOpenAI})
		Expect(err).To(MatchError(ContainSubstring("API key is required")))
	})

	It("rejects unknown providers", func() {
		_, err := New(Config{Provider: "mystery", APIKey: "k"})
		Expect(err).To(MatchError(ContainSubstring("unsupported LLM provider")))
	})

	DescribeTable("selects the provider and default model",
		func(provider Provider, model string) {
			client, err := New(Config{Provider: provider, APIKey: "k"})
			Expect(err).NotTo(HaveOccurred())
			Expect(client.Model()).To(Equal(model))
		},
		Entry("empty defaults to openai", Provider(""), "gpt-4o-mini"),
		Entry("openai", ProviderOpenAI, "gpt-4o-mini"),
		Entry("anthropic", ProviderAnthropic, "claude-sonnet-4-5-20250514"),
	)
})

var _ = Describe("GenerateSchema", func() {
	It("inlines properties and forbids extras", func() {
		raw, err := json.Marshal(GenerateSchema[adjustmentReply]())
		Expect(err).NotTo(HaveOccurred())

		var schema map[string]any
		Expect(json.Unmarshal(raw, &schema)).To(Succeed())
		Expect(schema).NotTo(HaveKey("$ref"))
		Expect(schema["additionalProperties"]).To(BeFalse())
		Expect(schema["properties"]).To(HaveKey("adjustment"))
		Expect(schema["properties"]).To(HaveKey("tags"))
	})
})

var _ = Describe("systemWithSchema", func() {
	It("passes the system prompt through without a schema", func() {
		system, err := systemWithSchema(Request{SystemPrompt: "be brief"})
		Expect(err).NotTo(HaveOccurred())
		Expect(system).To(Equal("be brief"))
	})

	It("appends the schema instruction", func() {
		system, err := systemWithSchema(Request{
			SystemPrompt: "be brief",
			Schema:       GenerateSchema[adjustmentReply](),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(system).To(HavePrefix("be brief\n\n"))
		Expect(system).To(ContainSubstring(`"adjustment"`))
	})
})

var _ = Describe("IsRetryable", func() {
	ctx := context.Background()

	It("ignores nil", func() {
		Expect(IsRetryable(ctx, nil)).To(BeFalse())
	})

	DescribeTable("classifies errors",
		func(err error, expected bool) {
			Expect(IsRetryable(ctx, err)).To(Equal(expected))
		},
		Entry("cancelled", context.Canceled, false),
		Entry("deadline", context.DeadlineExceeded, false),
		Entry("openai rate limit", openaiError(429), true),
		Entry("openai server error", openaiError(503), true),
		Entry("openai bad request", openaiError(400), false),
		Entry("anthropic overloaded", anthropicError(529), true),
		Entry("anthropic unauthorized", anthropicError(401), false),
		Entry("transport failure", errors.New("connection reset by peer"), true),
	)
})

var _ = Describe("mapStopReason", func() {
	It("normalises anthropic stop reasons", func() {
		Expect(mapStopReason(anthropic.StopReasonEndTurn)).To(Equal("stop"))
		Expect(mapStopReason(anthropic.StopReasonMaxTokens)).To(Equal("length"))
	})
})
