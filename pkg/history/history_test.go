package history_test

import (
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/sumika-ai/sumika/pkg/history"
)

func TestHistory(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "History Suite")
}

// runeCounter counts runes so tests control token counts via content length.
type runeCounter struct{}

func (runeCounter) Count(text string) int {
	return len([]rune(text))
}

func msg(role history.Role, tokens int) history.Message {
	return history.Message{
		Role:       role,
		Content:    strings.Repeat("x", tokens),
		TokenCount: tokens,
	}
}

var _ = Describe("ParseRole", func() {
	It("accepts the closed role set", func() {
		for _, s := range []string{"system", "human", "ai"} {
			role, err := history.ParseRole(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(role)).To(Equal(s))
		}
	})

	It("rejects anything else", func() {
		_, err := history.ParseRole("assistant")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("NewMessage", func() {
	It("caches the token count", func() {
		m := history.NewMessage(history.RoleHuman, "hello", runeCounter{})
		Expect(m.TokenCount).To(Equal(5))
	})
})

var _ = Describe("Optimizer", func() {
	var logger *zap.Logger

	BeforeEach(func() {
		logger = zap.NewNop()
	})

	It("returns the history unchanged when within budget", func() {
		messages := []history.Message{
			msg(history.RoleSystem, 100),
			msg(history.RoleHuman, 50),
		}
		out := history.NewOptimizer(10000, logger).Optimize(messages)
		Expect(out).To(Equal(messages))
	})

	It("keeps system and latest, then fills smallest-first", func() {
		messages := []history.Message{
			msg(history.RoleSystem, 100),
			msg(history.RoleHuman, 50),
			msg(history.RoleAI, 4000),
			msg(history.RoleHuman, 30),
		}

		// availableTokens = 4200 - 4000 = 200: system (100) + latest (30)
		// leaves room for the 50-token message but not the 4000-token one.
		out := history.NewOptimizer(4200, logger).Optimize(messages)

		counts := make([]int, len(out))
		for i, m := range out {
			counts[i] = m.TokenCount
		}
		Expect(counts).To(Equal([]int{100, 50, 30}))
		Expect(out[0].Role).To(Equal(history.RoleSystem))
		Expect(out[len(out)-1].TokenCount).To(Equal(30))
	})

	It("always retains the most recent non-system message", func() {
		messages := []history.Message{
			msg(history.RoleSystem, 10),
			msg(history.RoleHuman, 500),
			msg(history.RoleAI, 190),
		}
		out := history.NewOptimizer(history.ReservedTokens+200, logger).Optimize(messages)
		Expect(out[len(out)-1].TokenCount).To(Equal(190))
	})

	It("never exceeds the available budget when trimming occurs", func() {
		messages := []history.Message{
			msg(history.RoleSystem, 40),
			msg(history.RoleHuman, 90),
			msg(history.RoleAI, 80),
			msg(history.RoleHuman, 70),
			msg(history.RoleAI, 60),
			msg(history.RoleHuman, 20),
		}
		out := history.NewOptimizer(history.ReservedTokens+200, logger).Optimize(messages)
		Expect(history.TotalTokens(out)).To(BeNumerically("<=", 200))
	})

	It("prefers many short messages over one long one", func() {
		messages := []history.Message{
			msg(history.RoleHuman, 150),
			msg(history.RoleAI, 30),
			msg(history.RoleHuman, 40),
			msg(history.RoleAI, 10),
		}
		out := history.NewOptimizer(history.ReservedTokens+100, logger).Optimize(messages)

		counts := make([]int, len(out))
		for i, m := range out {
			counts[i] = m.TokenCount
		}
		// Latest (10) kept, then 30 and 40 fit; 150 dropped.
		Expect(counts).To(Equal([]int{30, 40, 10}))
	})

	It("keeps only system messages when there are no others", func() {
		messages := []history.Message{
			msg(history.RoleSystem, 9000),
		}
		out := history.NewOptimizer(4200, logger).Optimize(messages)
		Expect(out).To(HaveLen(1))
		Expect(out[0].Role).To(Equal(history.RoleSystem))
	})
})
