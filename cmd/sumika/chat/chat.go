// Package chatcmder provides the chat command for asking neighborhood
// questions grounded in the retrieval index.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sumika-ai/sumika/pkg/cliui"
	"github.com/sumika-ai/sumika/pkg/config"
	"github.com/sumika-ai/sumika/pkg/dotdir"
	embeddingutils "github.com/sumika-ai/sumika/pkg/embeddings/utils"
	"github.com/sumika-ai/sumika/pkg/history"
	"github.com/sumika-ai/sumika/pkg/llm"
	llmutils "github.com/sumika-ai/sumika/pkg/llm/utils"
	"github.com/sumika-ai/sumika/pkg/logger"
	"github.com/sumika-ai/sumika/pkg/retriever"
	"github.com/sumika-ai/sumika/pkg/tokens"
	"github.com/sumika-ai/sumika/pkg/vector"
	vectorutils "github.com/sumika-ai/sumika/pkg/vector/utils"
)

var (
	userPrompt     = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("sumika>")
)

const systemPromptBase = `You are a helpful assistant answering questions about a property's
neighborhood. Answer only from the reference information below. If the
reference information does not cover the question, say so instead of
guessing. Answer in the same language the question was asked in.

Reference information:
`

const chatLongDesc string = `Chat with sumika about the indexed neighborhood.

Each question is answered from chunks retrieved out of the vector index.
The conversation is persisted in the .sumika/ directory and resumes across
invocations; long histories are trimmed to the configured token budget
before each completion.

With a question argument, answers once and exits. Without arguments, starts
an interactive session. Use /clear to discard the saved conversation and
/exit to quit.

Examples:
  sumika chat "is the area good for families?"
  sumika chat --namespace yokohama
  sumika chat --no-advanced "nearest station"`

const chatShortDesc string = "Chat about the indexed neighborhood"

type chatCommander struct {
	question   string
	namespace  string
	advanced   bool
	noAdvanced bool
	debug      bool

	cfg       *config.Config
	configDir string
	logger    *zap.Logger

	retriever *retriever.Retriever
	completer llm.Completer
	optimizer *history.Optimizer
	counter   tokens.Counter
	dotdir    *dotdir.Manager
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat [question]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cmder.cfg, err = cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("namespace") {
				cmder.namespace = cmder.cfg.VectorStore.Namespace
			}
			cmder.advanced = cmder.cfg.Search.Advanced && !cmder.noAdvanced
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				cmder.question = args[0]
			}

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.namespace, "namespace", "n", "", "Index namespace")
	cmd.Flags().BoolVar(&cmder.noAdvanced, "no-advanced", false, "Disable query variant expansion")

	return cmd
}

func (c *chatCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	cfg := c.cfg

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		APIKey:       cfg.Embedding.APIKey,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	defer embedder.Close()

	index, err := vectorutils.NewIndex(&vectorutils.NewIndexOpts{
		ProviderType: cfg.VectorStore.Provider,
		Target:       cfg.VectorStore.Target,
		APIKey:       cfg.VectorStore.APIKey,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating vector index: %w", err)
	}
	defer index.Close()

	if err := vector.ValidateDimensions(context.Background(), index, embedder.Dimensions()); err != nil {
		return err
	}

	c.completer, err = llmutils.NewCompleter(&llmutils.NewCompleterOpts{
		ProviderType: cfg.Chat.Provider,
		TargetURL:    cfg.Chat.Target,
		APIKey:       cfg.Chat.APIKey,
		Model:        cfg.Chat.Model,
	})
	if err != nil {
		return fmt.Errorf("creating chat client: %w", err)
	}
	defer c.completer.Close()

	counter, err := tokens.NewCounter(cfg.Chat.Model)
	if err != nil {
		return fmt.Errorf("loading tokenizer: %w", err)
	}
	c.counter = counter

	c.retriever = retriever.NewRetriever(embedder, index, counter, c.logger)
	c.optimizer = history.NewOptimizer(cfg.Chat.MaxHistoryTokens, c.logger)
	c.dotdir = dotdir.NewManager()

	session, err := c.loadSession()
	if err != nil {
		return err
	}

	ctx := context.Background()

	if c.question != "" {
		return c.answer(ctx, c.question, session)
	}
	return c.interactive(ctx, session)
}

// loadSession restores the saved conversation, discarding it when it was
// recorded against a different namespace.
func (c *chatCommander) loadSession() (*dotdir.SessionState, error) {
	session, err := c.dotdir.LoadSessionState(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading session state: %w", err)
	}
	if session != nil && session.Namespace != c.namespace {
		session = nil
	}
	if session == nil {
		session = &dotdir.SessionState{Namespace: c.namespace}
	}
	return session, nil
}

func (c *chatCommander) interactive(ctx context.Context, session *dotdir.SessionState) error {
	fmt.Println()
	if len(session.Messages) > 0 {
		fmt.Printf("  %s Resuming conversation %s\n",
			cliui.SuccessMark,
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(session.Messages))),
		)
	} else {
		fmt.Printf("  %s New conversation\n", cliui.DimStyle.Render("●"))
	}
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Type your question and press Enter. /clear resets, /exit or Ctrl+D quits."))

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}
		if input == "/clear" {
			if err := c.dotdir.ClearSessionState(c.configDir); err != nil {
				fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
				continue
			}
			session.Messages = nil
			fmt.Printf("  %s Conversation cleared\n\n", cliui.SuccessMark)
			continue
		}

		if err := c.answer(ctx, input, session); err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println()
	return nil
}

// answer runs one retrieval-grounded completion turn and persists it.
func (c *chatCommander) answer(ctx context.Context, question string, session *dotdir.SessionState) error {
	var variants []string
	if c.advanced {
		variants = c.generateVariants(ctx, question)
	}

	retrieved, err := c.retriever.GetContext(ctx, question, variants, c.cfg.Search.TopK, c.cfg.Search.Threshold, c.namespace)
	if err != nil {
		return fmt.Errorf("retrieving context: %w", err)
	}

	for _, match := range retrieved.Details {
		if retriever.IsQuotaSentinel(match) {
			fmt.Printf("\n%s %s\n", assistantLabel, cliui.ErrorStyle.Render(retriever.QuotaSentinelText))
			return nil
		}
	}

	reply, err := c.completer.Complete(ctx, c.buildMessages(question, retrieved.Text, session))
	if err != nil {
		return fmt.Errorf("generating answer: %w", err)
	}

	rendered, err := cliui.RenderMarkdown(reply)
	if err != nil {
		rendered = reply
	}
	fmt.Printf("\n%s\n%s\n", assistantLabel, rendered)

	session.Messages = append(session.Messages,
		dotdir.SessionMessage{Role: string(history.RoleHuman), Content: question},
		dotdir.SessionMessage{Role: string(history.RoleAI), Content: reply},
	)
	if err := c.dotdir.SaveSessionState(session, c.configDir); err != nil {
		return fmt.Errorf("saving session state: %w", err)
	}
	return nil
}

// buildMessages assembles the completion prompt: the system prompt with the
// retrieved context, the trimmed prior conversation, then the question.
func (c *chatCommander) buildMessages(question, retrievedText string, session *dotdir.SessionState) []llm.Message {
	contextText := retrievedText
	if contextText == "" {
		contextText = retriever.EmptyContextInstruction
	}

	prior := make([]history.Message, 0, len(session.Messages)+1)
	for _, m := range session.Messages {
		role, err := history.ParseRole(m.Role)
		if err != nil {
			c.logger.Warn("skipping malformed session message", zap.Error(err))
			continue
		}
		prior = append(prior, history.NewMessage(role, m.Content, c.counter))
	}
	prior = append(prior, history.NewMessage(history.RoleHuman, question, c.counter))
	trimmed := c.optimizer.Optimize(prior)

	messages := make([]llm.Message, 0, len(trimmed)+1)
	messages = append(messages, llm.Message{Role: "system", Content: systemPromptBase + contextText})
	for _, m := range trimmed {
		switch m.Role {
		case history.RoleHuman:
			messages = append(messages, llm.Message{Role: "user", Content: m.Content})
		case history.RoleAI:
			messages = append(messages, llm.Message{Role: "assistant", Content: m.Content})
		case history.RoleSystem:
			messages = append(messages, llm.Message{Role: "system", Content: m.Content})
		}
	}
	return messages
}

// generateVariants asks the completion model for alternative phrasings of
// the question. Failures degrade to a plain single-query search.
func (c *chatCommander) generateVariants(ctx context.Context, question string) []string {
	reply, err := c.completer.Complete(ctx, []llm.Message{
		{Role: "system", Content: "Rewrite the user's question as two alternative phrasings that could match different wordings of the same information. Output only the two rewrites, one per line."},
		{Role: "user", Content: question},
	})
	if err != nil {
		c.logger.Debug("variant generation failed", zap.Error(err))
		return nil
	}

	var variants []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == question {
			continue
		}
		variants = append(variants, line)
		if len(variants) == 2 {
			break
		}
	}
	return variants
}
